package lnd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/routerrpc"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// FindRoute asks the node for a route paying the invoice amount within maxFee.
func (c *Client) FindRoute(ctx context.Context, invoice lightning.Invoice, maxFee shared.Satoshis) (lightning.Route, error) {
	amount := invoice.MilliSatsAmount
	if amount == 0 {
		amount = invoice.Amount.ToMilliSats()
	}
	return c.queryRoute(ctx, invoice, amount, maxFee)
}

// FindRouteForAmountlessInvoice is FindRoute for invoices that leave the amount to the payer.
func (c *Client) FindRouteForAmountlessInvoice(ctx context.Context, invoice lightning.Invoice, maxFee, amount shared.Satoshis) (lightning.Route, error) {
	return c.queryRoute(ctx, invoice, amount.ToMilliSats(), maxFee)
}

func (c *Client) queryRoute(ctx context.Context, invoice lightning.Invoice, amount shared.MilliSatoshis, maxFee shared.Satoshis) (lightning.Route, error) {
	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	req := &lnrpc.QueryRoutesRequest{
		PubKey:         string(invoice.Destination),
		AmtMsat:        int64(amount),
		FinalCltvDelta: int32(invoice.CltvDelta),
		FeeLimit: &lnrpc.FeeLimit{
			Limit: &lnrpc.FeeLimit_Fixed{Fixed: int64(maxFee)},
		},
		RouteHints:        routeHintsToRPC(invoice.RouteHints),
		UseMissionControl: true,
	}

	resp, err := c.lightning.QueryRoutes(ctx, req)
	if err != nil {
		if isNoRoute(err) {
			return lightning.Route{}, &lightning.RouteNotFoundError{Destination: invoice.Destination, Err: lightning.ErrNoPayableRoute}
		}
		return lightning.Route{}, serviceError("query routes", err)
	}
	if len(resp.Routes) == 0 {
		return lightning.Route{}, &lightning.RouteNotFoundError{Destination: invoice.Destination, Err: lightning.ErrNoPayableRoute}
	}

	route := routeFromRPC(resp.Routes[0])
	route.PaymentSecret = invoice.PaymentSecret
	return route, nil
}

// PayViaRoute sends a single HTLC along a previously found route.
func (c *Client) PayViaRoute(ctx context.Context, hash lightning.PaymentHash, route lightning.Route) (lightning.PayResult, error) {
	rHash, err := hex.DecodeString(string(hash))
	if err != nil {
		return lightning.PayResult{}, fmt.Errorf("invalid payment hash %q: %w", hash, err)
	}
	rpcRoute, err := routeToRPC(route)
	if err != nil {
		return lightning.PayResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.paymentTimeout)
	defer cancel()

	attempt, err := c.router.SendToRouteV2(ctx, &routerrpc.SendToRouteRequest{
		PaymentHash: rHash,
		Route:       rpcRoute,
	})
	if err != nil {
		return lightning.PayResult{}, dispatchError("send to route", err)
	}

	switch attempt.Status {
	case lnrpc.HTLCAttempt_SUCCEEDED:
		return lightning.PayResult{
			RoundedUpFee: route.Fee(),
			Preimage:     hex.EncodeToString(attempt.Preimage),
		}, nil
	case lnrpc.HTLCAttempt_FAILED:
		reason := "unknown failure"
		if attempt.Failure != nil {
			reason = attempt.Failure.Code.String()
		}
		return lightning.PayResult{}, &lightning.LightningServiceError{
			Op:  "send to route",
			Err: fmt.Errorf("htlc failed: %s", reason),
		}
	default:
		return lightning.PayResult{}, &lightning.LightningServiceError{
			Op:      "send to route",
			Timeout: true,
			Err:     errors.New("htlc still in flight"),
		}
	}
}

// PayViaPaymentDetails lets the node pathfind and retry on its own. amount is
// only sent for invoices without an amount.
func (c *Client) PayViaPaymentDetails(ctx context.Context, invoice lightning.Invoice, amount shared.MilliSatoshis, maxFee shared.Satoshis) (lightning.PayResult, error) {
	req := &routerrpc.SendPaymentRequest{
		PaymentRequest:    string(invoice.PaymentRequest),
		FeeLimitSat:       int64(maxFee),
		TimeoutSeconds:    int32(c.paymentTimeout.Seconds()),
		NoInflightUpdates: true,
	}
	if !invoice.HasAmount() {
		req.AmtMsat = int64(amount)
	}
	return c.sendPayment(ctx, "send payment", invoice.Destination, req)
}

// SendKeysend pays a node directly without an invoice. The preimage travels
// in a custom record so the receiver can settle.
func (c *Client) SendKeysend(ctx context.Context, args lightning.KeysendArgs) (lightning.PayResult, error) {
	dest, err := hex.DecodeString(string(args.Destination))
	if err != nil {
		return lightning.PayResult{}, fmt.Errorf("invalid destination pubkey %q: %w", args.Destination, err)
	}
	hash := sha256.Sum256(args.Preimage)

	records := map[uint64][]byte{lightning.KeysendPreimageRecord: args.Preimage}
	if args.Message != "" {
		records[lightning.KeysendMessageRecord] = []byte(args.Message)
	}

	req := &routerrpc.SendPaymentRequest{
		Dest:              dest,
		Amt:               int64(args.Amount),
		PaymentHash:       hash[:],
		DestCustomRecords: records,
		FeeLimitSat:       int64(args.MaxFee),
		TimeoutSeconds:    int32(c.paymentTimeout.Seconds()),
		NoInflightUpdates: true,
	}
	return c.sendPayment(ctx, "keysend", args.Destination, req)
}

func (c *Client) sendPayment(ctx context.Context, op string, dest lightning.Pubkey, req *routerrpc.SendPaymentRequest) (lightning.PayResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.paymentTimeout+c.requestTimeout)
	defer cancel()

	stream, err := c.router.SendPaymentV2(ctx, req)
	if err != nil {
		return lightning.PayResult{}, dispatchError(op, err)
	}

	for {
		payment, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("payment stream closed before a final update")
			}
			return lightning.PayResult{}, dispatchError(op, err)
		}

		switch payment.Status {
		case lnrpc.Payment_SUCCEEDED:
			return lightning.PayResult{
				RoundedUpFee: shared.MilliSatoshis(payment.FeeMsat).RoundedUpSats(),
				Preimage:     payment.PaymentPreimage,
			}, nil
		case lnrpc.Payment_FAILED:
			if payment.FailureReason == lnrpc.PaymentFailureReason_FAILURE_REASON_NO_ROUTE {
				return lightning.PayResult{}, &lightning.RouteNotFoundError{Destination: dest, Err: lightning.ErrNoPayableRoute}
			}
			return lightning.PayResult{}, &lightning.LightningServiceError{
				Op:  op,
				Err: errors.New(strings.ToLower(payment.FailureReason.String())),
			}
		}
	}
}

// LookupPayment reads the current node state of an outgoing payment.
func (c *Client) LookupPayment(ctx context.Context, hash lightning.PaymentHash) (lightning.PaymentLookup, error) {
	rHash, err := hex.DecodeString(string(hash))
	if err != nil {
		return lightning.PaymentLookup{}, &lightning.PaymentNotFoundError{PaymentHash: hash}
	}

	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	stream, err := c.router.TrackPaymentV2(ctx, &routerrpc.TrackPaymentRequest{PaymentHash: rHash})
	if err != nil {
		if isNotFound(err) {
			return lightning.PaymentLookup{}, &lightning.PaymentNotFoundError{PaymentHash: hash}
		}
		return lightning.PaymentLookup{}, serviceError("track payment", err)
	}

	payment, err := stream.Recv()
	if err != nil {
		if isNotFound(err) {
			return lightning.PaymentLookup{}, &lightning.PaymentNotFoundError{PaymentHash: hash}
		}
		return lightning.PaymentLookup{}, serviceError("track payment", err)
	}
	return paymentLookupFromRPC(hash, payment), nil
}

func paymentLookupFromRPC(hash lightning.PaymentHash, p *lnrpc.Payment) lightning.PaymentLookup {
	lookup := lightning.PaymentLookup{
		CreatedAt:      time.Unix(0, p.CreationTimeNs).UTC(),
		PaymentHash:    hash,
		PaymentRequest: lightning.EncodedPaymentRequest(p.PaymentRequest),
		Status:         lightning.PaymentStatusPending,
	}

	var settledBy *lnrpc.HTLCAttempt
	for _, htlc := range p.Htlcs {
		attempt := lightning.PaymentAttempt{
			Status:      strings.ToLower(htlc.Status.String()),
			AttemptedAt: time.Unix(0, htlc.AttemptTimeNs).UTC(),
		}
		if htlc.Route != nil {
			attempt.FeeMsat = htlc.Route.TotalFeesMsat
			attempt.HopCount = len(htlc.Route.Hops)
		}
		if htlc.Failure != nil {
			attempt.FailureReason = htlc.Failure.Code.String()
		}
		if htlc.Status == lnrpc.HTLCAttempt_SUCCEEDED {
			settledBy = htlc
		}
		lookup.Attempts = append(lookup.Attempts, attempt)
	}

	switch p.Status {
	case lnrpc.Payment_SUCCEEDED:
		lookup.Status = lightning.PaymentStatusSettled
		details := &lightning.PaymentDetails{
			MilliSatsFee:    shared.MilliSatoshis(p.FeeMsat),
			MilliSatsAmount: shared.MilliSatoshis(p.ValueMsat),
			RoundedUpFee:    shared.MilliSatoshis(p.FeeMsat).RoundedUpSats(),
			Secret:          lightning.PaymentSecret(p.PaymentPreimage),
			Amount:          shared.Satoshis(p.ValueSat),
		}
		if settledBy != nil {
			if settledBy.ResolveTimeNs > 0 {
				confirmed := time.Unix(0, settledBy.ResolveTimeNs).UTC()
				details.ConfirmedAt = &confirmed
			}
			if settledBy.Route != nil && len(settledBy.Route.Hops) > 0 {
				details.Destination = lightning.Pubkey(settledBy.Route.Hops[len(settledBy.Route.Hops)-1].PubKey)
			}
		}
		lookup.Details = details
	case lnrpc.Payment_FAILED:
		lookup.Status = lightning.PaymentStatusFailed
	}
	return lookup
}

func routeHintsToRPC(hints [][]lightning.Hop) []*lnrpc.RouteHint {
	if len(hints) == 0 {
		return nil
	}
	out := make([]*lnrpc.RouteHint, 0, len(hints))
	for _, hint := range hints {
		rpcHint := &lnrpc.RouteHint{}
		for _, h := range hint {
			rpcHint.HopHints = append(rpcHint.HopHints, &lnrpc.HopHint{
				NodeId:                    string(h.NodePubkey),
				ChanId:                    h.ChannelID,
				FeeBaseMsat:               uint32(h.BaseFeeMsat),
				FeeProportionalMillionths: uint32(h.FeeRate),
				CltvExpiryDelta:           h.CltvDelta,
			})
		}
		out = append(out, rpcHint)
	}
	return out
}

func routeFromRPC(r *lnrpc.Route) lightning.Route {
	route := lightning.Route{
		TotalAmtMsat:  shared.MilliSatoshis(r.TotalAmtMsat),
		TotalFeesMsat: shared.MilliSatoshis(r.TotalFeesMsat),
		TotalTimeLock: r.TotalTimeLock,
		Hops:          make([]lightning.RouteHop, 0, len(r.Hops)),
	}
	for _, h := range r.Hops {
		route.Hops = append(route.Hops, lightning.RouteHop{
			ChannelID:        h.ChanId,
			Pubkey:           lightning.Pubkey(h.PubKey),
			AmtToForwardMsat: shared.MilliSatoshis(h.AmtToForwardMsat),
			FeeMsat:          shared.MilliSatoshis(h.FeeMsat),
			Expiry:           h.Expiry,
		})
	}
	return route
}

// routeToRPC rebuilds the node route. The final hop carries the MPP record
// with the invoice payment address, which receivers require.
func routeToRPC(route lightning.Route) (*lnrpc.Route, error) {
	if len(route.Hops) == 0 {
		return nil, errors.New("route has no hops")
	}

	r := &lnrpc.Route{
		TotalAmtMsat:  int64(route.TotalAmtMsat),
		TotalFeesMsat: int64(route.TotalFeesMsat),
		TotalTimeLock: route.TotalTimeLock,
		Hops:          make([]*lnrpc.Hop, 0, len(route.Hops)),
	}
	for _, h := range route.Hops {
		r.Hops = append(r.Hops, &lnrpc.Hop{
			ChanId:           h.ChannelID,
			PubKey:           string(h.Pubkey),
			AmtToForwardMsat: int64(h.AmtToForwardMsat),
			FeeMsat:          int64(h.FeeMsat),
			Expiry:           h.Expiry,
		})
	}

	if route.PaymentSecret != "" {
		addr, err := hex.DecodeString(string(route.PaymentSecret))
		if err != nil {
			return nil, fmt.Errorf("invalid payment secret: %w", err)
		}
		last := r.Hops[len(r.Hops)-1]
		last.MppRecord = &lnrpc.MPPRecord{
			PaymentAddr:  addr,
			TotalAmtMsat: last.AmtToForwardMsat,
		}
	}
	return r, nil
}
