package lnd

import (
	"context"
	"encoding/hex"
	"sort"
	"time"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/lnrpc/invoicesrpc"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// DecodeInvoice decodes a BOLT11 request. Invoices requiring a feature the
// node does not understand are rejected.
func (c *Client) DecodeInvoice(ctx context.Context, request lightning.EncodedPaymentRequest) (lightning.Invoice, error) {
	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	req, err := c.lightning.DecodePayReq(ctx, &lnrpc.PayReqString{PayReq: string(request)})
	if err != nil {
		if svcErr := serviceError("decode invoice", err); lightning.IsTimeout(svcErr) {
			return lightning.Invoice{}, svcErr
		}
		return lightning.Invoice{}, &lightning.LnInvoiceDecodeError{Reason: "malformed payment request", Err: err}
	}

	invoice := invoiceFromPayReq(request, req)
	if bits := invoice.UnsupportedFeatures(); len(bits) > 0 {
		return lightning.Invoice{}, &lightning.LnInvoiceDecodeError{Reason: "invoice requires unsupported features"}
	}
	return invoice, nil
}

func invoiceFromPayReq(request lightning.EncodedPaymentRequest, req *lnrpc.PayReq) lightning.Invoice {
	invoice := lightning.Invoice{
		PaymentHash:     lightning.PaymentHash(req.PaymentHash),
		Destination:     lightning.Pubkey(req.Destination),
		PaymentRequest:  request,
		Amount:          shared.Satoshis(req.NumSatoshis),
		MilliSatsAmount: shared.MilliSatoshis(req.NumMsat),
		Description:     req.Description,
		CltvDelta:       uint32(req.CltvExpiry),
	}
	if len(req.PaymentAddr) > 0 {
		invoice.PaymentSecret = lightning.PaymentSecret(hex.EncodeToString(req.PaymentAddr))
	}
	if req.Timestamp > 0 && req.Expiry > 0 {
		invoice.ExpiresAt = time.Unix(req.Timestamp+req.Expiry, 0).UTC()
	}

	for _, hint := range req.RouteHints {
		hops := make([]lightning.Hop, 0, len(hint.HopHints))
		for _, h := range hint.HopHints {
			hops = append(hops, lightning.Hop{
				NodePubkey:  lightning.Pubkey(h.NodeId),
				ChannelID:   h.ChanId,
				BaseFeeMsat: int64(h.FeeBaseMsat),
				FeeRate:     int64(h.FeeProportionalMillionths),
				CltvDelta:   h.CltvExpiryDelta,
			})
		}
		invoice.RouteHints = append(invoice.RouteHints, hops)
	}

	for bit, f := range req.Features {
		invoice.Features = append(invoice.Features, lightning.Feature{
			Bit:        bit,
			IsRequired: f.IsRequired,
			IsKnown:    f.IsKnown,
			Type:       f.Name,
		})
	}
	sort.Slice(invoice.Features, func(i, j int) bool { return invoice.Features[i].Bit < invoice.Features[j].Bit })

	return invoice
}

// RegisterInvoice creates an invoice on the node. A zero ExpiresAt keeps the
// node default expiry.
func (c *Client) RegisterInvoice(ctx context.Context, args lightning.RegisterInvoiceArgs) (lightning.RegisteredInvoice, error) {
	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	req := &lnrpc.Invoice{
		Memo:  args.Description,
		Value: int64(args.Amount),
	}
	if !args.ExpiresAt.IsZero() {
		req.Expiry = max(int64(time.Until(args.ExpiresAt).Round(time.Second).Seconds()), 1)
	}

	resp, err := c.lightning.AddInvoice(ctx, req)
	if err != nil {
		return lightning.RegisteredInvoice{}, serviceError("register invoice", err)
	}

	invoice := lightning.Invoice{
		PaymentHash:     lightning.PaymentHash(hex.EncodeToString(resp.RHash)),
		PaymentSecret:   lightning.PaymentSecret(hex.EncodeToString(resp.PaymentAddr)),
		Destination:     c.pubkey,
		PaymentRequest:  lightning.EncodedPaymentRequest(resp.PaymentRequest),
		Amount:          args.Amount,
		MilliSatsAmount: args.Amount.ToMilliSats(),
		Description:     args.Description,
		ExpiresAt:       args.ExpiresAt,
	}
	return lightning.RegisteredInvoice{Invoice: invoice, Pubkey: c.pubkey}, nil
}

// LookupInvoice returns the node state of an invoice created by this node.
func (c *Client) LookupInvoice(ctx context.Context, pubkey lightning.Pubkey, hash lightning.PaymentHash) (lightning.InvoiceLookup, error) {
	rHash, err := hex.DecodeString(string(hash))
	if err != nil {
		return lightning.InvoiceLookup{}, &lightning.InvoiceNotFoundError{PaymentHash: hash}
	}
	if !c.IsLocal(pubkey) {
		return lightning.InvoiceLookup{}, &lightning.InvoiceNotFoundError{PaymentHash: hash}
	}

	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	inv, err := c.lightning.LookupInvoice(ctx, &lnrpc.PaymentHash{RHash: rHash})
	if err != nil {
		if isNotFound(err) {
			return lightning.InvoiceLookup{}, &lightning.InvoiceNotFoundError{PaymentHash: hash}
		}
		return lightning.InvoiceLookup{}, serviceError("lookup invoice", err)
	}

	lookup := lightning.InvoiceLookup{
		CreatedAt:      time.Unix(inv.CreationDate, 0).UTC(),
		Description:    inv.Memo,
		IsSettled:      inv.State == lnrpc.Invoice_SETTLED,
		IsCanceled:     inv.State == lnrpc.Invoice_CANCELED,
		Received:       shared.Satoshis(inv.AmtPaidSat),
		PaymentRequest: lightning.EncodedPaymentRequest(inv.PaymentRequest),
		Secret:         lightning.PaymentSecret(hex.EncodeToString(inv.RPreimage)),
	}
	if inv.Expiry > 0 {
		lookup.ExpiresAt = time.Unix(inv.CreationDate+inv.Expiry, 0).UTC()
	}
	if inv.SettleDate > 0 {
		settled := time.Unix(inv.SettleDate, 0).UTC()
		lookup.ConfirmedAt = &settled
	}
	return lookup, nil
}

// CancelInvoice cancels an open invoice so it can no longer be paid over the network.
func (c *Client) CancelInvoice(ctx context.Context, pubkey lightning.Pubkey, hash lightning.PaymentHash) error {
	rHash, err := hex.DecodeString(string(hash))
	if err != nil || !c.IsLocal(pubkey) {
		return &lightning.InvoiceNotFoundError{PaymentHash: hash}
	}

	ctx, cancel := c.withRequestTimeout(ctx)
	defer cancel()

	if _, err := c.invoices.CancelInvoice(ctx, &invoicesrpc.CancelInvoiceMsg{PaymentHash: rHash}); err != nil {
		if isNotFound(err) {
			return &lightning.InvoiceNotFoundError{PaymentHash: hash}
		}
		return serviceError("cancel invoice", err)
	}
	return nil
}
