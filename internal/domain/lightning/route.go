package lightning

import "github.com/lnwallet-ledger/internal/domain/shared"

// RouteHop is one forwarding step of a route.
type RouteHop struct {
	ChannelID        uint64
	Pubkey           Pubkey
	AmtToForwardMsat shared.MilliSatoshis
	FeeMsat          shared.MilliSatoshis
	Expiry           uint32
}

// Route is a path found by the node for a specific payment. PaymentSecret is
// carried so the final hop can include the invoice payment address.
type Route struct {
	TotalAmtMsat  shared.MilliSatoshis
	TotalFeesMsat shared.MilliSatoshis
	TotalTimeLock uint32
	Hops          []RouteHop
	PaymentSecret PaymentSecret
}

// Fee is the route fee rounded up to whole sats.
func (r Route) Fee() shared.Satoshis {
	return r.TotalFeesMsat.RoundedUpSats()
}

// PayResult is returned by every successful payment call.
type PayResult struct {
	RoundedUpFee shared.Satoshis
	Preimage     string
}
