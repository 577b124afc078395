// Package lnrpc models the Lightning RPC capability contract as a Go
// interface. The real implementation is an external collaborator; this
// package exists so the core can depend on a typed boundary instead of
// an opaque capability, and so tests can exercise the
// dual-funded-to-single-funded channel open fallback against a
// hand-rolled fake.
package lnrpc

import "context"

// SignResult mirrors `signmessage` → {zbase}.
type SignResult struct {
	Zbase string
}

// CheckResult mirrors `checkmessage` → {verified, pubkey}.
type CheckResult struct {
	Verified bool
	Pubkey   []byte
}

// Offer mirrors the result of registering a BOLT12 offer.
type Offer struct {
	Bolt12      string
	Description string
	AmountMsat  uint64
}

// PSBTHandle tracks state across a dual-funded channel open attempt so
// the caller can abort/unreserve correctly on failure.
type PSBTHandle struct {
	ChannelID   string
	PSBT        string
	InitOK      bool
	UpdateRound int
}

// FundingResult describes the outcome of a channel open, reporting
// which path ultimately succeeded.
type FundingResult struct {
	ChannelID   string
	FundingType string // "dual-funded" or "single-funded"
}

// Client is the capability contract this core depends on. Every method
// takes a context so the caller can apply explicit deadlines (≥5s for
// signing).
type Client interface {
	SignMessage(ctx context.Context, msg []byte) (SignResult, error)
	CheckMessage(ctx context.Context, msg, sig []byte, pubkey []byte) (CheckResult, error)
	Pay(ctx context.Context, bolt11 string) error
	FetchInvoice(ctx context.Context, offer string, amountMsat uint64) (string, error)
	RegisterOffer(ctx context.Context, amountMsat uint64, description string) (Offer, error)
	ListForwards(ctx context.Context) ([]ForwardEvent, error)

	FundPSBT(ctx context.Context, peer string, amountSat uint64, feerate int, announce bool) (*PSBTHandle, error)
	OpenChannelInit(ctx context.Context, h *PSBTHandle) error
	// OpenChannelUpdate runs one negotiation round. done reports whether
	// the PSBT is ready to sign.
	OpenChannelUpdate(ctx context.Context, h *PSBTHandle) (done bool, err error)
	SignPSBT(ctx context.Context, h *PSBTHandle) error
	OpenChannelSigned(ctx context.Context, h *PSBTHandle) (FundingResult, error)
	OpenChannelAbort(ctx context.Context, h *PSBTHandle) error
	UnreserveInputs(ctx context.Context, h *PSBTHandle) error
	FundChannel(ctx context.Context, peer string, amountSat uint64, feerate int, announce bool) (FundingResult, error)
}

// ForwardEvent is one entry of `listforwards`, used to derive per-peer
// fee/forward snapshots.
type ForwardEvent struct {
	InChannel   string
	OutChannel  string
	FeeMsat     uint64
	ResolvedAt  int64
}

// MaxUpdateRounds bounds the dual-funded negotiation.
const MaxUpdateRounds = 3

// OpenChannel attempts the dual-funded path first; on any failure of
// openchannel_init/update/signpsbt, or on reaching MaxUpdateRounds,
// abort the v2 attempt (openchannel_abort only if init succeeded,
// always unreserveinputs if a PSBT exists), then fall through to
// single-funded fundchannel. feerate and announce are forwarded
// identically into both paths.
func OpenChannel(ctx context.Context, c Client, peer string, amountSat uint64, feerate int, announce bool) (FundingResult, error) {
	h, err := c.FundPSBT(ctx, peer, amountSat, feerate, announce)
	if err != nil {
		return c.FundChannel(ctx, peer, amountSat, feerate, announce)
	}

	abortAndFallback := func() (FundingResult, error) {
		if h.InitOK {
			_ = c.OpenChannelAbort(ctx, h)
		}
		_ = c.UnreserveInputs(ctx, h)
		return c.FundChannel(ctx, peer, amountSat, feerate, announce)
	}

	if err := c.OpenChannelInit(ctx, h); err != nil {
		return abortAndFallback()
	}
	h.InitOK = true

	ready := false
	for h.UpdateRound < MaxUpdateRounds {
		done, err := c.OpenChannelUpdate(ctx, h)
		if err != nil {
			return abortAndFallback()
		}
		h.UpdateRound++
		if done {
			ready = true
			break
		}
	}
	if !ready {
		return abortAndFallback()
	}

	if err := c.SignPSBT(ctx, h); err != nil {
		return abortAndFallback()
	}

	res, err := c.OpenChannelSigned(ctx, h)
	if err != nil {
		return abortAndFallback()
	}
	res.FundingType = "dual-funded"
	return res, nil
}
