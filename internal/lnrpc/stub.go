package lnrpc

import (
	"context"

	"hivecoordinator/internal/hiveerr"
)

// Unconfigured is the default Client until an operator wires a real
// CLN or lnd RPC endpoint. Every call returns Unavailable rather than
// panicking or faking protocol-level Lightning behavior.
type Unconfigured struct{}

func (Unconfigured) unavailable(op string) error {
	return hiveerr.Unavailable(op, errNotConfigured)
}

var errNotConfigured = notConfiguredError{}

type notConfiguredError struct{}

func (notConfiguredError) Error() string { return "lnrpc: no Lightning RPC endpoint configured" }

func (u Unconfigured) SignMessage(ctx context.Context, msg []byte) (SignResult, error) {
	return SignResult{}, u.unavailable("lnrpc.sign_message")
}

func (u Unconfigured) CheckMessage(ctx context.Context, msg, sig, pubkey []byte) (CheckResult, error) {
	return CheckResult{}, u.unavailable("lnrpc.check_message")
}

func (u Unconfigured) Pay(ctx context.Context, bolt11 string) error {
	return u.unavailable("lnrpc.pay")
}

func (u Unconfigured) FetchInvoice(ctx context.Context, offer string, amountMsat uint64) (string, error) {
	return "", u.unavailable("lnrpc.fetchinvoice")
}

func (u Unconfigured) RegisterOffer(ctx context.Context, amountMsat uint64, description string) (Offer, error) {
	return Offer{}, u.unavailable("lnrpc.offer")
}

func (u Unconfigured) ListForwards(ctx context.Context) ([]ForwardEvent, error) {
	return nil, u.unavailable("lnrpc.listforwards")
}

func (u Unconfigured) FundPSBT(ctx context.Context, peer string, amountSat uint64, feerate int, announce bool) (*PSBTHandle, error) {
	return nil, u.unavailable("lnrpc.fundpsbt")
}

func (u Unconfigured) OpenChannelInit(ctx context.Context, h *PSBTHandle) error {
	return u.unavailable("lnrpc.openchannel_init")
}

func (u Unconfigured) OpenChannelUpdate(ctx context.Context, h *PSBTHandle) (bool, error) {
	return false, u.unavailable("lnrpc.openchannel_update")
}

func (u Unconfigured) SignPSBT(ctx context.Context, h *PSBTHandle) error {
	return u.unavailable("lnrpc.signpsbt")
}

func (u Unconfigured) OpenChannelSigned(ctx context.Context, h *PSBTHandle) (FundingResult, error) {
	return FundingResult{}, u.unavailable("lnrpc.openchannel_signed")
}

func (u Unconfigured) OpenChannelAbort(ctx context.Context, h *PSBTHandle) error {
	return u.unavailable("lnrpc.openchannel_abort")
}

func (u Unconfigured) UnreserveInputs(ctx context.Context, h *PSBTHandle) error {
	return u.unavailable("lnrpc.unreserveinputs")
}

func (u Unconfigured) FundChannel(ctx context.Context, peer string, amountSat uint64, feerate int, announce bool) (FundingResult, error) {
	return FundingResult{}, u.unavailable("lnrpc.fundchannel")
}
