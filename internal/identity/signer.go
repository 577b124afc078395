// Package identity implements the hive's uniform sign/verify adapter:
// recoverable secp256k1 signatures over double-SHA256 message hashes,
// rendered in the zbase32 encoding Lightning's own
// `signmessage`/`checkmessage` RPCs use.
package identity

import (
	"context"
	"crypto/sha256"
	"errors"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"hivecoordinator/internal/breaker"
	"hivecoordinator/internal/hiveerr"
	"hivecoordinator/internal/lnrpc"
)

// Mode reports which implementation is backing the adapter.
type Mode string

const (
	ModeLocal  Mode = "local"
	ModeRemote Mode = "remote"
)

// Info describes the adapter's runtime configuration` operation).
type Info struct {
	Mode Mode
}

// Signer is the uniform sign/verify contract every caller depends on.
// Both implementations share the same Verify logic: verification never
// needs the remote signer.
type Signer interface {
	// Sign returns a zbase-encoded signature, or "" if signing is
	// unavailable. Callers MUST treat an empty return as a hard failure
	// for outbound protocol messages.
	Sign(ctx context.Context, msg []byte) (string, error)
	// Verify checks sig against msg and confirms the recovered pubkey
	// equals claimedPubkey (33-byte compressed secp256k1).
	Verify(msg []byte, zbaseSig string, claimedPubkey []byte) bool
	Info() Info
}

func messageHash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	h2 := sha256.Sum256(h[:])
	return h2[:]
}

func verify(msg []byte, zbaseSig string, claimedPubkey []byte) bool {
	if zbaseSig == "" || len(claimedPubkey) == 0 {
		return false
	}
	sigBytes, err := zbase32DecodeString(zbaseSig)
	if err != nil || len(sigBytes) != 65 {
		return false
	}
	hash := messageHash(msg)
	recovered, _, err := ecdsa.RecoverCompact(sigBytes, hash)
	if err != nil {
		return false
	}
	claimed, err := secp256k1.ParsePubKey(claimedPubkey)
	if err != nil {
		return false
	}
	return recovered.IsEqual(claimed)
}

// ---------------------------------------------------------------------
// Local adapter — delegates signing to the node's own Lightning HSM key
// via the Lightning RPC capability.
// ---------------------------------------------------------------------

// LocalSigner signs through the node's own Lightning RPC (`signmessage`).
type LocalSigner struct {
	rpc     lnrpc.Client
	pubkey  []byte
	timeout time.Duration
}

// NewLocalSigner builds an adapter that signs via the node's own
// Lightning RPC. timeout should be >= 5s.
func NewLocalSigner(rpc lnrpc.Client, pubkey []byte, timeout time.Duration) *LocalSigner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LocalSigner{rpc: rpc, pubkey: pubkey, timeout: timeout}
}

func (s *LocalSigner) Sign(ctx context.Context, msg []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.rpc.SignMessage(ctx, msg)
	if err != nil {
		return "", hiveerr.Unavailable("identity.sign", err)
	}
	return res.Zbase, nil
}

func (s *LocalSigner) Verify(msg []byte, zbaseSig string, claimedPubkey []byte) bool {
	return verify(msg, zbaseSig, claimedPubkey)
}

func (s *LocalSigner) Info() Info { return Info{Mode: ModeLocal} }

// ---------------------------------------------------------------------
// Remote adapter — delegates SIGNING ONLY to a sibling process via RPC,
// wrapped in a circuit breaker. Verification always runs
// locally because it only needs public material.
// ---------------------------------------------------------------------

// RemoteSignFunc is the RPC call made to the sibling signer process.
type RemoteSignFunc func(ctx context.Context, msg []byte) (string, error)

// RemoteSigner signs via a sibling process, never via direct Lightning
// RPC access.
type RemoteSigner struct {
	call    RemoteSignFunc
	br      *breaker.Breaker
	timeout time.Duration
}

// NewRemoteSigner builds a breaker-protected remote signing adapter.
func NewRemoteSigner(call RemoteSignFunc, br *breaker.Breaker, timeout time.Duration) *RemoteSigner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteSigner{call: call, br: br, timeout: timeout}
}

func (s *RemoteSigner) Sign(ctx context.Context, msg []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	var out string
	err := s.br.Do("identity.remote_sign", func() error {
		res, err := s.call(ctx, msg)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (s *RemoteSigner) Verify(msg []byte, zbaseSig string, claimedPubkey []byte) bool {
	return verify(msg, zbaseSig, claimedPubkey)
}

func (s *RemoteSigner) Info() Info { return Info{Mode: ModeRemote} }

// ErrSigningUnavailable is returned by callers that treat an empty
// signature as a hard failure.
var ErrSigningUnavailable = errors.New("identity: signing unavailable")
