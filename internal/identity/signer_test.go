package identity

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"hivecoordinator/internal/breaker"
)

func TestZbase32RoundTrip(t *testing.T) {
	cases := [][]byte{
		{0x00},
		{0xff, 0x00, 0xab},
		[]byte("the quick brown fox"),
	}
	for _, in := range cases {
		enc := zbase32Encode(in)
		got, err := zbase32DecodeString(enc)
		if err != nil {
			t.Fatalf("decode(%q): %v", enc, err)
		}
		if !bytes.Equal(got, in) {
			t.Fatalf("round trip mismatch: %x -> %q -> %x", in, enc, got)
		}
	}
	if _, err := zbase32DecodeString("0lv2"); err == nil {
		t.Fatal("expected error for characters outside the alphabet")
	}
}

// signWith produces the zbase signature a Lightning signmessage would:
// a recoverable compact signature over the double-SHA256 of msg.
func signWith(t *testing.T, priv *secp256k1.PrivateKey, msg []byte) string {
	t.Helper()
	sig := ecdsa.SignCompact(priv, messageHash(msg), true)
	return zbase32Encode(sig)
}

func TestVerifyRecoversClaimedPubkey(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte(`{"domain":"hive:node","issuer_id":"02aa"}`)
	sig := signWith(t, priv, msg)
	pub := priv.PubKey().SerializeCompressed()

	if !verify(msg, sig, pub) {
		t.Fatal("expected signature to verify under the signing key")
	}

	other, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	if verify(msg, sig, other.PubKey().SerializeCompressed()) {
		t.Fatal("expected verification to fail under a different claimed pubkey")
	}
	if verify([]byte("tampered"), sig, pub) {
		t.Fatal("expected verification to fail for a tampered message")
	}
	if verify(msg, "", pub) {
		t.Fatal("expected empty signature to fail closed")
	}
}

func TestRemoteSignerBreakerOpensAfterFailures(t *testing.T) {
	boom := errors.New("remote signer down")
	calls := 0
	call := func(ctx context.Context, msg []byte) (string, error) {
		calls++
		return "", boom
	}
	s := NewRemoteSigner(call, breaker.New(breaker.WithResetTimeout(time.Hour)), time.Second)

	for i := 0; i < 3; i++ {
		if _, err := s.Sign(context.Background(), []byte("m")); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected remote failure, got %v", i, err)
		}
	}
	// Circuit is now open: the dependency must not be touched.
	if _, err := s.Sign(context.Background(), []byte("m")); err == nil {
		t.Fatal("expected unavailable error while open")
	}
	if calls != 3 {
		t.Fatalf("expected dependency untouched while open, calls=%d", calls)
	}
	if s.Info().Mode != ModeRemote {
		t.Fatalf("unexpected mode %v", s.Info().Mode)
	}
}
