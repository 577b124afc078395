package reputation

import (
	"context"
	"testing"
	"time"

	"hivecoordinator/internal/identity"
	"hivecoordinator/internal/storage"
)

// fakeSigner is a minimal identity.Signer test double that signs by
// returning a fixed token per call and verifies according to valid.
type fakeSigner struct {
	valid bool
}

func (f fakeSigner) Sign(ctx context.Context, msg []byte) (string, error) {
	return "sig", nil
}
func (f fakeSigner) Verify(msg []byte, sig string, pubkey []byte) bool { return f.valid }
func (f fakeSigner) Info() identity.Info                              { return identity.Info{Mode: identity.ModeLocal} }

func TestSelfIssuanceRejected(t *testing.T) {
	s := fakeSigner{valid: true}
	_, err := Issue(context.Background(), s, "peerA", IssueParams{
		Subject: "peerA",
		Domain:  DomainHiveNode,
		Metrics: map[string]float64{"uptime_pct": 90, "forwarding_success_rate": 90},
		Outcome: OutcomeNeutral,
	}, time.Now())
	if err == nil {
		t.Fatal("expected self-issuance to be rejected")
	}
}

func TestIssueThenVerifyRoundTrip(t *testing.T) {
	s := fakeSigner{valid: true}
	now := time.Now()
	c, err := Issue(context.Background(), s, "issuer1", IssueParams{
		Subject: "subject1",
		Domain:  DomainHiveNode,
		Metrics: map[string]float64{"uptime_pct": 90, "forwarding_success_rate": 90},
		Outcome: OutcomeNeutral,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	if c.Signature == "" {
		t.Fatal("expected non-empty signature")
	}
	if err := Verify(s, c, nil, now.Add(time.Minute)); err != nil {
		t.Fatalf("expected verification to succeed: %v", err)
	}
}

func TestVerifyRejectsRevoked(t *testing.T) {
	s := fakeSigner{valid: true}
	now := time.Now()
	c, err := Issue(context.Background(), s, "issuer1", IssueParams{
		Subject: "subject1",
		Domain:  DomainHiveNode,
		Metrics: map[string]float64{"uptime_pct": 90, "forwarding_success_rate": 90},
		Outcome: OutcomeNeutral,
	}, now)
	if err != nil {
		t.Fatal(err)
	}
	revokedAt := now.Add(time.Minute)
	c.RevokedAt = &revokedAt
	if err := Verify(s, c, nil, now.Add(2*time.Minute)); err == nil {
		t.Fatal("expected verification of revoked credential to fail")
	}
}

// TestCredentialAggregationScenario: 3 issuers
// issue hive:node credentials for subject X with per-credential metric
// scores normalized to 0.9, 0.85, 0.92, recent (age <= 1 day), evidence
// count 2 each. Aggregate score >= 80, tier trusted, confidence medium.
func TestCredentialAggregationScenario(t *testing.T) {
	now := time.Now()
	mk := func(issuer string, score float64) *Credential {
		// uptime_pct and forwarding_success_rate both set to score*100
		// so normalizedScore (their average) equals score*100 exactly.
		return &Credential{
			CredentialID: issuer + "-cred",
			IssuerID:     issuer,
			SubjectID:    "X",
			Domain:       DomainHiveNode,
			Metrics: map[string]float64{
				"uptime_pct":              score * 100,
				"forwarding_success_rate": score * 100,
			},
			Outcome:  OutcomeNeutral,
			Evidence: []string{"e1", "e2"},
			IssuedAt: now.Add(-1 * time.Hour),
		}
	}
	creds := []*Credential{
		mk("issuer1", 0.9),
		mk("issuer2", 0.85),
		mk("issuer3", 0.92),
	}
	notMember := func(string) bool { return false }
	agg := Compute("X", DomainHiveNode, creds, notMember, now)

	if agg.Score < 80 {
		t.Fatalf("expected aggregate score >= 80, got %f", agg.Score)
	}
	if agg.Tier != TierTrusted {
		t.Fatalf("expected tier trusted, got %s", agg.Tier)
	}
	if agg.Confidence != ConfidenceMedium {
		t.Fatalf("expected confidence medium, got %s", agg.Confidence)
	}
}

func TestAggregationMonotonicity(t *testing.T) {
	now := time.Now()
	notMember := func(string) bool { return false }
	base := []*Credential{
		{
			CredentialID: "c1", IssuerID: "i1", SubjectID: "X", Domain: DomainHiveNode,
			Metrics:  map[string]float64{"uptime_pct": 50, "forwarding_success_rate": 50},
			Outcome:  OutcomeNeutral,
			IssuedAt: now,
		},
	}
	before := Compute("X", DomainHiveNode, base, notMember, now)

	withMore := append(base, &Credential{
		CredentialID: "c2", IssuerID: "i2", SubjectID: "X", Domain: DomainHiveNode,
		Metrics:  map[string]float64{"uptime_pct": 90, "forwarding_success_rate": 90},
		Outcome:  OutcomeNeutral,
		IssuedAt: now,
	})
	after := Compute("X", DomainHiveNode, withMore, notMember, now)

	if after.Score < before.Score {
		t.Fatalf("adding a higher-scoring active credential must not lower the aggregate: before=%f after=%f", before.Score, after.Score)
	}
}

func TestEvidenceStrengthBuckets(t *testing.T) {
	if evidenceStrength(nil) != 0.3 {
		t.Fatal("expected 0.3 for no evidence")
	}
	if evidenceStrength([]string{"a", "b"}) != 0.7 {
		t.Fatal("expected 0.7 for 1-4 refs")
	}
	if evidenceStrength([]string{"a", "b", "c", "d", "e"}) != 1.0 {
		t.Fatal("expected 1.0 for >=5 refs")
	}
}

// TestAggregateMirrorPersistsAcrossRestart verifies the aggregate
// cache's store-backed half: a recompute writes a mirror row, a fresh
// Registry over the same store serves it without recomputing, and any
// credential write drops both mirrors.
func TestAggregateMirrorPersistsAcrossRestart(t *testing.T) {
	s := storage.New()
	notMember := func(string) bool { return false }
	reg := NewRegistry(s, notMember)
	t0 := time.Now()

	c, err := Issue(context.Background(), fakeSigner{valid: true}, "issuer1", IssueParams{
		Subject: "X",
		Domain:  DomainHiveNode,
		Metrics: map[string]float64{"uptime_pct": 90, "forwarding_success_rate": 90},
		Outcome: OutcomeNeutral,
	}, t0)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Store(c); err != nil {
		t.Fatal(err)
	}

	first, err := reg.Aggregate("X", DomainHiveNode, t0)
	if err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Get(storage.TableAggregations, aggregateKey("X", DomainHiveNode)); !found {
		t.Fatal("expected recompute to write a persisted mirror row")
	}

	// A fresh Registry over the same store (a restart) must serve the
	// mirror, not recompute: the returned ComputedAt is the original's.
	reg2 := NewRegistry(s, notMember)
	t1 := t0.Add(time.Minute)
	fromMirror, err := reg2.Aggregate("X", DomainHiveNode, t1)
	if err != nil {
		t.Fatal(err)
	}
	if !fromMirror.ComputedAt.Equal(first.ComputedAt) {
		t.Fatalf("expected mirror hit to return the original aggregate, got computed_at %v want %v", fromMirror.ComputedAt, first.ComputedAt)
	}

	// A credential write invalidates both mirrors.
	c2, err := Issue(context.Background(), fakeSigner{valid: true}, "issuer2", IssueParams{
		Subject: "X",
		Domain:  DomainHiveNode,
		Metrics: map[string]float64{"uptime_pct": 95, "forwarding_success_rate": 95},
		Outcome: OutcomeNeutral,
	}, t1)
	if err != nil {
		t.Fatal(err)
	}
	if err := reg2.Store(c2); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Get(storage.TableAggregations, aggregateKey("X", DomainHiveNode)); found {
		t.Fatal("expected credential write to drop the persisted mirror row")
	}
}

// TestSweepPrunesExpiredMirrors verifies the periodic sweep drops
// persisted mirror rows whose TTL has lapsed.
func TestSweepPrunesExpiredMirrors(t *testing.T) {
	s := storage.New()
	reg := NewRegistry(s, func(string) bool { return false })
	t0 := time.Now()
	if _, err := reg.Aggregate("X", DomainHiveNode, t0); err != nil {
		t.Fatal(err)
	}
	if err := reg.Sweep(t0.Add(2 * aggCacheTTL)); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Get(storage.TableAggregations, aggregateKey("X", DomainHiveNode)); found {
		t.Fatal("expected sweep to prune the expired mirror row")
	}
}
