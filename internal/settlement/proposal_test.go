package settlement

import (
	"testing"
	"time"
)

func TestVoteWirePayloadRoundTrip(t *testing.T) {
	v := &Vote{
		ProposalID:  "prop-1",
		VoterPeerID: "peer-a",
		DataHash:    "deadbeef",
		Timestamp:   time.Now().Truncate(time.Second).UTC(),
		Signature:   "zbase-sig",
	}
	payload := VoteWirePayload(v)

	got, err := DecodeVotePayload(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ProposalID != v.ProposalID || got.VoterPeerID != v.VoterPeerID || got.DataHash != v.DataHash {
		t.Fatalf("decoded vote mismatch: got %+v, want %+v", got, v)
	}
	if got.Signature != v.Signature {
		t.Fatalf("expected signature to survive the wire round trip, got %q want %q", got.Signature, v.Signature)
	}
	if !got.Timestamp.Equal(v.Timestamp) {
		t.Fatalf("expected timestamp to survive the wire round trip, got %v want %v", got.Timestamp, v.Timestamp)
	}
}

func TestDecodeVotePayloadRejectsMissingFields(t *testing.T) {
	if _, err := DecodeVotePayload(map[string]any{"voter_peer_id": "peer-a"}); err == nil {
		t.Fatal("expected error for missing proposal_id/data_hash")
	}
}

func TestExecutionWirePayloadRoundTrip(t *testing.T) {
	e := &Execution{
		ProposalID:     "prop-1",
		ExecutorPeerID: "peer-a",
		PlanHash:       "planhash",
		TotalSentSats:  12345,
		Timestamp:      time.Now().Truncate(time.Second).UTC(),
		Signature:      "zbase-sig",
	}
	payload := ExecutionWirePayload(e)

	got, err := DecodeExecutionPayload(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ProposalID != e.ProposalID || got.ExecutorPeerID != e.ExecutorPeerID || got.PlanHash != e.PlanHash {
		t.Fatalf("decoded execution mismatch: got %+v, want %+v", got, e)
	}
	if got.TotalSentSats != e.TotalSentSats {
		t.Fatalf("expected total_sent_sats to survive, got %d want %d", got.TotalSentSats, e.TotalSentSats)
	}
	if got.Signature != e.Signature {
		t.Fatalf("expected signature to survive the wire round trip, got %q want %q", got.Signature, e.Signature)
	}
}

// TestExecutionWirePayloadSurvivesJSONNumberDecode covers the path an
// envelope decoded off the wire actually takes: total_sent_sats arrives
// as a JSON number (float64 after map[string]any unmarshal), not the
// int64 ExecutionWirePayload produces in-process.
func TestExecutionWirePayloadSurvivesJSONNumberDecode(t *testing.T) {
	payload := map[string]any{
		"proposal_id":      "prop-1",
		"executor_peer_id": "peer-a",
		"plan_hash":        "planhash",
		"total_sent_sats":  float64(500),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"signature":        "zbase-sig",
	}
	got, err := DecodeExecutionPayload(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalSentSats != 500 {
		t.Fatalf("expected float64 total_sent_sats to decode to 500, got %d", got.TotalSentSats)
	}
}

func TestDecodeExecutionPayloadRejectsMalformedTimestamp(t *testing.T) {
	payload := map[string]any{
		"proposal_id":      "prop-1",
		"executor_peer_id": "peer-a",
		"plan_hash":        "planhash",
		"total_sent_sats":  float64(500),
		"timestamp":        "not-a-timestamp",
		"signature":        "zbase-sig",
	}
	if _, err := DecodeExecutionPayload(payload); err == nil {
		t.Fatal("expected error for malformed timestamp")
	}
}
