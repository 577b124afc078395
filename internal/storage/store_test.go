package storage

import (
	"testing"

	"hivecoordinator/internal/hiveerr"
)

func TestRowCapEnforced(t *testing.T) {
	s := New()
	RowCaps[TableManagementCredentials] = 2
	defer func() { RowCaps[TableManagementCredentials] = 1000 }()

	if err := s.Upsert(TableManagementCredentials, "a", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(TableManagementCredentials, "b", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(TableManagementCredentials, "c", 3); !hiveerr.Is(err, hiveerr.KindCapacity) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	// Updating an existing key never trips the cap.
	if err := s.Upsert(TableManagementCredentials, "a", 11); err != nil {
		t.Fatalf("update of existing key should not trip cap: %v", err)
	}
}

func TestIdempotencyIndex(t *testing.T) {
	s := New()
	seen, err := s.SeenEvent("settlement-ready", "p1|v1")
	if err != nil || seen {
		t.Fatalf("expected unmarked pair to be unseen: %v %v", seen, err)
	}
	first, err := s.MarkIfNew("settlement-ready", "p1|v1")
	if err != nil || !first {
		t.Fatalf("expected first mark to be new: %v %v", first, err)
	}
	second, err := s.MarkIfNew("settlement-ready", "p1|v1")
	if err != nil || second {
		t.Fatalf("expected duplicate mark to report not-new: %v %v", second, err)
	}
	seen, err = s.SeenEvent("settlement-ready", "p1|v1")
	if err != nil || !seen {
		t.Fatalf("expected marked pair to be seen: %v %v", seen, err)
	}
}

func TestRangeOrderedByKey(t *testing.T) {
	s := New()
	_ = s.Upsert(TableMembers, "member:b", "B")
	_ = s.Upsert(TableMembers, "member:a", "A")
	_ = s.Upsert(TableMembers, "member:c", "C")
	vals, err := s.Range(TableMembers, "member:")
	if err != nil {
		t.Fatal(err)
	}
	want := []any{"A", "B", "C"}
	if len(vals) != len(want) {
		t.Fatalf("unexpected length: %v", vals)
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("unexpected order: %v", vals)
		}
	}
}
