package diskstore

import (
	"context"
	"testing"

	"pastelcal/internal/grouping"
	"pastelcal/internal/store"
	"pastelcal/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir())
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		return s
	})
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	group, _ := b.Expand(grouping.Range{Owner: "me@example.com", Title: "Trip", StartDate: "2024-05-01", EndDate: "2024-05-03"})
	if _, err := s.Create(ctx, group...); err != nil {
		t.Fatalf("create: %v", err)
	}

	again, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := again.List(ctx, store.Filter{Owner: "me@example.com"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("reopened store has %d records, want 3", len(got))
	}
	if err := grouping.CheckGroup(got); err != nil {
		t.Fatalf("group damaged on disk: %v", err)
	}

	owners := again.Owners(ctx)
	if len(owners) != 1 || owners[0] != "me@example.com" {
		t.Fatalf("owners = %v", owners)
	}
}

func TestMixedOwnerBatchRejected(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	a, _ := b.Single("u1", "a", "", "2024-03-01", "")
	c, _ := b.Single("u2", "c", "", "2024-03-01", "")
	if _, err := s.Create(context.Background(), a, c); err == nil {
		t.Fatal("mixed owner batch accepted")
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("empty base path accepted")
	}
}
