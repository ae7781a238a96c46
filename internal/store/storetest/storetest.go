// Package storetest is a contract suite every store.Store must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"pastelcal/internal/grouping"
	"pastelcal/internal/model"
	"pastelcal/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

func builder(owner string) grouping.Builder {
	ids := grouping.SequenceIDs()
	prefix := owner + "-"
	return grouping.Builder{
		IDs: func(p string) string { return prefix + ids(p) },
		Now: func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
	}
}

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("CreateAndListByMonth", func(t *testing.T) {
		s := newStore(t)
		b := builder("u1")
		group, _ := b.Expand(grouping.Range{Owner: "u1", Title: "Trip", StartDate: "2024-03-30", EndDate: "2024-04-02"})
		single, _ := b.Single("u1", "Dentist", "", "2024-03-15", "")
		april, _ := b.Single("u1", "Later", "", "2024-04-20", "")

		if _, err := s.Create(ctx, group...); err != nil {
			t.Fatalf("create group: %v", err)
		}
		if _, err := s.Create(ctx, single, april); err != nil {
			t.Fatalf("create singles: %v", err)
		}

		march, err := s.List(ctx, store.Filter{Owner: "u1", YearMonth: "2024-03"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		// Dentist + all four Trip days: the April siblings ride along.
		if len(march) != 5 {
			t.Fatalf("march list len = %d, want 5: %+v", len(march), march)
		}
		for i := 1; i < len(march); i++ {
			if march[i].Date < march[i-1].Date {
				t.Fatalf("list not sorted by date: %+v", march)
			}
		}

		all, err := s.List(ctx, store.Filter{Owner: "u1"})
		if err != nil || len(all) != 6 {
			t.Fatalf("full list len = %d, err = %v", len(all), err)
		}

		other, err := s.List(ctx, store.Filter{Owner: "u2"})
		if err != nil || len(other) != 0 {
			t.Fatalf("other owner sees %d records, err = %v", len(other), err)
		}
	})

	t.Run("GetUpdateDelete", func(t *testing.T) {
		s := newStore(t)
		b := builder("u1")
		it, _ := b.Single("u1", "Draft", "", "2024-03-15", "")
		if _, err := s.Create(ctx, it); err != nil {
			t.Fatalf("create: %v", err)
		}

		got, err := s.Get(ctx, "u1", it.ID)
		if err != nil || got.Title != "Draft" {
			t.Fatalf("get = %+v, %v", got, err)
		}
		if _, err := s.Get(ctx, "u2", it.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("cross-owner get err = %v", err)
		}

		upd, err := s.Update(ctx, "u1", it.ID, model.TextPatch("Final", "note"))
		if err != nil || upd.Title != "Final" || upd.Notes != "note" || upd.Date != "2024-03-15" {
			t.Fatalf("update = %+v, %v", upd, err)
		}
		if _, err := s.Update(ctx, "u1", "missing", model.TextPatch("x", "")); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("update missing err = %v", err)
		}

		if err := s.Delete(ctx, "u2", it.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("cross-owner delete err = %v", err)
		}
		if err := s.Delete(ctx, "u1", it.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := s.Delete(ctx, "u1", it.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("second delete err = %v", err)
		}
	})

	t.Run("GroupUpdateAndDelete", func(t *testing.T) {
		s := newStore(t)
		b := builder("u1")
		group, _ := b.Expand(grouping.Range{Owner: "u1", Title: "Trip", StartDate: "2024-03-10", EndDate: "2024-03-12"})
		keep, _ := b.Single("u1", "Keep", "", "2024-03-11", "")
		if _, err := s.Create(ctx, append(group, keep)...); err != nil {
			t.Fatalf("create: %v", err)
		}

		gid := group[0].GroupID
		updated, err := s.UpdateGroup(ctx, "u1", gid, model.TextPatch("X", "n"))
		if err != nil || len(updated) != 3 {
			t.Fatalf("update group = %d records, %v", len(updated), err)
		}
		for i, u := range updated {
			if u.Title != "X" || u.Notes != "n" || u.Date != group[i].Date || u.Color != group[i].Color {
				t.Fatalf("updated[%d] = %+v", i, u)
			}
		}
		if err := grouping.CheckGroup(updated); err != nil {
			t.Fatalf("group broken after update: %v", err)
		}

		n, err := s.DeleteGroup(ctx, "u1", gid)
		if err != nil || n != 3 {
			t.Fatalf("delete group = %d, %v", n, err)
		}
		left, _ := s.List(ctx, store.Filter{Owner: "u1"})
		if len(left) != 1 || left[0].ID != keep.ID {
			t.Fatalf("left after group delete = %+v", left)
		}
		if _, err := s.DeleteGroup(ctx, "u1", gid); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("second group delete err = %v", err)
		}
		if _, err := s.UpdateGroup(ctx, "u1", gid, model.TextPatch("y", "")); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("update deleted group err = %v", err)
		}
	})

	t.Run("DuplicateIDRejectsWholeBatch", func(t *testing.T) {
		s := newStore(t)
		b := builder("u1")
		first, _ := b.Single("u1", "a", "", "2024-03-01", "")
		if _, err := s.Create(ctx, first); err != nil {
			t.Fatalf("create: %v", err)
		}
		second, _ := b.Single("u1", "b", "", "2024-03-02", "")
		if _, err := s.Create(ctx, second, first); err == nil {
			t.Fatal("duplicate id accepted")
		}
		all, _ := s.List(ctx, store.Filter{Owner: "u1"})
		if len(all) != 1 {
			t.Fatalf("failed batch left %d records, want 1", len(all))
		}
	})
}
