package grouping

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"pastelcal/internal/model"
	"pastelcal/internal/palette"
)

func testBuilder() Builder {
	fixed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return Builder{IDs: SequenceIDs(), Now: func() time.Time { return fixed }}
}

func TestExpandThreeDays(t *testing.T) {
	items, err := testBuilder().Expand(Range{
		Owner: "u1", Title: "Trip", Notes: "pack light",
		StartDate: "2024-03-10", EndDate: "2024-03-12",
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	wantDates := []string{"2024-03-10", "2024-03-11", "2024-03-12"}
	for i, it := range items {
		if it.Date != wantDates[i] {
			t.Errorf("items[%d].Date = %s, want %s", i, it.Date, wantDates[i])
		}
		if it.GroupID != items[0].GroupID || it.GroupID == "" {
			t.Errorf("items[%d].GroupID = %q", i, it.GroupID)
		}
		if it.Title != "Trip" || it.Notes != "pack light" || it.Color != items[0].Color {
			t.Errorf("items[%d] shared fields differ: %+v", i, it)
		}
		if it.StartDate != "2024-03-10" || it.EndDate != "2024-03-12" {
			t.Errorf("items[%d] range = %s..%s", i, it.StartDate, it.EndDate)
		}
		if it.Owner != "u1" {
			t.Errorf("items[%d].Owner = %q", i, it.Owner)
		}
	}
	if items[0].Color != palette.KeyFor(items[0].GroupID) {
		t.Errorf("color %q not derived from group id %q", items[0].Color, items[0].GroupID)
	}
	if err := CheckGroup(items); err != nil {
		t.Errorf("CheckGroup on fresh expansion: %v", err)
	}
}

func TestExpandReversedRange(t *testing.T) {
	items, err := testBuilder().Expand(Range{StartDate: "2024-03-12", EndDate: "2024-03-10"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(items) != 3 || items[0].StartDate != "2024-03-10" || items[2].Date != "2024-03-12" {
		t.Fatalf("reversed range not normalized: %+v", items)
	}
	if items[0].Title != DefaultTitle {
		t.Errorf("blank title = %q, want %q", items[0].Title, DefaultTitle)
	}
}

func TestExpandSingleDayIsUngrouped(t *testing.T) {
	items, err := testBuilder().Expand(Range{Title: "x", StartDate: "2024-03-10", EndDate: "2024-03-10"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len = %d, want 1", len(items))
	}
	if it := items[0]; it.GroupID != "" || it.StartDate != "" || it.EndDate != "" {
		t.Fatalf("single-day range should be ungrouped: %+v", it)
	}
}

func TestExpandExplicitColor(t *testing.T) {
	items, _ := testBuilder().Expand(Range{StartDate: "2024-03-10", EndDate: "2024-03-11", Color: "teal"})
	for _, it := range items {
		if it.Color != "teal" {
			t.Fatalf("color = %q, want teal", it.Color)
		}
	}
}

func TestExpandRejectsMalformedKeys(t *testing.T) {
	if _, err := testBuilder().Expand(Range{StartDate: "2024-03-10", EndDate: "10/03/2024"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestExpandRangeLimit(t *testing.T) {
	// 2024 is a leap year: exactly the default limit.
	items, err := testBuilder().Expand(Range{StartDate: "2024-01-01", EndDate: "2024-12-31"})
	if err != nil || len(items) != DefaultMaxRangeDays {
		t.Fatalf("full year = %d records, %v", len(items), err)
	}

	cases := []struct {
		name       string
		b          Builder
		start, end string
	}{
		{"one past default", testBuilder(), "2024-01-01", "2025-01-01"},
		{"whole calendar", testBuilder(), "0001-01-01", "9999-12-31"},
		{"reversed huge", testBuilder(), "2100-12-31", "1900-01-01"},
		{"custom limit", Builder{MaxRangeDays: 7}, "2024-03-01", "2024-03-08"},
	}
	for _, c := range cases {
		items, err := c.b.Expand(Range{StartDate: c.start, EndDate: c.end})
		if !errors.Is(err, ErrRangeTooLong) || items != nil {
			t.Errorf("%s: %d records, err = %v, want ErrRangeTooLong", c.name, len(items), err)
		}
	}

	if items, err := (Builder{MaxRangeDays: 7}).Expand(Range{StartDate: "2024-03-01", EndDate: "2024-03-07"}); err != nil || len(items) != 7 {
		t.Fatalf("at custom limit = %d records, %v", len(items), err)
	}
}

func TestFoldReconstructsExpansion(t *testing.T) {
	items, _ := testBuilder().Expand(Range{Title: "Trip", StartDate: "2024-03-10", EndDate: "2024-03-12"})
	// Storage order must not matter.
	shuffled := []model.EventItem{items[2], items[0], items[1]}

	folded := Fold(shuffled)
	if len(folded) != 1 {
		t.Fatalf("len(folded) = %d, want 1", len(folded))
	}
	d := folded[0]
	if d.StartDate != "2024-03-10" || d.EndDate != "2024-03-12" {
		t.Errorf("range = %s..%s", d.StartDate, d.EndDate)
	}
	want := []string{items[0].ID, items[1].ID, items[2].ID}
	if !reflect.DeepEqual(d.MemberIDs, want) {
		t.Errorf("MemberIDs = %v, want %v", d.MemberIDs, want)
	}
	if d.ID != items[0].GroupID || d.GroupID != items[0].GroupID || d.Title != "Trip" {
		t.Errorf("display = %+v", d)
	}
	if !d.MultiDay() || d.LastDate() != "2024-03-12" {
		t.Errorf("MultiDay/LastDate wrong for %+v", d)
	}
}

func TestFoldSingletonsAndOrdering(t *testing.T) {
	b := testBuilder()
	late, _ := b.Single("u", "late", "", "2024-03-20", "")
	early, _ := b.Single("u", "early", "", "2024-03-02", "")
	group, _ := b.Expand(Range{Title: "mid", StartDate: "2024-03-05", EndDate: "2024-03-06"})

	folded := Fold(append([]model.EventItem{late, group[1], early}, group[0]))
	if len(folded) != 3 {
		t.Fatalf("len = %d, want 3", len(folded))
	}
	titles := []string{folded[0].Title, folded[1].Title, folded[2].Title}
	if !reflect.DeepEqual(titles, []string{"early", "mid", "late"}) {
		t.Fatalf("order = %v", titles)
	}
	if folded[0].EndDate != "" || !reflect.DeepEqual(folded[0].MemberIDs, []string{early.ID}) {
		t.Errorf("singleton folded wrong: %+v", folded[0])
	}
}

func TestFoldOneMemberGroupMatchesUngrouped(t *testing.T) {
	grouped := model.EventItem{ID: "ev_1", GroupID: "group_1", Title: "t", Date: "2024-03-10", StartDate: "2024-03-10", EndDate: "2024-03-10", Color: "blue"}
	plain := model.EventItem{ID: "ev_1", Title: "t", Date: "2024-03-10", Color: "blue"}

	a, b := Fold([]model.EventItem{grouped})[0], Fold([]model.EventItem{plain})[0]
	if a.StartDate != b.StartDate || a.EndDate != b.EndDate || a.Title != b.Title || a.Color != b.Color ||
		!reflect.DeepEqual(a.MemberIDs, b.MemberIDs) {
		t.Fatalf("one-member group %+v folds differently from ungrouped %+v", a, b)
	}
}

func TestFoldToleratesGaps(t *testing.T) {
	items := []model.EventItem{
		{ID: "a", GroupID: "g", Date: "2024-03-10", StartDate: "2024-03-10", EndDate: "2024-03-14"},
		{ID: "c", GroupID: "g", Date: "2024-03-14", StartDate: "2024-03-10", EndDate: "2024-03-14"},
	}
	d := Fold(items)[0]
	if d.StartDate != "2024-03-10" || d.EndDate != "2024-03-14" || len(d.MemberIDs) != 2 {
		t.Fatalf("gappy cluster folded to %+v", d)
	}
	if err := CheckGroup(items); !errors.Is(err, ErrBrokenGroup) {
		t.Fatalf("CheckGroup err = %v, want ErrBrokenGroup", err)
	}
}

func TestFoldLegacyColor(t *testing.T) {
	d := Fold([]model.EventItem{{ID: "x", Date: "2024-03-01", Color: "3"}})[0]
	if d.Color != "blue" {
		t.Fatalf("legacy numeric color resolved to %q", d.Color)
	}
	d = Fold([]model.EventItem{{ID: "a", Date: "2024-03-01"}})[0]
	if d.Color != palette.KeyFor("a") {
		t.Fatalf("missing color resolved to %q", d.Color)
	}
}

func TestCheckBatch(t *testing.T) {
	items, _ := testBuilder().Expand(Range{StartDate: "2024-03-10", EndDate: "2024-03-12"})
	if err := CheckBatch(items); err != nil {
		t.Fatalf("valid batch: %v", err)
	}

	dup := append([]model.EventItem{}, items...)
	dup[2].Date = "2024-03-11"
	if err := CheckBatch(dup); err == nil || !strings.Contains(err.Error(), "two records") {
		t.Fatalf("duplicate day err = %v", err)
	}

	partial := items[:2]
	if err := CheckBatch(partial); !errors.Is(err, ErrBrokenGroup) {
		t.Fatalf("partial group err = %v", err)
	}

	renamed := append([]model.EventItem{}, items...)
	renamed[1].Title = "other"
	if err := CheckBatch(renamed); !errors.Is(err, ErrBrokenGroup) {
		t.Fatalf("title drift err = %v", err)
	}

	stray := []model.EventItem{{ID: "s", Date: "2024-03-01", StartDate: "2024-03-01"}}
	if err := CheckBatch(stray); !errors.Is(err, ErrBrokenGroup) {
		t.Fatalf("ungrouped with range err = %v", err)
	}
}

func TestMembers(t *testing.T) {
	items, _ := testBuilder().Expand(Range{StartDate: "2024-03-10", EndDate: "2024-03-11"})
	extra := model.EventItem{ID: "other", Date: "2024-03-10"}
	got := Members([]model.EventItem{items[1], extra, items[0]}, items[0].GroupID)
	if len(got) != 2 || got[0].Date != "2024-03-10" {
		t.Fatalf("Members = %+v", got)
	}
	if Members(items, "") != nil {
		t.Fatal("Members with empty group id should be nil")
	}
}
