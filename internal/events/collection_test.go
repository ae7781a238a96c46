package events

import (
	"testing"

	"pastelcal/internal/grouping"
	"pastelcal/internal/model"
)

func trip(t *testing.T, b grouping.Builder) []model.EventItem {
	t.Helper()
	group, err := b.Expand(grouping.Range{Owner: "u1", Title: "Trip", Notes: "bags", StartDate: "2024-03-10", EndDate: "2024-03-12"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	return group
}

func TestAddKeepsDateOrderStable(t *testing.T) {
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	late, _ := b.Single("u1", "late", "", "2024-03-20", "")
	first, _ := b.Single("u1", "first", "", "2024-03-11", "")
	second, _ := b.Single("u1", "second", "", "2024-03-11", "")

	c := NewCollection(late)
	c.Add(first)
	c.Add(second)
	c.Add(trip(t, b)...)

	items := c.Items()
	for i := 1; i < len(items); i++ {
		if items[i].Date < items[i-1].Date {
			t.Fatalf("not sorted at %d: %+v", i, items)
		}
	}
	var onEleventh []string
	for _, it := range items {
		if it.Date == "2024-03-11" && !it.Grouped() {
			onEleventh = append(onEleventh, it.Title)
		}
	}
	if len(onEleventh) != 2 || onEleventh[0] != "first" || onEleventh[1] != "second" {
		t.Fatalf("equal dates reordered: %v", onEleventh)
	}
}

func TestUpdateGroupChangesTextOnly(t *testing.T) {
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	group := trip(t, b)
	c := NewCollection(group...)

	newDate, newColor := "2025-01-01", "red"
	p := model.TextPatch("X", "")
	p.Date, p.Color = &newDate, &newColor
	if n := c.UpdateGroup(group[0].GroupID, p); n != 3 {
		t.Fatalf("updated %d members, want 3", n)
	}
	for i, it := range c.Items() {
		if it.Title != "X" || it.Notes != "" {
			t.Fatalf("member %d text = %q/%q", i, it.Title, it.Notes)
		}
		if it.Date != group[i].Date || it.Color != group[i].Color {
			t.Fatalf("member %d per-day fields changed: %+v", i, it)
		}
	}
	if err := grouping.CheckGroup(c.Items()); err != nil {
		t.Fatalf("group broken: %v", err)
	}
}

func TestUpdateSingleSkipsGroupedRecords(t *testing.T) {
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	group := trip(t, b)
	single, _ := b.Single("u1", "Dentist", "", "2024-03-15", "")
	c := NewCollection(append(group, single)...)

	if c.UpdateSingle(group[1].ID, model.TextPatch("solo", "")) {
		t.Fatal("grouped record updated through the single path")
	}
	if !c.UpdateSingle(single.ID, model.TextPatch("Checkup", "")) {
		t.Fatal("single record not updated")
	}
	got, _ := c.Find(single.ID)
	if got.Title != "Checkup" {
		t.Fatalf("title = %q", got.Title)
	}
	if c.UpdateSingle("missing", model.TextPatch("x", "")) {
		t.Fatal("missing id reported as updated")
	}
}

func TestRemoveGroupAndSingle(t *testing.T) {
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	group := trip(t, b)
	single, _ := b.Single("u1", "Dentist", "", "2024-03-11", "")
	c := NewCollection(append(group, single)...)

	if c.RemoveSingle(group[0].ID) {
		t.Fatal("single removal broke up a group")
	}
	if n := c.RemoveGroup(group[0].GroupID); n != 3 {
		t.Fatalf("removed %d, want 3", n)
	}
	if len(c.Group(group[0].GroupID)) != 0 {
		t.Fatal("group members left behind")
	}
	if n := c.RemoveGroup(group[0].GroupID); n != 0 {
		t.Fatalf("second removal = %d", n)
	}
	if !c.RemoveSingle(single.ID) || c.Len() != 0 {
		t.Fatalf("single not removed, len = %d", c.Len())
	}
	if c.RemoveSingle(single.ID) {
		t.Fatal("second single removal reported success")
	}
}

func TestItemsIsACopy(t *testing.T) {
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	single, _ := b.Single("u1", "a", "", "2024-03-01", "")
	c := NewCollection(single)
	items := c.Items()
	items[0].Title = "mutated"
	if got, _ := c.Find(single.ID); got.Title != "a" {
		t.Fatalf("collection shares backing array: %q", got.Title)
	}
}
