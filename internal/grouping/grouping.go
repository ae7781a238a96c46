// Package grouping turns date ranges into per-day event records and folds
// stored records back into one display record per logical event.
package grouping

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"pastelcal/internal/dateutil"
	"pastelcal/internal/model"
	"pastelcal/internal/palette"
)

const DefaultTitle = "Untitled"

// DefaultMaxRangeDays bounds Expand when Builder.MaxRangeDays is zero.
const DefaultMaxRangeDays = 366

var (
	ErrBrokenGroup = errors.New("group invariant violated")
	// ErrRangeTooLong is returned by Expand for ranges longer than the
	// builder's day limit.
	ErrRangeTooLong = errors.New("date range too long")
)

// Range describes a logical event to be expanded into stored records.
type Range struct {
	Owner     string
	Title     string
	Notes     string
	StartDate string
	EndDate   string
	// Color is an optional explicit palette key; empty derives one.
	Color string
}

// Builder constructs new records. The zero value uses random ids, the wall
// clock, DefaultTitle and DefaultMaxRangeDays.
type Builder struct {
	IDs          IDFunc
	Now          func() time.Time
	DefaultTitle string
	// MaxRangeDays is the longest range Expand accepts, both ends included.
	MaxRangeDays int
}

func (b Builder) maxRangeDays() int {
	if b.MaxRangeDays <= 0 {
		return DefaultMaxRangeDays
	}
	return b.MaxRangeDays
}

func (b Builder) id(prefix string) string {
	if b.IDs == nil {
		return NewID(prefix)
	}
	return b.IDs(prefix)
}

func (b Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b Builder) title(t string) string {
	if strings.TrimSpace(t) != "" {
		return t
	}
	if b.DefaultTitle != "" {
		return b.DefaultTitle
	}
	return DefaultTitle
}

// Single builds one ungrouped record on date.
func (b Builder) Single(owner, title, notes, date, color string) (model.EventItem, error) {
	if !dateutil.ValidKey(date) {
		return model.EventItem{}, fmt.Errorf("%w: %q", dateutil.ErrInvalidKey, date)
	}
	id := b.id(EventIDPrefix)
	c := palette.Normalize(color)
	if c == "" {
		c = palette.KeyFor(id)
	}
	return model.EventItem{
		ID:        id,
		Owner:     owner,
		Title:     b.title(title),
		Notes:     notes,
		Date:      date,
		Color:     c,
		CreatedAt: b.now(),
	}, nil
}

// Expand produces one record per day of r, all sharing a fresh group id.
// StartDate and EndDate may come in either order. A one-day range yields a
// single ungrouped record. Ranges over MaxRangeDays are rejected before any
// record is built.
func (b Builder) Expand(r Range) ([]model.EventItem, error) {
	start, err := dateutil.FromDateKeyIn(r.StartDate, time.UTC)
	if err != nil {
		return nil, err
	}
	end, err := dateutil.FromDateKeyIn(r.EndDate, time.UTC)
	if err != nil {
		return nil, err
	}
	if n, limit := dateutil.DaysBetween(start, end)+1, b.maxRangeDays(); n > limit {
		return nil, fmt.Errorf("%w: %d days, limit %d", ErrRangeTooLong, n, limit)
	}
	days := dateutil.EnumerateRange(start, end)
	if len(days) == 1 {
		item, err := b.Single(r.Owner, r.Title, r.Notes, days[0], r.Color)
		if err != nil {
			return nil, err
		}
		return []model.EventItem{item}, nil
	}

	groupID := b.id(GroupIDPrefix)
	color := palette.Normalize(r.Color)
	if color == "" {
		color = palette.KeyFor(groupID)
	}
	title := b.title(r.Title)
	created := b.now()
	first, last := days[0], days[len(days)-1]

	out := make([]model.EventItem, 0, len(days))
	for _, d := range days {
		out = append(out, model.EventItem{
			ID:        b.id(EventIDPrefix),
			Owner:     r.Owner,
			Title:     title,
			Notes:     r.Notes,
			Date:      d,
			GroupID:   groupID,
			StartDate: first,
			EndDate:   last,
			Color:     color,
			CreatedAt: created,
		})
	}
	return out, nil
}

// colorOf returns the stored color or one derived from the group/record id.
func colorOf(e model.EventItem) string {
	if c := palette.Normalize(e.Color); c != "" {
		return c
	}
	if e.GroupID != "" {
		return palette.KeyFor(e.GroupID)
	}
	return palette.KeyFor(e.ID)
}

// sortByDate orders records by date, then id, in place.
func sortByDate(items []model.EventItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Date != items[j].Date {
			return items[i].Date < items[j].Date
		}
		return items[i].ID < items[j].ID
	})
}

// Fold collapses stored records into display records, one per group and
// one per ungrouped record, sorted by start date. Clusters are not checked
// for contiguity here; a damaged group still shows its min..max dates.
func Fold(items []model.EventItem) []model.DisplayEvent {
	order := make([]string, 0)
	clusters := make(map[string][]model.EventItem)
	singles := make(map[string]model.EventItem)

	for _, it := range items {
		if it.GroupID == "" {
			key := "id:" + it.ID
			if _, seen := singles[key]; !seen {
				order = append(order, key)
			}
			singles[key] = it
			continue
		}
		key := "group:" + it.GroupID
		if _, seen := clusters[key]; !seen {
			order = append(order, key)
		}
		clusters[key] = append(clusters[key], it)
	}

	out := make([]model.DisplayEvent, 0, len(order))
	for _, key := range order {
		if it, ok := singles[key]; ok {
			out = append(out, model.DisplayEvent{
				ID:        it.ID,
				Title:     it.Title,
				Notes:     it.Notes,
				Color:     colorOf(it),
				StartDate: it.Date,
				MemberIDs: []string{it.ID},
			})
			continue
		}
		out = append(out, foldCluster(clusters[key]))
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate < out[j].StartDate })
	return out
}

func foldCluster(members []model.EventItem) model.DisplayEvent {
	sorted := make([]model.EventItem, len(members))
	copy(sorted, members)
	sortByDate(sorted)

	first := sorted[0]
	d := model.DisplayEvent{
		ID:        first.GroupID,
		GroupID:   first.GroupID,
		Title:     first.Title,
		Notes:     first.Notes,
		Color:     colorOf(first),
		StartDate: first.Date,
		MemberIDs: make([]string, 0, len(sorted)),
	}
	if len(sorted) > 1 {
		d.EndDate = sorted[len(sorted)-1].Date
	}
	for _, m := range sorted {
		d.MemberIDs = append(d.MemberIDs, m.ID)
	}
	return d
}

// Members returns the records of items that belong to groupID, by date.
func Members(items []model.EventItem, groupID string) []model.EventItem {
	if groupID == "" {
		return nil
	}
	var out []model.EventItem
	for _, it := range items {
		if it.GroupID == groupID {
			out = append(out, it)
		}
	}
	sortByDate(out)
	return out
}

// CheckGroup verifies that members form a complete, consistent group:
// shared title, notes, color and range, one record per day of the range.
func CheckGroup(members []model.EventItem) error {
	if len(members) == 0 {
		return nil
	}
	first := members[0]
	if first.GroupID == "" {
		return fmt.Errorf("%w: record %s has no group id", ErrBrokenGroup, first.ID)
	}
	want, err := dateutil.EnumerateKeys(first.StartDate, first.EndDate)
	if err != nil {
		return fmt.Errorf("%w: group %s: %v", ErrBrokenGroup, first.GroupID, err)
	}
	if first.StartDate > first.EndDate {
		return fmt.Errorf("%w: group %s starts after it ends", ErrBrokenGroup, first.GroupID)
	}
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		switch {
		case m.GroupID != first.GroupID:
			return fmt.Errorf("%w: mixed group ids %s and %s", ErrBrokenGroup, first.GroupID, m.GroupID)
		case m.Title != first.Title, m.Notes != first.Notes, m.Color != first.Color:
			return fmt.Errorf("%w: group %s members disagree on title/notes/color", ErrBrokenGroup, first.GroupID)
		case m.StartDate != first.StartDate, m.EndDate != first.EndDate:
			return fmt.Errorf("%w: group %s members disagree on range", ErrBrokenGroup, first.GroupID)
		case seen[m.Date]:
			return fmt.Errorf("%w: group %s has two records on %s", ErrBrokenGroup, first.GroupID, m.Date)
		}
		seen[m.Date] = true
	}
	if len(seen) != len(want) {
		return fmt.Errorf("%w: group %s covers %d of %d days", ErrBrokenGroup, first.GroupID, len(seen), len(want))
	}
	for _, d := range want {
		if !seen[d] {
			return fmt.Errorf("%w: group %s is missing %s", ErrBrokenGroup, first.GroupID, d)
		}
	}
	return nil
}

// CheckBatch runs CheckGroup over every group present in items.
func CheckBatch(items []model.EventItem) error {
	groups := make(map[string][]model.EventItem)
	var order []string
	for _, it := range items {
		if it.GroupID == "" {
			if it.StartDate != "" || it.EndDate != "" {
				return fmt.Errorf("%w: ungrouped record %s carries a range", ErrBrokenGroup, it.ID)
			}
			continue
		}
		if _, ok := groups[it.GroupID]; !ok {
			order = append(order, it.GroupID)
		}
		groups[it.GroupID] = append(groups[it.GroupID], it)
	}
	for _, gid := range order {
		if err := CheckGroup(groups[gid]); err != nil {
			return err
		}
	}
	return nil
}
