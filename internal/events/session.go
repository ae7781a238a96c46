package events

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"pastelcal/internal/grouping"
	appLog "pastelcal/internal/log"
	"pastelcal/internal/model"
	"pastelcal/internal/store"
)

var (
	// ErrValidation marks a save that cannot be carried out as given.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps every failure reported by the store.
	ErrPersistence = errors.New("persistence failed")
)

// Session is one owner's view of their events. It assumes a single writer.
type Session struct {
	owner        string
	st           store.Store
	coll         *Collection
	defaultTitle string
}

// NewSession returns an empty session for owner backed by st.
func NewSession(owner string, st store.Store) *Session {
	return &Session{owner: owner, st: st, coll: NewCollection()}
}

// WithDefaultTitle sets the title stored in place of a blank one.
// An empty t selects grouping.DefaultTitle.
func (s *Session) WithDefaultTitle(t string) *Session {
	s.defaultTitle = t
	return s
}

func (s *Session) fallbackTitle() string {
	if strings.TrimSpace(s.defaultTitle) != "" {
		return s.defaultTitle
	}
	return grouping.DefaultTitle
}

// titled returns p with a blank title replaced. p itself is not modified.
func (s *Session) titled(p model.Patch) model.Patch {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		t := s.fallbackTitle()
		p.Title = &t
	}
	return p
}

func (s *Session) Owner() string { return s.owner }

// Items returns the loaded records in date order.
func (s *Session) Items() []model.EventItem { return s.coll.Items() }

// Folded returns one display record per logical event.
func (s *Session) Folded() []model.DisplayEvent { return grouping.Fold(s.coll.Items()) }

func (s *Session) Find(id string) (model.EventItem, bool) { return s.coll.Find(id) }

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

// Load replaces the collection with the owner's records for yearMonth
// (YYYY-MM), or all records when yearMonth is empty.
func (s *Session) Load(ctx context.Context, yearMonth string) error {
	items, err := s.st.List(ctx, store.Filter{Owner: s.owner, YearMonth: yearMonth})
	if err != nil {
		appLog.Error("events: load failed", err, "owner", s.owner, "month", yearMonth)
		return persistErr("list", err)
	}
	s.coll.Replace(items)
	return nil
}

// LoadMonths replaces the collection with the owner's records touching any
// of yearMonths. Groups spanning several of them are loaded once.
func (s *Session) LoadMonths(ctx context.Context, yearMonths ...string) error {
	var items []model.EventItem
	seen := make(map[string]bool)
	for _, ym := range yearMonths {
		if ym == "" {
			return fmt.Errorf("%w: empty month", ErrValidation)
		}
		got, err := s.st.List(ctx, store.Filter{Owner: s.owner, YearMonth: ym})
		if err != nil {
			appLog.Error("events: load failed", err, "owner", s.owner, "month", ym)
			return persistErr("list", err)
		}
		for _, it := range got {
			if !seen[it.ID] {
				seen[it.ID] = true
				items = append(items, it)
			}
		}
	}
	s.coll.Replace(items)
	return nil
}

// Create stores records as one batch and adds them to the collection.
func (s *Session) Create(ctx context.Context, records ...model.EventItem) ([]model.EventItem, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: nothing to create", ErrValidation)
	}
	for _, r := range records {
		if r.Owner != s.owner {
			return nil, fmt.Errorf("%w: record %s belongs to %q", ErrValidation, r.ID, r.Owner)
		}
	}
	records = slices.Clone(records)
	for i := range records {
		if strings.TrimSpace(records[i].Title) == "" {
			records[i].Title = s.fallbackTitle()
		}
	}
	if err := grouping.CheckBatch(records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	created, err := s.st.Create(ctx, records...)
	if err != nil {
		appLog.Error("events: create failed", err, "owner", s.owner, "records", len(records))
		return nil, persistErr("create", err)
	}
	s.coll.Add(created...)
	appLog.Debug("events: created", "owner", s.owner, "records", len(created))
	return created, nil
}

// lookup finds id in the collection, falling back to the store.
func (s *Session) lookup(ctx context.Context, id string) (model.EventItem, bool, error) {
	if it, ok := s.coll.Find(id); ok {
		return it, true, nil
	}
	it, err := s.st.Get(ctx, s.owner, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.EventItem{}, false, nil
	}
	if err != nil {
		return model.EventItem{}, false, persistErr("get", err)
	}
	return it, true, nil
}

// Update edits one record. A grouped record is edited group-wide with the
// title and notes of p. A missing id is a no-op.
func (s *Session) Update(ctx context.Context, id string, p model.Patch) ([]model.EventItem, error) {
	target, ok, err := s.lookup(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	if target.Grouped() {
		return s.UpdateGroup(ctx, target.GroupID, p)
	}
	p = s.titled(p)
	updated, err := s.st.Update(ctx, s.owner, id, p)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		appLog.Error("events: update failed", err, "owner", s.owner, "id", id)
		return nil, persistErr("update", err)
	}
	if !s.coll.UpdateSingle(id, p) {
		s.coll.Add(updated)
	}
	return []model.EventItem{updated}, nil
}

// UpdateGroup copies title and notes onto every member of groupID.
func (s *Session) UpdateGroup(ctx context.Context, groupID string, p model.Patch) ([]model.EventItem, error) {
	text := s.titled(model.Patch{Title: p.Title, Notes: p.Notes})
	updated, err := s.st.UpdateGroup(ctx, s.owner, groupID, text)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		appLog.Error("events: group update failed", err, "owner", s.owner, "group", groupID)
		return nil, persistErr("update group", err)
	}
	s.coll.RemoveGroup(groupID)
	s.coll.Add(updated...)
	return updated, nil
}

// Delete removes one record, or the whole group the record belongs to.
func (s *Session) Delete(ctx context.Context, id string) (int, error) {
	target, ok, err := s.lookup(ctx, id)
	if err != nil || !ok {
		return 0, err
	}
	if target.Grouped() {
		return s.DeleteGroup(ctx, target.GroupID)
	}
	return s.deleteSingle(ctx, id)
}

// DeleteGroup removes every member of groupID or none of them.
func (s *Session) DeleteGroup(ctx context.Context, groupID string) (int, error) {
	n, err := s.st.DeleteGroup(ctx, s.owner, groupID)
	if errors.Is(err, store.ErrNotFound) {
		s.coll.RemoveGroup(groupID)
		return 0, nil
	}
	if err != nil {
		appLog.Error("events: group delete failed", err, "owner", s.owner, "group", groupID)
		return 0, persistErr("delete group", err)
	}
	s.coll.RemoveGroup(groupID)
	return n, nil
}

// DeleteMonth removes every logical event with a day in yearMonth; a group
// reaching into a neighbouring month goes as a whole. It stops at the first
// store failure, keeping what was already removed.
func (s *Session) DeleteMonth(ctx context.Context, yearMonth string) (int, error) {
	items, err := s.st.List(ctx, store.Filter{Owner: s.owner, YearMonth: yearMonth})
	if err != nil {
		return 0, persistErr("list", err)
	}
	removed := 0
	for _, ev := range grouping.Fold(items) {
		var n int
		if ev.GroupID != "" {
			n, err = s.DeleteGroup(ctx, ev.GroupID)
		} else {
			n, err = s.deleteSingle(ctx, ev.ID)
		}
		removed += n
		if err != nil {
			return removed, err
		}
	}
	appLog.Info("events: month cleared", "owner", s.owner, "month", yearMonth, "removed", removed)
	return removed, nil
}

func (s *Session) deleteSingle(ctx context.Context, id string) (int, error) {
	err := s.st.Delete(ctx, s.owner, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		appLog.Error("events: delete failed", err, "owner", s.owner, "id", id)
		return 0, persistErr("delete", err)
	}
	s.coll.RemoveSingle(id)
	if err != nil {
		return 0, nil
	}
	return 1, nil
}
