// Package memstore is an in-process store.Store. Writes are staged on a
// copy of the owner's records and committed in one swap, which is what
// makes batch and group operations all-or-nothing.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pastelcal/internal/model"
	"pastelcal/internal/store"
)

type Op string

const (
	OpCreate      Op = "create"
	OpUpdate      Op = "update"
	OpUpdateGroup Op = "update_group"
	OpDelete      Op = "delete"
	OpDeleteGroup Op = "delete_group"
	OpList        Op = "list"
)

// Fault makes the next matching operation fail after it has staged After
// records. Tests use it to simulate a crash in the middle of a batch.
type Fault struct {
	Op    Op
	After int
	Err   error
}

type Store struct {
	mu     sync.Mutex
	byUser map[string][]model.EventItem
	faults []Fault
	now    func() time.Time
}

func New() *Store {
	return &Store{byUser: make(map[string][]model.EventItem), now: time.Now}
}

// FailNext queues a fault for the next operation of kind op.
func (s *Store) FailNext(op Op, after int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, Fault{Op: op, After: after, Err: err})
}

// takeFault must be called with mu held.
func (s *Store) takeFault(op Op) *Fault {
	for i, f := range s.faults {
		if f.Op == op {
			s.faults = append(s.faults[:i], s.faults[i+1:]...)
			return &f
		}
	}
	return nil
}

func (s *Store) staged(owner string) []model.EventItem {
	return append([]model.EventItem(nil), s.byUser[owner]...)
}

func (s *Store) Create(ctx context.Context, items ...model.EventItem) ([]model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fault := s.takeFault(OpCreate)
	stage := make(map[string][]model.EventItem)
	ids := make(map[string]bool)
	for _, list := range s.byUser {
		for _, it := range list {
			ids[it.ID] = true
		}
	}

	now := s.now()
	created := make([]model.EventItem, 0, len(items))
	for i, it := range items {
		if fault != nil && i == fault.After {
			return nil, fault.Err
		}
		if it.ID == "" || it.Owner == "" {
			return nil, fmt.Errorf("memstore: record needs id and owner")
		}
		if ids[it.ID] {
			return nil, fmt.Errorf("memstore: duplicate id %s", it.ID)
		}
		ids[it.ID] = true
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
		if _, ok := stage[it.Owner]; !ok {
			stage[it.Owner] = s.staged(it.Owner)
		}
		stage[it.Owner] = append(stage[it.Owner], it)
		created = append(created, it)
	}
	if fault != nil && fault.After >= len(items) {
		return nil, fault.Err
	}
	for owner, list := range stage {
		s.byUser[owner] = list
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, owner, id string) (model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return model.EventItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.byUser[owner] {
		if it.ID == id {
			return it, nil
		}
	}
	return model.EventItem{}, store.ErrNotFound
}

func (s *Store) Update(ctx context.Context, owner, id string, p model.Patch) (model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return model.EventItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.takeFault(OpUpdate); f != nil {
		return model.EventItem{}, f.Err
	}
	list := s.byUser[owner]
	for i := range list {
		if list[i].ID == id {
			p.Apply(&list[i], false)
			list[i].UpdatedAt = s.now()
			return list[i], nil
		}
	}
	return model.EventItem{}, store.ErrNotFound
}

func (s *Store) UpdateGroup(ctx context.Context, owner, groupID string, p model.Patch) ([]model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fault := s.takeFault(OpUpdateGroup)

	stage := s.staged(owner)
	var updated []model.EventItem
	now := s.now()
	for i := range stage {
		if groupID == "" || stage[i].GroupID != groupID {
			continue
		}
		if fault != nil && len(updated) == fault.After {
			return nil, fault.Err
		}
		p.Apply(&stage[i], true)
		stage[i].UpdatedAt = now
		updated = append(updated, stage[i])
	}
	if fault != nil {
		return nil, fault.Err
	}
	if len(updated) == 0 {
		return nil, store.ErrNotFound
	}
	s.byUser[owner] = stage
	store.SortItems(updated)
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.takeFault(OpDelete); f != nil {
		return f.Err
	}
	list := s.byUser[owner]
	for i, it := range list {
		if it.ID == id {
			s.byUser[owner] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteGroup(ctx context.Context, owner, groupID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fault := s.takeFault(OpDeleteGroup)

	kept := make([]model.EventItem, 0, len(s.byUser[owner]))
	removed := 0
	for _, it := range s.byUser[owner] {
		if groupID != "" && it.GroupID == groupID {
			if fault != nil && removed == fault.After {
				return 0, fault.Err
			}
			removed++
			continue
		}
		kept = append(kept, it)
	}
	if fault != nil {
		return 0, fault.Err
	}
	if removed == 0 {
		return 0, store.ErrNotFound
	}
	s.byUser[owner] = kept
	return removed, nil
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fault := s.takeFault(OpList); fault != nil {
		return nil, fault.Err
	}
	return store.SelectMonth(s.byUser[f.Owner], f.YearMonth)
}

var _ store.Store = (*Store)(nil)
