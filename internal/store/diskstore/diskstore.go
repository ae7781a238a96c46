// Package diskstore keeps each owner's records as one JSON document on
// local disk, the way the browser client keeps them in local storage.
//
// Every mutation rewrites the owner's whole document through diskv's
// temp-file-and-rename path, so a batch create or group delete either lands
// completely or not at all.
package diskstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterbourgon/diskv/v3"

	appLog "pastelcal/internal/log"
	"pastelcal/internal/model"
	"pastelcal/internal/store"
)

const keyPrefix = "calendar_"

type Store struct {
	mu  sync.Mutex
	d   *diskv.Diskv
	now func() time.Time
}

// Open returns a Store rooted at basePath.
func Open(basePath string) (*Store, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("diskstore: base path is empty")
	}
	d := diskv.New(diskv.Options{
		BasePath:     basePath,
		TempDir:      filepath.Join(basePath, ".tmp"),
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 1024 * 1024, // 1MB
	})
	return &Store{d: d, now: time.Now}, nil
}

// ownerKey maps an owner (often an email) onto a filesystem-safe key.
func ownerKey(owner string) string {
	return keyPrefix + base64.RawURLEncoding.EncodeToString([]byte(owner))
}

// load must be called with mu held.
func (s *Store) load(owner string) ([]model.EventItem, error) {
	key := ownerKey(owner)
	if !s.d.Has(key) {
		return nil, nil
	}
	raw, err := s.d.Read(key)
	if err != nil {
		return nil, err
	}
	var items []model.EventItem
	if err := json.Unmarshal(raw, &items); err != nil {
		appLog.Error("diskstore: corrupt document", err, "key", key)
		return nil, fmt.Errorf("diskstore: decode %s: %w", key, err)
	}
	return items, nil
}

// save must be called with mu held.
func (s *Store) save(owner string, items []model.EventItem) error {
	store.SortItems(items)
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.d.Write(ownerKey(owner), data)
}

func (s *Store) Create(ctx context.Context, items ...model.EventItem) ([]model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	owner := items[0].Owner
	for _, it := range items {
		if it.ID == "" || it.Owner == "" {
			return nil, errors.New("diskstore: record needs id and owner")
		}
		if it.Owner != owner {
			return nil, errors.New("diskstore: a batch must belong to one owner")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(owner)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(current)+len(items))
	for _, it := range current {
		ids[it.ID] = true
	}
	now := s.now()
	created := make([]model.EventItem, 0, len(items))
	for _, it := range items {
		if ids[it.ID] {
			return nil, fmt.Errorf("diskstore: duplicate id %s", it.ID)
		}
		ids[it.ID] = true
		if it.CreatedAt.IsZero() {
			it.CreatedAt = now
		}
		it.UpdatedAt = now
		created = append(created, it)
	}
	if err := s.save(owner, append(current, created...)); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) Get(ctx context.Context, owner, id string) (model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return model.EventItem{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(owner)
	if err != nil {
		return model.EventItem{}, err
	}
	for _, it := range current {
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
	current, err := s.load(owner)
	if err != nil {
		return model.EventItem{}, err
	}
	for i := range current {
		if current[i].ID != id {
			continue
		}
		p.Apply(&current[i], false)
		current[i].UpdatedAt = s.now()
		updated := current[i]
		if err := s.save(owner, current); err != nil {
			return model.EventItem{}, err
		}
		return updated, nil
	}
	return model.EventItem{}, store.ErrNotFound
}

func (s *Store) UpdateGroup(ctx context.Context, owner, groupID string, p model.Patch) ([]model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, store.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(owner)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var updated []model.EventItem
	for i := range current {
		if current[i].GroupID != groupID {
			continue
		}
		p.Apply(&current[i], true)
		current[i].UpdatedAt = now
		updated = append(updated, current[i])
	}
	if len(updated) == 0 {
		return nil, store.ErrNotFound
	}
	if err := s.save(owner, current); err != nil {
		return nil, err
	}
	store.SortItems(updated)
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(owner)
	if err != nil {
		return err
	}
	for i, it := range current {
		if it.ID == id {
			return s.save(owner, append(current[:i:i], current[i+1:]...))
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteGroup(ctx context.Context, owner, groupID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if groupID == "" {
		return 0, store.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(owner)
	if err != nil {
		return 0, err
	}
	kept := make([]model.EventItem, 0, len(current))
	for _, it := range current {
		if it.GroupID != groupID {
			kept = append(kept, it)
		}
	}
	removed := len(current) - len(kept)
	if removed == 0 {
		return 0, store.ErrNotFound
	}
	if err := s.save(owner, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]model.EventItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.load(f.Owner)
	if err != nil {
		return nil, err
	}
	return store.SelectMonth(current, f.YearMonth)
}

// Owners lists every owner with a document on disk.
func (s *Store) Owners(ctx context.Context) []string {
	var out []string
	for key := range s.d.Keys(ctx.Done()) {
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(key, keyPrefix))
		if err != nil {
			continue
		}
		out = append(out, string(raw))
	}
	return out
}

var _ store.Store = (*Store)(nil)
