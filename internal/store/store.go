// Package store defines the persistence contract for event records.
//
// The core does not care whether records live in process memory, on local
// disk or in a database. It only requires that a batch create and a group
// update/delete are all-or-nothing, so a partial group is never stored.
package store

import (
	"context"
	"errors"
	"sort"

	"pastelcal/internal/dateutil"
	"pastelcal/internal/model"
)

var ErrNotFound = errors.New("not found")

// Filter scopes List. YearMonth (YYYY-MM) is optional.
type Filter struct {
	Owner     string
	YearMonth string
}

// Store persists EventItems per owner. Every method is owner scoped:
// another owner's record behaves as missing.
type Store interface {
	// Create stores all items or none of them.
	Create(ctx context.Context, items ...model.EventItem) ([]model.EventItem, error)
	Get(ctx context.Context, owner, id string) (model.EventItem, error)
	Update(ctx context.Context, owner, id string, p model.Patch) (model.EventItem, error)
	// UpdateGroup applies the title/notes of p to every member, or none.
	UpdateGroup(ctx context.Context, owner, groupID string, p model.Patch) ([]model.EventItem, error)
	Delete(ctx context.Context, owner, id string) error
	// DeleteGroup removes every member or none and reports how many went.
	DeleteGroup(ctx context.Context, owner, groupID string) (int, error)
	// List returns the owner's records. With a YearMonth it returns the
	// records dated in that month plus every sibling of a group that has a
	// member in the month.
	List(ctx context.Context, f Filter) ([]model.EventItem, error)
}

// SortItems orders records by date, then creation time, then id.
func SortItems(items []model.EventItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// SelectMonth applies the YearMonth rule of Filter to the full list of one
// owner's records. Stores without a query language share it.
func SelectMonth(all []model.EventItem, ym string) ([]model.EventItem, error) {
	if ym == "" {
		out := append([]model.EventItem(nil), all...)
		SortItems(out)
		return out, nil
	}
	first, last, err := dateutil.MonthBounds(ym)
	if err != nil {
		return nil, err
	}
	touched := make(map[string]bool)
	for _, it := range all {
		if it.GroupID != "" && it.Date >= first && it.Date <= last {
			touched[it.GroupID] = true
		}
	}
	out := make([]model.EventItem, 0)
	for _, it := range all {
		inMonth := it.Date >= first && it.Date <= last
		if inMonth || (it.GroupID != "" && touched[it.GroupID]) {
			out = append(out, it)
		}
	}
	SortItems(out)
	return out, nil
}
