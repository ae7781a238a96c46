// Package events applies create, update and delete operations to one
// owner's event records.
//
// Collection is the pure in-memory reducer. Session pairs a Collection with a
// store.Store: every mutation is persisted first and only applied to the
// collection once the store has accepted it.
package events

import (
	"slices"
	"sort"

	"pastelcal/internal/model"
)

// Collection keeps records ordered by date. Equal dates keep insertion order.
// Operations on ids or group ids that are not present are no-ops.
type Collection struct {
	items []model.EventItem
}

// NewCollection returns a collection holding items in date order.
func NewCollection(items ...model.EventItem) *Collection {
	c := &Collection{}
	c.Replace(items)
	return c
}

// Replace swaps the whole content, as after a fresh load.
func (c *Collection) Replace(items []model.EventItem) {
	c.items = slices.Clone(items)
	c.sort()
}

func (c *Collection) sort() {
	sort.SliceStable(c.items, func(i, j int) bool { return c.items[i].Date < c.items[j].Date })
}

func (c *Collection) Len() int { return len(c.items) }

// Items returns a copy of the records in order.
func (c *Collection) Items() []model.EventItem { return slices.Clone(c.items) }

func (c *Collection) Find(id string) (model.EventItem, bool) {
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.EventItem{}, false
}

// Group returns the members of groupID in date order.
func (c *Collection) Group(groupID string) []model.EventItem {
	if groupID == "" {
		return nil
	}
	var out []model.EventItem
	for _, it := range c.items {
		if it.GroupID == groupID {
			out = append(out, it)
		}
	}
	return out
}

// Add appends records and re-sorts.
func (c *Collection) Add(records ...model.EventItem) {
	if len(records) == 0 {
		return
	}
	c.items = append(c.items, records...)
	c.sort()
}

// UpdateSingle patches one ungrouped record. Grouped records are left alone:
// their text changes go through UpdateGroup so siblings never diverge.
func (c *Collection) UpdateSingle(id string, p model.Patch) bool {
	for i := range c.items {
		if c.items[i].ID != id {
			continue
		}
		if c.items[i].Grouped() {
			return false
		}
		p.Apply(&c.items[i], false)
		c.sort()
		return true
	}
	return false
}

// UpdateGroup copies title and notes of p onto every member of groupID.
func (c *Collection) UpdateGroup(groupID string, p model.Patch) int {
	if groupID == "" {
		return 0
	}
	n := 0
	for i := range c.items {
		if c.items[i].GroupID == groupID {
			p.Apply(&c.items[i], true)
			n++
		}
	}
	if n > 0 {
		c.sort()
	}
	return n
}

// RemoveSingle drops exactly one ungrouped record.
func (c *Collection) RemoveSingle(id string) bool {
	for i, it := range c.items {
		if it.ID != id {
			continue
		}
		if it.Grouped() {
			return false
		}
		c.items = slices.Delete(c.items, i, i+1)
		return true
	}
	return false
}

// RemoveGroup drops every member of groupID in one step.
func (c *Collection) RemoveGroup(groupID string) int {
	if groupID == "" {
		return 0
	}
	before := len(c.items)
	c.items = slices.DeleteFunc(c.items, func(it model.EventItem) bool { return it.GroupID == groupID })
	return before - len(c.items)
}
