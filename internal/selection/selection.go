// Package selection tracks a pointer or touch gesture across calendar cells.
//
// The machine has two states. Start moves Idle to Selecting, Move updates
// the range while Selecting, End hands the range to the caller and resets,
// Cancel resets without handing anything over. The machine does not decide
// what a one-day selection means; callers treat it as a click.
package selection

import (
	"slices"
	"time"

	"pastelcal/internal/dateutil"
)

// State is whether a drag selection is in progress.
type State int

const (
	Idle State = iota
	Selecting
)

func (s State) String() string {
	if s == Selecting {
		return "selecting"
	}
	return "idle"
}

// Snapshot is the result of a finished gesture.
type Snapshot struct {
	AnchorDate    time.Time
	PointerDate   time.Time
	SelectedDates []string
}

// IsClick reports whether the gesture covered a single day.
func (s Snapshot) IsClick() bool { return len(s.SelectedDates) == 1 }

// Range returns the first and last selected day keys.
func (s Snapshot) Range() (start, end string) {
	if len(s.SelectedDates) == 0 {
		return "", ""
	}
	return s.SelectedDates[0], s.SelectedDates[len(s.SelectedDates)-1]
}

// Machine is not safe for concurrent use; it is owned by whatever feeds it
// input events.
type Machine struct {
	active   bool
	anchor   time.Time
	pointer  time.Time
	selected []string
}

// New returns an idle machine.
func New() *Machine { return &Machine{} }

func (m *Machine) State() State {
	if m.active {
		return Selecting
	}
	return Idle
}

func (m *Machine) IsActive() bool { return m.active }

func (m *Machine) AnchorDate() time.Time { return m.anchor }
func (m *Machine) PointerDate() time.Time { return m.pointer }

// SelectedDates returns a copy of the current selection.
func (m *Machine) SelectedDates() []string { return slices.Clone(m.selected) }

// IsSelected reports whether the day key is inside the current selection.
func (m *Machine) IsSelected(key string) bool {
	_, found := slices.BinarySearch(m.selected, key)
	return found
}

// Start begins a gesture on date. It is ignored while a gesture is already
// in progress.
func (m *Machine) Start(date time.Time) {
	if m.active {
		return
	}
	m.active = true
	m.anchor = date
	m.pointer = date
	m.selected = []string{dateutil.ToDateKey(date)}
}

// Move extends the gesture to date. It is a no-op while Idle.
func (m *Machine) Move(date time.Time) {
	if !m.active {
		return
	}
	m.pointer = date
	m.selected = dateutil.EnumerateRange(m.anchor, date)
}

// End finishes the gesture and returns its snapshot. ok is false when no
// gesture was in progress.
func (m *Machine) End() (snap Snapshot, ok bool) {
	if !m.active {
		return Snapshot{}, false
	}
	snap = Snapshot{
		AnchorDate:    m.anchor,
		PointerDate:   m.pointer,
		SelectedDates: m.selected,
	}
	m.reset()
	return snap, true
}

// Cancel discards the gesture in progress.
func (m *Machine) Cancel() {
	m.reset()
}

func (m *Machine) reset() {
	m.active = false
	m.anchor = time.Time{}
	m.pointer = time.Time{}
	m.selected = nil
}
