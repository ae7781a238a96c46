package model

import "time"

// EventItem is one stored calendar record: a single day on the grid.
//
// A multi-day logical event is stored as one EventItem per day, all sharing
// GroupID, StartDate, EndDate, Title, Notes and Color. Ungrouped records
// leave GroupID, StartDate and EndDate empty.
type EventItem struct {
	ID    string `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Owner string `json:"user" gorm:"column:owner_id;type:varchar(120);index;not null"`
	Title string `json:"title" gorm:"type:varchar(200);not null"`
	Notes string `json:"notes,omitempty" gorm:"type:text"`

	// Date is the civil day this record occupies (YYYY-MM-DD).
	Date string `json:"date" gorm:"type:varchar(10);index;not null"`

	GroupID   string `json:"groupId,omitempty" gorm:"type:varchar(64);index"`
	StartDate string `json:"startDate,omitempty" gorm:"type:varchar(10)"`
	EndDate   string `json:"endDate,omitempty" gorm:"type:varchar(10)"`

	// Color is a palette key (see internal/palette).
	Color string `json:"color,omitempty" gorm:"type:varchar(20)"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName pins the table name independent of gorm's pluralizer.
func (EventItem) TableName() string { return "events" }

// Grouped reports whether the record is one day of a multi-day event.
func (e EventItem) Grouped() bool { return e.GroupID != "" }

// Patch carries the mutable fields of an update. Nil fields are left as is.
// Group-wide updates only honour Title and Notes.
type Patch struct {
	Title *string `json:"title,omitempty"`
	Notes *string `json:"notes,omitempty"`
	Date  *string `json:"date,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Apply copies the set fields of p onto e. When groupWide is true only
// Title and Notes are copied so per-day fields stay untouched.
func (p Patch) Apply(e *EventItem, groupWide bool) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
	if groupWide {
		return
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	if p.Color != nil {
		e.Color = *p.Color
	}
}

// TextPatch builds a Patch that sets title and notes.
func TextPatch(title, notes string) Patch {
	return Patch{Title: &title, Notes: &notes}
}

// DisplayEvent is one logical event folded from its stored records.
type DisplayEvent struct {
	// ID is the group id for grouped events and the record id otherwise.
	ID        string   `json:"id"`
	GroupID   string   `json:"groupId,omitempty"`
	Title     string   `json:"title"`
	Notes     string   `json:"notes,omitempty"`
	Color     string   `json:"color"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate,omitempty"`
	MemberIDs []string `json:"memberIds"`
}

// MultiDay reports whether the folded event spans more than one day.
func (d DisplayEvent) MultiDay() bool { return d.EndDate != "" && d.EndDate != d.StartDate }

// LastDate is EndDate for multi-day events and StartDate otherwise.
func (d DisplayEvent) LastDate() string {
	if d.EndDate != "" {
		return d.EndDate
	}
	return d.StartDate
}

// Holiday is one public holiday or special day.
type Holiday struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	IsHoliday bool   `json:"isHoliday"`
}

// User is an account that owns events.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:120;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name" gorm:"size:120"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
