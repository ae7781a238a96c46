// Package modal decides what a save in the event dialog does: create one
// record, create a multi-day group, or edit an existing event.
package modal

import (
	"errors"
	"fmt"
	"strings"

	"pastelcal/internal/auth"
	"pastelcal/internal/dateutil"
	"pastelcal/internal/events"
	"pastelcal/internal/grouping"
	"pastelcal/internal/model"
	"pastelcal/internal/palette"
)

// ErrClosed is returned when submitting a dialog that is not open.
var ErrClosed = errors.New("modal is not open")

// OwnerSource supplies the signed-in owner, if any.
type OwnerSource interface {
	CurrentOwner() (string, bool)
}

// OwnerFunc adapts a function to OwnerSource.
type OwnerFunc func() (string, bool)

func (f OwnerFunc) CurrentOwner() (string, bool) { return f() }

// Mode is what the dialog is currently open for.
type Mode int

const (
	ModeClosed Mode = iota
	ModeCreate
	ModeEdit
)

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeCreate
	OutcomeUpdate
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreate:
		return "create"
	case OutcomeUpdate:
		return "update"
	default:
		return "none"
	}
}

// Outcome is what one submission asks the caller to persist.
type Outcome struct {
	Kind OutcomeKind
	// Records holds the new records of a create: one, or one per day of a
	// range, to be stored as a single batch.
	Records []model.EventItem
	// Edited is the edit target with the new title and notes merged in.
	Edited model.EventItem
	// Patch is the change to send for an update. When GroupWide is set it
	// must be applied to every member of Edited.GroupID.
	Patch     model.Patch
	GroupWide bool
}

// Input is the dialog's form content.
type Input struct {
	Title string
	Notes string
	// Color is an optional palette key for new or ungrouped records.
	Color string
}

// Controller holds the state of one event dialog between open and submit.
type Controller struct {
	owner   OwnerSource
	builder grouping.Builder

	mode       Mode
	targetDate string
	endDate    string
	editing    model.EventItem
}

// New returns a closed dialog that builds new records with b.
func New(owner OwnerSource, b grouping.Builder) *Controller {
	return &Controller{owner: owner, builder: b}
}

func (c *Controller) currentOwner() (string, error) {
	if c.owner == nil {
		return "", auth.ErrAuthRequired
	}
	owner, ok := c.owner.CurrentOwner()
	if !ok || owner == "" {
		return "", auth.ErrAuthRequired
	}
	return owner, nil
}

// OpenFor opens the dialog to create an event on targetDate, or on the
// range targetDate..endDate when endDate is set. Without a signed-in owner
// it refuses and returns auth.ErrAuthRequired.
func (c *Controller) OpenFor(targetDate, endDate string) error {
	if _, err := c.currentOwner(); err != nil {
		return err
	}
	c.mode = ModeCreate
	c.targetDate = targetDate
	c.endDate = endDate
	c.editing = model.EventItem{}
	return nil
}

// OpenForEdit opens the dialog on an existing record.
func (c *Controller) OpenForEdit(ev model.EventItem) error {
	if _, err := c.currentOwner(); err != nil {
		return err
	}
	c.mode = ModeEdit
	c.targetDate = ev.Date
	c.endDate = ev.EndDate
	c.editing = ev
	return nil
}

func (c *Controller) Mode() Mode { return c.mode }

func (c *Controller) IsOpen() bool { return c.mode != ModeClosed }

func (c *Controller) TargetDate() string { return c.targetDate }

func (c *Controller) EndDate() string { return c.endDate }

// IsRange reports whether the dialog covers more than one day.
func (c *Controller) IsRange() bool { return c.endDate != "" && c.endDate != c.targetDate }

func (c *Controller) Editing() model.EventItem { return c.editing }

func (c *Controller) Close() {
	c.mode = ModeClosed
	c.targetDate = ""
	c.endDate = ""
	c.editing = model.EventItem{}
}

// Submit saves title and notes. See SubmitInput.
func (c *Controller) Submit(title, notes string) (Outcome, error) {
	return c.SubmitInput(Input{Title: title, Notes: notes})
}

// SubmitInput turns the form into exactly one Outcome and closes the dialog.
// A create without a target date is ignored: the dialog stays open and the
// outcome is OutcomeNone.
func (c *Controller) SubmitInput(in Input) (Outcome, error) {
	if c.mode == ModeClosed {
		return Outcome{}, ErrClosed
	}
	owner, err := c.currentOwner()
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	switch c.mode {
	case ModeEdit:
		out = c.edit(in)
	default:
		if strings.TrimSpace(c.targetDate) == "" {
			return Outcome{Kind: OutcomeNone}, nil
		}
		out, err = c.create(owner, in)
		if err != nil {
			return Outcome{}, err
		}
	}
	c.Close()
	return out, nil
}

func (c *Controller) create(owner string, in Input) (Outcome, error) {
	if c.IsRange() {
		start, end := dateutil.MinMax(c.targetDate, c.endDate)
		records, err := c.builder.Expand(grouping.Range{
			Owner:     owner,
			Title:     in.Title,
			Notes:     in.Notes,
			StartDate: start,
			EndDate:   end,
			Color:     in.Color,
		})
		if err != nil {
			return Outcome{}, fmt.Errorf("%w: %v", events.ErrValidation, err)
		}
		return Outcome{Kind: OutcomeCreate, Records: records}, nil
	}
	rec, err := c.builder.Single(owner, in.Title, in.Notes, c.targetDate, in.Color)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", events.ErrValidation, err)
	}
	return Outcome{Kind: OutcomeCreate, Records: []model.EventItem{rec}}, nil
}

func (c *Controller) edit(in Input) Outcome {
	title := in.Title
	if strings.TrimSpace(title) == "" {
		title = c.defaultTitle()
	}
	edited := c.editing
	edited.Title = title
	edited.Notes = in.Notes

	p := model.TextPatch(title, in.Notes)
	if color := palette.Normalize(in.Color); color != "" && !edited.Grouped() {
		p.Color = &color
		edited.Color = color
	}
	return Outcome{
		Kind:      OutcomeUpdate,
		Edited:    edited,
		Patch:     p,
		GroupWide: edited.Grouped(),
	}
}

func (c *Controller) defaultTitle() string {
	if c.builder.DefaultTitle != "" {
		return c.builder.DefaultTitle
	}
	return grouping.DefaultTitle
}
