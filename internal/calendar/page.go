package calendar

import (
	"context"
	"time"

	"pastelcal/internal/auth"
	"pastelcal/internal/events"
	"pastelcal/internal/grouping"
	"pastelcal/internal/modal"
	"pastelcal/internal/model"
	"pastelcal/internal/selection"
)

// Page wires pointer input to the selection machine, finished gestures to
// the event dialog, and dialog outcomes to the owner's session.
type Page struct {
	Selection *selection.Machine
	Modal     *modal.Controller
	Session   *events.Session

	owner modal.OwnerSource
}

func NewPage(owner modal.OwnerSource, sess *events.Session, b grouping.Builder) *Page {
	return &Page{
		Selection: selection.New(),
		Modal:     modal.New(owner, b),
		Session:   sess,
		owner:     owner,
	}
}

func (p *Page) signedIn() bool {
	if p.owner == nil {
		return false
	}
	_, ok := p.owner.CurrentOwner()
	return ok
}

// PointerDown starts a gesture on date. Without an owner it returns
// auth.ErrAuthRequired and leaves the selection idle.
func (p *Page) PointerDown(date time.Time) error {
	if !p.signedIn() {
		return auth.ErrAuthRequired
	}
	p.Selection.Start(date)
	return nil
}

func (p *Page) PointerEnter(date time.Time) { p.Selection.Move(date) }

// PointerLeave drops a gesture that left the grid.
func (p *Page) PointerLeave() { p.Selection.Cancel() }

// PointerUp ends the gesture and opens the dialog: a single day for a
// click, the range otherwise.
func (p *Page) PointerUp() error {
	snap, ok := p.Selection.End()
	if !ok {
		return nil
	}
	start, end := snap.Range()
	if snap.IsClick() {
		return p.Modal.OpenFor(start, "")
	}
	return p.Modal.OpenFor(start, end)
}

// OpenEvent opens the dialog on a loaded record.
func (p *Page) OpenEvent(id string) error {
	ev, ok := p.Session.Find(id)
	if !ok {
		return nil
	}
	return p.Modal.OpenForEdit(ev)
}

// Submit saves the dialog and persists its outcome through the session.
func (p *Page) Submit(ctx context.Context, in modal.Input) ([]model.EventItem, error) {
	out, err := p.Modal.SubmitInput(in)
	if err != nil {
		return nil, err
	}
	switch out.Kind {
	case modal.OutcomeCreate:
		return p.Session.Create(ctx, out.Records...)
	case modal.OutcomeUpdate:
		if out.GroupWide {
			return p.Session.UpdateGroup(ctx, out.Edited.GroupID, out.Patch)
		}
		return p.Session.Update(ctx, out.Edited.ID, out.Patch)
	default:
		return nil, nil
	}
}
