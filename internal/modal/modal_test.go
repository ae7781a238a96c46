package modal

import (
	"errors"
	"testing"

	"pastelcal/internal/auth"
	"pastelcal/internal/events"
	"pastelcal/internal/grouping"
	"pastelcal/internal/model"
)

func signedIn(owner string) OwnerSource {
	return auth.Identity{Username: owner}
}

func newController(owner OwnerSource) *Controller {
	return New(owner, grouping.Builder{IDs: grouping.SequenceIDs()})
}

func TestRefusesWithoutOwner(t *testing.T) {
	for name, src := range map[string]OwnerSource{
		"nil":       nil,
		"anonymous": auth.Identity{},
		"func":      OwnerFunc(func() (string, bool) { return "", false }),
	} {
		c := newController(src)
		if err := c.OpenFor("2024-03-10", ""); !errors.Is(err, auth.ErrAuthRequired) {
			t.Errorf("%s: OpenFor err = %v", name, err)
		}
		if err := c.OpenForEdit(model.EventItem{ID: "ev_1", Date: "2024-03-10"}); !errors.Is(err, auth.ErrAuthRequired) {
			t.Errorf("%s: OpenForEdit err = %v", name, err)
		}
		if c.IsOpen() {
			t.Errorf("%s: dialog opened without owner", name)
		}
	}
}

func TestCreateSingleHasNoGroup(t *testing.T) {
	c := newController(signedIn("u1"))
	if err := c.OpenFor("2024-03-10", ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	out, err := c.Submit("Dentist", "10am")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Kind != OutcomeCreate || len(out.Records) != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	r := out.Records[0]
	if r.GroupID != "" || r.StartDate != "" || r.EndDate != "" {
		t.Fatalf("single record carries group fields: %+v", r)
	}
	if r.Owner != "u1" || r.Date != "2024-03-10" || r.Title != "Dentist" || r.Notes != "10am" {
		t.Fatalf("record = %+v", r)
	}
	if c.IsOpen() {
		t.Fatal("dialog still open after submit")
	}
}

func TestCreateRangeNormalizesOrder(t *testing.T) {
	c := newController(signedIn("u1"))
	if err := c.OpenFor("2024-03-12", "2024-03-10"); err != nil {
		t.Fatalf("open: %v", err)
	}
	out, err := c.Submit("", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(out.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(out.Records))
	}
	want := []string{"2024-03-10", "2024-03-11", "2024-03-12"}
	for i, r := range out.Records {
		if r.Date != want[i] || r.StartDate != "2024-03-10" || r.EndDate != "2024-03-12" {
			t.Fatalf("record %d = %+v", i, r)
		}
		if r.Title != grouping.DefaultTitle {
			t.Fatalf("blank title became %q", r.Title)
		}
	}
	if err := grouping.CheckGroup(out.Records); err != nil {
		t.Fatalf("range batch is not a valid group: %v", err)
	}
}

func TestSameDayRangeIsSingle(t *testing.T) {
	c := newController(signedIn("u1"))
	_ = c.OpenFor("2024-03-10", "2024-03-10")
	out, err := c.Submit("x", "")
	if err != nil || len(out.Records) != 1 || out.Records[0].GroupID != "" {
		t.Fatalf("outcome = %+v, %v", out, err)
	}
}

func TestSubmitEmitsOnce(t *testing.T) {
	c := newController(signedIn("u1"))
	_ = c.OpenFor("2024-03-10", "")
	if _, err := c.Submit("a", ""); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := c.Submit("a", ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("second submit err = %v, want ErrClosed", err)
	}
}

func TestEmptyTargetIsNoop(t *testing.T) {
	c := newController(signedIn("u1"))
	_ = c.OpenFor("", "")
	out, err := c.Submit("a", "")
	if err != nil || out.Kind != OutcomeNone {
		t.Fatalf("outcome = %+v, %v", out, err)
	}
	if !c.IsOpen() {
		t.Fatal("ignored save closed the dialog")
	}
}

func TestMalformedDateIsValidationError(t *testing.T) {
	c := newController(signedIn("u1"))
	_ = c.OpenFor("2024-13-40", "")
	if _, err := c.Submit("a", ""); !errors.Is(err, events.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}

func TestEditGroupedPreservesPerDayFields(t *testing.T) {
	b := grouping.Builder{IDs: grouping.SequenceIDs()}
	group, _ := b.Expand(grouping.Range{Owner: "u1", Title: "Trip", StartDate: "2024-03-10", EndDate: "2024-03-12"})
	target := group[1]

	c := newController(signedIn("u1"))
	if err := c.OpenForEdit(target); err != nil {
		t.Fatalf("open: %v", err)
	}
	out, err := c.SubmitInput(Input{Title: "X", Notes: "n", Color: "red"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Kind != OutcomeUpdate || !out.GroupWide {
		t.Fatalf("outcome = %+v", out)
	}
	e := out.Edited
	if e.Title != "X" || e.Notes != "n" {
		t.Fatalf("edited text = %q/%q", e.Title, e.Notes)
	}
	if e.Date != target.Date || e.GroupID != target.GroupID || e.StartDate != target.StartDate ||
		e.EndDate != target.EndDate || e.Color != target.Color {
		t.Fatalf("edit changed per-day fields: %+v", e)
	}
	if out.Patch.Color != nil || out.Patch.Date != nil {
		t.Fatalf("group patch carries per-day fields: %+v", out.Patch)
	}
}

func TestEditSingleMayRecolor(t *testing.T) {
	c := newController(signedIn("u1"))
	ev := model.EventItem{ID: "ev_1", Owner: "u1", Title: "a", Date: "2024-03-10", Color: "blue"}
	_ = c.OpenForEdit(ev)
	out, err := c.SubmitInput(Input{Title: " ", Color: "teal"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.GroupWide || out.Edited.Color != "teal" || out.Edited.Title != grouping.DefaultTitle {
		t.Fatalf("outcome = %+v", out)
	}
}
