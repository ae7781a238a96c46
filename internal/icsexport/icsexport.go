// Package icsexport writes folded events as an iCalendar document.
package icsexport

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"pastelcal/internal/dateutil"
	"pastelcal/internal/model"
)

// ColorProperty carries the palette key of an event.
const ColorProperty ical.ComponentProperty = "X-PASTELCAL-COLOR"

const prodID = "-//pastelcal//events//EN"

// Build turns display events into all-day VEVENTs. DTEND is exclusive, one
// day after the last day of the event. Events with a malformed date are
// skipped.
func Build(events []model.DisplayEvent, name string, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}
	for _, ev := range events {
		start, err := dateutil.FromDateKeyIn(ev.StartDate, time.UTC)
		if err != nil {
			continue
		}
		last, err := dateutil.FromDateKeyIn(ev.LastDate(), time.UTC)
		if err != nil {
			last = start
		}

		ve := cal.AddEvent(ev.ID + "@pastelcal")
		ve.SetDtStampTime(stamp)
		ve.SetAllDayStartAt(start)
		ve.SetAllDayEndAt(last.AddDate(0, 0, 1))
		ve.SetSummary(ev.Title)
		if ev.Notes != "" {
			ve.SetDescription(ev.Notes)
		}
		if ev.Color != "" {
			ve.SetProperty(ColorProperty, ev.Color)
		}
	}
	return cal
}

// Write serializes events to w.
func Write(w io.Writer, events []model.DisplayEvent, name string, stamp time.Time) error {
	_, err := io.WriteString(w, Build(events, name, stamp).Serialize())
	return err
}
