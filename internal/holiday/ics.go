package holiday

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"pastelcal/internal/dateutil"
	appLog "pastelcal/internal/log"
	"pastelcal/internal/model"
)

// maxSpanDays caps how many days one feed entry may cover.
const maxSpanDays = 31

// feedEntry is a VEVENT reduced to what a holiday needs.
type feedEntry struct {
	uid     string
	name    string
	notes   string
	start   time.Time // civil day at UTC midnight
	days    int       // inclusive span
	rrule   string
	exdates []time.Time
}

// ParseFeed turns an iCalendar payload into the holidays that fall in year.
// All-day entries cover DTSTART up to the day before DTEND. Timed entries
// count on the day they start in loc. Yearly RRULEs are expanded.
func ParseFeed(body []byte, year int, loc *time.Location) ([]model.Holiday, error) {
	if len(body) == 0 {
		return nil, errors.New("holiday: empty feed body")
	}
	if loc == nil {
		loc = time.Local
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	out := make([]model.Holiday, 0)
	for _, ve := range cal.Events() {
		entry, err := readEntry(ve, loc)
		if err != nil {
			appLog.Debug("holiday feed entry skipped", "reason", err.Error())
			continue
		}
		for _, first := range entry.occurrences(from, to) {
			for i := 0; i < entry.days; i++ {
				day := first.AddDate(0, 0, i)
				if day.Year() != year {
					continue
				}
				out = append(out, model.Holiday{
					Date:      dateutil.ToDateKey(day),
					Name:      entry.name,
					IsHoliday: !isObservance(entry.notes),
				})
			}
		}
	}
	return out, nil
}

// isObservance recognises the marker public holiday feeds put on days that
// are noted but not days off.
func isObservance(description string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(description)), "observance")
}

func readEntry(ve *ical.VEvent, loc *time.Location) (feedEntry, error) {
	var e feedEntry
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		e.uid = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		e.name = strings.TrimSpace(p.Value)
	}
	if e.name == "" {
		return e, errors.New("missing SUMMARY")
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		e.notes = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return e, errors.New("missing DTSTART")
	}
	if isDateValue(dtStart) {
		start, err := parseDate(dtStart.Value)
		if err != nil {
			return e, err
		}
		e.start = start
		e.days = 1
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseDate(dtEnd.Value); err == nil && end.After(start) {
				e.days = dateutil.DaysBetween(start, end)
			}
		}
	} else {
		at, err := ve.GetStartAt()
		if err != nil {
			return e, err
		}
		y, m, d := at.In(loc).Date()
		e.start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		e.days = 1
	}
	if e.days > maxSpanDays {
		e.days = maxSpanDays
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		e.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseDate(part); err == nil {
				e.exdates = append(e.exdates, t)
			}
		}
	}
	return e, nil
}

// occurrences returns the first day of every instance that may overlap
// [from, to]. Spans starting shortly before from are included so their tail
// still counts.
func (e feedEntry) occurrences(from, to time.Time) []time.Time {
	lead := from.AddDate(0, 0, -(e.days - 1))
	if e.rrule == "" {
		if e.start.Before(lead) || e.start.After(to) {
			return nil
		}
		return []time.Time{e.start}
	}

	r, err := rrule.StrToRRule(e.rrule)
	if err != nil {
		appLog.Error("holiday rrule parse failed", err, "uid", e.uid, "rrule", e.rrule)
		return nil
	}
	r.DTStart(e.start)
	var set rrule.Set
	set.RRule(r)
	for _, ex := range e.exdates {
		set.ExDate(ex)
	}
	return set.Between(lead, to, true)
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseDate reads the date part of an iCalendar DATE or DATE-TIME value as
// a civil day.
func parseDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if len(v) < 8 {
		return time.Time{}, errors.New("holiday: short date value")
	}
	return time.ParseInLocation("20060102", v[:8], time.UTC)
}
