// Package calendar lays out month grids and drives the month page: drag
// selection, the event dialog and the owner's event session.
package calendar

import (
	"strings"
	"time"

	"pastelcal/internal/dateutil"
	"pastelcal/internal/model"
)

// ParseWeekStart maps "monday" to time.Monday; anything else is Sunday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "monday") {
		return time.Monday
	}
	return time.Sunday
}

type Day struct {
	Date    string       `json:"date"`
	InMonth bool         `json:"inMonth"`
	Weekday time.Weekday `json:"weekday"`
}

// Grid is a month as whole weeks, from the week holding the 1st to the
// week holding the last day.
type Grid struct {
	Year      int          `json:"year"`
	Month     time.Month   `json:"month"`
	WeekStart time.Weekday `json:"weekStart"`
	Weeks     [][]Day      `json:"weeks"`
}

func Month(year int, month time.Month, weekStart time.Weekday) Grid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7
	trail := (int(weekStart) + 6 - int(last.Weekday()) + 7) % 7
	start := first.AddDate(0, 0, -lead)
	end := last.AddDate(0, 0, trail)

	g := Grid{Year: year, Month: month, WeekStart: weekStart}
	var week []Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		week = append(week, Day{
			Date:    dateutil.ToDateKey(d),
			InMonth: d.Month() == month,
			Weekday: d.Weekday(),
		})
		if len(week) == 7 {
			g.Weeks = append(g.Weeks, week)
			week = nil
		}
	}
	return g
}

// YearMonth is the YYYY-MM key of the grid's month.
func (g Grid) YearMonth() string { return dateutil.YearMonth(g.Year, g.Month) }

// First and Last are the first and last visible day keys.
func (g Grid) First() string { return g.Weeks[0][0].Date }

func (g Grid) Last() string {
	w := g.Weeks[len(g.Weeks)-1]
	return w[len(w)-1].Date
}

type Cell struct {
	Day
	Events   []model.EventItem `json:"events"`
	Holidays []model.Holiday   `json:"holidays,omitempty"`
	// IsHoliday is set when any holiday on the day is a day off.
	IsHoliday bool `json:"isHoliday"`
}

// Overlay places stored records and holidays on the grid's cells. Records
// keep their incoming order within a day.
func Overlay(g Grid, items []model.EventItem, holidays []model.Holiday) [][]Cell {
	byDay := make(map[string][]model.EventItem)
	for _, it := range items {
		byDay[it.Date] = append(byDay[it.Date], it)
	}
	hByDay := make(map[string][]model.Holiday)
	for _, h := range holidays {
		hByDay[h.Date] = append(hByDay[h.Date], h)
	}

	rows := make([][]Cell, 0, len(g.Weeks))
	for _, week := range g.Weeks {
		row := make([]Cell, 0, len(week))
		for _, d := range week {
			c := Cell{Day: d, Events: byDay[d.Date], Holidays: hByDay[d.Date]}
			if c.Events == nil {
				c.Events = []model.EventItem{}
			}
			for _, h := range c.Holidays {
				c.IsHoliday = c.IsHoliday || h.IsHoliday
			}
			row = append(row, c)
		}
		rows = append(rows, row)
	}
	return rows
}
