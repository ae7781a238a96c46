// Package holiday collects public holidays for a year from iCalendar feeds
// and the data.go.kr special day API, and keeps them cached per year.
package holiday

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "pastelcal/internal/log"
	"pastelcal/internal/model"
)

// Source yields the holidays of one year.
type Source interface {
	Name() string
	Year(ctx context.Context, year int) ([]model.Holiday, error)
}

// ICSSource reads one subscribed feed through a Fetcher.
type ICSSource struct {
	Feed     Feed
	Fetcher  *Fetcher
	Location *time.Location
}

func (s ICSSource) Name() string {
	if s.Feed.Name != "" {
		return s.Feed.Name
	}
	return s.Feed.ID
}

func (s ICSSource) Year(ctx context.Context, year int) ([]model.Holiday, error) {
	body, fromCache, err := s.Fetcher.Fetch(ctx, s.Feed.URL)
	if err != nil {
		return nil, err
	}
	hs, err := ParseFeed(body, year, s.Location)
	if err != nil {
		return nil, fmt.Errorf("holiday: parse %s: %w", s.Name(), err)
	}
	appLog.Debug("holiday feed parsed", "feed", s.Feed.ID, "year", year, "count", len(hs), "from_cache", fromCache)
	return hs, nil
}

// Provider merges its sources and caches the result per year.
type Provider struct {
	sources []Source

	mu    sync.RWMutex
	years map[int][]model.Holiday
}

func NewProvider(sources ...Source) *Provider {
	return &Provider{sources: sources, years: make(map[int][]model.Holiday)}
}

// ForYear returns the cached holidays of year, loading them on first use.
func (p *Provider) ForYear(ctx context.Context, year int) ([]model.Holiday, error) {
	p.mu.RLock()
	hs, ok := p.years[year]
	p.mu.RUnlock()
	if ok {
		return hs, nil
	}
	return p.Refresh(ctx, year)
}

// Refresh asks every source again. A failing source is logged and skipped;
// only when every source fails is the previous cache kept and an error
// returned.
func (p *Provider) Refresh(ctx context.Context, year int) ([]model.Holiday, error) {
	var (
		merged []model.Holiday
		errs   []error
		ok     int
	)
	for _, src := range p.sources {
		hs, err := src.Year(ctx, year)
		if err != nil {
			appLog.Error("holiday source failed", err, "source", src.Name(), "year", year)
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		ok++
		merged = append(merged, hs...)
	}
	if ok == 0 && len(p.sources) > 0 {
		p.mu.RLock()
		prev, cached := p.years[year]
		p.mu.RUnlock()
		if cached {
			return prev, errors.Join(errs...)
		}
		return nil, errors.Join(errs...)
	}

	merged = dedupe(merged)
	p.mu.Lock()
	p.years[year] = merged
	p.mu.Unlock()
	appLog.Info("holidays refreshed", "year", year, "count", len(merged), "sources_ok", ok)
	return merged, nil
}

// dedupe drops repeated (date, name) pairs and sorts by date then name.
// A pair counts as a day off if any source says so.
func dedupe(hs []model.Holiday) []model.Holiday {
	type key struct{ date, name string }
	idx := make(map[key]int, len(hs))
	out := make([]model.Holiday, 0, len(hs))
	for _, h := range hs {
		k := key{h.Date, h.Name}
		if i, seen := idx[k]; seen {
			out[i].IsHoliday = out[i].IsHoliday || h.IsHoliday
			continue
		}
		idx[k] = len(out)
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Scheduler refreshes the current year on a cron schedule.
type Scheduler struct {
	c *cron.Cron
}

// StartScheduler runs p.Refresh for the current year in loc on spec (a
// standard five-field cron expression) until ctx is done.
func StartScheduler(ctx context.Context, p *Provider, spec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		year := time.Now().In(loc).Year()
		if _, err := p.Refresh(ctx, year); err != nil {
			appLog.Error("scheduled holiday refresh failed", err, "year", year)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("holiday: bad refresh schedule %q: %w", spec, err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return &Scheduler{c: c}, nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
