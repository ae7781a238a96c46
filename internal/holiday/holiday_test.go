package holiday

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	appLog "pastelcal/internal/log"
	"pastelcal/internal/model"
)

func TestMain(m *testing.M) {
	appLog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func feed(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//holidays//EN"}
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, strings.Split(ev, "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

var sampleFeed = feed(
	"UID:newyear\nSUMMARY:New Year's Day\nDTSTART;VALUE=DATE:20200101\nDTEND;VALUE=DATE:20200102\nRRULE:FREQ=YEARLY",
	"UID:chuseok\nSUMMARY:Chuseok\nDTSTART;VALUE=DATE:20240916\nDTEND;VALUE=DATE:20240919",
	"UID:bridge\nSUMMARY:Winter break\nDTSTART;VALUE=DATE:20231231\nDTEND;VALUE=DATE:20240102",
	"UID:parents\nSUMMARY:Parents' Day\nDESCRIPTION:Observance\nDTSTART;VALUE=DATE:20240508",
	"UID:timed\nSUMMARY:Children's Day\nDTSTART:20240505T090000Z\nDTEND:20240505T100000Z",
	"UID:other-year\nSUMMARY:Old\nDTSTART;VALUE=DATE:20220301",
)

func index(hs []model.Holiday) map[string]model.Holiday {
	m := make(map[string]model.Holiday, len(hs))
	for _, h := range hs {
		m[h.Date+" "+h.Name] = h
	}
	return m
}

func TestParseFeed(t *testing.T) {
	hs, err := ParseFeed(sampleFeed, 2024, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := index(hs)
	want := []string{
		"2024-01-01 New Year's Day",
		"2024-09-16 Chuseok",
		"2024-09-17 Chuseok",
		"2024-09-18 Chuseok",
		"2024-01-01 Winter break",
		"2024-05-08 Parents' Day",
		"2024-05-05 Children's Day",
	}
	for _, k := range want {
		if _, ok := got[k]; !ok {
			t.Errorf("missing %q in %+v", k, hs)
		}
	}
	if len(hs) != len(want) {
		t.Errorf("got %d holidays, want %d: %+v", len(hs), len(want), hs)
	}
	if _, ok := got["2024-09-19 Chuseok"]; ok {
		t.Error("exclusive DTEND day included")
	}
	if got["2024-05-08 Parents' Day"].IsHoliday {
		t.Error("observance marked as day off")
	}
	if !got["2024-09-16 Chuseok"].IsHoliday {
		t.Error("public holiday not marked as day off")
	}
}

func TestParseFeedRejectsEmpty(t *testing.T) {
	if _, err := ParseFeed(nil, 2024, time.UTC); err == nil {
		t.Fatal("empty body accepted")
	}
}

func TestFetcherUsesCacheOn304(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write(sampleFeed)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	ctx := context.Background()
	body, fromCache, err := f.Fetch(ctx, srv.URL+"/ko.ics")
	if err != nil || fromCache || len(body) == 0 {
		t.Fatalf("first fetch = %d bytes, cache=%v, err=%v", len(body), fromCache, err)
	}
	body, fromCache, err = f.Fetch(ctx, srv.URL+"/ko.ics")
	if err != nil || !fromCache || string(body) != string(sampleFeed) {
		t.Fatalf("second fetch cache=%v, err=%v", fromCache, err)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("server hits = %d", hits)
	}
}

func TestFetcherFallsBackToCacheOnError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		_, _ = w.Write(sampleFeed)
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), srv.Client())
	if _, _, err := f.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("prime: %v", err)
	}
	fail.Store(true)
	body, fromCache, err := f.Fetch(context.Background(), srv.URL)
	if err != nil || !fromCache || len(body) == 0 {
		t.Fatalf("fallback = %d bytes, cache=%v, err=%v", len(body), fromCache, err)
	}
}

func TestRedactURL(t *testing.T) {
	got := redactURL("https://calendar.example.com/private/abc.ics?token=secret")
	if strings.Contains(got, "secret") || strings.Contains(got, "private") {
		t.Fatalf("redacted url leaks: %s", got)
	}
	if !strings.HasPrefix(got, "https://calendar.example.com") {
		t.Fatalf("redacted url lost host: %s", got)
	}
}

func dataGoKrServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("serviceKey") != "k" || r.URL.Query().Get("solYear") != "2024" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDataGoKrItemShapes(t *testing.T) {
	cases := map[string]struct {
		payload string
		want    int
	}{
		"array": {`{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL SERVICE."},"body":{"items":{"item":[
			{"dateKind":"01","dateName":"1월1일","isHoliday":"Y","locdate":20240101,"seq":1},
			{"dateKind":"01","dateName":"설날","isHoliday":"Y","locdate":20240210,"seq":1}]},"totalCount":2}}}`, 2},
		"object": {`{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL SERVICE."},"body":{"items":{"item":
			{"dateKind":"01","dateName":"삼일절","isHoliday":"Y","locdate":20240301,"seq":1}},"totalCount":1}}}`, 1},
		"empty": {`{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL SERVICE."},"body":{"items":"","totalCount":0}}}`, 0},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			srv := dataGoKrServer(t, c.payload)
			src := DataGoKr{Key: "k", BaseURL: srv.URL, Client: srv.Client()}
			hs, err := src.Year(context.Background(), 2024)
			if err != nil {
				t.Fatalf("year: %v", err)
			}
			if len(hs) != c.want {
				t.Fatalf("got %d holidays, want %d", len(hs), c.want)
			}
			for _, h := range hs {
				if len(h.Date) != 10 || !h.IsHoliday || h.Name == "" {
					t.Fatalf("holiday = %+v", h)
				}
			}
		})
	}
}

func TestDataGoKrErrorCode(t *testing.T) {
	srv := dataGoKrServer(t, `{"response":{"header":{"resultCode":"30","resultMsg":"SERVICE KEY IS NOT REGISTERED ERROR."}}}`)
	src := DataGoKr{Key: "k", BaseURL: srv.URL, Client: srv.Client()}
	if _, err := src.Year(context.Background(), 2024); err == nil {
		t.Fatal("error result code accepted")
	}
	if _, err := (DataGoKr{}).Year(context.Background(), 2024); err == nil {
		t.Fatal("missing key accepted")
	}
}

type fakeSource struct {
	name  string
	hs    []model.Holiday
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Year(context.Context, int) ([]model.Holiday, error) {
	f.calls++
	return f.hs, f.err
}

func TestProviderMergesAndCaches(t *testing.T) {
	a := &fakeSource{name: "a", hs: []model.Holiday{
		{Date: "2024-03-01", Name: "삼일절", IsHoliday: true},
		{Date: "2024-01-01", Name: "1월1일", IsHoliday: false},
	}}
	b := &fakeSource{name: "b", hs: []model.Holiday{{Date: "2024-01-01", Name: "1월1일", IsHoliday: true}}}
	broken := &fakeSource{name: "broken", err: errors.New("down")}

	p := NewProvider(a, broken, b)
	hs, err := p.ForYear(context.Background(), 2024)
	if err != nil {
		t.Fatalf("for year: %v", err)
	}
	if len(hs) != 2 || hs[0].Date != "2024-01-01" || !hs[0].IsHoliday {
		t.Fatalf("merged = %+v", hs)
	}
	if _, err := p.ForYear(context.Background(), 2024); err != nil {
		t.Fatalf("cached for year: %v", err)
	}
	if a.calls != 1 {
		t.Fatalf("source asked %d times, want 1", a.calls)
	}
}

func TestProviderKeepsCacheWhenAllSourcesFail(t *testing.T) {
	src := &fakeSource{name: "a", hs: []model.Holiday{{Date: "2024-03-01", Name: "x", IsHoliday: true}}}
	p := NewProvider(src)
	if _, err := p.ForYear(context.Background(), 2024); err != nil {
		t.Fatalf("prime: %v", err)
	}
	src.err = errors.New("down")
	hs, err := p.Refresh(context.Background(), 2024)
	if err == nil {
		t.Fatal("refresh with every source down returned no error")
	}
	if len(hs) != 1 {
		t.Fatalf("cache dropped: %+v", hs)
	}
}

func TestStartSchedulerRejectsBadSpec(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := StartScheduler(ctx, NewProvider(), "not a cron", time.UTC); err == nil {
		t.Fatal("bad cron spec accepted")
	}
	s, err := StartScheduler(ctx, NewProvider(), "0 3 * * *", time.UTC)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}
