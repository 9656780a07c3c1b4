package inbound

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/watchsync/internal/companion/usecase"
	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/pkg/validator"
)

type presenceRecorder struct {
	mu    sync.Mutex
	calls []bool
}

func (p *presenceRecorder) SetForeground(_ context.Context, foreground bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, foreground)
}

func (p *presenceRecorder) all() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.calls...)
}

type fixture struct {
	uc       *usecase.Usecase
	clock    *clock.Manual
	presence *presenceRecorder
	server   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}

	f := &fixture{
		clock:    clock.NewManual(time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)),
		presence: &presenceRecorder{},
	}
	f.uc = usecase.NewCompanion(usecase.Dependency{Clock: f.clock, Validator: v})

	r := router.NewRouter(router.Config{UUID: uid.NewUUID(), Instrument: instrument.NewNoop()})
	RegisterHTTPEndpoint(r, f.uc, f.presence)

	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) apply(t *testing.T, authenticated bool, accounts ...map[string]any) {
	t.Helper()

	list := make([]any, 0, len(accounts))
	for _, a := range accounts {
		list = append(list, a)
	}
	if _, err := f.uc.Apply(context.Background(), map[string]any{"isAuthenticated": authenticated, "accounts": list}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
}

func account(id, kind string, remaining int) map[string]any {
	return map[string]any{
		"id":               id,
		"issuer":           "github",
		"name":             "me@example.com",
		"code":             "123456",
		"remainingSeconds": remaining,
		"period":           30,
		"type":             kind,
		"progress":         float64(remaining) / 30,
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestGetState(t *testing.T) {
	// Arrange
	f := newFixture(t)

	var empty struct {
		Data map[string]any `json:"data"`
	}
	if code := getJSON(t, f.server.URL+"/api/v1/companion/state", &empty); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if empty.Data["lastUpdated"] != nil || empty.Data["view"] != "locked" || empty.Data["revision"] != float64(0) {
		t.Errorf("initial state = %v", empty.Data)
	}

	// Act
	f.apply(t, true, account("a", "totp", 12), account("b", "steam", 30))

	// Assert
	var got struct {
		Data StateResponse `json:"data"`
	}
	if code := getJSON(t, f.server.URL+"/api/v1/companion/state", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Data.Revision != 1 || got.Data.View != "accounts" || !got.Data.IsAuthenticated || got.Data.LastUpdated == nil {
		t.Errorf("state = %+v", got.Data)
	}
	if len(got.Data.Accounts) != 2 {
		t.Fatalf("accounts = %+v", got.Data.Accounts)
	}
	if a := got.Data.Accounts[0]; a.ID != "a" || a.Initials != "G" || a.RemainingSeconds != 12 {
		t.Errorf("first account = %+v", a)
	}
	if b := got.Data.Accounts[1]; !b.AlternateFormat || b.CounterBased {
		t.Errorf("second account = %+v", b)
	}
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t)
	f.apply(t, true, account("a", "hotp", 0))

	var got struct {
		Data AccountResponse `json:"data"`
	}
	if code := getJSON(t, f.server.URL+"/api/v1/companion/accounts/a", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if got.Data.ID != "a" || !got.Data.CounterBased {
		t.Errorf("account = %+v", got.Data)
	}

	if code := getJSON(t, f.server.URL+"/api/v1/companion/accounts/missing", nil); code != http.StatusNotFound {
		t.Errorf("missing account status = %d, want 404", code)
	}
}

type sseEvent struct {
	name string
	data string
}

// openStream connects to an SSE endpoint and parses events until the
// returned cancel func is called.
func openStream(t *testing.T, url string) (<-chan sseEvent, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("GET %s: %v", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		resp.Body.Close()
		t.Fatalf("GET %s status = %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	events := make(chan sseEvent, 64)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		readEvents(resp.Body, events)
	}()

	t.Cleanup(cancel)
	return events, cancel
}

func readEvents(body io.Reader, out chan<- sseEvent) {
	var cur sseEvent
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.name != "" {
				out <- cur
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()

	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("stream closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return sseEvent{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStreamState(t *testing.T) {
	// Arrange
	f := newFixture(t)
	events, cancel := openStream(t, f.server.URL+"/api/v1/companion/stream")

	// Act & Assert
	first := nextEvent(t, events)
	var st StateResponse
	if err := json.Unmarshal([]byte(first.data), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if first.name != "state" || st.Revision != 0 || st.View != "locked" {
		t.Errorf("first event = %s %+v", first.name, st)
	}
	waitFor(t, "foreground", func() bool {
		calls := f.presence.all()
		return len(calls) == 1 && calls[0]
	})

	f.apply(t, true, account("a", "totp", 20))
	next := nextEvent(t, events)
	if err := json.Unmarshal([]byte(next.data), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Revision != 1 || len(st.Accounts) != 1 || st.Accounts[0].ID != "a" {
		t.Errorf("applied state = %+v", st)
	}

	cancel()
	waitFor(t, "background", func() bool {
		calls := f.presence.all()
		return len(calls) == 2 && !calls[1]
	})
	waitFor(t, "unsubscribed", func() bool { return f.uc.Subscribers() == 0 })
}

func TestStreamsShareForeground(t *testing.T) {
	f := newFixture(t)
	f.apply(t, true, account("a", "totp", 20))

	first, cancelFirst := openStream(t, f.server.URL+"/api/v1/companion/stream")
	nextEvent(t, first)
	second, cancelSecond := openStream(t, f.server.URL+"/api/v1/companion/accounts/a/countdown")
	nextEvent(t, second)

	cancelFirst()
	waitFor(t, "one subscriber left", func() bool { return f.uc.Subscribers() == 1 })
	if calls := f.presence.all(); len(calls) != 1 {
		t.Errorf("presence calls = %v, want only the first attach", calls)
	}

	cancelSecond()
	waitFor(t, "background", func() bool {
		calls := f.presence.all()
		return len(calls) == 2 && !calls[1]
	})
}

func TestStreamCountdown(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.apply(t, true, account("a", "totp", 7), account("b", "totp", 30))
	events, _ := openStream(t, f.server.URL+"/api/v1/companion/accounts/a/countdown")

	decode := func(ev sseEvent) map[string]any {
		t.Helper()
		if ev.name != "countdown" {
			t.Fatalf("event = %q, want countdown", ev.name)
		}
		var c map[string]any
		if err := json.Unmarshal([]byte(ev.data), &c); err != nil {
			t.Fatalf("decode countdown: %v", err)
		}
		return c
	}

	// Act & Assert
	seeded := decode(nextEvent(t, events))
	if seeded["remainingSeconds"] != float64(7) || seeded["level"] != "warning" || seeded["showRing"] != true {
		t.Errorf("seeded countdown = %v", seeded)
	}

	waitFor(t, "ticker", func() bool { return f.clock.Tickers() == 1 })
	f.clock.Advance(time.Second)
	ticked := decode(nextEvent(t, events))
	if ticked["remainingSeconds"] != float64(6) {
		t.Errorf("ticked countdown = %v", ticked)
	}

	f.apply(t, true, account("b", "totp", 30))
	gone := nextEvent(t, events)
	if gone.name != "gone" || !strings.Contains(gone.data, `"id":"a"`) {
		t.Errorf("last event = %+v, want gone", gone)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("stream kept sending after gone")
		}
	case <-time.After(2 * time.Second):
		t.Error("stream not closed after gone")
	}
}

func TestStreamCountdownUnknownAccount(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/api/v1/companion/accounts/missing/countdown")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if calls := f.presence.all(); len(calls) != 0 {
		t.Errorf("presence calls = %v, want none", calls)
	}
}
