package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/watchsync/internal/companion/entity"
	"github.com/shandysiswandi/watchsync/internal/pkg/clock"
	"github.com/shandysiswandi/watchsync/internal/pkg/validator"
	"github.com/shandysiswandi/watchsync/internal/shared/event"
)

var testNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newTestUsecase(t *testing.T) (*Usecase, *clock.Manual) {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("NewV10Validator() error = %v", err)
	}
	clk := clock.NewManual(testNow)
	return NewCompanion(Dependency{Clock: clk, Validator: v}), clk
}

func account(id string) map[string]any {
	return map[string]any{
		"id":               id,
		"issuer":           "Issuer",
		"name":             id + "@example.com",
		"code":             "123456",
		"remainingSeconds": 20,
		"period":           30,
		"type":             "totp",
		"progress":         0.66,
	}
}

func with(entry map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		out[k] = v
	}
	if value == nil {
		delete(out, key)
	} else {
		out[key] = value
	}
	return out
}

func payload(authenticated any, accounts ...any) map[string]any {
	return map[string]any{"isAuthenticated": authenticated, "accounts": accounts}
}

// decode mirrors what the session hands over: numbers as json.Number.
func decode(t *testing.T, raw string) map[string]any {
	t.Helper()

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func ids(s entity.State) []string {
	out := make([]string, 0, len(s.Context.Accounts))
	for _, a := range s.Context.Accounts {
		out = append(out, a.ID)
	}
	return out
}

func TestApplyInitialState(t *testing.T) {
	uc, _ := newTestUsecase(t)

	st := uc.State()
	if st.Revision != 0 || st.LastUpdated != nil || st.Context.IsAuthenticated || len(st.Context.Accounts) != 0 {
		t.Errorf("initial State() = %+v", st)
	}
}

func TestApplyFullReplace(t *testing.T) {
	// Arrange
	uc, clk := newTestUsecase(t)
	ctx := context.Background()

	// Act
	if _, err := uc.Apply(ctx, payload(true, account("a"), account("b"))); err != nil {
		t.Fatalf("Apply(first) error = %v", err)
	}
	clk.Advance(3 * time.Second)
	got, err := uc.Apply(ctx, payload(true, account("c")))

	// Assert
	if err != nil {
		t.Fatalf("Apply(second) error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []string{"c"}) {
		t.Errorf("accounts = %v, want [c]", ids(got))
	}
	if got.Revision != 2 {
		t.Errorf("Revision = %d, want 2", got.Revision)
	}
	if got.LastUpdated == nil || !got.LastUpdated.Equal(testNow.Add(3*time.Second)) {
		t.Errorf("LastUpdated = %v", got.LastUpdated)
	}
	if !reflect.DeepEqual(uc.State(), got) {
		t.Errorf("State() = %+v, want the applied state", uc.State())
	}
}

func TestApplyIdempotent(t *testing.T) {
	uc, _ := newTestUsecase(t)
	ctx := context.Background()
	p := payload(true, account("a"), account("b"))

	first, err := uc.Apply(ctx, p)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	second, err := uc.Apply(ctx, p)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if !reflect.DeepEqual(first.Context, second.Context) {
		t.Errorf("contexts differ: %+v vs %+v", first.Context, second.Context)
	}
	if second.Revision != first.Revision+1 {
		t.Errorf("Revision = %d, want %d", second.Revision, first.Revision+1)
	}
}

func TestApplyMalformedWholePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{name: "missing flag", payload: map[string]any{"accounts": []any{account("x")}}},
		{name: "string flag", payload: payload("true", account("x"))},
		{name: "number flag", payload: payload(1, account("x"))},
		{name: "null flag", payload: map[string]any{"isAuthenticated": nil}},
		{name: "empty", payload: map[string]any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _ := newTestUsecase(t)
			ctx := context.Background()
			before, err := uc.Apply(ctx, payload(true, account("keep")))
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}

			_, err = uc.Apply(ctx, tt.payload)

			if !errors.Is(err, entity.ErrPayloadMalformed) {
				t.Errorf("Apply() error = %v, want ErrPayloadMalformed", err)
			}
			if !reflect.DeepEqual(uc.State(), before) {
				t.Errorf("State() changed to %+v", uc.State())
			}
		})
	}
}

func TestApplyAccountsNotArray(t *testing.T) {
	uc, _ := newTestUsecase(t)
	ctx := context.Background()
	if _, err := uc.Apply(ctx, payload(true, account("a"))); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	for _, p := range []map[string]any{
		{"isAuthenticated": false},
		{"isAuthenticated": true, "accounts": "nope"},
		{"isAuthenticated": true, "accounts": map[string]any{"id": "a"}},
	} {
		got, err := uc.Apply(ctx, p)
		if err != nil {
			t.Fatalf("Apply(%v) error = %v", p, err)
		}
		if len(got.Context.Accounts) != 0 {
			t.Errorf("Apply(%v) accounts = %v, want empty", p, ids(got))
		}
		if got.Context.IsAuthenticated != p["isAuthenticated"] {
			t.Errorf("IsAuthenticated = %v, want %v", got.Context.IsAuthenticated, p["isAuthenticated"])
		}
	}
}

func TestApplyPartialMalformed(t *testing.T) {
	tests := []struct {
		name  string
		entry any
	}{
		{name: "not an object", entry: "a"},
		{name: "missing id", entry: with(account("x"), "id", nil)},
		{name: "missing code", entry: with(account("x"), "code", nil)},
		{name: "missing progress", entry: with(account("x"), "progress", nil)},
		{name: "code is a number", entry: with(account("x"), "code", 123456)},
		{name: "remaining is fractional", entry: with(account("x"), "remainingSeconds", 2.5)},
		{name: "remaining is a string", entry: with(account("x"), "remainingSeconds", "20")},
		{name: "unknown type", entry: with(account("x"), "type", "push")},
		{name: "negative remaining", entry: with(account("x"), "remainingSeconds", -1)},
		{name: "remaining above period", entry: with(account("x"), "remainingSeconds", 31)},
		{name: "zero period", entry: with(account("x"), "period", 0)},
		{name: "progress above one", entry: with(account("x"), "progress", 1.5)},
		{name: "negative progress", entry: with(account("x"), "progress", -0.1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _ := newTestUsecase(t)

			got, err := uc.Apply(context.Background(), payload(true, account("a"), tt.entry, account("c")))

			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !reflect.DeepEqual(ids(got), []string{"a", "c"}) {
				t.Errorf("accounts = %v, want [a c]", ids(got))
			}
		})
	}
}

func TestApplyCounterBasedSkipsRangeChecks(t *testing.T) {
	uc, _ := newTestUsecase(t)
	hotp := with(with(with(account("h"), "type", "hotp"), "period", 0), "remainingSeconds", -5)
	hotp = with(hotp, "progress", 7.0)

	got, err := uc.Apply(context.Background(), payload(true, hotp))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(got.Context.Accounts) != 1 || !got.Context.Accounts[0].IsCounterBased() {
		t.Errorf("accounts = %+v, want the hotp entry", got.Context.Accounts)
	}
}

func TestApplyDuplicateIDsFirstWins(t *testing.T) {
	uc, _ := newTestUsecase(t)
	dup := with(account("a"), "code", "999999")

	got, err := uc.Apply(context.Background(), payload(true, account("a"), account("b"), dup))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []string{"a", "b"}) {
		t.Fatalf("accounts = %v, want [a b]", ids(got))
	}
	if got.Context.Accounts[0].Code != "123456" {
		t.Errorf("code = %s, want the first occurrence", got.Context.Accounts[0].Code)
	}
}

func TestApplyDecodedJSON(t *testing.T) {
	uc, _ := newTestUsecase(t)
	raw := `{"isAuthenticated":true,"accounts":[
		{"id":"1","issuer":"GitHub","name":"me","code":"123 456","remainingSeconds":10,"period":30,"type":"totp","progress":0.3333},
		{"id":"2","issuer":"Steam","name":"me","code":"5KX2Q","remainingSeconds":30.0,"period":30,"type":"steam","progress":1},
		{"id":"3","issuer":"Bank","name":"me","code":"000001","remainingSeconds":0,"period":0,"type":"hotp","progress":0}
	]}`

	got, err := uc.Apply(context.Background(), decode(t, raw))
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	want := []entity.AccountSnapshot{
		{ID: "1", Issuer: "GitHub", Name: "me", Code: "123 456", RemainingSeconds: 10, Period: 30, Type: entity.AccountTypeTOTP, Progress: 0.3333},
		{ID: "2", Issuer: "Steam", Name: "me", Code: "5KX2Q", RemainingSeconds: 30, Period: 30, Type: entity.AccountTypeSteam, Progress: 1},
		{ID: "3", Issuer: "Bank", Name: "me", Code: "000001", RemainingSeconds: 0, Period: 0, Type: entity.AccountTypeHOTP, Progress: 0},
	}
	if !reflect.DeepEqual(got.Context.Accounts, want) {
		t.Errorf("accounts = %+v\nwant %+v", got.Context.Accounts, want)
	}
}

func TestApplyWireMessage(t *testing.T) {
	uc, _ := newTestUsecase(t)
	msg := event.SyncContextMessage{
		IsAuthenticated: true,
		Accounts: []event.AccountSnapshotMessage{
			{ID: "a", Issuer: "X", Name: "n", Code: "1", RemainingSeconds: 5, Period: 30, Type: event.AccountTypeTOTP, Progress: 0.16},
		},
	}

	got, err := uc.Apply(context.Background(), msg.Map())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !reflect.DeepEqual(ids(got), []string{"a"}) {
		t.Errorf("accounts = %v", ids(got))
	}
}

func TestReceiveLogsRejection(t *testing.T) {
	uc, _ := newTestUsecase(t)
	ctx := context.Background()

	uc.Receive(ctx, event.DeliveryMessage, payload(true, account("a")))
	uc.Receive(ctx, event.DeliveryContextLive, map[string]any{"accounts": []any{}})

	st := uc.State()
	if st.Revision != 1 || !reflect.DeepEqual(ids(st), []string{"a"}) {
		t.Errorf("State() = %+v", st)
	}
}

func TestSubscribeDeliversCurrentThenLatest(t *testing.T) {
	// Arrange
	uc, _ := newTestUsecase(t)
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := uc.Apply(ctx, payload(true, account("a"))); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// Act
	states := uc.Subscribe(ctx)
	first := <-states
	for _, id := range []string{"b", "c", "d"} {
		if _, err := uc.Apply(ctx, payload(true, account(id))); err != nil {
			t.Fatalf("Apply(%s) error = %v", id, err)
		}
	}
	latest := <-states

	// Assert
	if first.Revision != 1 {
		t.Errorf("first Revision = %d, want 1", first.Revision)
	}
	if latest.Revision != 4 || !reflect.DeepEqual(ids(latest), []string{"d"}) {
		t.Errorf("latest = rev %d %v, want rev 4 [d]", latest.Revision, ids(latest))
	}

	cancel()
	for range states {
	}
	waitSubscribers(t, uc, 0)
}

func waitSubscribers(t *testing.T, uc *Usecase, want int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if uc.Subscribers() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Subscribers() = %d, want %d", uc.Subscribers(), want)
}

// Two contexts applied concurrently: the final state is exactly one of them
// and observers never see a mix.
func TestApplyConcurrentPayloads(t *testing.T) {
	for round := 0; round < 50; round++ {
		uc, _ := newTestUsecase(t)
		ctx, cancel := context.WithCancel(context.Background())

		c1 := payload(true, account("c1-a"), account("c1-b"))
		c2 := payload(false, account("c2-a"))

		states := uc.Subscribe(ctx)
		var observed []entity.State
		done := make(chan struct{})
		go func() {
			defer close(done)
			for st := range states {
				observed = append(observed, st)
			}
		}()

		var wg sync.WaitGroup
		for _, p := range []map[string]any{c1, c2} {
			wg.Add(1)
			go func(p map[string]any) {
				defer wg.Done()
				if _, err := uc.Apply(ctx, p); err != nil {
					t.Errorf("Apply() error = %v", err)
				}
			}(p)
		}
		wg.Wait()

		final := uc.State()
		cancel()
		<-done

		isC1 := final.Context.IsAuthenticated && reflect.DeepEqual(ids(final), []string{"c1-a", "c1-b"})
		isC2 := !final.Context.IsAuthenticated && reflect.DeepEqual(ids(final), []string{"c2-a"})
		if !isC1 && !isC2 {
			t.Fatalf("round %d: final state is a mix: %+v", round, final)
		}
		if final.Revision != 2 {
			t.Fatalf("round %d: Revision = %d, want 2", round, final.Revision)
		}

		for _, st := range observed {
			switch {
			case st.Revision == 0:
			case st.Context.IsAuthenticated && reflect.DeepEqual(ids(st), []string{"c1-a", "c1-b"}):
			case !st.Context.IsAuthenticated && reflect.DeepEqual(ids(st), []string{"c2-a"}):
			default:
				t.Fatalf("round %d: observer saw a mixed state %+v", round, st)
			}
		}
	}
}
