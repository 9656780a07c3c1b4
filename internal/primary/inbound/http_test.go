package inbound

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/watchsync/internal/pkg/instrument"
	"github.com/shandysiswandi/watchsync/internal/pkg/router"
	"github.com/shandysiswandi/watchsync/internal/pkg/uid"
	"github.com/shandysiswandi/watchsync/internal/primary/usecase"
)

type fakeUsecase struct {
	mu       sync.Mutex
	payloads []map[string]any
	status   usecase.StatusOutput
}

func (f *fakeUsecase) PushContext(_ context.Context, payload map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeUsecase) Status(context.Context) usecase.StatusOutput {
	return f.status
}

func newTestRouter(uc uc) *router.Router {
	r := router.NewRouter(router.Config{UUID: uid.NewUUID(), Instrument: instrument.NewNoop()})
	RegisterHTTPEndpoint(r, uc)
	return r
}

func TestPushContextEndpoint(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "object", body: `{"isAuthenticated":true,"accounts":[{"id":"a","remainingSeconds":30}]}`, want: http.StatusAccepted},
		{name: "empty object", body: `{}`, want: http.StatusAccepted},
		{name: "array", body: `[{"isAuthenticated":true}]`, want: http.StatusBadRequest},
		{name: "broken", body: `{"isAuthenticated":`, want: http.StatusBadRequest},
		{name: "two objects", body: `{} {}`, want: http.StatusBadRequest},
		{name: "null", body: `null`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			uc := &fakeUsecase{}
			r := newTestRouter(uc)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/primary/context", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			// Act
			r.ServeHTTP(rec, req)

			// Assert
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusAccepted {
				if len(uc.payloads) != 0 {
					t.Errorf("rejected body reached the usecase: %v", uc.payloads)
				}
				return
			}
			if len(uc.payloads) != 1 {
				t.Fatalf("payloads = %v", uc.payloads)
			}
		})
	}
}

func TestPushContextKeepsNumbers(t *testing.T) {
	uc := &fakeUsecase{}
	r := newTestRouter(uc)
	body := `{"isAuthenticated":true,"accounts":[{"id":"a","remainingSeconds":30}]}`

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/primary/context", strings.NewReader(body)))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	accounts := uc.payloads[0]["accounts"].([]any)
	if n, ok := accounts[0].(map[string]any)["remainingSeconds"].(json.Number); !ok || n.String() != "30" {
		t.Errorf("remainingSeconds = %#v, want json.Number 30", accounts[0])
	}
}

func TestStatusEndpoint(t *testing.T) {
	last := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	uc := &fakeUsecase{status: usecase.StatusOutput{
		Activated:   true,
		Reachable:   false,
		LastPush:    &last,
		Revision:    1234567890123456789,
		CompanionID: "w1",
	}}
	r := newTestRouter(uc)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/primary/session", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Data["revision"] != "1234567890123456789" {
		t.Errorf("revision = %#v, want it as a string", got.Data["revision"])
	}
	if got.Data["activated"] != true || got.Data["reachable"] != false || got.Data["companionId"] != "w1" {
		t.Errorf("data = %v", got.Data)
	}
	if got.Data["lastPush"] != "2026-01-01T00:00:00Z" {
		t.Errorf("lastPush = %v", got.Data["lastPush"])
	}
}
