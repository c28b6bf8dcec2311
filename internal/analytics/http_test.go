package analytics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quicktask/quicktask-api/internal/auth"
)

// recordingClient counts calls so tests can assert the gateway short-circuits
// before touching the upstream.
type recordingClient struct {
	calls int
	resp  Response
	err   error
}

func (c *recordingClient) UserStats(ctx context.Context, userID string) (Response, error) {
	c.calls++
	return c.resp, c.err
}

func (c *recordingClient) Productivity(ctx context.Context, userID, start, end string) (Response, error) {
	c.calls++
	return c.resp, c.err
}

func newGateway(subject string, client Client) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), subject)))
		})
	})
	RegisterRoutes(r, client, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	return r
}

func TestGateway_ForbiddenWithoutUpstreamCall(t *testing.T) {
	client := &recordingClient{resp: Response{Status: 200, Body: []byte(`{}`)}}
	r := newGateway("u1", client)

	for _, path := range []string{"/analytics/user-stats/u2", "/analytics/productivity/u2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s: expected 403, got %d", path, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "FORBIDDEN") {
			t.Fatalf("%s: expected FORBIDDEN code, body=%s", path, rec.Body.String())
		}
	}
	if client.calls != 0 {
		t.Fatalf("forbidden requests must not reach upstream, got %d calls", client.calls)
	}
}

func TestGateway_RelaysUpstreamBody(t *testing.T) {
	body := []byte(`{"userId":"u1","totalTasks":4,"completed":2}`)
	client := &recordingClient{resp: Response{Status: 200, Body: body}}
	r := newGateway("u1", client)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/analytics/user-stats/u1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != string(body) {
		t.Fatalf("expected verbatim relay, got %s", rec.Body.String())
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly one upstream call, got %d", client.calls)
	}
}

func TestGateway_CollapsesFailuresTo503(t *testing.T) {
	client := &recordingClient{err: ErrUnavailable}
	r := newGateway("u1", client)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/analytics/productivity/u1?start=2026-01-01&end=2026-02-01", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "SERVICE_UNAVAILABLE") {
		t.Fatalf("expected SERVICE_UNAVAILABLE code, body=%s", rec.Body.String())
	}
}

func TestHTTPClient_UpstreamStatuses(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/analytics/user-stats/ok":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]int{"totalTasks": 3})
		case "/analytics/user-stats/broken":
			_, _ = w.Write([]byte("<html>not json</html>"))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer upstream.Close()

	c := NewHTTPClient(upstream.URL, time.Second)

	resp, err := c.UserStats(context.Background(), "ok")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.Status != http.StatusOK || !strings.Contains(string(resp.Body), "totalTasks") {
		t.Fatalf("unexpected response %+v", resp)
	}

	if _, err := c.UserStats(context.Background(), "broken"); err != ErrUnavailable {
		t.Fatalf("non-JSON body: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.UserStats(context.Background(), "boom"); err != ErrUnavailable {
		t.Fatalf("upstream 500: expected ErrUnavailable, got %v", err)
	}
}

func TestHTTPClient_NetworkErrorAndQueryPassthrough(t *testing.T) {
	var gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"series":[]}`))
	}))

	c := NewHTTPClient(upstream.URL, time.Second)
	if _, err := c.Productivity(context.Background(), "u1", "2026-01-01", "2026-02-01"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !strings.Contains(gotQuery, "start=2026-01-01") || !strings.Contains(gotQuery, "end=2026-02-01") {
		t.Fatalf("expected date range passthrough, got %q", gotQuery)
	}

	upstream.Close()
	if _, err := c.Productivity(context.Background(), "u1", "", ""); err != ErrUnavailable {
		t.Fatalf("connection refused: expected ErrUnavailable, got %v", err)
	}
}
