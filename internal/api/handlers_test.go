package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"broadcastd/internal/hub"
	"broadcastd/internal/persistence"
)

type fakeHub struct {
	streamers []*hub.LiveStreamer
	snapshot  map[string]hub.LiveStreamer
	crowned   map[string]bool
}

func (f *fakeHub) Streamers() []*hub.LiveStreamer { return f.streamers }

func (f *fakeHub) StreamerSnapshot(id string) (hub.LiveStreamer, bool) {
	s, ok := f.snapshot[id]
	return s, ok
}

func (f *fakeHub) Status() hub.StatusSummary {
	return hub.StatusSummary{StreamersOnline: len(f.streamers)}
}

func (f *fakeHub) PipelineStatuses() map[string]hub.PipelineStatus {
	return map[string]hub.PipelineStatus{}
}

func (f *fakeHub) SetCrown(id string, crowned bool) {
	if f.crowned == nil {
		f.crowned = map[string]bool{}
	}
	f.crowned[id] = crowned
}

type fakeStore struct {
	streamers []persistence.Streamer
	approved  string
	deleted   string
}

func (f *fakeStore) ListStreamers(ctx context.Context, approvedOnly bool) ([]persistence.Streamer, error) {
	return f.streamers, nil
}
func (f *fakeStore) ApproveStreamer(ctx context.Context, id string) error {
	f.approved = id
	return nil
}
func (f *fakeStore) SetCrown(ctx context.Context, id string, crowned bool) error { return nil }
func (f *fakeStore) DeleteStreamer(ctx context.Context, id string) error {
	f.deleted = id
	return nil
}
func (f *fakeStore) RotateCredential(ctx context.Context, id string) (string, error) {
	return "bd_newkey", nil
}
func (f *fakeStore) CreateStreamer(ctx context.Context, name, email, avatarURL, color string, socials []string) (persistence.Streamer, string, error) {
	return persistence.Streamer{ID: "new-id", Name: name, Email: email, Approved: true}, "bd_abc123", nil
}

func setupRouter(h Hub, s Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := New(h, s, logrus.StandardLogger())
	handlers.Register(r, func(c *gin.Context) { c.Next() })
	return r
}

func TestListStreamers(t *testing.T) {
	h := &fakeHub{streamers: []*hub.LiveStreamer{{ID: "s1", Name: "Alice"}}}
	r := setupRouter(h, &fakeStore{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/api/streamers", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetStreamerNotFound(t *testing.T) {
	h := &fakeHub{snapshot: map[string]hub.LiveStreamer{}}
	r := setupRouter(h, &fakeStore{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "GET", "/api/streamers/missing", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRegisterStreamer(t *testing.T) {
	h := &fakeHub{}
	r := setupRouter(h, &fakeStore{})

	body := `{"name":"Bob","email":"bob@example.com"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "POST", "/api/streamers/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["api_key"] != "bd_abc123" {
		t.Fatalf("expected api key in response, got %v", resp)
	}
}

func TestAdminApprove(t *testing.T) {
	h := &fakeHub{}
	store := &fakeStore{}
	r := setupRouter(h, store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "POST", "/admin/streamers/s1/approve", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.approved != "s1" {
		t.Fatalf("expected approve called with s1, got %s", store.approved)
	}
}

func TestAdminDelete(t *testing.T) {
	h := &fakeHub{}
	store := &fakeStore{}
	r := setupRouter(h, store)

	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), "DELETE", "/admin/streamers/s1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if store.deleted != "s1" {
		t.Fatalf("expected delete called with s1, got %s", store.deleted)
	}
}
