package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwygoda/fetchdata/internal/domain"
	"github.com/cwygoda/fetchdata/internal/progress"
)

type staticProgress struct {
	snap progress.Snapshot
}

func (s staticProgress) Current() progress.Snapshot { return s.snap }

// mockStore implements domain.RunStore for testing.
type mockStore struct {
	runs map[string]*domain.RunRecord
	err  error
}

func (m *mockStore) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func (m *mockStore) LatestRun(ctx context.Context) (*domain.RunRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	run, ok := m.runs["latest"]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run, nil
}

func sampleRun() *domain.RunRecord {
	started := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	return &domain.RunRecord{
		ID:             "run-1",
		DestinationDir: "/data",
		Entries:        2,
		TotalBytes:     150,
		BytesDone:      150,
		StartedAt:      started,
		FinishedAt:     &finished,
		Outcomes: []domain.OutcomeRecord{
			{Position: 0, Name: "a.tgz", URL: "u1", Kind: domain.KindTarGzip, Outcome: domain.OutcomeExtracted},
			{Position: 1, Name: "b.npz", URL: "u2", Kind: domain.KindRaw, Outcome: domain.OutcomeDownloadFailed, Reason: "503"},
		},
	}
}

func setupTestServer(store domain.RunStore) *Server {
	src := staticProgress{snap: progress.Snapshot{Label: "Downloading a.tgz", BytesDone: 50, TotalBytes: 200, Active: true}}
	return NewServer(src, store, promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}), ":0")
}

func TestServer_Health(t *testing.T) {
	srv := setupTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestServer_Progress(t *testing.T) {
	srv := setupTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/progress", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp progressResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !resp.Active || resp.Label != "Downloading a.tgz" {
		t.Errorf("response = %+v", resp)
	}
	if resp.BytesDone != 50 || resp.TotalBytes != 200 || resp.Percent != 25 {
		t.Errorf("response = %+v, want 50/200 at 25%%", resp)
	}
}

func TestServer_GetRun(t *testing.T) {
	store := &mockStore{runs: map[string]*domain.RunRecord{"run-1": sampleRun()}}
	srv := setupTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/runs/run-1", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp runResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if resp.ID != "run-1" || len(resp.Outcomes) != 2 {
		t.Fatalf("response = %+v", resp)
	}
	if resp.StartedAt != "2026-10-01T12:00:00Z" || resp.FinishedAt != "2026-10-01T12:01:00Z" {
		t.Errorf("timestamps = %q, %q", resp.StartedAt, resp.FinishedAt)
	}
	if resp.Outcomes[1].Outcome != "download_failed" || resp.Outcomes[1].Reason != "503" {
		t.Errorf("outcome[1] = %+v", resp.Outcomes[1])
	}
}

func TestServer_LatestRun(t *testing.T) {
	store := &mockStore{runs: map[string]*domain.RunRecord{"latest": sampleRun()}}
	srv := setupTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/runs/latest", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp runResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.ID != "run-1" {
		t.Errorf("ID = %q, want %q", resp.ID, "run-1")
	}
}

func TestServer_GetRun_Errors(t *testing.T) {
	tests := []struct {
		name  string
		store domain.RunStore
		path  string
		want  int
	}{
		{"not found", &mockStore{runs: map[string]*domain.RunRecord{}}, "/runs/nope", http.StatusNotFound},
		{"latest on empty ledger", &mockStore{runs: map[string]*domain.RunRecord{}}, "/runs/latest", http.StatusNotFound},
		{"store failure", &mockStore{err: errors.New("disk I/O error")}, "/runs/run-1", http.StatusInternalServerError},
		{"ledger disabled", nil, "/runs/run-1", http.StatusServiceUnavailable},
		{"ledger disabled latest", nil, "/runs/latest", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := setupTestServer(tt.store)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "fetchdata_runs_total", Help: "runs"})
	reg.MustRegister(counter)
	counter.Inc()

	srv := NewServer(staticProgress{}, nil, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), ":0")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "fetchdata_runs_total 1") {
		t.Errorf("metrics body missing counter:\n%s", rec.Body.String())
	}
}

func TestServer_ContentType(t *testing.T) {
	srv := setupTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}
