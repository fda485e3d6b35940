package cluster

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testStore() *domain.Store {
	return &domain.Store{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Name:    "alice-shop",
		Engine:  domain.EngineMedusa,
	}
}

func TestCreateWorkload(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody createWorkloadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(workloadResponse{
			Name:          "alice-shop",
			StorefrontURL: "https://alice-shop.shops.example.com",
			AdminURL:      "https://alice-shop.shops.example.com/admin",
		})
	}))
	defer srv.Close()

	p := New(srv.URL, 5*time.Second, testLogger())
	result, err := p.Create(context.Background(), testStore())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if gotMethod != http.MethodPut || gotPath != "/v1/workloads/alice-shop" {
		t.Errorf("request = %s %s, want PUT /v1/workloads/alice-shop", gotMethod, gotPath)
	}
	if gotBody.Engine != "medusa" {
		t.Errorf("engine = %q, want medusa", gotBody.Engine)
	}
	if result.URLs.Storefront != "https://alice-shop.shops.example.com" {
		t.Errorf("storefront = %q", result.URLs.Storefront)
	}
}

func TestCreateWorkloadClusterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(srv.URL, 5*time.Second, testLogger())
	if _, err := p.Create(context.Background(), testStore()); err == nil {
		t.Fatal("expected an error on 503")
	}
}

func TestDestroyWorkload(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"deleted", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"cluster failure", http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodDelete {
					t.Errorf("method = %s, want DELETE", r.Method)
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			p := New(srv.URL, 5*time.Second, testLogger())
			err := p.Destroy(context.Background(), testStore())
			if tc.wantErr && err == nil {
				t.Error("expected an error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/healthz" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := New(srv.URL, 5*time.Second, testLogger())
	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}

	srv.Close()
	if err := p.Ping(context.Background()); err == nil {
		t.Fatal("expected ping failure against a closed server")
	}
}
