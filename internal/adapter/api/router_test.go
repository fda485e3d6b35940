package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/internal/domain/mocks"
	"github.com/storepilot/storepilot/internal/guardrail"
	"github.com/storepilot/storepilot/internal/health"
	"github.com/storepilot/storepilot/internal/usecase"
)

type recordingSignaler struct {
	provisions   []uuid.UUID
	deprovisions []uuid.UUID
}

func (r *recordingSignaler) SignalProvision(id uuid.UUID) error {
	r.provisions = append(r.provisions, id)
	return nil
}

func (r *recordingSignaler) SignalDeprovision(id uuid.UUID) error {
	r.deprovisions = append(r.deprovisions, id)
	return nil
}

// openCooldown never rate limits; cooldown behavior has its own tests.
type openCooldown struct{}

func (openCooldown) InCooldown(context.Context, uuid.UUID) (bool, error) { return false, nil }

func (openCooldown) Mark(context.Context, uuid.UUID) error { return nil }

type apiFixture struct {
	t      *testing.T
	server *httptest.Server
	stores *mocks.MockStoreRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores := mocks.NewMockStoreRepository()
	users := mocks.NewMockUserRepository()
	audit := &mocks.MockAuditRepository{}

	guard := guardrail.NewPipeline(logger,
		guardrail.NewQuotaCheck(stores, 5),
		guardrail.NewCooldownCheck(openCooldown{}, time.Hour),
		guardrail.EngineCheck{},
	)

	monitor := health.NewMonitor(time.Hour, logger)
	monitor.Register(health.NewBreaker("database", 3, time.Minute), func(context.Context) error { return nil })

	authService := usecase.NewAuthService(users, "router-test-secret", time.Hour, logger)
	storeService := usecase.NewStoreService(stores, audit, guard, &recordingSignaler{}, nil, logger)

	router := NewRouter(logger, authService, storeService, monitor, time.Now())
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiFixture{t: t, server: server, stores: stores}
}

func (fx *apiFixture) do(method, path, token string, body any) (*http.Response, []byte) {
	fx.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			fx.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, fx.server.URL+path, reader)
	if err != nil {
		fx.t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fx.t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, raw
}

func (fx *apiFixture) register(email string) string {
	fx.t.Helper()
	resp, raw := fx.do(http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse",
	})
	if resp.StatusCode != http.StatusCreated {
		fx.t.Fatalf("register %s: status %d body %s", email, resp.StatusCode, raw)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		fx.t.Fatalf("decode register response: %v", err)
	}
	return out.Token
}

func errorCode(t *testing.T, raw []byte) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode error envelope from %s: %v", raw, err)
	}
	return body.Error.Code
}

func TestUnauthenticatedRequests(t *testing.T) {
	fx := newAPIFixture(t)

	resp, raw := fx.do(http.MethodGet, "/stores", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("list without token: status %d", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "UNAUTHENTICATED" {
		t.Errorf("code = %s, want UNAUTHENTICATED", code)
	}

	resp, _ = fx.do(http.MethodGet, "/stores", "garbage-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("list with bad token: status %d", resp.StatusCode)
	}
}

func TestUnknownRouteEnvelope(t *testing.T) {
	fx := newAPIFixture(t)
	resp, raw := fx.do(http.MethodGet, "/no/such/route", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "NOT_FOUND" {
		t.Errorf("code = %s, want NOT_FOUND", code)
	}
}

func TestCreateAndIsolation(t *testing.T) {
	fx := newAPIFixture(t)
	adminToken := fx.register("root@example.com") // first account is admin
	aliceToken := fx.register("alice@example.com")
	bobToken := fx.register("bob@example.com")

	// Alice creates a store, smuggling an ownerId that must be ignored.
	resp, raw := fx.do(http.MethodPost, "/stores", aliceToken, map[string]string{
		"name":    "alice-shop",
		"engine":  "woocommerce",
		"ownerId": uuid.NewString(),
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create: status %d body %s", resp.StatusCode, raw)
	}
	var created domain.Store
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("decode store: %v", err)
	}
	if created.Status != domain.StatusRequested {
		t.Errorf("status = %s, want requested", created.Status)
	}

	// The smuggled ownerId did not take: Alice can read her own store.
	resp, _ = fx.do(http.MethodGet, "/stores/"+created.ID.String(), aliceToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("owner get: status %d, want 200", resp.StatusCode)
	}

	// Bob gets 403 on detail, logs, and delete — not 404.
	for _, probe := range []struct{ method, path string }{
		{http.MethodGet, "/stores/" + created.ID.String()},
		{http.MethodGet, "/stores/" + created.ID.String() + "/logs"},
		{http.MethodDelete, "/stores/" + created.ID.String()},
	} {
		resp, raw := fx.do(probe.method, probe.path, bobToken, nil)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s %s as bob: status %d, want 403", probe.method, probe.path, resp.StatusCode)
		}
		if code := errorCode(t, raw); code != "FORBIDDEN" {
			t.Errorf("%s %s as bob: code %s, want FORBIDDEN", probe.method, probe.path, code)
		}
	}

	// Admin can read detail and logs.
	for _, path := range []string{
		"/stores/" + created.ID.String(),
		"/stores/" + created.ID.String() + "/logs",
	} {
		resp, _ := fx.do(http.MethodGet, path, adminToken, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s as admin: status %d, want 200", path, resp.StatusCode)
		}
	}

	// List isolation: Bob's list never contains Alice's store.
	resp, raw = fx.do(http.MethodGet, "/stores", bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bob list: status %d", resp.StatusCode)
	}
	var bobList struct {
		Total  int            `json:"total"`
		Stores []domain.Store `json:"stores"`
	}
	if err := json.Unmarshal(raw, &bobList); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	for _, s := range bobList.Stores {
		if s.Name == "alice-shop" {
			t.Error("bob's list contains alice's store")
		}
	}

	// Admin's total is at least either tenant's.
	resp, raw = fx.do(http.MethodGet, "/stores", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin list: status %d", resp.StatusCode)
	}
	var adminList struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(raw, &adminList); err != nil {
		t.Fatalf("decode admin list: %v", err)
	}
	if adminList.Total < bobList.Total {
		t.Errorf("admin total %d < tenant total %d", adminList.Total, bobList.Total)
	}

	// Truly nonexistent store is 404.
	resp, raw = fx.do(http.MethodGet, "/stores/"+uuid.NewString(), aliceToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing store: status %d, want 404", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "NOT_FOUND" {
		t.Errorf("missing store code = %s", code)
	}
}

func TestCreateRejections(t *testing.T) {
	fx := newAPIFixture(t)
	fx.register("root@example.com")
	token := fx.register("alice@example.com")

	resp, raw := fx.do(http.MethodPost, "/stores", token, map[string]string{
		"name": "alice-shop", "engine": "shopify",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("shopify: status %d", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "UNSUPPORTED_ENGINE" {
		t.Errorf("code = %s, want UNSUPPORTED_ENGINE", code)
	}

	if resp, _ := fx.do(http.MethodPost, "/stores", token, map[string]string{"name": "alice-shop"}); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	resp, raw = fx.do(http.MethodPost, "/stores", token, map[string]string{"name": "alice-shop"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: status %d, want 409", resp.StatusCode)
	}
	if code := errorCode(t, raw); code != "DUPLICATE_STORE" {
		t.Errorf("code = %s, want DUPLICATE_STORE", code)
	}
}

func TestMetricsAdminOnly(t *testing.T) {
	fx := newAPIFixture(t)
	adminToken := fx.register("root@example.com")
	tenantToken := fx.register("alice@example.com")

	for _, path := range []string{"/metrics", "/metrics/json"} {
		if resp, _ := fx.do(http.MethodGet, path, "", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status %d, want 401", path, resp.StatusCode)
		}
		if resp, _ := fx.do(http.MethodGet, path, tenantToken, nil); resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s as tenant: status %d, want 401", path, resp.StatusCode)
		}
		if resp, _ := fx.do(http.MethodGet, path, adminToken, nil); resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s as admin: status %d, want 200", path, resp.StatusCode)
		}
	}

	resp, raw := fx.do(http.MethodGet, "/metrics/json", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics/json: status %d", resp.StatusCode)
	}
	var summary struct {
		Uptime          string `json:"uptime"`
		CircuitBreakers []any  `json:"circuitBreakers"`
	}
	if err := json.Unmarshal(raw, &summary); err != nil {
		t.Fatalf("decode metrics summary: %v", err)
	}
	if summary.Uptime == "" {
		t.Error("expected uptime in metrics summary")
	}
	if len(summary.CircuitBreakers) == 0 {
		t.Error("expected circuit breaker snapshots in metrics summary")
	}
}

func TestHealthEndpoint(t *testing.T) {
	fx := newAPIFixture(t)

	resp, raw := fx.do(http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthy: status %d body %s", resp.StatusCode, raw)
	}
	var body struct {
		Status       string `json:"status"`
		Dependencies []struct {
			Name  string `json:"name"`
			State string `json:"state"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %s, want healthy", body.Status)
	}
	if len(body.Dependencies) == 0 {
		t.Error("expected per-dependency status")
	}
}

func TestHealthDegraded(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	monitor := health.NewMonitor(time.Hour, logger)
	broken := health.NewBreaker("provisioner", 1, time.Minute)
	broken.Failure(fmt.Errorf("cluster unreachable"))
	monitor.Register(broken, func(context.Context) error { return fmt.Errorf("down") })

	users := mocks.NewMockUserRepository()
	stores := mocks.NewMockStoreRepository()
	guard := guardrail.NewPipeline(logger, guardrail.EngineCheck{})
	authService := usecase.NewAuthService(users, "s", time.Hour, logger)
	storeService := usecase.NewStoreService(stores, &mocks.MockAuditRepository{}, guard, &recordingSignaler{}, nil, logger)

	server := httptest.NewServer(NewRouter(logger, authService, storeService, monitor, time.Now()))
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("degraded health: status %d, want 503", resp.StatusCode)
	}
}
