// Package cluster implements the provisioner contract against the workload
// API of the target platform: create, inspect, and delete a named workload
// over HTTP.
package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/storepilot/storepilot/internal/domain"
)

// Provisioner drives store workloads on the cluster. Calls are slow by
// nature (a create waits for the workload to come up) and are only ever made
// from orchestrator workers, never from request-serving goroutines.
type Provisioner struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "cluster_provisioner"),
	}
}

type createWorkloadRequest struct {
	Engine string `json:"engine"`
	Owner  string `json:"owner"`
}

type workloadResponse struct {
	Name          string `json:"name"`
	StorefrontURL string `json:"storefront_url"`
	AdminURL      string `json:"admin_url"`
}

// Create stands up the workload for a store and returns its URLs.
func (p *Provisioner) Create(ctx context.Context, store *domain.Store) (*domain.ProvisionResult, error) {
	body, err := json.Marshal(createWorkloadRequest{
		Engine: string(store.Engine),
		Owner:  store.OwnerID.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal workload request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, p.workloadURL(store.Name), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create workload: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("create workload %q: cluster returned %s", store.Name, resp.Status)
	}

	var workload workloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&workload); err != nil {
		return nil, fmt.Errorf("decode workload response: %w", err)
	}

	return &domain.ProvisionResult{URLs: domain.StoreURLs{
		Storefront: workload.StorefrontURL,
		Admin:      workload.AdminURL,
	}}, nil
}

// Destroy tears the workload down. A 404 means the workload is already gone
// and counts as success, which keeps deletes idempotent on replays.
func (p *Provisioner) Destroy(ctx context.Context, store *domain.Store) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.workloadURL(store.Name), nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("destroy workload: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		p.logger.Debug("workload already gone", "workload", store.Name)
		return nil
	default:
		return fmt.Errorf("destroy workload %q: cluster returned %s", store.Name, resp.Status)
	}
}

// Ping probes the cluster API. Used by the health monitor.
func (p *Provisioner) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping cluster: %w", err)
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping cluster: returned %s", resp.Status)
	}
	return nil
}

func (p *Provisioner) workloadURL(name string) string {
	return p.baseURL + "/v1/workloads/" + name
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
