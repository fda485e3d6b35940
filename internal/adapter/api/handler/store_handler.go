package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/adapter/api/middleware"
	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/internal/usecase"
)

// StoreHandler serves the store lifecycle endpoints. Creation, deletion, and
// retry return 202: the caller observes the outcome by polling store status.
type StoreHandler struct {
	stores *usecase.StoreService
	logger *slog.Logger
}

func NewStoreHandler(stores *usecase.StoreService, logger *slog.Logger) *StoreHandler {
	return &StoreHandler{stores: stores, logger: logger}
}

// createStoreRequest deliberately has no owner field: any client-supplied
// owner is dropped at decode time, and ownership comes from the token.
type createStoreRequest struct {
	Name   string `json:"name"`
	Engine string `json:"engine"`
}

type listStoresResponse struct {
	Total  int             `json:"total"`
	Stores []*domain.Store `json:"stores"`
}

type storeLogsResponse struct {
	StoreID uuid.UUID            `json:"store_id"`
	Entries []*domain.AuditEntry `json:"entries"`
}

func (h *StoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeMappedError(w, h.logger, domain.ErrUnauthenticated)
		return
	}
	var req createStoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	store, err := h.stores.Create(r.Context(), ident, req.Name, req.Engine)
	if err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	writeResponse(w, http.StatusAccepted, store)
}

func (h *StoreHandler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeMappedError(w, h.logger, domain.ErrUnauthenticated)
		return
	}

	var filter domain.StoreFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.StoreStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	stores, err := h.stores.List(r.Context(), ident, filter)
	if err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	if stores == nil {
		stores = []*domain.Store{}
	}
	writeResponse(w, http.StatusOK, listStoresResponse{Total: len(stores), Stores: stores})
}

func (h *StoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	store, err := h.stores.Get(r.Context(), ident, id)
	if err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	writeResponse(w, http.StatusOK, store)
}

func (h *StoreHandler) Logs(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	entries, err := h.stores.Logs(r.Context(), ident, id, 100)
	if err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*domain.AuditEntry{}
	}
	writeResponse(w, http.StatusOK, storeLogsResponse{StoreID: id, Entries: entries})
}

func (h *StoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	if err := h.stores.Delete(r.Context(), ident, id); err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	writeResponse(w, http.StatusAccepted, map[string]string{"status": "deleting"})
}

func (h *StoreHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	if err := h.stores.Retry(r.Context(), ident, id); err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	writeResponse(w, http.StatusAccepted, map[string]string{"status": "retrying"})
}

func (h *StoreHandler) identityAndID(w http.ResponseWriter, r *http.Request) (domain.Identity, uuid.UUID, bool) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		writeMappedError(w, h.logger, domain.ErrUnauthenticated)
		return domain.Identity{}, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return domain.Identity{}, uuid.Nil, false
	}
	return ident, id, true
}
