package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mohamedkhairy/coin-alerts/internal/alerts"
	"github.com/mohamedkhairy/coin-alerts/internal/models"
	"github.com/mohamedkhairy/coin-alerts/internal/pricing"
	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

// AlertHandler handles alert management endpoints
type AlertHandler struct {
	store alerts.Store
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(store alerts.Store) *AlertHandler {
	return &AlertHandler{store: store}
}

// createAlertRequest is the body of POST /api/v1/alerts
type createAlertRequest struct {
	OwnerID   string  `json:"owner_id"`
	AssetID   string  `json:"asset_id"`
	Kind      string  `json:"kind"`
	Threshold float64 `json:"threshold"`
}

// CreateAlert handles POST /api/v1/alerts
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.OwnerID == "" {
		respondWithError(w, http.StatusBadRequest, models.ErrInvalidOwnerID.Error())
		return
	}

	alert := &models.Alert{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		AssetID:   models.NormalizeAssetID(req.AssetID),
		Kind:      req.Kind,
		Threshold: req.Threshold,
		Enabled:   true,
	}
	if err := alert.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.CreateAlert(r.Context(), alert); err != nil {
		logger.Error("Failed to create alert",
			logger.ErrorField(err),
			logger.String("owner_id", req.OwnerID),
		)
		respondWithError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	logger.Info("Alert created",
		logger.String("alert_id", alert.ID),
		logger.String("owner_id", alert.OwnerID),
		logger.String("asset_id", alert.AssetID),
	)

	respondWithJSON(w, http.StatusCreated, alert)
}

// ListAlerts handles GET /api/v1/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := alerts.Filter{
		OwnerID: r.URL.Query().Get("owner_id"),
		AssetID: r.URL.Query().Get("asset_id"),
	}
	if r.URL.Query().Get("enabled") == "true" {
		filter.EnabledOnly = true
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	result, err := h.store.ListAlerts(r.Context(), filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve alerts")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": result,
		"count":  len(result),
	})
}

// GetAlert handles GET /api/v1/alerts/{id}
func (h *AlertHandler) GetAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	alert, err := h.store.GetAlert(r.Context(), vars["id"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Alert not found")
		return
	}

	respondWithJSON(w, http.StatusOK, alert)
}

// setEnabledRequest is the body of PUT /api/v1/alerts/{id}/enabled
type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled handles PUT /api/v1/alerts/{id}/enabled. Re-enabling a fired
// alert happens only through this endpoint; the watcher never re-enables.
func (h *AlertHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.store.SetEnabled(r.Context(), vars["id"], req.Enabled); err != nil {
		if err == models.ErrAlertNotFound {
			respondWithError(w, http.StatusNotFound, "Alert not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}

	logger.Info("Alert enabled flag updated",
		logger.String("alert_id", vars["id"]),
		logger.Bool("enabled", req.Enabled),
	)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"id":      vars["id"],
		"enabled": req.Enabled,
	})
}

// ListHistory handles GET /api/v1/alerts/{id}/history
func (h *AlertHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history, err := h.store.ListHistory(r.Context(), vars["id"], limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"history": history,
		"count":   len(history),
	})
}

// PriceHandler handles cached price lookups
type PriceHandler struct {
	cache pricing.PriceCache
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(cache pricing.PriceCache) *PriceHandler {
	return &PriceHandler{cache: cache}
}

// GetPrice handles GET /api/v1/price/{asset}. It serves only from the
// cache; a stale or unknown asset returns no-data rather than triggering an
// upstream fetch.
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	assetID := models.NormalizeAssetID(vars["asset"])

	snapshot, err := h.cache.Get(r.Context(), []string{assetID})
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Price cache unavailable")
		return
	}

	price, ok := snapshot.Prices[assetID]
	if !ok {
		respondWithError(w, http.StatusNotFound, "no-data")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"asset_id": assetID,
		"price":    price,
	})
}
