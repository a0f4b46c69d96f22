package models

import (
	"strconv"
	"strings"
	"time"
)

// Alert kinds. Comparison against the threshold is strict: a price exactly
// equal to the threshold never fires.
const (
	KindPriceAbove = "PRICE_ABOVE"
	KindPriceBelow = "PRICE_BELOW"
)

// NormalizeAssetID normalizes an asset identifier for comparisons and
// lookups. Every map keyed by asset id holds normalized ids only.
func NormalizeAssetID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Alert represents a persisted price threshold rule owned by a user
type Alert struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	AssetID   string    `json:"asset_id"`
	Kind      string    `json:"kind"` // PRICE_ABOVE or PRICE_BELOW
	Threshold float64   `json:"threshold"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate validates an Alert
func (a *Alert) Validate() error {
	if a.ID == "" {
		return ErrInvalidAlertID
	}
	if NormalizeAssetID(a.AssetID) == "" {
		return ErrInvalidAssetID
	}
	if a.Kind != KindPriceAbove && a.Kind != KindPriceBelow {
		return ErrInvalidKind
	}
	if a.Threshold <= 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// AlertHistory records a single firing of an alert
type AlertHistory struct {
	ID          string    `json:"id"`
	AlertID     string    `json:"alert_id"`
	Price       float64   `json:"price"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// PriceSnapshot is a point-in-time price reading for a set of assets, in a
// fixed quote currency. A snapshot is never mutated after capture; each
// watcher cycle produces a new one.
type PriceSnapshot struct {
	Prices     map[string]float64 `json:"prices"` // normalized asset id -> price
	CapturedAt time.Time          `json:"captured_at"`
}

// NewPriceSnapshot creates an empty snapshot captured at the given time
func NewPriceSnapshot(capturedAt time.Time) *PriceSnapshot {
	return &PriceSnapshot{
		Prices:     make(map[string]float64),
		CapturedAt: capturedAt,
	}
}

// Lookup returns the price for an asset id, normalizing it first
func (s *PriceSnapshot) Lookup(assetID string) (float64, bool) {
	price, ok := s.Prices[NormalizeAssetID(assetID)]
	return price, ok
}

// FiredAlert pairs an alert with the price that made it fire
type FiredAlert struct {
	Alert *Alert
	Price float64
}

// Event builds the trigger event for this firing
func (f *FiredAlert) Event() *TriggerEvent {
	return &TriggerEvent{
		AlertID: f.Alert.ID,
		Coin:    NormalizeAssetID(f.Alert.AssetID),
		Price:   f.Price,
		Message: f.Message(),
	}
}

// Message returns the human-readable trigger message, e.g.
// "bitcoin rose above 50000"
func (f *FiredAlert) Message() string {
	direction := "rose above"
	if f.Alert.Kind == KindPriceBelow {
		direction = "fell below"
	}
	threshold := strconv.FormatFloat(f.Alert.Threshold, 'f', -1, 64)
	return NormalizeAssetID(f.Alert.AssetID) + " " + direction + " " + threshold
}

// TriggerEvent is the immutable record of one alert firing, broadcast to
// subscribers and persisted as history
type TriggerEvent struct {
	AlertID string  `json:"alert_id"`
	Coin    string  `json:"coin"`
	Price   float64 `json:"price"`
	Message string  `json:"message"`
}
