package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedkhairy/coin-alerts/internal/models"
)

// Filter defines filtering options for alert queries
type Filter struct {
	OwnerID     string
	AssetID     string
	EnabledOnly bool
	Limit       int
}

// Store defines the interface for alert rule persistence. The watcher only
// reads enabled alerts, disables fired ones, and appends history; creation
// happens through the API and the WebSocket gateway.
type Store interface {
	// CreateAlert persists a new alert
	CreateAlert(ctx context.Context, alert *models.Alert) error

	// GetAlert retrieves a single alert by ID
	GetAlert(ctx context.Context, id string) (*models.Alert, error)

	// ListAlerts retrieves alerts matching the filter, ordered by creation
	// time (oldest first)
	ListAlerts(ctx context.Context, filter Filter) ([]*models.Alert, error)

	// SetEnabled sets the enabled flag of an alert
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// AppendHistory records that an alert fired at the given price
	AppendHistory(ctx context.Context, alertID string, price float64) error

	// ListHistory retrieves firing records for an alert, newest first
	ListHistory(ctx context.Context, alertID string, limit int) ([]*models.AlertHistory, error)

	// Close closes the store
	Close() error
}

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu      sync.RWMutex
	alerts  map[string]*models.Alert
	order   []string // alert ids in creation order
	history map[string][]*models.AlertHistory
	nowFunc func() time.Time
}

// NewMemoryStore creates a new in-memory alert store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		alerts:  make(map[string]*models.Alert),
		history: make(map[string][]*models.AlertHistory),
		nowFunc: time.Now,
	}
}

// CreateAlert persists a new alert
func (s *MemoryStore) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}
	if err := alert.Validate(); err != nil {
		return fmt.Errorf("invalid alert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("alert already exists: %s", alert.ID)
	}

	now := s.nowFunc()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = now
	}

	s.alerts[alert.ID] = copyAlert(alert)
	s.order = append(s.order, alert.ID)

	return nil
}

// GetAlert retrieves a single alert by ID
func (s *MemoryStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, exists := s.alerts[id]
	if !exists {
		return nil, models.ErrAlertNotFound
	}

	return copyAlert(alert), nil
}

// ListAlerts retrieves alerts matching the filter in creation order
func (s *MemoryStore) ListAlerts(ctx context.Context, filter Filter) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Alert, 0)
	for _, id := range s.order {
		alert := s.alerts[id]
		if filter.OwnerID != "" && alert.OwnerID != filter.OwnerID {
			continue
		}
		if filter.AssetID != "" && alert.AssetID != models.NormalizeAssetID(filter.AssetID) {
			continue
		}
		if filter.EnabledOnly && !alert.Enabled {
			continue
		}
		result = append(result, copyAlert(alert))
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}

	return result, nil
}

// SetEnabled sets the enabled flag of an alert
func (s *MemoryStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, exists := s.alerts[id]
	if !exists {
		return models.ErrAlertNotFound
	}

	alert.Enabled = enabled
	alert.UpdatedAt = s.nowFunc()

	return nil
}

// AppendHistory records that an alert fired at the given price
func (s *MemoryStore) AppendHistory(ctx context.Context, alertID string, price float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alertID]; !exists {
		return models.ErrAlertNotFound
	}

	record := &models.AlertHistory{
		ID:          uuid.New().String(),
		AlertID:     alertID,
		Price:       price,
		TriggeredAt: s.nowFunc(),
	}
	s.history[alertID] = append(s.history[alertID], record)

	return nil
}

// ListHistory retrieves firing records for an alert, newest first
func (s *MemoryStore) ListHistory(ctx context.Context, alertID string, limit int) ([]*models.AlertHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.history[alertID]
	result := make([]*models.AlertHistory, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		copied := *records[i]
		result = append(result, &copied)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

// Close closes the store
func (s *MemoryStore) Close() error {
	return nil
}

// Count returns the number of alerts in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// copyAlert creates a copy of an alert to prevent external modifications
func copyAlert(alert *models.Alert) *models.Alert {
	copied := *alert
	return &copied
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)
