package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/mohamedkhairy/coin-alerts/internal/models"
)

func newTestAlert(id, owner, asset, kind string, threshold float64) *models.Alert {
	return &models.Alert{
		ID:        id,
		OwnerID:   owner,
		AssetID:   asset,
		Kind:      kind,
		Threshold: threshold,
		Enabled:   true,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	alert := newTestAlert("alert-1", "user-1", "bitcoin", models.KindPriceAbove, 50000)
	if err := store.CreateAlert(ctx, alert); err != nil {
		t.Fatalf("Failed to create alert: %v", err)
	}

	got, err := store.GetAlert(ctx, "alert-1")
	if err != nil {
		t.Fatalf("Failed to get alert: %v", err)
	}
	if got.AssetID != "bitcoin" || got.Threshold != 50000 {
		t.Errorf("Unexpected alert: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set on create")
	}

	// Duplicate IDs are rejected
	if err := store.CreateAlert(ctx, alert); err == nil {
		t.Error("Expected error creating duplicate alert")
	}
}

func TestMemoryStore_CreateRejectsInvalidAlert(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	invalid := newTestAlert("alert-1", "user-1", "bitcoin", "PRICE_SIDEWAYS", 50000)
	if err := store.CreateAlert(ctx, invalid); err == nil {
		t.Error("Expected error for invalid kind")
	}

	if err := store.CreateAlert(ctx, nil); err == nil {
		t.Error("Expected error for nil alert")
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetAlert(context.Background(), "missing")
	if err != models.ErrAlertNotFound {
		t.Errorf("Expected ErrAlertNotFound, got %v", err)
	}
}

func TestMemoryStore_ListAlertsFiltersAndOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.CreateAlert(ctx, newTestAlert("a1", "user-1", "bitcoin", models.KindPriceAbove, 100))
	store.CreateAlert(ctx, newTestAlert("a2", "user-2", "ethereum", models.KindPriceBelow, 200))
	store.CreateAlert(ctx, newTestAlert("a3", "user-1", "ethereum", models.KindPriceAbove, 300))
	store.SetEnabled(ctx, "a3", false)

	// No filter: everything in creation order
	all, err := store.ListAlerts(ctx, Filter{})
	if err != nil {
		t.Fatalf("Failed to list alerts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 alerts, got %d", len(all))
	}
	for i, id := range []string{"a1", "a2", "a3"} {
		if all[i].ID != id {
			t.Errorf("Expected alert %d to be %s, got %s", i, id, all[i].ID)
		}
	}

	// Owner filter
	owned, _ := store.ListAlerts(ctx, Filter{OwnerID: "user-1"})
	if len(owned) != 2 {
		t.Errorf("Expected 2 alerts for user-1, got %d", len(owned))
	}

	// EnabledOnly skips the disabled alert
	enabled, _ := store.ListAlerts(ctx, Filter{EnabledOnly: true})
	if len(enabled) != 2 {
		t.Errorf("Expected 2 enabled alerts, got %d", len(enabled))
	}
	for _, a := range enabled {
		if a.ID == "a3" {
			t.Error("Expected disabled alert a3 to be excluded")
		}
	}

	// Asset filter is normalized
	eth, _ := store.ListAlerts(ctx, Filter{AssetID: " Ethereum "})
	if len(eth) != 2 {
		t.Errorf("Expected 2 ethereum alerts, got %d", len(eth))
	}

	// Limit
	limited, _ := store.ListAlerts(ctx, Filter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "a1" {
		t.Errorf("Expected limit to return the oldest alert, got %+v", limited)
	}
}

func TestMemoryStore_SetEnabled(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.CreateAlert(ctx, newTestAlert("a1", "user-1", "bitcoin", models.KindPriceAbove, 100))

	if err := store.SetEnabled(ctx, "a1", false); err != nil {
		t.Fatalf("Failed to disable alert: %v", err)
	}
	got, _ := store.GetAlert(ctx, "a1")
	if got.Enabled {
		t.Error("Expected alert to be disabled")
	}

	// Re-enabling works the same way
	if err := store.SetEnabled(ctx, "a1", true); err != nil {
		t.Fatalf("Failed to re-enable alert: %v", err)
	}
	got, _ = store.GetAlert(ctx, "a1")
	if !got.Enabled {
		t.Error("Expected alert to be re-enabled")
	}

	if err := store.SetEnabled(ctx, "missing", false); err != models.ErrAlertNotFound {
		t.Errorf("Expected ErrAlertNotFound, got %v", err)
	}
}

func TestMemoryStore_History(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.CreateAlert(ctx, newTestAlert("a1", "user-1", "bitcoin", models.KindPriceAbove, 100))

	// History for an unknown alert is rejected
	if err := store.AppendHistory(ctx, "missing", 123); err != models.ErrAlertNotFound {
		t.Errorf("Expected ErrAlertNotFound, got %v", err)
	}

	now := time.Now()
	ticks := 0
	store.nowFunc = func() time.Time {
		ticks++
		return now.Add(time.Duration(ticks) * time.Second)
	}

	for _, price := range []float64{101, 102, 103} {
		if err := store.AppendHistory(ctx, "a1", price); err != nil {
			t.Fatalf("Failed to append history: %v", err)
		}
	}

	// Newest first
	history, err := store.ListHistory(ctx, "a1", 0)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 history records, got %d", len(history))
	}
	if history[0].Price != 103 || history[2].Price != 101 {
		t.Errorf("Expected newest-first ordering, got prices %f, %f, %f",
			history[0].Price, history[1].Price, history[2].Price)
	}
	for _, record := range history {
		if record.AlertID != "a1" {
			t.Errorf("Expected history record for a1, got %s", record.AlertID)
		}
		if record.ID == "" {
			t.Error("Expected history record to have an ID")
		}
	}

	// Limit applies after ordering
	limited, _ := store.ListHistory(ctx, "a1", 2)
	if len(limited) != 2 || limited[0].Price != 103 {
		t.Errorf("Expected 2 newest records, got %+v", limited)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.CreateAlert(ctx, newTestAlert("a1", "user-1", "bitcoin", models.KindPriceAbove, 100))

	got, _ := store.GetAlert(ctx, "a1")
	got.Threshold = 999999

	again, _ := store.GetAlert(ctx, "a1")
	if again.Threshold != 100 {
		t.Errorf("Expected stored alert to be unaffected by caller mutation, got threshold %f", again.Threshold)
	}
}
