package alerts

import (
	"testing"
	"time"

	"github.com/mohamedkhairy/coin-alerts/internal/models"
)

func snapshotWith(prices map[string]float64) *models.PriceSnapshot {
	snapshot := models.NewPriceSnapshot(time.Now())
	for id, price := range prices {
		snapshot.Prices[models.NormalizeAssetID(id)] = price
	}
	return snapshot
}

func TestEvaluate_AboveFiresOnCross(t *testing.T) {
	alert := &models.Alert{
		ID:        "alert-1",
		OwnerID:   "user-1",
		AssetID:   "bitcoin",
		Kind:      models.KindPriceAbove,
		Threshold: 50000,
		Enabled:   true,
	}

	// Below the threshold: nothing fires
	fired := Evaluate(snapshotWith(map[string]float64{"bitcoin": 49999.99}), []*models.Alert{alert})
	if len(fired) != 0 {
		t.Errorf("Expected no firings below threshold, got %d", len(fired))
	}

	// Above the threshold: fires with the observed price
	fired = Evaluate(snapshotWith(map[string]float64{"bitcoin": 50000.01}), []*models.Alert{alert})
	if len(fired) != 1 {
		t.Fatalf("Expected 1 firing above threshold, got %d", len(fired))
	}
	if fired[0].Alert.ID != "alert-1" {
		t.Errorf("Expected alert-1 to fire, got %s", fired[0].Alert.ID)
	}
	if fired[0].Price != 50000.01 {
		t.Errorf("Expected firing price 50000.01, got %f", fired[0].Price)
	}
}

func TestEvaluate_BelowFiresOnCross(t *testing.T) {
	alert := &models.Alert{
		ID:        "alert-1",
		OwnerID:   "user-1",
		AssetID:   "ethereum",
		Kind:      models.KindPriceBelow,
		Threshold: 2000,
		Enabled:   true,
	}

	fired := Evaluate(snapshotWith(map[string]float64{"ethereum": 2000.5}), []*models.Alert{alert})
	if len(fired) != 0 {
		t.Errorf("Expected no firings above threshold, got %d", len(fired))
	}

	fired = Evaluate(snapshotWith(map[string]float64{"ethereum": 1999.5}), []*models.Alert{alert})
	if len(fired) != 1 {
		t.Fatalf("Expected 1 firing below threshold, got %d", len(fired))
	}
}

func TestEvaluate_EqualityNeverFires(t *testing.T) {
	above := &models.Alert{
		ID: "a", OwnerID: "u", AssetID: "bitcoin",
		Kind: models.KindPriceAbove, Threshold: 50000, Enabled: true,
	}
	below := &models.Alert{
		ID: "b", OwnerID: "u", AssetID: "bitcoin",
		Kind: models.KindPriceBelow, Threshold: 50000, Enabled: true,
	}

	fired := Evaluate(snapshotWith(map[string]float64{"bitcoin": 50000}), []*models.Alert{above, below})
	if len(fired) != 0 {
		t.Errorf("Expected no firings at exact threshold, got %d", len(fired))
	}
}

func TestEvaluate_SkipsDisabledAlerts(t *testing.T) {
	alert := &models.Alert{
		ID: "alert-1", OwnerID: "user-1", AssetID: "bitcoin",
		Kind: models.KindPriceAbove, Threshold: 100, Enabled: false,
	}

	fired := Evaluate(snapshotWith(map[string]float64{"bitcoin": 101}), []*models.Alert{alert})
	if len(fired) != 0 {
		t.Errorf("Expected disabled alert to be skipped, got %d firings", len(fired))
	}
}

func TestEvaluate_SkipsAbsentAsset(t *testing.T) {
	alert := &models.Alert{
		ID: "alert-1", OwnerID: "user-1", AssetID: "dogecoin",
		Kind: models.KindPriceAbove, Threshold: 0.1, Enabled: true,
	}

	// Snapshot has no dogecoin price: silently skipped
	fired := Evaluate(snapshotWith(map[string]float64{"bitcoin": 50000}), []*models.Alert{alert})
	if len(fired) != 0 {
		t.Errorf("Expected alert with absent asset to be skipped, got %d firings", len(fired))
	}
}

func TestEvaluate_PreservesInputOrder(t *testing.T) {
	alertList := []*models.Alert{
		{ID: "first", OwnerID: "u", AssetID: "bitcoin", Kind: models.KindPriceAbove, Threshold: 100, Enabled: true},
		{ID: "skipped", OwnerID: "u", AssetID: "bitcoin", Kind: models.KindPriceAbove, Threshold: 999999, Enabled: true},
		{ID: "second", OwnerID: "u", AssetID: "ethereum", Kind: models.KindPriceBelow, Threshold: 5000, Enabled: true},
		{ID: "third", OwnerID: "u", AssetID: "bitcoin", Kind: models.KindPriceAbove, Threshold: 200, Enabled: true},
	}
	snapshot := snapshotWith(map[string]float64{"bitcoin": 50000, "ethereum": 2000})

	fired := Evaluate(snapshot, alertList)
	if len(fired) != 3 {
		t.Fatalf("Expected 3 firings, got %d", len(fired))
	}
	expected := []string{"first", "second", "third"}
	for i, id := range expected {
		if fired[i].Alert.ID != id {
			t.Errorf("Expected firing %d to be %s, got %s", i, id, fired[i].Alert.ID)
		}
	}
}

func TestEvaluate_PureAgainstSameSnapshot(t *testing.T) {
	alert := &models.Alert{
		ID: "alert-1", OwnerID: "user-1", AssetID: "bitcoin",
		Kind: models.KindPriceAbove, Threshold: 100, Enabled: true,
	}
	snapshot := snapshotWith(map[string]float64{"bitcoin": 101})

	// Same inputs, same result; Evaluate holds no state between calls
	first := Evaluate(snapshot, []*models.Alert{alert})
	second := Evaluate(snapshot, []*models.Alert{alert})
	if len(first) != 1 || len(second) != 1 {
		t.Errorf("Expected both evaluations to fire once, got %d and %d", len(first), len(second))
	}
	if !alert.Enabled {
		t.Error("Expected Evaluate not to mutate the alert")
	}
}

func TestEvaluate_NormalizesAssetLookup(t *testing.T) {
	alert := &models.Alert{
		ID: "alert-1", OwnerID: "user-1", AssetID: "  Bitcoin ",
		Kind: models.KindPriceAbove, Threshold: 100, Enabled: true,
	}

	fired := Evaluate(snapshotWith(map[string]float64{"bitcoin": 101}), []*models.Alert{alert})
	if len(fired) != 1 {
		t.Errorf("Expected normalized asset id to match snapshot key, got %d firings", len(fired))
	}
}
