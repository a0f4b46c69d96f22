package models

import (
	"testing"
	"time"
)

func validAlert() *Alert {
	return &Alert{
		ID:        "alert-1",
		OwnerID:   "user-1",
		AssetID:   "bitcoin",
		Kind:      KindPriceAbove,
		Threshold: 50000,
		Enabled:   true,
	}
}

func TestAlert_Validate(t *testing.T) {
	if err := validAlert().Validate(); err != nil {
		t.Errorf("Expected valid alert to pass validation, got %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Alert)
		wantErr error
	}{
		{"empty id", func(a *Alert) { a.ID = "" }, ErrInvalidAlertID},
		{"empty asset", func(a *Alert) { a.AssetID = "" }, ErrInvalidAssetID},
		{"whitespace asset", func(a *Alert) { a.AssetID = "   " }, ErrInvalidAssetID},
		{"unknown kind", func(a *Alert) { a.Kind = "PRICE_SIDEWAYS" }, ErrInvalidKind},
		{"zero threshold", func(a *Alert) { a.Threshold = 0 }, ErrInvalidThreshold},
		{"negative threshold", func(a *Alert) { a.Threshold = -1 }, ErrInvalidThreshold},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alert := validAlert()
			tc.mutate(alert)
			if err := alert.Validate(); err != tc.wantErr {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNormalizeAssetID(t *testing.T) {
	cases := map[string]string{
		"bitcoin":     "bitcoin",
		"  Bitcoin  ": "bitcoin",
		"ETHEREUM":    "ethereum",
		"   ":         "",
	}
	for input, want := range cases {
		if got := NormalizeAssetID(input); got != want {
			t.Errorf("NormalizeAssetID(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPriceSnapshot_Lookup(t *testing.T) {
	snapshot := NewPriceSnapshot(time.Now())
	snapshot.Prices["bitcoin"] = 50000

	price, ok := snapshot.Lookup(" Bitcoin ")
	if !ok {
		t.Fatal("Expected lookup to normalize the asset id")
	}
	if price != 50000 {
		t.Errorf("Expected price 50000, got %f", price)
	}

	if _, ok := snapshot.Lookup("ethereum"); ok {
		t.Error("Expected lookup miss for absent asset")
	}
}

func TestFiredAlert_Message(t *testing.T) {
	cases := []struct {
		name      string
		kind      string
		asset     string
		threshold float64
		want      string
	}{
		{"above integer", KindPriceAbove, "bitcoin", 50000, "bitcoin rose above 50000"},
		{"below integer", KindPriceBelow, "ethereum", 2000, "ethereum fell below 2000"},
		{"fractional threshold", KindPriceAbove, "dogecoin", 0.25, "dogecoin rose above 0.25"},
		{"normalized asset", KindPriceAbove, " Bitcoin ", 100, "bitcoin rose above 100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fired := &FiredAlert{
				Alert: &Alert{
					ID:        "a1",
					AssetID:   tc.asset,
					Kind:      tc.kind,
					Threshold: tc.threshold,
				},
				Price: 123,
			}
			if got := fired.Message(); got != tc.want {
				t.Errorf("Expected message %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFiredAlert_Event(t *testing.T) {
	fired := &FiredAlert{
		Alert: &Alert{
			ID:        "alert-1",
			AssetID:   "Bitcoin",
			Kind:      KindPriceAbove,
			Threshold: 50000,
		},
		Price: 50001.5,
	}

	event := fired.Event()
	if event.AlertID != "alert-1" {
		t.Errorf("Expected alert_id alert-1, got %s", event.AlertID)
	}
	if event.Coin != "bitcoin" {
		t.Errorf("Expected normalized coin bitcoin, got %s", event.Coin)
	}
	if event.Price != 50001.5 {
		t.Errorf("Expected price 50001.5, got %f", event.Price)
	}
	if event.Message != "bitcoin rose above 50000" {
		t.Errorf("Unexpected message %q", event.Message)
	}
}
