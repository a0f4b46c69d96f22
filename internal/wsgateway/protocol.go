package wsgateway

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire events. Inbound: set_alert, ping. Outbound: price_update,
// alert_triggered, load_alerts, pong, error.
const (
	MessageTypeSetAlert = "set_alert"
	MessageTypePing     = "ping"

	EventPriceUpdate    = "price_update"
	EventAlertTriggered = "alert_triggered"
	EventLoadAlerts     = "load_alerts"
)

// ClientMessage represents a message from the client
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage represents a message to the client
type ServerMessage struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SetAlertPayload is the body of a set_alert message. Dashboard clients
// historically send the threshold as a string, so both forms are accepted.
type SetAlertPayload struct {
	Coin      string        `json:"coin"`
	Kind      string        `json:"type"`
	Threshold FlexThreshold `json:"threshold"`
}

// FlexThreshold is a float64 that unmarshals from either a JSON number or a
// numeric string
type FlexThreshold float64

// UnmarshalJSON implements json.Unmarshaler
func (t *FlexThreshold) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("empty threshold")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		value, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", s, err)
		}
		*t = FlexThreshold(value)
		return nil
	}

	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*t = FlexThreshold(value)
	return nil
}
