package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is a provider notification reduced to the fields reconciliation needs.
// Payload keeps the raw body for storage.
type WebhookEvent struct {
	ID             string
	AccountID      string
	Status         string
	CorrelationRef string
	EventAt        *time.Time
	Payload        []byte
}

var eventTimeKeys = []string{"timestamp", "event_at", "created_at"}

// ParseWebhookEvent accepts account_id or accountId for the account and takes the
// correlation tag from name. Unknown fields are kept in Payload only.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: webhook body is not a JSON object", ErrInvalidInput)
	}

	event := &WebhookEvent{
		ID:             uuid.NewString(),
		AccountID:      scalar(fields["account_id"]),
		Status:         scalar(fields["status"]),
		CorrelationRef: scalar(fields["name"]),
		Payload:        body,
	}
	if event.AccountID == "" {
		event.AccountID = scalar(fields["accountId"])
	}
	for _, key := range eventTimeKeys {
		if t, ok := parseEventTime(fields[key]); ok {
			event.EventAt = &t
			break
		}
	}
	return event, nil
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

// parseEventTime reads RFC 3339 strings and epoch numbers. Numbers below 1e11 are taken
// as seconds, larger ones as milliseconds.
func parseEventTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return t.UTC(), true
		}
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return fromEpoch(n), true
		}
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return fromEpoch(n), true
		}
		if f, err := val.Float64(); err == nil {
			if f < 1e11 {
				f *= 1000
			}
			return time.UnixMilli(int64(f)).UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(n int64) time.Time {
	if n < 1e11 {
		return time.Unix(n, 0).UTC()
	}
	return time.UnixMilli(n).UTC()
}
