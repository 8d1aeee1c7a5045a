package models

import (
	"encoding/json"
	"time"
)

const (
	DirectionUptown   = "uptown"
	DirectionDowntown = "downtown"
)

// NormalizedAlert is one feed alert resolved to a single stop, before it is
// persisted.
type NormalizedAlert struct {
	AlertType   string
	Direction   *string // nil when the heading names no direction
	Heading     string
	Description string
	Routes      []string
	// DateText and ActivePeriod hold the provider's structures as-is; their
	// shape varies by alert subtype.
	DateText      json.RawMessage
	ActivePeriod  json.RawMessage
	FeedCreatedAt *time.Time
	FeedUpdatedAt *time.Time
}

// StopAlerts groups normalized alerts by canonical stop name. Slices keep
// feed encounter order. An empty slice means the stop has no active alerts.
type StopAlerts map[string][]NormalizedAlert

// Alert is a persisted row.
type Alert struct {
	ID            string
	StopID        int64
	StopName      string
	Position      int // encounter order within the stop
	AlertType     string
	Direction     *string
	Heading       string
	Description   string
	Route         *string
	DateText      json.RawMessage
	ActivePeriod  json.RawMessage
	FeedCreatedAt *time.Time
	FeedUpdatedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
