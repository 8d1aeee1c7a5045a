package api

import (
	"encoding/json"
	"time"

	"github.com/mr1hm/mta-alert-tracker/internal/models"
)

// StopView is the public shape of a stop. Internal ids and insertion
// timestamps stay out of it.
type StopView struct {
	Name   string          `json:"name"`
	Alerts []StopAlertView `json:"alerts"`
}

type StopAlertView struct {
	AlertType     string          `json:"alert_type"`
	Direction     *string         `json:"direction"`
	Heading       string          `json:"heading"`
	Description   string          `json:"description,omitempty"`
	Route         *string         `json:"route"`
	DateText      json.RawMessage `json:"date_text"`
	ActivePeriod  json.RawMessage `json:"active_period"`
	FeedCreatedAt *time.Time      `json:"feed_created_at,omitempty"`
	FeedUpdatedAt *time.Time      `json:"feed_updated_at,omitempty"`
}

// AlertView is a single alert row for the flat alert listing.
type AlertView struct {
	ID   string `json:"id"`
	Stop string `json:"stop"`
	StopAlertView
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CycleView struct {
	ID             string    `json:"id"`
	Reason         string    `json:"reason"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	DurationMS     int64     `json:"duration_ms"`
	Entities       int       `json:"entities"`
	StopsSeen      int       `json:"stops_seen"`
	StopsCreated   int       `json:"stops_created"`
	AlertsDeleted  int64     `json:"alerts_deleted"`
	AlertsInserted int       `json:"alerts_inserted"`
}

func toStopView(s models.Stop) StopView {
	alerts := make([]StopAlertView, 0, len(s.Alerts))
	for _, a := range s.Alerts {
		alerts = append(alerts, toStopAlertView(a))
	}
	return StopView{Name: s.Name, Alerts: alerts}
}

func toStopViews(stops []models.Stop) []StopView {
	views := make([]StopView, 0, len(stops))
	for _, s := range stops {
		views = append(views, toStopView(s))
	}
	return views
}

func toStopAlertView(a models.Alert) StopAlertView {
	return StopAlertView{
		AlertType:     a.AlertType,
		Direction:     a.Direction,
		Heading:       a.Heading,
		Description:   a.Description,
		Route:         a.Route,
		DateText:      rawOr(a.DateText, `{}`),
		ActivePeriod:  rawOr(a.ActivePeriod, `[]`),
		FeedCreatedAt: a.FeedCreatedAt,
		FeedUpdatedAt: a.FeedUpdatedAt,
	}
}

func toAlertViews(alerts []models.Alert) []AlertView {
	views := make([]AlertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, AlertView{
			ID:            a.ID,
			Stop:          a.StopName,
			StopAlertView: toStopAlertView(a),
			CreatedAt:     a.CreatedAt,
			UpdatedAt:     a.UpdatedAt,
		})
	}
	return views
}

func toCycleView(r models.CycleResult) CycleView {
	return CycleView{
		ID:             r.ID,
		Reason:         r.Reason,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMS:     r.Duration().Milliseconds(),
		Entities:       r.Entities,
		StopsSeen:      r.StopsSeen,
		StopsCreated:   r.StopsCreated,
		AlertsDeleted:  r.AlertsDeleted,
		AlertsInserted: r.AlertsInserted,
	}
}

func rawOr(raw json.RawMessage, fallback string) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(fallback)
	}
	return raw
}
