// Package alerts turns raw feed entities into per-stop normalized alerts.
package alerts

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mr1hm/mta-alert-tracker/internal/feed"
	"github.com/mr1hm/mta-alert-tracker/internal/models"
	"github.com/mr1hm/mta-alert-tracker/internal/stops"
)

var (
	emptyObject = json.RawMessage(`{}`)
	emptyArray  = json.RawMessage(`[]`)
)

// StopLookup resolves an external stop id to its canonical name.
type StopLookup interface {
	Lookup(id string) (string, bool)
}

// Stats counts what a Normalize pass kept and dropped.
type Stats struct {
	Entities  int // entities in the feed
	Malformed int // entities that failed to decode
	Dropped   int // alerts with no resolvable stop
	Skipped   int // stop references that were not stops or not in the directory
	Alerts    int // normalized alerts emitted across all stops
}

func Normalize(raw *feed.RawFeed, dir StopLookup) models.StopAlerts {
	groups, _ := NormalizeWithStats(raw, dir)
	return groups
}

// NormalizeWithStats groups every alert in raw by canonical stop name.
// Unresolvable stop references are skipped silently; only non-empty groups
// are returned.
func NormalizeWithStats(raw *feed.RawFeed, dir StopLookup) (models.StopAlerts, Stats) {
	groups := make(models.StopAlerts)
	var stats Stats
	if raw == nil {
		return groups, stats
	}

	stats.Entities = len(raw.Entities)
	for i, rawEntity := range raw.Entities {
		entity, err := feed.DecodeEntity(rawEntity)
		if err != nil {
			stats.Malformed++
			slog.Debug("skipping malformed entity", "index", i, "error", err)
			continue
		}
		if entity.Alert == nil {
			continue
		}

		names, skipped := resolveStops(entity.Alert.InformedEntity, dir)
		stats.Skipped += skipped
		if len(names) == 0 {
			stats.Dropped++
			slog.Debug("dropping alert without resolvable stop", "entity_id", entity.ID)
			continue
		}

		na := normalizeAlert(entity.Alert)
		for _, name := range names {
			groups[name] = append(groups[name], na)
			stats.Alerts++
		}
	}

	return groups, stats
}

// resolveStops returns the distinct canonical stop names of an alert in
// encounter order.
func resolveStops(informed []feed.InformedEntity, dir StopLookup) ([]string, int) {
	var (
		names   []string
		skipped int
	)
	seen := make(map[string]bool)
	for _, ie := range informed {
		id := strings.TrimSpace(ie.StopID)
		if id == "" {
			continue
		}
		if !stops.IsStopNumber(id) {
			skipped++
			continue
		}
		name, ok := dir.Lookup(id)
		if !ok {
			skipped++
			continue
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, skipped
}

func normalizeAlert(a *feed.Alert) models.NormalizedAlert {
	na := models.NormalizedAlert{
		Heading:      a.HeaderText.FirstString(),
		Description:  a.DescriptionText.FirstString(),
		Routes:       routes(a.InformedEntity),
		DateText:     emptyObject,
		ActivePeriod: opaque(a.ActivePeriod, emptyArray),
	}
	na.Direction = Direction(na.Heading)

	if m := a.Mercury; m != nil {
		na.AlertType = m.AlertType
		if text, ok := m.HumanReadableActivePeriod.FirstText(); ok {
			na.DateText = text
		}
		if ts, ok := feed.ParseEpoch(m.CreatedAt); ok {
			na.FeedCreatedAt = ts
		}
		if ts, ok := feed.ParseEpoch(m.UpdatedAt); ok {
			na.FeedUpdatedAt = ts
		}
	}

	return na
}

func routes(informed []feed.InformedEntity) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ie := range informed {
		r := strings.TrimSpace(ie.RouteID)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func opaque(raw json.RawMessage, fallback json.RawMessage) json.RawMessage {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) || !json.Valid(body) {
		return fallback
	}
	return body
}

// WithEmptyGroups returns a copy of groups where every name in names that
// has no alerts maps to an empty slice, so reconciliation clears it.
func WithEmptyGroups(groups models.StopAlerts, names []string) models.StopAlerts {
	out := make(models.StopAlerts, len(groups)+len(names))
	for name, list := range groups {
		out[name] = list
	}
	for _, name := range names {
		if _, ok := out[name]; !ok {
			out[name] = []models.NormalizedAlert{}
		}
	}
	return out
}
