package feed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// RawFeed is the top-level alert payload. Entities stay undecoded so one
// malformed entity cannot fail the whole fetch.
type RawFeed struct {
	Header   json.RawMessage   `json:"header"`
	Entities []json.RawMessage `json:"entity"`
}

type Entity struct {
	ID    string `json:"id"`
	Alert *Alert `json:"alert"`
}

type Alert struct {
	ActivePeriod    json.RawMessage  `json:"active_period"`
	InformedEntity  []InformedEntity `json:"informed_entity"`
	HeaderText      *TranslatedText  `json:"header_text"`
	DescriptionText *TranslatedText  `json:"description_text"`
	Mercury         *MercuryAlert    `json:"transit_realtime.mercury_alert"`
}

type InformedEntity struct {
	AgencyID string `json:"agency_id"`
	RouteID  string `json:"route_id"`
	StopID   string `json:"stop_id"`
}

// MercuryAlert is the MTA extension block carried on every subway alert.
type MercuryAlert struct {
	AlertType                 string          `json:"alert_type"`
	CreatedAt                 json.RawMessage `json:"created_at"`
	UpdatedAt                 json.RawMessage `json:"updated_at"`
	HumanReadableActivePeriod *TranslatedText `json:"human_readable_active_period"`
}

type Translation struct {
	Text     json.RawMessage `json:"text"`
	Language string          `json:"language"`
}

// TranslatedText accepts "translation" as either a list or a single object.
// Anything else decodes to an empty value instead of an error.
type TranslatedText struct {
	Translations []Translation
}

func (t *TranslatedText) UnmarshalJSON(b []byte) error {
	var raw struct {
		Translation json.RawMessage `json:"translation"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}

	body := bytes.TrimSpace(raw.Translation)
	if len(body) == 0 {
		return nil
	}
	switch body[0] {
	case '[':
		var list []Translation
		if err := json.Unmarshal(body, &list); err == nil {
			t.Translations = list
		}
	case '{':
		var one Translation
		if err := json.Unmarshal(body, &one); err == nil {
			t.Translations = []Translation{one}
		}
	}
	return nil
}

// FirstText returns the raw text of the first translation, if any.
func (t *TranslatedText) FirstText() (json.RawMessage, bool) {
	if t == nil || len(t.Translations) == 0 {
		return nil, false
	}
	text := bytes.TrimSpace(t.Translations[0].Text)
	if len(text) == 0 || bytes.Equal(text, []byte("null")) {
		return nil, false
	}
	return text, true
}

// FirstString returns the first translation's text when it is a JSON string.
func (t *TranslatedText) FirstString() string {
	text, ok := t.FirstText()
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		return ""
	}
	return s
}

// DecodeEntity decodes one raw entity.
func DecodeEntity(raw json.RawMessage) (*Entity, error) {
	var e Entity
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ParseEpoch reads a unix-seconds timestamp that may be encoded as a number
// or a numeric string.
func ParseEpoch(raw json.RawMessage) (*time.Time, bool) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, false
	}
	if body[0] == '"' {
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return nil, false
		}
		body = []byte(s)
	}
	secs, err := strconv.ParseInt(string(body), 10, 64)
	if err != nil || secs <= 0 {
		return nil, false
	}
	t := time.Unix(secs, 0).UTC()
	return &t, true
}
