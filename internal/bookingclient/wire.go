package bookingclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/slotswap-availability/internal/models"
)

// localLayouts are offset-less forms read in the client's zone.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// wireTime accepts ISO-8601 strings, epoch milliseconds, empty strings and null.
// Anything it cannot read becomes the zero time, which the engine discards.
type wireTime struct {
	t     time.Time
	local bool
}

func (t *wireTime) UnmarshalJSON(raw []byte) error {
	*t = wireTime{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '"' {
		ms, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return nil
		}
		t.t = time.UnixMilli(ms).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.t = parsed
		return nil
	}
	for _, layout := range localLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.t, t.local = parsed, true
			return nil
		}
	}
	return nil
}

// In resolves the instant, reading offset-less values as wall time in loc.
func (t wireTime) In(loc *time.Location) time.Time {
	if !t.local || loc == nil {
		return t.t
	}
	y, m, d := t.t.Date()
	return time.Date(y, m, d, t.t.Hour(), t.t.Minute(), t.t.Second(), t.t.Nanosecond(), loc)
}

// wireRef is an event reference sent either as an id string or a populated
// document carrying "_id".
type wireRef string

func (r *wireRef) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		*r = ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*r = wireRef(s)
	case raw[0] == '{':
		var doc struct {
			ID  string `json:"_id"`
			Alt string `json:"id"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		if doc.ID == "" {
			doc.ID = doc.Alt
		}
		*r = wireRef(doc.ID)
	default:
		*r = ""
	}
	return nil
}

type busyItem struct {
	ID      string   `json:"_id"`
	EventID string   `json:"eventId"`
	Start   wireTime `json:"start"`
	End     wireTime `json:"end"`
}

func (b busyItem) model(loc *time.Location) models.BlockedRange {
	id := b.ID
	if id == "" {
		id = b.EventID
	}
	return models.BlockedRange{EventID: id, Origin: models.OriginBooking, Start: b.Start.In(loc), End: b.End.In(loc)}
}

type eventItem struct {
	ID        string   `json:"_id"`
	UserID    wireRef  `json:"userId"`
	Title     string   `json:"title"`
	StartTime wireTime `json:"startTime"`
	EndTime   wireTime `json:"endTime"`
	Status    string   `json:"status"`
}

func (e eventItem) model(loc *time.Location) models.Event {
	return models.Event{
		ID:     e.ID,
		UserID: string(e.UserID),
		Title:  e.Title,
		Start:  e.StartTime.In(loc),
		End:    e.EndTime.In(loc),
		Status: models.EventStatus(e.Status),
	}
}

type swapItem struct {
	ID        string  `json:"_id"`
	FromEvent wireRef `json:"fromEvent"`
	ToEvent   wireRef `json:"toEvent"`
	Status    string  `json:"status"`
}

func (s swapItem) model() models.Swap {
	return models.Swap{
		ID:          s.ID,
		FromEventID: string(s.FromEvent),
		ToEventID:   string(s.ToEvent),
		Status:      models.NormalizeSwapStatus(s.Status),
	}
}

// decodeList reads either a bare JSON array or an object wrapping it in "data".
func decodeList(raw []byte, dest interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	switch raw[0] {
	case '[':
		return json.Unmarshal(raw, dest)
	case '{':
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		data := bytes.TrimSpace(envelope.Data)
		if len(data) == 0 || data[0] != '[' {
			return nil
		}
		return json.Unmarshal(data, dest)
	default:
		return fmt.Errorf("unexpected payload starting with %q", raw[0])
	}
}
