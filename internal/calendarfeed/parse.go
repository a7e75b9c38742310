package calendarfeed

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// vevent is a VEVENT reduced to what availability needs.
type vevent struct {
	UID        string
	Summary    string
	Start      time.Time
	End        time.Time
	AllDay     bool
	RRule      string
	ExDates    []time.Time
	Recurrence *time.Time
}

// Parse reads an ICS body. Events marked TRANSPARENT or CANCELLED are dropped
// because they do not occupy time. Floating times are read in loc.
func Parse(body []byte, loc *time.Location) ([]vevent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty calendar body")
	}
	if loc == nil {
		loc = time.UTC
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]vevent, 0)
	for _, comp := range cal.Events() {
		if !occupiesTime(comp) {
			continue
		}
		ev, err := parseEvent(comp, loc)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func occupiesTime(ve *ical.VEvent) bool {
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "TRANSPARENT") {
		return false
	}
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED") {
		return false
	}
	return true
}

func parseEvent(ve *ical.VEvent, loc *time.Location) (vevent, error) {
	var out vevent
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(dtStart, loc)
	if err != nil {
		return out, err
	}
	out.Start = start
	out.AllDay = allDay

	switch {
	case ve.GetProperty(ical.ComponentPropertyDtEnd) != nil:
		end, _, err := propTime(ve.GetProperty(ical.ComponentPropertyDtEnd), loc)
		if err != nil {
			return out, err
		}
		out.End = end
	case ve.GetProperty(ical.ComponentPropertyDuration) != nil:
		d, err := parseDuration(ve.GetProperty(ical.ComponentPropertyDuration).Value)
		if err != nil {
			return out, err
		}
		out.End = start.Add(d)
	case allDay:
		out.End = time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, start.Location())
	default:
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, _, err := parseICSTime(strings.TrimSpace(part), tzid(p.ICalParameters), loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	if p := ve.GetProperty(ical.ComponentPropertyRecurrenceId); p != nil {
		if t, _, err := parseICSTime(p.Value, tzid(p.ICalParameters), loc); err == nil {
			out.Recurrence = &t
		}
	}
	return out, nil
}

func propTime(p *ical.IANAProperty, loc *time.Location) (time.Time, bool, error) {
	t, allDay, err := parseICSTime(p.Value, tzid(p.ICalParameters), loc)
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	return t, allDay, err
}

func tzid(params map[string][]string) string {
	if vs, ok := params["TZID"]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseICSTime handles UTC, zoned, floating and date-only values.
func parseICSTime(v, tz string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}
	zone := loc
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			zone = l
		}
	}
	switch {
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	case strings.Contains(v, "T"):
		t, err := time.ParseInLocation("20060102T150405", v, zone)
		return t, false, err
	default:
		t, err := time.ParseInLocation("20060102", v, zone)
		return t, true, err
	}
}

// parseDuration reads the RFC 5545 subset used by calendar exports: PnW, PnDTnHnMnS.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	neg := strings.HasPrefix(v, "-")
	v = strings.TrimLeft(v, "+-")
	if !strings.HasPrefix(v, "P") {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	v = v[1:]
	var total time.Duration
	inTime := false
	num := 0
	seen := false
	parts := 0
	for _, r := range v {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			seen = true
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if !seen {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		n := time.Duration(num)
		switch {
		case r == 'W' && !inTime:
			total += n * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += n * 24 * time.Hour
		case r == 'H' && inTime:
			total += n * time.Hour
		case r == 'M' && inTime:
			total += n * time.Minute
		case r == 'S' && inTime:
			total += n * time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		num, seen = 0, false
		parts++
	}
	if seen || parts == 0 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	if neg {
		total = -total
	}
	return total, nil
}
