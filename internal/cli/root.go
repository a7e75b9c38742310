// Package cli implements slotctl, an offline view of availability over a file of busy ranges.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/slotswap-availability/internal/availability"
	"github.com/noah-isme/slotswap-availability/internal/service"
)

// Context is shared by every command.
type Context struct {
	Out io.Writer
	Loc *time.Location
}

// Root is the slotctl command tree.
type Root struct {
	TZ string `help:"IANA time zone used for day boundaries and local times." default:"UTC" env:"TIMEZONE"`

	Days   DaysCmd   `cmd:"" help:"List fully blocked days."`
	Window WindowCmd `cmd:"" help:"Show the free window at or after a start time."`
	Check  CheckCmd  `cmd:"" help:"Validate a proposed slot."`
}

// NewContext resolves the zone flag.
func (r *Root) NewContext(out io.Writer) (*Context, error) {
	loc, err := time.LoadLocation(r.TZ)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", r.TZ, err)
	}
	return &Context{Out: out, Loc: loc}, nil
}

type rangeRecord struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// loadRanges reads an array of {"start","end"} records. Files ending in
// .yaml or .yml are YAML, everything else is JSON with comments.
func loadRanges(path string, loc *time.Location) ([]availability.TimeRange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAMLRanges(data, loc)
	default:
		return parseRanges(data, loc)
	}
}

func parseRanges(data []byte, loc *time.Location) ([]availability.TimeRange, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var records []rangeRecord
	if err := json.Unmarshal(standardized, &records); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return toRanges(records, loc)
}

func parseYAMLRanges(data []byte, loc *time.Location) ([]availability.TimeRange, error) {
	var records []rangeRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return toRanges(records, loc)
}

func toRanges(records []rangeRecord, loc *time.Location) ([]availability.TimeRange, error) {
	ranges := make([]availability.TimeRange, 0, len(records))
	for i, rec := range records {
		start, err := service.ParseInstant(rec.Start, loc)
		if err != nil {
			return nil, fmt.Errorf("range %d start: %w", i, err)
		}
		end, err := service.ParseInstant(rec.End, loc)
		if err != nil {
			return nil, fmt.Errorf("range %d end: %w", i, err)
		}
		ranges = append(ranges, availability.TimeRange{Start: start, End: end})
	}
	return ranges, nil
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
