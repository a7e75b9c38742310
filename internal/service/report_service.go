package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/slotswap-availability/internal/availability"
	"github.com/noah-isme/slotswap-availability/internal/dto"
	"github.com/noah-isme/slotswap-availability/internal/models"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
	"github.com/noah-isme/slotswap-availability/pkg/export"
)

var reportColumns = []string{"Day", "Fully blocked", "Free minutes", "Busy minutes", "Largest window", "Windows", "Blocked ranges"}

type summarySource interface {
	DaySummaries(ctx context.Context, subject models.Subject, from, to string) ([]dto.DaySummary, bool, error)
	Location() *time.Location
}

// ReportFile is a rendered availability report.
type ReportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService renders per-day availability as CSV or PDF.
type ReportService struct {
	source summarySource
	logger *zap.Logger
	now    func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(source summarySource, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{source: source, logger: logger, now: time.Now}
}

// Generate renders the subject's day summaries between from and to.
func (s *ReportService) Generate(ctx context.Context, subject models.Subject, from, to, format string) (*ReportFile, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	days, _, err := s.source.DaySummaries(ctx, subject, from, to)
	if err != nil {
		return nil, err
	}

	loc := s.source.Location()
	table := export.Table{
		Title:       "Availability report",
		Columns:     reportColumns,
		Rows:        make([][]string, 0, len(days)),
		GeneratedAt: s.now().In(loc),
	}
	if len(days) > 0 {
		table.Subtitle = fmt.Sprintf("%s, %s to %s (%s)", subjectLabel(subject), days[0].Day, days[len(days)-1].Day, loc)
	}
	for _, day := range days {
		table.Rows = append(table.Rows, []string{
			day.Day,
			strconv.FormatBool(day.FullyBlocked),
			strconv.Itoa(day.FreeMinutes),
			strconv.Itoa(day.BusyMinutes),
			windowLabel(day.LargestWindow, loc),
			strconv.Itoa(len(day.Windows)),
			strconv.Itoa(day.BlockedRangeCount),
		})
	}

	body, err := export.For(f).Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	stamp := table.GeneratedAt
	if len(days) > 0 {
		if key, err := availability.ParseDayKey(days[0].Day); err == nil {
			stamp, _ = key.Bounds(loc)
		}
	}
	s.logger.Debug("availability report rendered", zap.String("user_id", subject.UserID), zap.String("format", string(f)), zap.Int("days", len(days)))
	return &ReportFile{
		Filename:    export.Filename("availability-"+subject.UserID, stamp, f),
		ContentType: f.ContentType(),
		Body:        body,
	}, nil
}

func subjectLabel(subject models.Subject) string {
	if subject.Email != "" {
		return subject.Email
	}
	return subject.UserID
}

func windowLabel(w *dto.Window, loc *time.Location) string {
	if w == nil {
		return "-"
	}
	return fmt.Sprintf("%s-%s (%dm)", w.Start.In(loc).Format("15:04"), w.End.In(loc).Format("15:04"), w.DurationMinutes)
}
