package application

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/scp-mobile/platform/shared/pkg/logging"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// FileParser turns an uploaded file into typed rows
type FileParser interface {
	ParseForecasts(name string, r io.Reader) ([]domain.ForecastRow, error)
	ParseLocations(name string, r io.Reader) ([]domain.LocationRow, error)
}

// Uploader sends forecast and location files to the backend row by row
type Uploader struct {
	api     domain.UploadAPI
	parser  FileParser
	tracker domain.Tracker
	logger  *logging.Logger
	now     func() time.Time
}

// NewUploader creates an Uploader
func NewUploader(api domain.UploadAPI, parser FileParser, tracker domain.Tracker, logger *logging.Logger) *Uploader {
	if tracker == nil {
		tracker = nopTracker{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Uploader{
		api:     api,
		parser:  parser,
		tracker: tracker,
		logger:  logger.WithComponent("uploader"),
		now:     time.Now,
	}
}

// UploadFile parses name and uploads its rows. The error is non-nil only when
// the file itself cannot be read; row failures land in the summary.
func (u *Uploader) UploadFile(ctx context.Context, kind domain.UploadKind, name string, r io.Reader) (*domain.UploadSummary, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown upload kind %q", kind)
	}

	var (
		summary *domain.UploadSummary
		err     error
	)
	switch kind {
	case domain.UploadForecast:
		var rows []domain.ForecastRow
		if rows, err = u.parser.ParseForecasts(name, r); err == nil {
			u.trackAttempt(ctx, kind, name, len(rows))
			summary = u.UploadForecasts(ctx, rows)
		}
	case domain.UploadLocations:
		var rows []domain.LocationRow
		if rows, err = u.parser.ParseLocations(name, r); err == nil {
			u.trackAttempt(ctx, kind, name, len(rows))
			summary = u.UploadLocations(ctx, rows)
		}
	}

	if err != nil {
		u.tracker.Track(ctx, eventName(kind, "failed"), map[string]any{
			"filename": name,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	if summary.AllFailed() {
		first := "Upload failed"
		if len(summary.Errors) > 0 {
			first = summary.Errors[0]
		}
		u.tracker.Track(ctx, eventName(kind, "failed"), map[string]any{
			"filename": name,
			"error":    first,
		})
	} else {
		u.tracker.Track(ctx, eventName(kind, "completed"), map[string]any{
			"filename":      name,
			"record_count":  summary.Total,
			"success_count": summary.Success,
			"fail_count":    summary.Failed,
		})
	}

	u.logger.Info("Upload complete",
		"kind", kind,
		"filename", name,
		"success", summary.Success,
		"failed", summary.Failed,
	)
	return summary, nil
}

// UploadForecasts saves each forecast and then its projection
func (u *Uploader) UploadForecasts(ctx context.Context, rows []domain.ForecastRow) *domain.UploadSummary {
	summary := &domain.UploadSummary{Kind: domain.UploadForecast, Total: len(rows)}
	today := u.now().Format(time.DateOnly)

	for _, row := range rows {
		if row.ForecastID == "" {
			summary.RecordFailure(row.Row, domain.ErrMissingForecastID)
			continue
		}
		if row.PeriodStartDate == "" {
			row.PeriodStartDate = today
		}

		if err := u.api.SaveForecast(ctx, row); err != nil {
			summary.RecordFailure(row.Row, fmt.Errorf("(%s): %w", row.ForecastID, err))
			continue
		}
		if err := u.api.SaveForecastProjection(ctx, row); err != nil {
			summary.RecordFailure(row.Row, fmt.Errorf("(%s): %w - %w", row.ForecastID, domain.ErrProjectionFailed, err))
			continue
		}
		summary.RecordSuccess()
	}
	return summary
}

// UploadLocations creates each location
func (u *Uploader) UploadLocations(ctx context.Context, rows []domain.LocationRow) *domain.UploadSummary {
	summary := &domain.UploadSummary{Kind: domain.UploadLocations, Total: len(rows)}

	for _, row := range rows {
		if row.LocationID == "" {
			summary.RecordFailure(row.Row, domain.ErrMissingLocationID)
			continue
		}
		if err := u.api.CreateLocation(ctx, row); err != nil {
			summary.RecordFailure(row.Row, fmt.Errorf("(%s): %w", row.LocationID, err))
			continue
		}
		summary.RecordSuccess()
	}
	return summary
}

func (u *Uploader) trackAttempt(ctx context.Context, kind domain.UploadKind, name string, count int) {
	u.tracker.Track(ctx, eventName(kind, "attempt"), map[string]any{
		"filename":     name,
		"record_count": count,
	})
}

func eventName(kind domain.UploadKind, phase string) string {
	return fmt.Sprintf("upload_%s_%s", kind, phase)
}
