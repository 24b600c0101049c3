package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/rinkside/internal/adapters/sheet"
	"github.com/okian/rinkside/internal/domain/form"
	"github.com/okian/rinkside/internal/domain/lesson"
	"github.com/okian/rinkside/pkg/logger"
	"github.com/okian/rinkside/pkg/metrics"
)

// Export triggers recorded in metrics.
const (
	TriggerRequest  = "request"
	TriggerSchedule = "schedule"
)

// Export writes every lesson to w as a workbook.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	err := s.export(ctx, w)
	metrics.RecordExport(TriggerRequest, outcome(err))
	return err
}

func (s *Service) export(ctx context.Context, w io.Writer) error {
	lessons, err := s.Lessons(ctx)
	if err != nil {
		return err
	}
	return sheet.Export(w, lessons, s.colors, s.Location())
}

// ExportFile writes a timestamped workbook into the export directory and
// returns its path.
func (s *Service) ExportFile(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("export dir: %w", err)
	}
	name := fmt.Sprintf("lessons-%s.xlsx", s.now().Format("20060102-150405"))
	path := filepath.Join(s.exportDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	if err := s.export(ctx, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	return path, nil
}

func (s *Service) scheduledExport(ctx context.Context) {
	start := time.Now()
	path, err := s.ExportFile(ctx)
	metrics.RecordExport(TriggerSchedule, outcome(err))
	if err != nil {
		s.logger.Error(ctx, "scheduled export failed", logger.Error(err))
		return
	}
	s.logger.Info(ctx, "scheduled export written",
		logger.String("path", path),
		logger.Duration("took", time.Since(start)),
	)
}

// Import adds every row of the workbook in r through the add flow, so rows
// are validated and conflict-checked like hand-entered lessons. Rows that
// fail are reported and skipped.
func (s *Service) Import(ctx context.Context, r io.Reader, rec form.Recorder) (sheet.Result, error) {
	rows, err := sheet.Parse(r)
	if err != nil {
		return sheet.Result{}, err
	}

	res := sheet.Result{Created: []string{}, Rejected: []sheet.RowError{}}
	loc := s.Location()
	for _, row := range rows {
		f := s.NewAddForm(s.now())
		f.SetStudent(row.Student)
		if row.Coach != "" {
			f.SetCoach(row.Coach)
		}
		if row.Rink != "" {
			f.SetRink(row.Rink)
		}
		f.SetStartText(row.Start, loc)
		if row.End != "" {
			f.SetEndText(row.End, loc)
		}

		saved, err := s.Submit(ctx, f, rec)
		if err != nil {
			reason := lesson.Reason(err)
			if reason == "" {
				reason = err.Error()
			}
			res.Rejected = append(res.Rejected, sheet.RowError{Line: row.Line, Reason: reason})
			continue
		}
		res.Created = append(res.Created, saved.ID)
	}

	metrics.RecordImportedRows("created", len(res.Created))
	metrics.RecordImportedRows("rejected", len(res.Rejected))
	s.logger.Info(ctx, "import finished",
		logger.Int("created", len(res.Created)),
		logger.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
