package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/repository"
)

// ReportService arma estadísticas agregadas y exportaciones para administradores.
type ReportService struct {
	logger   *zap.Logger
	reports  repository.ReportRepository
	activity repository.ActivityRepository
	users    repository.UserRepository
}

var ErrUnknownExportKind = errors.New("unknown export kind")

func NewReportService(logger *zap.Logger, reports repository.ReportRepository, activity repository.ActivityRepository, users repository.UserRepository) *ReportService {
	return &ReportService{
		logger:   logger,
		reports:  reports,
		activity: activity,
		users:    users,
	}
}

func (s *ReportService) Stats(ctx context.Context) (domain.ReportStats, error) {
	var stats domain.ReportStats
	var err error

	if stats.TotalDocuments, err = s.reports.CountDocuments(ctx); err != nil {
		return domain.ReportStats{}, err
	}
	if stats.DocumentsWithSensitiveData, err = s.reports.CountDocumentsWithFindings(ctx); err != nil {
		return domain.ReportStats{}, err
	}
	if stats.TotalUsers, err = s.users.Count(ctx); err != nil {
		return domain.ReportStats{}, err
	}

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if stats.UploadsThisMonth, err = s.reports.CountUploadsSince(ctx, monthStart); err != nil {
		return domain.ReportStats{}, err
	}
	if stats.SensitiveDataByType, err = s.reports.FindingsByType(ctx); err != nil {
		return domain.ReportStats{}, err
	}
	if stats.DocumentsByStatus, err = s.reports.DocumentsByStatus(ctx); err != nil {
		return domain.ReportStats{}, err
	}
	if stats.UploadTrend, err = s.reports.UploadTrend(ctx, 30); err != nil {
		return domain.ReportStats{}, err
	}
	if stats.TopUsers, err = s.reports.TopUsers(ctx, 5); err != nil {
		return domain.ReportStats{}, err
	}
	return stats, nil
}

func (s *ReportService) ActivityLogs(ctx context.Context, filters domain.ReportFilters, page, limit int) ([]domain.ActivityEntry, int, error) {
	return s.activity.List(ctx, filters, page, limit)
}

// ExportCSV serializa estadísticas o bitácora como CSV descargable.
func (s *ReportService) ExportCSV(ctx context.Context, kind string, filters domain.ReportFilters) ([]byte, error) {
	switch kind {
	case "stats":
		return s.exportStatsCSV(ctx)
	case "activity":
		return s.exportActivityCSV(ctx, filters)
	default:
		return nil, ErrUnknownExportKind
	}
}

func (s *ReportService) exportStatsCSV(ctx context.Context) ([]byte, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	records := [][]string{
		{"metric", "value"},
		{"total_documents", strconv.Itoa(stats.TotalDocuments)},
		{"documents_with_sensitive_data", strconv.Itoa(stats.DocumentsWithSensitiveData)},
		{"total_users", strconv.Itoa(stats.TotalUsers)},
		{"uploads_this_month", strconv.Itoa(stats.UploadsThisMonth)},
	}
	for kind, n := range stats.SensitiveDataByType {
		records = append(records, []string{"findings_" + kind, strconv.Itoa(n)})
	}
	for status, n := range stats.DocumentsByStatus {
		records = append(records, []string{"documents_" + string(status), strconv.Itoa(n)})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func (s *ReportService) exportActivityCSV(ctx context.Context, filters domain.ReportFilters) ([]byte, error) {
	entries, _, err := s.activity.List(ctx, filters, 1, 200)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"timestamp", "user", "email", "action", "document", "details", "ip", "user_agent"}); err != nil {
		return nil, err
	}
	for _, e := range entries {
		record := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			e.UserName,
			e.UserEmail,
			string(e.Action),
			e.DocumentName,
			e.Details,
			e.IPAddress,
			e.UserAgent,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}
