package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/repository"
	"docguard/internal/scan"
)

// ScanMetrics recibe contadores del pipeline de escaneo.
type ScanMetrics interface {
	RecordScanSuccess()
	RecordScanFailure()
	RecordSensitiveDetected()
}

// ScanDispatcher envía documentos al servicio de detección y persiste los hallazgos.
type ScanDispatcher struct {
	logger  *zap.Logger
	scanner scan.Client
	docs    repository.DocumentRepository
	metrics ScanMetrics
	jobs    chan string
	wg      sync.WaitGroup
	once    sync.Once
}

func NewScanDispatcher(logger *zap.Logger, scanner scan.Client, docs repository.DocumentRepository, metrics ScanMetrics) *ScanDispatcher {
	return &ScanDispatcher{
		logger:  logger,
		scanner: scanner,
		docs:    docs,
		metrics: metrics,
		jobs:    make(chan string, 64),
	}
}

// Start lanza el worker de escaneo hasta que el contexto se cancele.
func (d *ScanDispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case id, ok := <-d.jobs:
				if !ok {
					return
				}
				d.process(ctx, id)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Enqueue encola un documento; si la cola está llena se marca como error
// para que el usuario pueda reintentar la subida.
func (d *ScanDispatcher) Enqueue(documentID string) {
	select {
	case d.jobs <- documentID:
	default:
		if d.logger != nil {
			d.logger.Warn("scan queue full", zap.String("document_id", documentID))
		}
		now := time.Now().UTC()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = d.docs.UpdateStatus(ctx, documentID, domain.StatusError, &now)
	}
}

// Stop cierra la cola y espera al worker.
func (d *ScanDispatcher) Stop() {
	d.once.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *ScanDispatcher) process(ctx context.Context, documentID string) {
	doc, err := d.docs.GetByID(ctx, documentID)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("scan: load document failed", zap.Error(err), zap.String("document_id", documentID))
		}
		return
	}
	content, err := d.docs.GetContent(ctx, documentID)
	if err != nil {
		d.fail(ctx, documentID, err)
		return
	}

	result, err := d.scanner.Scan(ctx, scan.Request{
		DocumentID:  doc.ID,
		Name:        doc.Name,
		ContentType: doc.ContentType,
		Content:     content,
	})
	if err != nil {
		d.fail(ctx, documentID, err)
		return
	}

	findings := make([]domain.SensitiveFinding, 0, len(result.Findings))
	for _, f := range result.Findings {
		findings = append(findings, domain.SensitiveFinding{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Type:       f.Type,
			Content:    f.Content,
			Page:       f.Page,
			X:          f.X,
			Y:          f.Y,
			Width:      f.Width,
			Height:     f.Height,
			Confidence: f.Confidence,
			Severity:   f.Severity,
		})
	}
	if err := d.docs.ReplaceFindings(ctx, documentID, findings); err != nil {
		d.fail(ctx, documentID, err)
		return
	}

	status := domain.StatusCompleted
	if len(findings) > 0 {
		status = domain.StatusSensitiveDetected
		if d.metrics != nil {
			d.metrics.RecordSensitiveDetected()
		}
	}
	now := time.Now().UTC()
	if err := d.docs.UpdateStatus(ctx, documentID, status, &now); err != nil {
		if d.logger != nil {
			d.logger.Warn("scan: update status failed", zap.Error(err), zap.String("document_id", documentID))
		}
		return
	}
	if d.metrics != nil {
		d.metrics.RecordScanSuccess()
	}
	if d.logger != nil {
		d.logger.Info("scan completed",
			zap.String("document_id", documentID),
			zap.String("status", string(status)),
			zap.Int("findings", len(findings)),
		)
	}
}

func (d *ScanDispatcher) fail(ctx context.Context, documentID string, cause error) {
	if d.logger != nil {
		d.logger.Warn("scan failed", zap.Error(cause), zap.String("document_id", documentID))
	}
	if d.metrics != nil {
		d.metrics.RecordScanFailure()
	}
	now := time.Now().UTC()
	if err := d.docs.UpdateStatus(ctx, documentID, domain.StatusError, &now); err != nil && d.logger != nil {
		d.logger.Warn("scan: mark error failed", zap.Error(err), zap.String("document_id", documentID))
	}
}
