package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docguard/internal/domain"
	"docguard/internal/repository"
)

// ActivityRecorder registra eventos de la bitácora de forma asíncrona
// para no bloquear el camino de los requests.
type ActivityRecorder struct {
	logger *zap.Logger
	repo   repository.ActivityRepository
	ch     chan domain.ActivityEntry
	wg     sync.WaitGroup
	once   sync.Once
}

func NewActivityRecorder(logger *zap.Logger, repo repository.ActivityRepository, buffer int) *ActivityRecorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &ActivityRecorder{
		logger: logger,
		repo:   repo,
		ch:     make(chan domain.ActivityEntry, buffer),
	}
}

// Start lanza el escritor en segundo plano hasta que el contexto se cancele.
func (r *ActivityRecorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case entry, ok := <-r.ch:
				if !ok {
					return
				}
				r.write(entry)
			case <-ctx.Done():
				r.drain()
				return
			}
		}
	}()
}

// Record encola un evento; si el buffer está lleno el evento se descarta con warning.
func (r *ActivityRecorder) Record(entry domain.ActivityEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	select {
	case r.ch <- entry:
	default:
		if r.logger != nil {
			r.logger.Warn("activity buffer full, dropping event",
				zap.String("action", string(entry.Action)),
				zap.String("user_id", entry.UserID),
			)
		}
	}
}

// Stop cierra el canal y espera a que se escriban los eventos pendientes.
func (r *ActivityRecorder) Stop() {
	r.once.Do(func() {
		close(r.ch)
	})
	r.wg.Wait()
}

func (r *ActivityRecorder) drain() {
	for {
		select {
		case entry, ok := <-r.ch:
			if !ok {
				return
			}
			r.write(entry)
		default:
			return
		}
	}
}

func (r *ActivityRecorder) write(entry domain.ActivityEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.repo.Insert(ctx, entry); err != nil && r.logger != nil {
		r.logger.Warn("insert activity entry failed", zap.Error(err))
	}
}
