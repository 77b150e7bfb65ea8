package attendance

import (
	"context"
	"errors"
	"time"

	"attendance/internal/logger"
	"attendance/internal/models"
	"attendance/internal/remote"
	"attendance/internal/repository"
)

// maxBackoffShift caps the exponential backoff at interval * 2^5.
const maxBackoffShift = 5

// Deliverer is the slice of the backend client the sync worker needs.
type Deliverer interface {
	LogTimeIn(ctx context.Context, entry models.AttendanceLogEntry) error
	LogTimeOut(ctx context.Context, entry models.AttendanceLogEntry) error
	Ping(ctx context.Context) bool
}

// Syncer drains the attendance log queue to the backend in batches. Entries
// stay queued across restarts and network outages; the uid makes redelivery
// safe on the backend side.
type Syncer struct {
	repo      repository.LogRepository
	client    Deliverer
	log       *logger.Logger
	interval  time.Duration
	batchSize int
	retention time.Duration

	failures int
}

func NewSyncer(repo repository.LogRepository, client Deliverer, log *logger.Logger, interval time.Duration, batchSize int, retention time.Duration) *Syncer {
	return &Syncer{
		repo:      repo,
		client:    client,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		retention: retention,
	}
}

// Run drains the queue on an interval until the context ends. Consecutive
// failed cycles stretch the interval exponentially so an extended outage
// does not hammer the backend.
func (s *Syncer) Run(ctx context.Context) {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		synced, err := s.SyncOnce(ctx)
		if err != nil {
			if s.failures < maxBackoffShift {
				s.failures++
			}
			s.log.Warning("Sync cycle failed (attempt backoff x%d): %v", 1<<s.failures, err)
		} else {
			if synced > 0 {
				s.log.Info("Synced %d attendance logs", synced)
			}
			s.failures = 0
		}

		timer.Reset(s.interval * (1 << s.failures))
	}
}

// SyncOnce attempts one drain cycle and returns how many entries were
// delivered. An unreachable backend is an error so Run backs off.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	if !s.client.Ping(ctx) {
		return 0, &remote.NetworkError{Kind: remote.ErrConnRefused, Err: errUnreachable}
	}

	entries, err := s.repo.GetUnsynced(s.batchSize)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, entry := range entries {
		if err := s.deliver(ctx, entry); err != nil {
			if remote.IsNetworkError(err) {
				// Backend went away mid-batch, stop and retry later.
				return synced, err
			}
			// Rejected entries stay queued; log and move on so one bad
			// row cannot wedge the whole queue.
			s.log.Error("Backend rejected log %d (%s): %v", entry.ID, entry.Instructor, err)
			continue
		}
		if err := s.repo.MarkSynced(entry.ID); err != nil {
			return synced, err
		}
		synced++
	}

	if purged, err := s.repo.PurgeSynced(s.retention); err != nil {
		s.log.Warning("Retention purge failed: %v", err)
	} else if purged > 0 {
		s.log.Info("Purged %d synced logs past retention", purged)
	}

	return synced, nil
}

func (s *Syncer) deliver(ctx context.Context, entry models.AttendanceLogEntry) error {
	// The backend wants full ISO timestamps; the queue stores date and
	// clock separately.
	if entry.TimeOut != "" {
		entry.TimeOut = entry.Date + "T" + entry.TimeOut
		return s.client.LogTimeOut(ctx, entry)
	}
	entry.TimeIn = entry.Date + "T" + entry.TimeIn
	return s.client.LogTimeIn(ctx, entry)
}

var errUnreachable = errors.New("backend ping failed")
