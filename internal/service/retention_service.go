package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/config"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/entity"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/pkg/mailer"
	"coaching-rag-be/internal/repository/specification"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/pkg/events"
	"coaching-rag-be/pkg/lock"

	"github.com/google/uuid"
)

const (
	retentionModule  = "RETENTION"
	retentionLockKey = "retention-sweep"
	previewLimit     = 10
	dayDuration      = 24 * time.Hour
)

type IRetentionService interface {
	// Cleanup runs one sweep. On partial failure it returns the report together
	// with a *apperr.RetentionJobError.
	Cleanup(ctx context.Context, request *dto.CleanupRequest) (*dto.CleanupResponse, error)
}

type retentionService struct {
	uowFactory unitofwork.RepositoryFactory
	locker     lock.Locker
	publisher  events.Publisher
	mailer     mailer.IEmailService
	logger     logger.ILogger
	cfg        config.RetentionConfig
	now        func() time.Time
}

// NewRetentionService wires the sweeper. publisher and mail may be nil.
func NewRetentionService(
	uowFactory unitofwork.RepositoryFactory,
	locker lock.Locker,
	publisher events.Publisher,
	mail mailer.IEmailService,
	log logger.ILogger,
	cfg config.RetentionConfig,
) IRetentionService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &retentionService{
		uowFactory: uowFactory,
		locker:     locker,
		publisher:  publisher,
		mailer:     mail,
		logger:     log,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *retentionService) resolveOptions(request *dto.CleanupRequest) dto.CleanupOptions {
	opts := dto.CleanupOptions{
		DaysOld:   s.cfg.DaysOld,
		BatchSize: s.cfg.BatchSize,
	}
	if request != nil {
		if request.DaysOld > 0 {
			opts.DaysOld = request.DaysOld
		}
		if request.BatchSize > 0 {
			opts.BatchSize = request.BatchSize
		}
		opts.DryRun = request.DryRun
		opts.Verbose = request.Verbose
	}
	if opts.DaysOld <= 0 {
		opts.DaysOld = 30
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return opts
}

func (s *retentionService) Cleanup(ctx context.Context, request *dto.CleanupRequest) (*dto.CleanupResponse, error) {
	opts := s.resolveOptions(request)
	now := s.now().UTC()
	cutoff := now.Add(-time.Duration(opts.DaysOld) * dayDuration)

	if !opts.DryRun {
		ttl := s.cfg.LockTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		release, err := s.locker.Acquire(ctx, retentionLockKey, ttl)
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				return nil, apperr.Conflict("a retention sweep is already running")
			}
			return nil, err
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				s.logger.Warn(retentionModule, "Failed to release sweep lock", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	found, err := uow.ConversationSessionRepository().Count(ctx, specification.LastMessageBefore{Cutoff: cutoff})
	if err != nil {
		return nil, err
	}

	response := &dto.CleanupResponse{
		Success:                true,
		Timestamp:              now,
		Options:                opts,
		ScheduledSessionsFound: int(found),
	}

	if opts.Verbose {
		preview, err := s.preview(ctx, now, cutoff, opts.DaysOld)
		if err != nil {
			return nil, err
		}
		response.Result.ScheduledPreview = preview
	}

	s.logger.Info(retentionModule, "Retention sweep started", map[string]interface{}{
		"days_old":   opts.DaysOld,
		"batch_size": opts.BatchSize,
		"dry_run":    opts.DryRun,
		"cutoff":     cutoff,
		"found":      found,
	})

	var jobErr error
	if opts.DryRun {
		response.Result.SessionsSelected = int(math.Min(float64(found), float64(opts.BatchSize*s.maxBatches())))
	} else {
		jobErr = s.sweep(ctx, cutoff, opts.BatchSize, &response.Result)
		if jobErr != nil {
			response.Success = false
		}
	}

	s.logger.Info(retentionModule, "Retention sweep finished", map[string]interface{}{
		"dry_run":            opts.DryRun,
		"sessions_deleted":   response.Result.SessionsDeleted,
		"messages_deleted":   response.Result.MessagesDeleted,
		"chunk_refs_deleted": response.Result.ChunkRefsDeleted,
		"failed":             len(response.Result.Failed),
	})

	s.announce(ctx, response)
	return response, jobErr
}

func (s *retentionService) maxBatches() int {
	if s.cfg.MaxBatches <= 0 {
		return 1
	}
	return s.cfg.MaxBatches
}

// sweep deletes expired sessions batch by batch. A failing session is skipped,
// recorded and excluded from later batches.
func (s *retentionService) sweep(ctx context.Context, cutoff time.Time, batchSize int, report *dto.CleanupReport) error {
	var failedIds []uuid.UUID
	var lastErr error

	for batch := 0; batch < s.maxBatches(); batch++ {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		sessions, err := uow.ConversationSessionRepository().FindAll(ctx,
			specification.LastMessageBefore{Cutoff: cutoff},
			specification.ExcludeIDs{IDs: failedIds},
			specification.OrderBy{Field: "last_message_at"},
			specification.OrderBy{Field: "id"},
			specification.Pagination{Limit: batchSize},
		)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			break
		}

		report.BatchesRun++
		report.SessionsSelected += len(sessions)

		for _, session := range sessions {
			purged, deleted, err := s.deleteSession(ctx, session.Id, cutoff)
			if err != nil {
				lastErr = err
				failedIds = append(failedIds, session.Id)
				report.Failed = append(report.Failed, dto.FailedSession{SessionId: session.Id, Error: err.Error()})
				s.logger.Error(retentionModule, "Failed to delete session, skipping", map[string]interface{}{
					"session_id": session.Id.String(),
					"error":      err.Error(),
				})
				continue
			}
			if !deleted {
				continue
			}
			report.SessionsDeleted++
			report.MessagesDeleted += int(purged.messages)
			report.ChunkRefsDeleted += int(purged.chunkRefs)
		}

		if len(sessions) < batchSize {
			break
		}
	}

	if len(report.Failed) > 0 {
		return &apperr.RetentionJobError{
			Selected:  report.SessionsSelected,
			Succeeded: report.SessionsDeleted,
			Failed:    len(report.Failed),
			Err:       lastErr,
		}
	}
	return nil
}

// deleteSession purges one session in its own transaction. It reports false when
// the session gained a message after selection.
func (s *retentionService) deleteSession(ctx context.Context, sessionId uuid.UUID, cutoff time.Time) (purgeCounts, bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return purgeCounts{}, false, err
	}
	defer uow.Rollback()

	session, err := uow.ConversationSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return purgeCounts{}, false, err
	}
	if session == nil || !session.LastMessageAt.Before(cutoff) {
		return purgeCounts{}, false, nil
	}

	purged, err := purgeSession(ctx, uow, sessionId)
	if err != nil {
		return purgeCounts{}, false, err
	}
	if err := uow.Commit(); err != nil {
		return purgeCounts{}, false, err
	}
	return purged, true, nil
}

// preview lists up to ten sessions: expired ones first, then those expiring
// within the configured preview window.
func (s *retentionService) preview(ctx context.Context, now, cutoff time.Time, daysOld int) ([]dto.ScheduledSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.ConversationSessionRepository()

	expired, err := repo.FindExpired(ctx, cutoff, previewLimit)
	if err != nil {
		return nil, err
	}

	preview := make([]dto.ScheduledSession, 0, previewLimit)
	for _, session := range expired {
		preview = append(preview, scheduledSession(session, now, daysOld))
	}

	if len(preview) < previewLimit && s.cfg.PreviewWindow > 0 {
		horizon := cutoff.Add(time.Duration(s.cfg.PreviewWindow) * dayDuration)
		upcoming, err := repo.FindAll(ctx,
			specification.LastMessageSince{From: cutoff},
			specification.LastMessageBefore{Cutoff: horizon},
			specification.OrderBy{Field: "last_message_at"},
			specification.OrderBy{Field: "id"},
			specification.Pagination{Limit: previewLimit - len(preview)},
		)
		if err != nil {
			return nil, err
		}
		for _, session := range upcoming {
			preview = append(preview, scheduledSession(session, now, daysOld))
		}
	}
	return preview, nil
}

func scheduledSession(session *entity.ConversationSession, now time.Time, daysOld int) dto.ScheduledSession {
	deleteAt := session.LastMessageAt.Add(time.Duration(daysOld) * dayDuration)
	days := 0
	if deleteAt.After(now) {
		days = int(math.Ceil(deleteAt.Sub(now).Hours() / 24))
	}
	return dto.ScheduledSession{
		SessionId:         session.Id,
		Title:             session.Title,
		DaysUntilDeletion: days,
	}
}

// announce publishes the audit event and mails operators. Neither can fail the sweep.
func (s *retentionService) announce(ctx context.Context, response *dto.CleanupResponse) {
	if s.publisher != nil {
		event := events.NewRetentionSweepCompleted(map[string]interface{}{
			"success":                  response.Success,
			"dry_run":                  response.Options.DryRun,
			"days_old":                 response.Options.DaysOld,
			"scheduled_sessions_found": response.ScheduledSessionsFound,
			"sessions_deleted":         response.Result.SessionsDeleted,
			"messages_deleted":         response.Result.MessagesDeleted,
			"chunk_refs_deleted":       response.Result.ChunkRefsDeleted,
			"failed":                   len(response.Result.Failed),
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn(retentionModule, "Failed to publish audit event", map[string]interface{}{"error": err.Error()})
		}
	}

	if s.mailer != nil && !response.Options.DryRun {
		if err := s.mailer.SendRetentionReport(response); err != nil {
			s.logger.Warn(retentionModule, "Failed to mail retention report", map[string]interface{}{"error": err.Error()})
		}
	}
}

// RetentionScheduler runs the sweeper on a fixed interval with default options.
type RetentionScheduler struct {
	service  IRetentionService
	interval time.Duration
	logger   logger.ILogger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewRetentionScheduler(service IRetentionService, interval time.Duration, log logger.ILogger) *RetentionScheduler {
	return &RetentionScheduler{
		service:  service,
		interval: interval,
		logger:   log,
	}
}

// Start launches the loop in the background. A non-positive interval disables it.
func (s *RetentionScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	s.logger.Info(retentionModule, "Retention scheduler started", map[string]interface{}{"interval": s.interval.String()})
}

// Stop waits for an in-flight sweep to finish.
func (s *RetentionScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *RetentionScheduler) runOnce(ctx context.Context) {
	_, err := s.service.Cleanup(ctx, &dto.CleanupRequest{})
	if err == nil {
		return
	}
	if apperr.Is(err, apperr.CodeConflict) {
		s.logger.Info(retentionModule, "Scheduled sweep skipped, another sweep holds the lock", nil)
		return
	}
	s.logger.Error(retentionModule, "Scheduled sweep failed", map[string]interface{}{"error": err.Error()})
}
