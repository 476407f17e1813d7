package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/printforge/printforge-backend/pkg/config"
	"github.com/printforge/printforge-backend/pkg/db/models"
	"github.com/printforge/printforge-backend/pkg/logger"
	"github.com/printforge/printforge-backend/pkg/metrics"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 5
	defaultBaseBackoff = time.Second
	defaultMaxBackoff  = time.Minute
	pollMaxBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchDispatchable(tx *gorm.DB, limit int, now time.Time) ([]models.TransitionEvent, error)
	MarkDeliveredTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, deliveryErr error, nextAttemptAt time.Time) error
	MarkExhaustedTx(tx *gorm.DB, id uuid.UUID, deliveryErr error) error
	CountPending(ctx context.Context) (int64, error)
}

type deliveryRecorder interface {
	InsertTx(tx *gorm.DB, row models.WebhookDelivery) error
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Repository outboxRepository
	Deliveries deliveryRecorder
	Sender     Sender
	Metrics    *metrics.DispatchMetrics
}

// Service drains the transition outbox and delivers each event to the
// fulfillment partner. Rows come back head-of-line per order, so a batch
// never carries two events for the same order.
type Service struct {
	cfg          *config.Config
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	deliveries   deliveryRecorder
	sender       Sender
	metrics      *metrics.DispatchMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	baseBackoff  time.Duration
	maxBackoff   time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Deliveries == nil {
		return nil, errors.New("delivery recorder is required")
	}
	if params.Sender == nil {
		return nil, errors.New("sender is required")
	}

	batch := params.Config.Dispatch.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Dispatch.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Dispatch.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseBackoff := params.Config.Dispatch.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}
	maxBackoff := params.Config.Dispatch.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	return &Service{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		deliveries:   params.Deliveries,
		sender:       params.Sender,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
		baseBackoff:  baseBackoff,
		maxBackoff:   maxBackoff,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		s.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	interval := s.pollInterval
	backoff := interval

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "dispatch worker context canceled")
			return ctx.Err()
		default:
		}

		processed, err := s.processBatch(ctx)
		if err != nil {
			s.logg.Error(ctx, "dispatch batch error", err)
			backoff = nextBackoff(backoff, interval, pollMaxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}

		backoff = interval
		s.observeBacklog(ctx)

		if processed {
			continue
		}

		if err := s.sleep(ctx, withJitter(interval)); err != nil {
			return err
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	events, err := s.repo.FetchDispatchable(nil, s.batchSize, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	// The fetch returns at most one event per order, so delivering the whole
	// batch concurrently keeps orders parallel while each order stays serial.
	errs := make([]error, len(events))
	var wg sync.WaitGroup
	for i, event := range events {
		wg.Add(1)
		go func(i int, event models.TransitionEvent) {
			defer wg.Done()
			errs[i] = s.deliver(ctx, event)
		}(i, event)
	}
	wg.Wait()
	return true, errors.Join(errs...)
}

// deliver sends one event, appends the audit row, and advances the outbox
// status. The HTTP attempt happens outside any transaction; the audit row and
// the status update commit together afterwards, so an attempt that went out
// on the wire is recorded even when a later event in the batch fails.
func (s *Service) deliver(ctx context.Context, event models.TransitionEvent) error {
	attempt := event.AttemptCount + 1
	start := time.Now()
	result, sendErr := s.sender.Send(ctx, string(event.EventType), event.Nonce, event.Payload)
	duration := time.Since(start)

	success := sendErr == nil && result.StatusCode >= 200 && result.StatusCode < 300
	s.metrics.ObserveAttempt(string(event.EventType), success, duration)

	row := models.WebhookDelivery{
		TransitionID: event.ID,
		OrderID:      event.OrderID,
		EventType:    event.EventType,
		Endpoint:     s.sender.Endpoint(),
		Nonce:        event.Nonce,
		Payload:      event.Payload,
		Attempt:      attempt,
		Success:      success,
	}
	if result != nil {
		row.ResponseStatus = &result.StatusCode
		if result.Body != "" {
			body := result.Body
			row.ResponseBody = &body
		}
	}

	var deliveryErr error
	if !success {
		deliveryErr = sendErr
		if deliveryErr == nil {
			deliveryErr = fmt.Errorf("endpoint returned status %d", result.StatusCode)
		}
	}
	exhausted := !success && attempt >= s.maxAttempts

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.deliveries.InsertTx(tx, row); err != nil {
			return fmt.Errorf("record delivery %s: %w", event.ID, err)
		}
		switch {
		case success:
			if err := s.repo.MarkDeliveredTx(tx, event.ID, time.Now().UTC()); err != nil {
				return fmt.Errorf("mark delivered %s: %w", event.ID, err)
			}
		case exhausted:
			if err := s.repo.MarkExhaustedTx(tx, event.ID, deliveryErr); err != nil {
				return fmt.Errorf("mark exhausted %s: %w", event.ID, err)
			}
		default:
			nextAttemptAt := time.Now().UTC().Add(backoffFor(attempt, s.baseBackoff, s.maxBackoff))
			if err := s.repo.MarkFailedTx(tx, event.ID, deliveryErr, nextAttemptAt); err != nil {
				return fmt.Errorf("mark failure %s: %w", event.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fields := s.eventFields(event, attempt)
	switch {
	case success:
		s.logg.Info(s.logg.WithFields(ctx, fields), "transition event delivered")
	case exhausted:
		s.metrics.IncExhausted()
		logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", deliveryErr.Error())
		s.logg.Warn(logCtx, "transition event delivery exhausted")
	default:
		logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", deliveryErr.Error())
		s.logg.Warn(logCtx, "transition event delivery failed")
	}
	return nil
}

func (s *Service) observeBacklog(ctx context.Context) {
	n, err := s.repo.CountPending(ctx)
	if err != nil {
		return
	}
	s.metrics.SetPending(int(n))
}

func (s *Service) eventFields(event models.TransitionEvent, attempt int) map[string]any {
	return map[string]any{
		"transition_id": event.ID.String(),
		"order_id":      event.OrderID.String(),
		"event_type":    event.EventType,
		"nonce":         event.Nonce,
		"attempt":       attempt,
	}
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffFor doubles the delay per completed attempt, capped at max.
func backoffFor(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
