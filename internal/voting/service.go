package voting

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/emilythestrangee/forum/backend/internal/apperrors"
	"github.com/emilythestrangee/forum/backend/internal/metrics"
	"github.com/emilythestrangee/forum/backend/internal/platform/retry"
)

// Outcome describes which ledger transition a vote took.
type Outcome string

const (
	Created   Outcome = "created"
	Flipped   Outcome = "flipped"
	Unchanged Outcome = "unchanged"
)

// Result is the state after a vote was applied. Score is the target's
// persisted score as read inside the applying transaction.
type Result struct {
	Target  Target
	Value   Value
	Outcome Outcome
	Delta   int
	Score   int
}

// Store persists the ledger and target scores. Apply must run the vote
// upsert and the score increment atomically and return ErrTargetNotFound,
// ErrConflict or an unclassified error.
type Store interface {
	Apply(ctx context.Context, userID int, target Target, value Value) (Result, error)
}

// ScoreCache mirrors target scores outside the primary store. Changes arrive
// as deltas so that concurrent updates commute regardless of delivery order.
type ScoreCache interface {
	IncrScore(ctx context.Context, target Target, delta int) error
}

// Event is emitted after every vote that changed the ledger.
type Event struct {
	UserID     int       `json:"user_id"`
	TargetType string    `json:"target_type"`
	TargetID   int       `json:"target_id"`
	Value      int       `json:"value"`
	Delta      int       `json:"delta"`
	Score      int       `json:"score"`
	Outcome    Outcome   `json:"outcome"`
	AppliedAt  time.Time `json:"applied_at"`
}

type EventPublisher interface {
	PublishVote(ctx context.Context, ev Event) error
}

var DefaultRetryPolicy = retry.Policy{
	MaxAttempts:    5,
	InitialBackoff: 10 * time.Millisecond,
	MaxBackoff:     200 * time.Millisecond,
}

type Service struct {
	store     Store
	cache     ScoreCache
	publisher EventPublisher
	metrics   *metrics.VoteMetrics
	policy    retry.Policy
	logger    log.FieldLogger
	now       func() time.Time
}

type Option func(*Service)

func WithScoreCache(c ScoreCache) Option        { return func(s *Service) { s.cache = c } }
func WithPublisher(p EventPublisher) Option     { return func(s *Service) { s.publisher = p } }
func WithMetrics(m *metrics.VoteMetrics) Option { return func(s *Service) { s.metrics = m } }
func WithRetryPolicy(p retry.Policy) Option     { return func(s *Service) { s.policy = p } }
func WithLogger(l log.FieldLogger) Option       { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option     { return func(s *Service) { s.now = now } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: DefaultRetryPolicy,
		logger: log.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyVote records userID's vote on target and returns the target's
// updated score. A repeat of the current vote is a no-op.
func (s *Service) ApplyVote(ctx context.Context, userID int, target Target, value int) (Result, error) {
	start := time.Now()

	res, err := s.apply(ctx, userID, target, value)
	if err != nil {
		s.metrics.ObserveFailure(string(apperrors.As(err).Type))
		return Result{}, err
	}
	s.metrics.ObserveApplied(target.Kind().String(), string(res.Outcome), time.Since(start))

	if res.Outcome != Unchanged {
		s.afterApply(ctx, userID, res)
	}
	return res, nil
}

func (s *Service) apply(ctx context.Context, userID int, target Target, value int) (Result, error) {
	if userID <= 0 {
		return Result{}, ErrUnauthenticated
	}
	if target.IsZero() {
		return Result{}, ErrUnknownTarget
	}
	v, err := NewValue(value)
	if err != nil {
		return Result{}, err
	}

	policy := s.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		s.metrics.ObserveRetry()
		s.logger.WithFields(log.Fields{
			"target":  target.String(),
			"user_id": userID,
			"attempt": attempt,
			"backoff": backoff,
		}).WithError(err).Debug("Retrying vote after write conflict")
	}

	res, err := retry.Do(ctx, policy, classify, func() (Result, error) {
		return s.store.Apply(ctx, userID, target, v)
	})
	if err == nil {
		return res, nil
	}

	var perm *retry.PermanentError
	if errors.As(err, &perm) {
		return Result{}, perm.Err
	}
	if errors.Is(err, ErrConflict) {
		return Result{}, apperrors.Unavailable("vote could not be applied, try again", err)
	}
	return Result{}, err
}

func classify(err error) retry.Action {
	if errors.Is(err, ErrConflict) {
		return retry.Retry
	}
	return retry.Stop
}

// afterApply propagates a committed change. Failures here are logged only;
// the ledger is already authoritative.
func (s *Service) afterApply(ctx context.Context, userID int, res Result) {
	entry := s.logger.WithFields(log.Fields{
		"target":  res.Target.String(),
		"user_id": userID,
		"outcome": res.Outcome,
		"score":   res.Score,
	})

	if s.cache != nil && res.Delta != 0 {
		if err := s.cache.IncrScore(ctx, res.Target, res.Delta); err != nil {
			entry.WithError(err).Warn("Failed to update score cache")
		}
	}

	if s.publisher != nil {
		ev := Event{
			UserID:     userID,
			TargetType: res.Target.Kind().String(),
			TargetID:   res.Target.ID(),
			Value:      int(res.Value),
			Delta:      res.Delta,
			Score:      res.Score,
			Outcome:    res.Outcome,
			AppliedAt:  s.now().UTC(),
		}
		if err := s.publisher.PublishVote(ctx, ev); err != nil {
			entry.WithError(err).Warn("Failed to publish vote event")
		}
	}

	entry.Debug("Vote applied")
}
