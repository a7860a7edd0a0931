// Package service orchestrates the case lifecycle: intake, asynchronous
// decisioning, lookup and aggregate stats.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"credence/internal/cases/metrics"
	"credence/internal/cases/models"
	"credence/internal/cases/ports"
	"credence/internal/definitions"
	"credence/internal/rules"
	"credence/internal/tier"
	id "credence/pkg/domain"
	dErrors "credence/pkg/domain-errors"
)

const defaultCacheTTL = 5 * time.Minute

// Service owns cases end to end. Intake is synchronous; decisioning runs in
// a background goroutine per case, with the sweep as the retry path for
// anything that never left pending.
type Service struct {
	store     ports.Store
	cache     ports.Cache
	publisher ports.EventPublisher
	provider  *definitions.Provider
	engine    *rules.Engine
	resolver  *tier.Resolver
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	cacheTTL  time.Duration
	async     bool
	newCaseID func() id.CaseID
}

// Option configures optional service collaborators.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCache adds a read-through cache for case lookups.
func WithCache(cache ports.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(publisher ports.EventPublisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

// WithCacheTTL overrides how long terminal cases stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSynchronousProcessing makes Check process the case before returning.
// Tests and the sweep use it; the HTTP path stays asynchronous.
func WithSynchronousProcessing() Option {
	return func(s *Service) { s.async = false }
}

// NewService builds the case service.
func NewService(store ports.Store, provider *definitions.Provider, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if provider == nil {
		return nil, errors.New("definitions provider is required")
	}

	s := &Service{
		store:     store,
		publisher: ports.NopPublisher{},
		provider:  provider,
		resolver:  tier.NewResolver(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:    otel.Tracer("credence/cases"),
		now:       time.Now,
		cacheTTL:  defaultCacheTTL,
		async:     true,
		newCaseID: id.NewCaseID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = rules.NewEngine(rules.WithLogger(s.logger))
	return s, nil
}

// Check opens a case and schedules it for processing.
func (s *Service) Check(ctx context.Context, req *models.CheckRequest) (*models.CheckResponse, error) {
	userID, caseType, err := req.Validate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := &models.Case{
		ID:        s.newCaseID(),
		UserID:    userID,
		Type:      caseType,
		Status:    models.StatusPending,
		Inputs:    inputsFromRequest(req),
		Metadata:  req.Metadata,
		CreatedBy: id.ActorID(req.ActorID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if req.WorkflowID != "" {
		c.Metadata["workflow_id"] = req.WorkflowID
	}
	if req.ModelID != "" {
		c.Metadata["model_id"] = req.ModelID
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveCaseOpened(string(caseType))
	}
	s.logger.Info("case opened",
		"case_id", c.ID,
		"user_id", c.UserID,
		"type", c.Type,
	)

	if s.async {
		// Processing outlives the request; only cancellation is detached.
		go s.Process(context.WithoutCancel(ctx), c.ID)
	} else if err := s.Process(ctx, c.ID); err != nil {
		return nil, err
	}

	return &models.CheckResponse{
		CaseID:    c.ID.String(),
		Status:    string(c.Status),
		CreatedAt: c.CreatedAt,
	}, nil
}

// Get returns a case scoped to its owner. A case belonging to another user
// is reported as not found rather than forbidden, so case IDs leak nothing.
func (s *Service) Get(ctx context.Context, userID id.UserID, caseID id.CaseID) (*models.Case, error) {
	if s.cache != nil {
		cached, err := s.cache.GetCase(ctx, caseID)
		if err != nil {
			s.logger.Warn("case cache read failed", "case_id", caseID, "error", err)
		}
		if cached != nil {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return s.authorize(cached, userID)
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}

	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && c.Status.IsTerminal() {
		if err := s.cache.SetCase(ctx, c, s.cacheTTL); err != nil {
			s.logger.Warn("case cache write failed", "case_id", caseID, "error", err)
		}
	}
	return s.authorize(c, userID)
}

// Stats returns aggregate case counters.
func (s *Service) Stats(ctx context.Context) (*models.Stats, error) {
	return s.store.Stats(ctx)
}

func (s *Service) authorize(c *models.Case, userID id.UserID) (*models.Case, error) {
	if c.UserID != userID {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "case %s not found", c.ID)
	}
	return c, nil
}

func (s *Service) publish(ctx context.Context, kind string, c *models.Case, payload map[string]any) {
	event := ports.Event{
		Kind:       kind,
		CaseID:     c.ID.String(),
		UserID:     c.UserID.String(),
		OccurredAt: s.now(),
		Payload:    payload,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("case event publish failed",
			"kind", kind,
			"case_id", c.ID,
			"error", err,
		)
	}
}

func inputsFromRequest(req *models.CheckRequest) rules.Inputs {
	userData := req.UserData
	if userData == nil {
		userData = map[string]any{}
	}
	in := rules.Inputs{UserData: userData}
	in.DocumentVerification = subRecord(userData, "document_verification")
	in.IdentityVerification = subRecord(userData, "identity_verification")
	in.RiskAssessment = subRecord(userData, "risk_assessment")
	return in
}

func subRecord(userData map[string]any, key string) map[string]any {
	if nested, ok := userData[key].(map[string]any); ok {
		return nested
	}
	return map[string]any{}
}
