// Package aggregator serves position environment requests: it validates
// input, answers from the cache when it can, otherwise fans out through the
// orchestrator, and records every request in the request log.
package aggregator

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/posenv/internal/cache"
	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/fingerprint"
	"github.com/aristath/posenv/internal/requestlog"
	"github.com/aristath/posenv/internal/status"
	"github.com/aristath/posenv/internal/validation"
)

const (
	methodGet  = "GET"
	methodPost = "POST"

	saveTimeout = 5 * time.Second
)

// Orchestrator runs a request's sections.
type Orchestrator interface {
	RunAll(ctx context.Context, req domain.Request) (domain.OrchestrationResult, error)
}

// Inbound is a request as received by the transport.
type Inbound struct {
	Method  string
	Query   url.Values
	Body    []byte
	BaseURL string // scheme://host/path, used for the replay command
}

// Service handles position environment requests.
type Service struct {
	validator *validation.Validator
	orch      Orchestrator
	cache     *cache.Cache[domain.OrchestrationResult]
	ttl       cache.TTLPolicy
	store     requestlog.Store
	status    *status.Registry
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates the request service.
func NewService(
	validator *validation.Validator,
	orch Orchestrator,
	c *cache.Cache[domain.OrchestrationResult],
	ttl cache.TTLPolicy,
	store requestlog.Store,
	reg *status.Registry,
	log zerolog.Logger,
) *Service {
	return &Service{
		validator: validator,
		orch:      orch,
		cache:     c,
		ttl:       ttl,
		store:     store,
		status:    reg,
		log:       log.With().Str("component", "aggregator").Logger(),
		now:       time.Now,
	}
}

// Fetch returns the aggregate result for a validated request. With useCache
// set, a fresh cached result is returned without running any section and a
// computed result is written back. cached reports a cache hit.
func (s *Service) Fetch(ctx context.Context, req domain.Request, useCache bool) (result domain.OrchestrationResult, cached bool, err error) {
	var key string
	var ttl time.Duration
	if useCache {
		key, err = fingerprint.Build(req)
		if err != nil {
			return nil, false, err
		}
		ttl = s.ttl.For(req.SectionNames())

		if hit, ok := s.cache.Get(key, ttl); ok {
			return hit.Clone(), true, nil
		}
	}

	result, err = s.orch.RunAll(ctx, req)
	if err != nil {
		return nil, false, err
	}

	// A caller that gave up leaves every section failed with its own
	// cancellation; that result must not be served to anyone else.
	if useCache && ctx.Err() == nil {
		s.cache.Set(key, result.Clone(), ttl)
	}
	return result, false, nil
}

// Handle serves one inbound request. GET requests use the cache, POST
// requests always recompute. The envelope is always returned and has been
// handed to the request log; the error is non-nil when the request itself
// was rejected or could not be served.
func (s *Service) Handle(ctx context.Context, in Inbound) (*Envelope, error) {
	start := s.now()
	env := &Envelope{
		RequestID:   uuid.NewString(),
		Timestamp:   start.UTC(),
		RequestData: newRequestData(in),
	}

	err := s.serve(ctx, in, env)
	if err != nil {
		env.Error = true
		env.ErrorStack = err.Error()
		env.ResponseData = domain.OrchestrationResult{}
	}

	env.DurationMs = s.now().Sub(start).Milliseconds()
	env.ServerStatus = s.status.ServerStatus()

	s.save(ctx, env)

	event := s.log.Info()
	if err != nil {
		event = s.log.Warn().Err(err)
	}
	event.
		Str("request_id", env.RequestID).
		Str("method", in.Method).
		Bool("cached", env.Cached).
		Int64("duration_ms", env.DurationMs).
		Msg("Request handled")

	return env, err
}

func (s *Service) serve(ctx context.Context, in Inbound, env *Envelope) error {
	var req domain.Request
	var err error
	switch in.Method {
	case methodGet:
		req, err = s.validator.FromQuery(in.Query)
	case methodPost:
		req, err = s.validator.FromJSON(in.Body)
	default:
		return fmt.Errorf("unsupported method %s", in.Method)
	}
	if err != nil {
		return err
	}

	env.CurlCommand = curlCommand(in)

	result, cached, err := s.Fetch(ctx, req, in.Method == methodGet)
	if err != nil {
		return err
	}
	env.ResponseData = result
	env.Cached = cached
	return nil
}

// save writes the envelope to the request log. A client disconnect does not
// cancel the write.
func (s *Service) save(ctx context.Context, env *Envelope) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	rec := &requestlog.Record{
		RequestID:    env.RequestID,
		Timestamp:    env.Timestamp,
		Method:       env.RequestData.Method,
		Cached:       env.Cached,
		DurationMs:   env.DurationMs,
		ServerStatus: string(env.ServerStatus),
		CurlCommand:  env.CurlCommand,
		RequestData:  env.RequestData,
		ResponseData: env.ResponseData,
		ErrorStack:   env.ErrorStack,
	}
	if err := s.store.Save(saveCtx, rec); err != nil {
		s.log.Error().Err(err).Str("request_id", env.RequestID).Msg("Failed to store request")
		env.StorageError = err.Error()
	}
}

// Replay returns a stored request record.
func (s *Service) Replay(ctx context.Context, requestID string) (*requestlog.Record, error) {
	return s.store.Load(ctx, requestID)
}
