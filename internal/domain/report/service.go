package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Summary describes a registered report.
type Summary struct {
	ID          string      `json:"id"`
	UUID        string      `json:"uuid"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Parameters  []Parameter `json:"parameters"`
}

type entry struct {
	mgr Manager
	def *Definition
}

type Service struct {
	eval    *Evaluator
	cache   Cache
	logger  zerolog.Logger
	entries []*entry
	byKey   map[string]*entry
}

// NewService constructs every manager's definition up front; a manager that
// fails to construct is a configuration error.
func NewService(eval *Evaluator, cache Cache, logger zerolog.Logger, managers ...Manager) (*Service, error) {
	if cache == nil {
		cache = NopCache{}
	}
	s := &Service{
		eval:   eval,
		cache:  cache,
		logger: logger.With().Str("component", "report").Logger(),
		byKey:  make(map[string]*entry),
	}
	for _, m := range managers {
		def, err := m.Construct()
		if err != nil {
			return nil, fmt.Errorf("construct report %s: %w", m.ID(), err)
		}
		e := &entry{mgr: m, def: def}
		if _, dup := s.byKey[m.ID()]; dup {
			return nil, fmt.Errorf("duplicate report id %s", m.ID())
		}
		s.byKey[m.ID()] = e
		s.byKey[m.UUID().String()] = e
		s.entries = append(s.entries, e)
		s.logger.Debug().Str("report", m.ID()).Int("data_sets", len(def.DataSets)).Msg("report registered")
	}
	return s, nil
}

func (s *Service) List() []Summary {
	out := make([]Summary, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, summarize(e.mgr))
	}
	return out
}

func summarize(m Manager) Summary {
	return Summary{
		ID:          m.ID(),
		UUID:        m.UUID().String(),
		Name:        m.Name(),
		Description: m.Description(),
		Version:     m.Version(),
		Parameters:  m.Parameters(),
	}
}

// Get looks a report up by slug or UUID.
func (s *Service) Get(id string) (*Definition, error) {
	e, ok := s.byKey[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id)
	}
	return e.def, nil
}

func (s *Service) Run(ctx context.Context, id string, params map[string]string) (*Data, error) {
	def, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data, err := s.eval.Evaluate(ctx, def, params)
	elapsed := time.Since(start)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrMissingParameter) || errors.Is(err, ErrInvalidParameter) {
			outcome = "invalid"
		}
		EvaluationsTotal.WithLabelValues(def.Name, outcome).Inc()
		s.logger.Error().Err(err).Str("report", def.UUID.String()).Msg("report evaluation failed")
		return nil, err
	}

	EvaluationsTotal.WithLabelValues(def.Name, "ok").Inc()
	EvaluationDuration.WithLabelValues(def.Name).Observe(elapsed.Seconds())

	rows := 0
	for _, ds := range data.DataSets {
		rows += len(ds.Rows)
	}
	s.logger.Info().
		Str("report", def.UUID.String()).
		Int("rows", rows).
		Dur("duration", elapsed).
		Msg("report evaluated")
	return data, nil
}

// Export evaluates the report and renders its CSV design, serving repeated
// requests for the same tenant and parameters from the cache. The boolean
// reports a cache hit.
func (s *Service) Export(ctx context.Context, id, tenant string, params map[string]string) ([]byte, bool, error) {
	def, err := s.Get(id)
	if err != nil {
		return nil, false, err
	}
	params = normalizeParameters(params)
	if err := ValidateParameters(def.Parameters, params); err != nil {
		return nil, false, err
	}

	key := CacheKey(tenant, def.UUID.String(), params)
	if b, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache read failed")
	} else if ok {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		s.logger.Debug().Str("report", def.UUID.String()).Bool("cache_hit", true).Msg("report exported")
		return b, true, nil
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()

	data, err := s.Run(ctx, id, params)
	if err != nil {
		return nil, false, err
	}
	b, err := RenderCSV(data)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, key, b); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("report cache write failed")
	}
	return b, false, nil
}
