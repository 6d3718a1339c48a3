package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/labextract/internal/labextract"
	"github.com/ehr/labextract/internal/platform/auth"
	"github.com/ehr/labextract/internal/platform/cache"
	"github.com/ehr/labextract/internal/platform/metrics"
)

var (
	ErrNotFound      = errors.New("extraction not found")
	ErrEmptyDocument = errors.New("document text is empty")
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d documents", MaxBatchSize)
)

const (
	MaxBatchSize = 50

	// DetectThreshold is the lowest detection score that selects an engine
	// on its own. Below it the default engine is used.
	DetectThreshold = 0.5

	defaultConcurrency = 4
)

// ResultCache stores serialized results by key. Implemented by
// cache.ResultCache.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

type Service struct {
	registry      *labextract.Registry
	defaultEngine string
	repo          Repository
	cache         ResultCache
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	concurrency   int
}

// NewService returns a service over reg. defaultEngine must be registered.
func NewService(reg *labextract.Registry, defaultEngine string, repo Repository, logger zerolog.Logger) (*Service, error) {
	if _, err := reg.Get(defaultEngine); err != nil {
		return nil, fmt.Errorf("default engine: %w", err)
	}
	if repo == nil {
		repo = NewRepoMemory(DefaultMemoryCapacity)
	}
	return &Service{
		registry:      reg,
		defaultEngine: defaultEngine,
		repo:          repo,
		logger:        logger.With().Str("component", "extraction").Logger(),
		concurrency:   defaultConcurrency,
	}, nil
}

// SetCache attaches an optional result cache.
func (s *Service) SetCache(c ResultCache) {
	s.cache = c
}

// SetMetrics attaches optional Prometheus instrumentation.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetConcurrency bounds the number of documents ExtractBatch runs at once.
func (s *Service) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Extract runs an engine over req.Text and stores the result. The engine is
// req.EngineID when set, otherwise the best detection, otherwise the
// default engine. A blank document is not an error: it is stored as an
// extraction with no values.
func (s *Service) Extract(ctx context.Context, req Request) (*Extraction, error) {
	engine, score, err := s.selectEngine(req)
	if err != nil {
		return nil, err
	}
	info := engine.Info()
	start := time.Now()

	normalized := labextract.Normalize(req.Text)
	digest := cache.Digest(normalized)
	key := cache.Key(info.ID, info.Version, digest)

	res, cached := s.lookup(ctx, key)
	if !cached {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res = engine.Extract(req.Text)
		s.store(ctx, key, res)
	} else {
		// The cached payload keeps the time of the run that produced it.
		res.ExtractedAt = time.Now().UTC()
	}

	e := newExtraction(digest, res)
	e.Cached = cached
	e.DetectionScore = score
	if req.PatientRef != "" {
		ref := req.PatientRef
		e.PatientRef = &ref
	}
	if user := auth.UserIDFromContext(ctx); user != "" {
		e.CreatedBy = &user
	}
	if err := s.repo.Create(ctx, e); err != nil {
		s.observe(info.ID, metrics.OutcomeError, time.Since(start), res)
		return nil, fmt.Errorf("store extraction: %w", err)
	}

	outcome := metrics.OutcomeOK
	if len(res.LabValues) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	elapsed := time.Since(start)
	s.observe(info.ID, outcome, elapsed, res)
	s.logger.Info().
		Str("extraction_id", e.ID.String()).
		Str("engine", info.ID).
		Str("engine_version", info.Version).
		Int("values", len(res.LabValues)).
		Float64("overall_confidence", res.OverallConfidence).
		Bool("requires_attention", res.Summary.RequiresAttention).
		Bool("cache_hit", cached).
		Dur("duration", elapsed).
		Msg("extraction completed")
	return e, nil
}

func (s *Service) selectEngine(req Request) (labextract.Engine, float64, error) {
	if req.EngineID != "" {
		engine, err := s.registry.Get(req.EngineID)
		return engine, 0, err
	}
	engine, score, _, err := s.detect(req.Text)
	if err != nil {
		return nil, 0, err
	}
	if s.metrics != nil {
		s.metrics.Detected(engine.Info().ID)
	}
	return engine, score, nil
}

// detect picks the best-scoring engine, or the default engine when no
// score reaches DetectThreshold.
func (s *Service) detect(text string) (labextract.Engine, float64, bool, error) {
	engine, score, ok := s.registry.Detect(text)
	if ok && score >= DetectThreshold {
		return engine, score, false, nil
	}
	fallback, err := s.registry.Get(s.defaultEngine)
	if err != nil {
		return nil, 0, false, err
	}
	return fallback, score, true, nil
}

func (s *Service) lookup(ctx context.Context, key string) (labextract.ExtractionResult, bool) {
	var res labextract.ExtractionResult
	if s.cache == nil {
		return res, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.cacheLookup("error")
		s.logger.Warn().Err(err).Str("key", key).Msg("result cache read failed")
		return res, false
	case !ok:
		s.cacheLookup("miss")
		return res, false
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		s.cacheLookup("error")
		s.logger.Warn().Err(err).Str("key", key).Msg("discarding undecodable cached result")
		return res, false
	}
	s.cacheLookup("hit")
	return res, true
}

func (s *Service) store(ctx context.Context, key string, res labextract.ExtractionResult) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err == nil {
		err = s.cache.Set(ctx, key, raw)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("result cache write failed")
	}
}

func (s *Service) cacheLookup(result string) {
	if s.metrics != nil {
		s.metrics.CacheLookup(result)
	}
}

func (s *Service) observe(engine, outcome string, d time.Duration, res labextract.ExtractionResult) {
	if s.metrics != nil {
		s.metrics.ObserveExtraction(engine, outcome, d, len(res.LabValues), res.OverallConfidence)
	}
}

// ExtractBatch extracts every request with bounded concurrency. Items are
// returned in request order; a failed item carries its error and does not
// stop the others.
func (s *Service) ExtractBatch(ctx context.Context, reqs []Request) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return []BatchItem{}, nil
	}
	if len(reqs) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			items[i].Index = i
			e, err := s.Extract(gctx, req)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Extraction = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Extraction, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Extraction, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// History returns earlier extractions of the same document text.
func (s *Service) History(ctx context.Context, text string) ([]*Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}
	return s.repo.ListByDocument(ctx, cache.Digest(labextract.Normalize(text)))
}

func (s *Service) Engines() []labextract.EngineInfo {
	return s.registry.List()
}

func (s *Service) Engine(id string) (labextract.EngineInfo, error) {
	e, err := s.registry.Get(id)
	if err != nil {
		return labextract.EngineInfo{}, err
	}
	return e.Info(), nil
}

// Detect scores text against every engine and reports which one Extract
// would select.
func (s *Service) Detect(text string) (DetectResponse, error) {
	if strings.TrimSpace(text) == "" {
		return DetectResponse{}, ErrEmptyDocument
	}
	resp := DetectResponse{Detections: []Detection{}}
	for _, info := range s.registry.List() {
		e, err := s.registry.Get(info.ID)
		if err != nil {
			return DetectResponse{}, err
		}
		resp.Detections = append(resp.Detections, Detection{EngineID: info.ID, Name: info.Name, Score: e.CanHandle(text)})
	}
	sort.SliceStable(resp.Detections, func(i, j int) bool {
		return resp.Detections[i].Score > resp.Detections[j].Score
	})

	engine, _, fallback, err := s.detect(text)
	if err != nil {
		return DetectResponse{}, err
	}
	resp.Selected = engine.Info().ID
	resp.Fallback = fallback
	return resp, nil
}
