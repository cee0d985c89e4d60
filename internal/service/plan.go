package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/omar-mostafa205/Planna/internal/domain"
	"github.com/omar-mostafa205/Planna/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPlanCacheTTL = 10 * time.Minute
)

// PlanServiceImpl implements domain.PlanService
type PlanServiceImpl struct {
	images     *ImagePreprocessor
	extractor  domain.MetricExtractor
	generator  domain.PlanGenerator
	repository domain.ProfileRepository
	cache      domain.PlanCache   // optional
	archive    domain.ScanArchive // optional
	recorder   metrics.Recorder
	cacheTTL   time.Duration

	reads singleflight.Group
}

// NewPlanService creates a new plan service. cache, archive and recorder may be nil.
func NewPlanService(
	images *ImagePreprocessor,
	extractor domain.MetricExtractor,
	generator domain.PlanGenerator,
	repository domain.ProfileRepository,
	cache domain.PlanCache,
	archive domain.ScanArchive,
	recorder metrics.Recorder,
	cacheTTL time.Duration,
) *PlanServiceImpl {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultPlanCacheTTL
	}
	return &PlanServiceImpl{
		images:     images,
		extractor:  extractor,
		generator:  generator,
		repository: repository,
		cache:      cache,
		archive:    archive,
		recorder:   recorder,
		cacheTTL:   cacheTTL,
	}
}

// GeneratePlan runs preprocess -> extract -> prompt -> generate -> validate -> persist.
// It is detached from the caller's cancellation: once started it runs to completion.
func (s *PlanServiceImpl) GeneratePlan(ctx context.Context, userID string, req domain.PlanRequest) (*domain.MealPlanDocument, error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)
	logger := log.With().
		Str("user_id", userID).
		Str("generation_id", ulid.Make().String()).
		Logger()

	// Step 1: Normalize the scan image, if one was sent
	var scan *domain.ProcessedImage
	if req.Image != nil {
		processed, err := s.images.Process(req.Image.Data, req.Image.Size)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidInput) {
				s.recorder.RecordGeneration(metrics.OutcomeImageFailed, time.Since(start))
			}
			return nil, err
		}
		scan = processed
		logger.Debug().Int("width", scan.Width).Int("height", scan.Height).Msg("scan image processed")
	}

	// Step 2: Best-effort body composition metrics. Never fatal.
	metricsText := ""
	if scan != nil {
		extracted, err := s.extractor.Extract(ctx, scan)
		if err != nil {
			logger.Warn().Err(err).Msg("metric extraction failed, continuing without scan metrics")
			s.recorder.RecordMetricsDegraded()
		} else {
			metricsText = extracted
		}
	}

	// Step 3: Prompt
	prompt, err := BuildPlanPrompt(req.Profile, metricsText)
	if err != nil {
		s.recorder.RecordGeneration(metrics.OutcomeGenerationError, time.Since(start))
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	// Step 4: Generate
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.recorder.RecordGeneration(metrics.OutcomeGenerationError, time.Since(start))
		logger.Error().Err(err).Msg("plan generation failed")
		if !errors.Is(err, domain.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
		}
		return nil, err
	}

	// Step 5: Validate
	plan, err := ValidatePlan(raw)
	if err != nil {
		s.recorder.RecordGeneration(metrics.OutcomeInvalidFormat, time.Since(start))
		logger.Error().Err(err).Int("response_length", len(raw)).Msg("model returned an unusable plan")
		return nil, err
	}

	// Step 6: Persist. Only a fully validated plan reaches the store.
	if err := s.repository.UpsertMealPlan(ctx, userID, plan); err != nil {
		s.recorder.RecordGeneration(metrics.OutcomePersistFailed, time.Since(start))
		logger.Error().Err(err).Msg("failed to persist plan")
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	// Step 7: Replace the cached copy - non-blocking, log error but don't fail.
	// If the write fails, drop the entry so the old plan isn't served.
	if s.cache != nil {
		if err := s.cache.SetPlan(ctx, userID, plan, s.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache new plan")
			if err := s.cache.InvalidatePlan(ctx, userID); err != nil {
				logger.Warn().Err(err).Msg("failed to invalidate cached plan")
			}
		}
	}

	// Step 8: Archive the processed scan - best effort
	if s.archive != nil && scan != nil {
		url, err := s.archive.Archive(ctx, userID, scan)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to archive scan image")
		} else {
			logger.Info().Str("url", url).Msg("scan image archived")
		}
	}

	s.recorder.RecordGeneration(metrics.OutcomeSuccess, time.Since(start))
	logger.Info().Dur("duration", time.Since(start)).Bool("with_scan", scan != nil).Msg("meal plan generated")
	return plan, nil
}

// GetPlan serves the current plan, reading through the cache.
// Concurrent misses for one user share a single store read, which is
// detached from any one caller's cancellation. The cache is only filled
// when empty so a read that raced a generation can't shadow the new plan.
func (s *PlanServiceImpl) GetPlan(ctx context.Context, userID string) (*domain.MealPlanDocument, error) {
	if s.cache != nil {
		cached, err := s.cache.GetPlan(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("plan cache read failed")
		}
		if cached != nil {
			s.recorder.RecordCacheLookup(true)
			return cached, nil
		}
		s.recorder.RecordCacheLookup(false)
	}

	readCtx := context.WithoutCancel(ctx)
	v, err, _ := s.reads.Do(userID, func() (interface{}, error) {
		plan, err := s.repository.GetMealPlan(readCtx, userID)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if _, err := s.cache.FillPlan(readCtx, userID, plan, s.cacheTTL); err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("failed to cache plan")
			}
		}
		return plan, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}

	return v.(*domain.MealPlanDocument), nil
}
