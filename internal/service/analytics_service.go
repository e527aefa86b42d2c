package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = persistence.ErrCacheMiss

// Cache is a byte cache with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

const (
	dashboardCacheKey = "analytics:dashboard"
	recentRatingLimit = 50
)

// AnalyticsService serves admin reporting.
type AnalyticsService struct {
	repo   repository.AnalyticsRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// AnalyticsDependencies wires AnalyticsService. Cache is optional.
type AnalyticsDependencies struct {
	AnalyticsRepo repository.AnalyticsRepository
	Cache         Cache
	CacheTTL      time.Duration
	Logger        *zap.Logger
}

// NewAnalyticsService builds the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{repo: deps.AnalyticsRepo, cache: deps.Cache, ttl: deps.CacheTTL, logger: logger}
}

// Dashboard returns the admin snapshot, served from cache when fresh.
// Cache errors are logged and fall through to the database.
func (s *AnalyticsService) Dashboard(ctx context.Context, identity auth.Identity) (*domain.Dashboard, error) {
	if err := auth.CheckAdmin(identity); err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		raw, err := s.cache.Get(ctx, dashboardCacheKey)
		switch {
		case err == nil:
			var dash domain.Dashboard
			if jsonErr := json.Unmarshal(raw, &dash); jsonErr == nil {
				return &dash, nil
			} else {
				s.logger.Warn("discarding corrupt dashboard cache entry", zap.Error(jsonErr))
			}
		case !errors.Is(err, ErrCacheMiss):
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		}
	}

	dash, err := s.repo.Dashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	if s.cache != nil && s.ttl > 0 {
		if raw, err := json.Marshal(dash); err == nil {
			if err := s.cache.Set(ctx, dashboardCacheKey, raw, s.ttl); err != nil {
				s.logger.Warn("analytics cache write failed", zap.Error(err))
			}
		}
	}
	return dash, nil
}

// Ratings returns the most recent rated tickets with their customers.
func (s *AnalyticsService) Ratings(ctx context.Context, identity auth.Identity) ([]domain.RatedTicket, error) {
	if err := auth.CheckAdmin(identity); err != nil {
		return nil, err
	}
	ratings, err := s.repo.RecentRatings(ctx, recentRatingLimit)
	if err != nil {
		return nil, fmt.Errorf("ratings: %w", err)
	}
	return ratings, nil
}
