// Package articles coordinates the backend client, the local collection and
// the seed fixture.
package articles

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"blog/internal/api"
	"blog/internal/config"
	"blog/internal/fixture"
	"blog/internal/logger"
	"blog/internal/models"
	"blog/internal/store"
	"blog/pkg/utils"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Service errors.
var (
	ErrFixtureLoad      = errors.New("failed to load seed fixture")
	ErrSeedFailed       = errors.New("seeding failed")
	ErrStillEmpty       = errors.New("backend still empty after seeding")
	ErrMissingArticleID = errors.New("article_id is required")
	ErrNilArticle       = errors.New("article is nil")
)

// Service runs article operations against the backend.
type Service struct {
	client     api.Client
	collection *store.Collection
	fixture    fixture.Source
	limiter    *rate.Limiter
	logger     *logger.Logger
	retry      config.RetryPolicy
	seed       config.SeedConfig
}

// NewService creates a service. The fixture source is only read when the
// backend turns out to be empty.
func NewService(client api.Client, collection *store.Collection, src fixture.Source, cfg *config.Config, log *logger.Logger) *Service {
	if collection == nil {
		collection = store.NewCollection()
	}

	return &Service{
		client:     client,
		collection: collection,
		fixture:    src,
		limiter:    newLimiter(cfg.Seed),
		logger:     log,
		retry:      cfg.Retry,
		seed:       cfg.Seed,
	}
}

func newLimiter(cfg config.SeedConfig) *rate.Limiter {
	if cfg.RatePerSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Limit(cfg.RatePerSec), max(cfg.Burst, 1))
}

// Collection returns the local article collection.
func (s *Service) Collection() *store.Collection {
	return s.collection
}

// SeedReport summarises one seeding batch.
type SeedReport struct {
	Errors    []error
	Attempted int
	Created   int
	Duration  time.Duration
}

// FetchResult summarises a FetchAll run.
type FetchResult struct {
	Reports []*SeedReport
	Loaded  int
	Seeded  int
}

type fetchState int

const (
	stateFetch fetchState = iota
	stateSeeding
	stateLoaded
	stateFailed
)

func (s fetchState) String() string {
	switch s {
	case stateFetch:
		return "fetch"
	case stateSeeding:
		return "seeding"
	case stateLoaded:
		return "loaded"
	case stateFailed:
		return "failed"
	}

	return "unknown"
}

// FetchAll loads every article from the backend into the collection. An
// empty backend is seeded from the fixture and fetched again, for at most
// seed.max_rounds seeding rounds.
func (s *Service) FetchAll(ctx context.Context) (*FetchResult, error) {
	result := &FetchResult{}
	state := stateFetch

	var failure error

	for {
		s.logger.Debug("FetchAll state", "state", state, "seeded", result.Seeded)

		switch state {
		case stateFetch:
			rows, err := s.client.List(ctx)
			if err != nil {
				failure = fmt.Errorf("failed to fetch articles: %w", err)
				state = stateFailed

				continue
			}

			if len(rows) > 0 {
				if err := s.collection.LoadAll(rows); err != nil {
					failure = fmt.Errorf("failed to load articles: %w", err)
					state = stateFailed

					continue
				}

				result.Loaded = len(rows)
				state = stateLoaded

				continue
			}

			if result.Seeded >= s.seed.MaxRounds {
				failure = fmt.Errorf("%w: %d seeding rounds", ErrStillEmpty, result.Seeded)
				state = stateFailed

				continue
			}

			state = stateSeeding

		case stateSeeding:
			if err := utils.Sleep(ctx, s.retry.GetRetryDelay(result.Seeded+1)); err != nil {
				return result, err
			}

			result.Seeded++
			s.logger.Info("Backend is empty, seeding from fixture", "round", result.Seeded)

			report, err := s.Seed(ctx)
			if report != nil {
				result.Reports = append(result.Reports, report)
			}

			if err != nil {
				failure = err
				state = stateFailed

				continue
			}

			state = stateFetch

		case stateLoaded:
			s.logger.Info("Articles loaded", "count", result.Loaded, "seed_rounds", result.Seeded)

			return result, nil

		case stateFailed:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}

			return result, failure
		}
	}
}

// Seed persists every fixture entry to the backend. Entries are created
// concurrently, bounded by seed.concurrency and the seed rate limit.
func (s *Service) Seed(ctx context.Context) (*SeedReport, error) {
	start := time.Now()

	rows, err := s.fixture.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFixtureLoad, err)
	}

	report := &SeedReport{Attempted: len(rows)}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)

	g.SetLimit(max(s.seed.Concurrency, 1))

	for i, row := range rows {
		g.Go(func() error {
			err := s.seedOne(ctx, row)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				s.logger.Error("Failed to seed entry", "index", i, "error", err)
				report.Errors = append(report.Errors, fmt.Errorf("entry %d: %w", i, err))

				return nil
			}

			report.Created++

			return nil
		})
	}

	// Workers never return errors; failures are collected in the report.
	_ = g.Wait()

	report.Duration = time.Since(start)

	s.logger.Info("Seeding complete",
		"attempted", report.Attempted,
		"created", report.Created,
		"failed", len(report.Errors),
		"duration", report.Duration)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	if len(report.Errors) > 0 {
		return report, fmt.Errorf("%w: %d of %d entries failed: %w",
			ErrSeedFailed, len(report.Errors), report.Attempted, errors.Join(report.Errors...))
	}

	return report, nil
}

func (s *Service) seedOne(ctx context.Context, row models.Row) error {
	a, err := models.NewArticle(row)
	if err != nil {
		return err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := s.client.Create(ctx, a.Payload())
	if err != nil {
		return err
	}

	s.logger.Debug("Seeded article", "title", models.Deref(a.Title), "response", resp.Body)

	return nil
}

// Truncate deletes every article on the backend and clears the local
// collection once the request has resolved.
func (s *Service) Truncate(ctx context.Context) error {
	resp, err := s.client.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to truncate articles: %w", err)
	}

	s.collection.Reset()
	s.logger.Info("Truncate complete", "status", resp.StatusCode, "response", resp.Body)

	return nil
}

// Insert creates the article on the backend.
func (s *Service) Insert(ctx context.Context, a *models.Article) (*api.Response, error) {
	if a == nil {
		return nil, ErrNilArticle
	}

	resp, err := s.client.Create(ctx, a.Payload())
	if err != nil {
		return resp, fmt.Errorf("failed to insert %s: %w", a, err)
	}

	s.logger.Info("Insert complete", "status", resp.StatusCode, "response", resp.Body)

	return resp, nil
}

// Update replaces the backend copy of the article.
func (s *Service) Update(ctx context.Context, a *models.Article) (*api.Response, error) {
	if err := requireID(a); err != nil {
		return nil, err
	}

	resp, err := s.client.Update(ctx, a.ArticleID, a.Payload())
	if err != nil {
		return resp, fmt.Errorf("failed to update %s: %w", a, err)
	}

	s.logger.Info("Update complete", "article_id", a.ArticleID, "status", resp.StatusCode, "response", resp.Body)

	return resp, nil
}

// Delete removes the article from the backend.
func (s *Service) Delete(ctx context.Context, a *models.Article) (*api.Response, error) {
	if err := requireID(a); err != nil {
		return nil, err
	}

	resp, err := s.client.Delete(ctx, a.ArticleID)
	if err != nil {
		return resp, fmt.Errorf("failed to delete %s: %w", a, err)
	}

	s.logger.Info("Delete complete", "article_id", a.ArticleID, "status", resp.StatusCode, "response", resp.Body)

	return resp, nil
}

// Get fetches a single article by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Article, error) {
	row, err := s.client.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	a, err := models.NewArticle(row)
	if err != nil {
		return nil, fmt.Errorf("article %d: %w", id, err)
	}

	return a, nil
}

func requireID(a *models.Article) error {
	if a == nil {
		return ErrNilArticle
	}

	if a.ArticleID == 0 {
		return ErrMissingArticleID
	}

	return nil
}
