package integration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"blog/internal/api"
	"blog/internal/api/apitest"
	"blog/internal/articles"
	"blog/internal/config"
	"blog/internal/fixture"
	"blog/internal/logger"
	"blog/internal/models"
	"blog/internal/render"
	"blog/internal/store"

	"github.com/PuerkitoBio/goquery"
)

func newService(t *testing.T, backend *apitest.Backend, encoding string) *articles.Service {
	t.Helper()

	// Path to fixture
	fixturePath := filepath.Join("..", "..", "data", "hackerIpsum.json")
	if _, err := os.Stat(fixturePath); err != nil {
		t.Fatalf("Fixture missing: %v", err)
	}

	cfg := config.Default()
	cfg.API.BaseURL = backend.URL
	cfg.API.PayloadEncoding = encoding
	cfg.Seed.Fixture = fixturePath
	cfg.Seed.RatePerSec = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Invalid config: %v", err)
	}

	src, err := fixture.NewSource(cfg.Seed.Fixture, cfg.API.UserAgent, cfg.API.GetTimeout())
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}

	log := logger.Discard()

	return articles.NewService(api.NewHTTPClient(cfg.API, cfg.Retry, log), store.NewCollection(), src, cfg, log)
}

func TestBlogFlow_SeedRenderTruncate(t *testing.T) {
	for _, encoding := range []string{config.EncodingJSON, config.EncodingForm} {
		t.Run(encoding, func(t *testing.T) {
			backend := apitest.NewBackend()
			defer backend.Close()

			svc := newService(t, backend, encoding)
			ctx := context.Background()

			// 1. Empty backend gets seeded, then fetched
			result, err := svc.FetchAll(ctx)
			if err != nil {
				t.Fatalf("FetchAll failed: %v", err)
			}

			fixtureRows, err := fixture.NewFileSource(filepath.Join("..", "..", "data", "hackerIpsum.json")).Load(ctx)
			if err != nil {
				t.Fatalf("Failed to read fixture: %v", err)
			}

			if result.Seeded != 1 || result.Loaded != len(fixtureRows) {
				t.Errorf("Expected 1 seeding round and %d loaded, got %+v", len(fixtureRows), result)
			}

			// 2. Collection is newest first, drafts last
			all := svc.Collection().All()

			var last time.Time

			seenDraft := false

			for i, a := range all {
				published, ok := a.Published()
				if !ok {
					seenDraft = true
					continue
				}

				if seenDraft {
					t.Errorf("Dated article %d sorted after a draft", i)
				}

				if i > 0 && !last.IsZero() && published.After(last) {
					t.Errorf("Article %d (%s) newer than its predecessor", i, models.Deref(a.Title))
				}

				last = published
			}

			// 3. Render the page
			renderer, err := render.NewRenderer(config.Default().Render, logger.Discard())
			if err != nil {
				t.Fatalf("NewRenderer failed: %v", err)
			}

			page, err := renderer.RenderIndex("Hacker Ipsum", all)
			if err != nil {
				t.Fatalf("RenderIndex failed: %v", err)
			}

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
			if err != nil {
				t.Fatalf("Failed to parse page: %v", err)
			}

			if n := doc.Find("main#articles article").Length(); n != len(fixtureRows) {
				t.Errorf("Expected %d rendered articles, got %d", len(fixtureRows), n)
			}

			doc.Find(".byline time").Each(func(i int, s *goquery.Selection) {
				text := s.Text()
				if text != render.DraftStatus && !strings.HasPrefix(text, "published ") {
					t.Errorf("Article %d has status %q", i, text)
				}
			})

			// 4. Truncate resolves before returning
			if err := svc.Truncate(ctx); err != nil {
				t.Fatalf("Truncate failed: %v", err)
			}

			if n := len(backend.Rows()); n != 0 {
				t.Errorf("Backend still holds %d rows", n)
			}
		})
	}
}

func TestBlogFlow_PopulatedBackendSkipsSeeding(t *testing.T) {
	backend := apitest.NewBackend(models.Row{"title": "Only", "publishedOn": "2015-02-01"})
	defer backend.Close()

	svc := newService(t, backend, config.EncodingJSON)

	result, err := svc.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if result.Seeded != 0 || result.Loaded != 1 {
		t.Errorf("Unexpected result %+v", result)
	}

	for _, req := range backend.Requests() {
		if strings.HasPrefix(req, "POST") {
			t.Errorf("Unexpected write %q against populated backend", req)
		}
	}
}

func TestBlogFlow_SingleRecordLifecycle(t *testing.T) {
	backend := apitest.NewBackend(models.Row{"title": "Seed"})
	defer backend.Close()

	svc := newService(t, backend, config.EncodingJSON)
	ctx := context.Background()

	a, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	a.Title = models.StrPtr("Renamed")

	if _, err := svc.Update(ctx, a); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if got := backend.Rows()[0]["title"]; got != "Renamed" {
		t.Errorf("Expected title Renamed, got %v", got)
	}

	if _, err := svc.Delete(ctx, a); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := svc.Get(ctx, 1); !errors.Is(err, api.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}
