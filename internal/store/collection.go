// Package store holds the in-memory article collection.
package store

import (
	"fmt"
	"slices"
	"sync"

	"blog/internal/models"
)

// Collection is an ordered, append-only sequence of articles.
// The zero value is ready to use.
type Collection struct {
	articles []*models.Article
	mu       sync.RWMutex
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Append adds articles to the end of the collection in the given order.
func (c *Collection) Append(articles ...*models.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.articles = append(c.articles, articles...)
}

// LoadAll wraps every row, sorts the batch newest first and appends it.
// Nothing is appended if any row is invalid. Duplicate loads append duplicates.
func (c *Collection) LoadAll(rows []models.Row) error {
	batch := make([]*models.Article, 0, len(rows))

	for i, row := range rows {
		a, err := models.NewArticle(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}

		batch = append(batch, a)
	}

	SortNewestFirst(batch)
	c.Append(batch...)

	return nil
}

// All returns a copy of the collection's articles.
func (c *Collection) All() []*models.Article {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.articles)
}

// Len returns the number of articles held.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.articles)
}

// Find returns the first article with the given id.
func (c *Collection) Find(id int64) (*models.Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, a := range c.articles {
		if a.ArticleID == id {
			return a, true
		}
	}

	return nil, false
}

// Reset drops every article.
func (c *Collection) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.articles = nil
}

// SortNewestFirst orders articles by publication date, newest first.
// The sort is stable and drafts go last.
func SortNewestFirst(articles []*models.Article) {
	slices.SortStableFunc(articles, func(a, b *models.Article) int {
		ta, okA := a.Published()
		tb, okB := b.Published()

		switch {
		case okA && okB:
			return tb.Compare(ta)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
}
