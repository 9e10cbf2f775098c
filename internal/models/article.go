// Package models defines the article record and the raw rows it is built from.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row keys with a dedicated Article field.
const (
	KeyArticleID   = "article_id"
	KeyTitle       = "title"
	KeyAuthor      = "author"
	KeyAuthorURL   = "authorUrl"
	KeyCategory    = "category"
	KeyBody        = "body"
	KeyPublishedOn = "publishedOn"
)

// Construction errors.
var (
	ErrInvalidField       = errors.New("invalid field value")
	ErrInvalidArticleID   = errors.New("invalid article_id")
	ErrInvalidPublishedOn = errors.New("invalid publishedOn")
)

// publishedLayouts are tried in order when parsing publishedOn.
var publishedLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Row is a plain key-value record as returned by the backend or a fixture file.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}

	return maps.Clone(r)
}

// Article is the in-memory record built from a Row.
//
// Known keys map onto typed optional fields; a nil pointer means the key was
// absent. Every other key is kept verbatim in Extra.
type Article struct {
	Title       *string
	Author      *string
	AuthorURL   *string
	Category    *string
	Body        *string
	PublishedOn *string
	Extra       Row

	// DaysAgo and PublishStatus are derived by the renderer.
	DaysAgo       int
	PublishStatus string

	// nullKeys records known keys that were present with a nil value.
	nullKeys     map[string]bool
	ArticleID    int64
	hasID        bool
	bodyRendered bool
}

// NewArticle builds an Article from row, validating the known keys.
func NewArticle(row Row) (*Article, error) {
	a := &Article{}

	for key, val := range row {
		if val == nil && isKnownKey(key) {
			if a.nullKeys == nil {
				a.nullKeys = make(map[string]bool)
			}
			a.nullKeys[key] = true

			continue
		}

		switch key {
		case KeyArticleID:
			id, err := toInt64(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidArticleID, err)
			}
			a.ArticleID = id
			a.hasID = true
		case KeyPublishedOn:
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s has type %T", ErrInvalidField, key, val)
			}
			if s != "" {
				if _, err := ParsePublished(s); err != nil {
					return nil, err
				}
			}
			a.PublishedOn = &s
		case KeyTitle, KeyAuthor, KeyAuthorURL, KeyCategory, KeyBody:
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s has type %T", ErrInvalidField, key, val)
			}
			*a.stringField(key) = &s
		default:
			if a.Extra == nil {
				a.Extra = make(Row)
			}
			a.Extra[key] = val
		}
	}

	return a, nil
}

// MustArticle is like NewArticle but panics on invalid input.
func MustArticle(row Row) *Article {
	a, err := NewArticle(row)
	if err != nil {
		panic(err)
	}

	return a
}

// Row rebuilds the key-value form of the article: every key present at
// construction plus any field set since.
func (a *Article) Row() Row {
	row := make(Row, len(a.Extra)+7)
	maps.Copy(row, a.Extra)

	if a.hasID || a.ArticleID != 0 {
		row[KeyArticleID] = a.ArticleID
	} else if a.nullKeys[KeyArticleID] {
		row[KeyArticleID] = nil
	}

	for _, key := range []string{KeyTitle, KeyAuthor, KeyAuthorURL, KeyCategory, KeyBody, KeyPublishedOn} {
		if p := *a.stringField(key); p != nil {
			row[key] = *p
		} else if a.nullKeys[key] {
			row[key] = nil
		}
	}

	return row
}

// Payload returns the content fields sent on create and update.
func (a *Article) Payload() Row {
	payload := make(Row, 6)

	for _, key := range []string{KeyAuthor, KeyAuthorURL, KeyBody, KeyCategory, KeyPublishedOn, KeyTitle} {
		if p := *a.stringField(key); p != nil {
			payload[key] = *p
		}
	}

	return payload
}

// Get returns the value stored under key, as Row would report it.
func (a *Article) Get(key string) (any, bool) {
	v, ok := a.Row()[key]
	return v, ok
}

// Published returns the parsed publication time. ok is false for drafts.
func (a *Article) Published() (time.Time, bool) {
	if a.PublishedOn == nil || *a.PublishedOn == "" {
		return time.Time{}, false
	}

	t, err := ParsePublished(*a.PublishedOn)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// IsDraft reports whether the article has no publication date.
func (a *Article) IsDraft() bool {
	_, ok := a.Published()
	return !ok
}

// BodyRendered reports whether Body already holds converted HTML.
func (a *Article) BodyRendered() bool {
	return a.bodyRendered
}

// SetRenderedBody replaces Body with converted HTML and marks it rendered.
func (a *Article) SetRenderedBody(html string) {
	a.Body = &html
	a.bodyRendered = true
}

// Clone returns a deep copy of the article.
func (a *Article) Clone() *Article {
	c := *a
	c.Extra = a.Extra.Clone()
	c.nullKeys = maps.Clone(a.nullKeys)

	for _, key := range []string{KeyTitle, KeyAuthor, KeyAuthorURL, KeyCategory, KeyBody, KeyPublishedOn} {
		if p := *a.stringField(key); p != nil {
			v := *p
			*c.stringField(key) = &v
		}
	}

	return &c
}

// MarshalJSON encodes the article as its row.
func (a *Article) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Row())
}

// UnmarshalJSON decodes a row and validates it like NewArticle.
func (a *Article) UnmarshalJSON(data []byte) error {
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}

	parsed, err := NewArticle(row)
	if err != nil {
		return err
	}

	*a = *parsed

	return nil
}

// String returns a short description used in logs.
func (a *Article) String() string {
	return fmt.Sprintf("Article{id: %d, title: %q}", a.ArticleID, Deref(a.Title))
}

// ParsePublished parses a publishedOn value. Dates without a zone are UTC.
func ParsePublished(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPublishedOn, s)
}

// Deref returns the pointed-to string or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}

	return *p
}

// StrPtr returns a pointer to s.
func StrPtr(s string) *string {
	return &s
}

func (a *Article) stringField(key string) **string {
	switch key {
	case KeyTitle:
		return &a.Title
	case KeyAuthor:
		return &a.Author
	case KeyAuthorURL:
		return &a.AuthorURL
	case KeyCategory:
		return &a.Category
	case KeyBody:
		return &a.Body
	case KeyPublishedOn:
		return &a.PublishedOn
	}

	panic("models: not a string field: " + key)
}

func isKnownKey(key string) bool {
	switch key {
	case KeyArticleID, KeyTitle, KeyAuthor, KeyAuthorURL, KeyCategory, KeyBody, KeyPublishedOn:
		return true
	}

	return false
}

func toInt64(val any) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		return uint64ToInt64(uint64(v))
	case uint64:
		return uint64ToInt64(v)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("non-integral number %v", v)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
		if v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("number %v out of range", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", val)
	}
}

func uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("number %d out of range", v)
	}

	return int64(v), nil
}
