// Package render turns articles into HTML: it derives the publication
// status, converts the markdown body and executes a named template.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"time"

	"blog/internal/config"
	"blog/internal/logger"
	"blog/internal/models"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Name of the page template wrapping rendered articles.
const IndexTemplate = "index"

// DraftStatus is the status shown for articles without a publication date.
const DraftStatus = "(draft)"

// Rendering errors.
var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrNilArticle       = errors.New("nil article")
)

//go:embed templates/*.html
var templateFS embed.FS

// View is the data handed to the article template.
type View struct {
	Extra         models.Row
	Title         string
	Author        string
	AuthorURL     string
	Category      string
	PublishedOn   string
	PublishStatus string
	Body          template.HTML
	ArticleID     int64
	DaysAgo       int
}

// IndexView is the data handed to the index template.
type IndexView struct {
	Title    string
	Articles []template.HTML
}

// Renderer renders articles with a named template.
type Renderer struct {
	tmpl     *template.Template
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	now      func() time.Time
	logger   *logger.Logger
	name     string
}

// NewRenderer builds a renderer from the embedded templates, overlaid with
// cfg.TemplateFile when set.
func NewRenderer(cfg config.RenderConfig, log *logger.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded templates: %w", err)
	}

	if cfg.TemplateFile != "" {
		if tmpl, err = tmpl.ParseFiles(cfg.TemplateFile); err != nil {
			return nil, fmt.Errorf("failed to parse template file: %w", err)
		}
	}

	name := cfg.TemplateName
	if name == "" {
		name = "article-template"
	}

	if tmpl.Lookup(name) == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	r := &Renderer{
		tmpl:     tmpl,
		markdown: NewMarkdown(),
		now:      time.Now,
		logger:   log,
		name:     name,
	}

	if cfg.Sanitize {
		r.policy = RichTextPolicy()
	}

	return r, nil
}

// NewMarkdown returns the markdown converter used for article bodies.
// Raw HTML passes through untouched.
func NewMarkdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
}

// RichTextPolicy allows common formatting markup and strips scripts and
// unsafe URLs.
func RichTextPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("figure", "figcaption")
	policy.AllowAttrs("class").OnElements("code", "pre", "figure")
	policy.AllowURLSchemes("http", "https", "mailto")
	policy.AllowRelativeURLs(true)
	policy.RequireParseableURLs(true)

	return policy
}

// SetClock replaces the time source used for DaysAgo.
func (r *Renderer) SetClock(now func() time.Time) {
	r.now = now
}

// Render derives DaysAgo and PublishStatus, converts the markdown body to
// HTML in place and executes the article template.
//
// The body is converted only once per article; later calls reuse the HTML.
func (r *Renderer) Render(a *models.Article) (string, error) {
	if a == nil {
		return "", ErrNilArticle
	}

	r.Annotate(a)

	if a.Body != nil && !a.BodyRendered() {
		html, err := r.MarkdownToHTML(*a.Body)
		if err != nil {
			return "", fmt.Errorf("failed to convert body of %s: %w", a, err)
		}

		a.SetRenderedBody(html)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, r.name, newView(a)); err != nil {
		return "", fmt.Errorf("failed to execute %s: %w", r.name, err)
	}

	return buf.String(), nil
}

// RenderIndex renders every article and wraps them in the index template.
func (r *Renderer) RenderIndex(title string, articles []*models.Article) (string, error) {
	if r.tmpl.Lookup(IndexTemplate) == nil {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, IndexTemplate)
	}

	view := IndexView{
		Title:    title,
		Articles: make([]template.HTML, 0, len(articles)),
	}

	for _, a := range articles {
		html, err := r.Render(a)
		if err != nil {
			return "", err
		}

		view.Articles = append(view.Articles, template.HTML(html))
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, IndexTemplate, view); err != nil {
		return "", fmt.Errorf("failed to execute %s: %w", IndexTemplate, err)
	}

	r.logger.Debug("Rendered index", "articles", len(articles))

	return buf.String(), nil
}

// Annotate sets the derived DaysAgo and PublishStatus fields.
func (r *Renderer) Annotate(a *models.Article) {
	published, ok := a.Published()
	if !ok {
		a.DaysAgo = 0
		a.PublishStatus = DraftStatus

		return
	}

	a.DaysAgo = DaysBetween(published, r.now())
	a.PublishStatus = fmt.Sprintf("published %d days ago", a.DaysAgo)
}

// MarkdownToHTML converts markdown source, sanitising when configured.
func (r *Renderer) MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}

	if r.policy != nil {
		return r.policy.Sanitize(buf.String()), nil
	}

	return buf.String(), nil
}

// DaysBetween returns floor((to - from) / 24h).
func DaysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}

func newView(a *models.Article) View {
	return View{
		Extra:         a.Extra,
		Title:         models.Deref(a.Title),
		Author:        models.Deref(a.Author),
		AuthorURL:     models.Deref(a.AuthorURL),
		Category:      models.Deref(a.Category),
		PublishedOn:   models.Deref(a.PublishedOn),
		PublishStatus: a.PublishStatus,
		Body:          template.HTML(models.Deref(a.Body)),
		ArticleID:     a.ArticleID,
		DaysAgo:       a.DaysAgo,
	}
}
