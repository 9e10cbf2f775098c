package render

import (
	"fmt"
	"strings"

	"blog/internal/models"

	"github.com/charmbracelet/glamour"
)

// TerminalRenderer prints articles as styled markdown for a terminal.
type TerminalRenderer struct {
	term *glamour.TermRenderer
	r    *Renderer
}

// NewTerminalRenderer creates a terminal renderer. style is a glamour
// standard style name ("dark", "light", "notty"); empty picks one from the
// terminal background.
func NewTerminalRenderer(r *Renderer, style string, wrap int) (*TerminalRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wrap)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	term, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}

	return &TerminalRenderer{term: term, r: r}, nil
}

// Render formats the article header and its markdown body. The article's
// body must not have been converted to HTML yet.
func (t *TerminalRenderer) Render(a *models.Article) (string, error) {
	if a == nil {
		return "", ErrNilArticle
	}

	t.r.Annotate(a)

	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", models.Deref(a.Title))

	byline := models.Deref(a.Author)
	if byline == "" {
		byline = "unknown author"
	}
	if category := models.Deref(a.Category); category != "" {
		byline += " · " + category
	}
	fmt.Fprintf(&sb, "*%s, %s*\n\n", byline, a.PublishStatus)

	sb.WriteString(models.Deref(a.Body))
	sb.WriteString("\n")

	out, err := t.term.Render(sb.String())
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", a, err)
	}

	return out, nil
}
