// Package validator checks articles before they are sent to the backend.
package validator

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"blog/internal/models"
	"blog/pkg/utils"
)

// ErrInvalidArticle is returned by Check when validation fails.
var ErrInvalidArticle = errors.New("article failed validation")

// DefaultRequiredFields are the keys every publishable article carries.
var DefaultRequiredFields = []string{models.KeyTitle, models.KeyAuthor, models.KeyBody}

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Index   int
	Line    int
}

func (e ValidationError) Error() string {
	var sb strings.Builder

	if e.Index >= 0 {
		fmt.Fprintf(&sb, "article %d: ", e.Index)
	}

	if e.Field != "" {
		fmt.Fprintf(&sb, "[%s] ", e.Field)
	}

	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d: ", e.Line)
	}

	sb.WriteString(e.Message)

	return sb.String()
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
	Stats    ValidationStats
	IsValid  bool
}

// ValidationStats contains validation statistics.
type ValidationStats struct {
	TotalArticles   int
	ValidArticles   int
	InvalidArticles int
	Drafts          int
	Tables          int
}

// ArticleValidator validates article content.
type ArticleValidator struct {
	strings  *utils.StringHelper
	required []string
}

// NewArticleValidator creates a validator. With no fields given it
// requires DefaultRequiredFields.
func NewArticleValidator(required ...string) *ArticleValidator {
	if len(required) == 0 {
		required = DefaultRequiredFields
	}

	return &ArticleValidator{
		strings:  utils.NewStringHelper(),
		required: required,
	}
}

// Validate checks a batch of articles.
func (v *ArticleValidator) Validate(articles ...*models.Article) *ValidationResult {
	result := &ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []string{},
	}

	for i, a := range articles {
		result.Stats.TotalArticles++

		errs := v.validateArticle(i, a, result)
		if len(errs) > 0 {
			result.IsValid = false
			result.Stats.InvalidArticles++
			result.Errors = append(result.Errors, errs...)

			continue
		}

		result.Stats.ValidArticles++
	}

	return result
}

// Check validates a single article and returns ErrInvalidArticle wrapping
// every problem found.
func (v *ArticleValidator) Check(a *models.Article) error {
	res := v.Validate(a)
	if res.IsValid {
		return nil
	}

	errs := make([]error, 0, len(res.Errors))
	for _, e := range res.Errors {
		e.Index = -1
		errs = append(errs, e)
	}

	return fmt.Errorf("%w: %w", ErrInvalidArticle, errors.Join(errs...))
}

func (v *ArticleValidator) validateArticle(index int, a *models.Article, result *ValidationResult) []ValidationError {
	if a == nil {
		return []ValidationError{{Index: index, Message: "article is nil"}}
	}

	var errs []ValidationError

	for _, field := range v.required {
		val, ok := a.Get(field)
		s, isString := val.(string)

		if !ok || val == nil || (isString && strings.TrimSpace(s) == "") {
			errs = append(errs, ValidationError{
				Index:   index,
				Field:   field,
				Message: "required field is empty",
			})
		}
	}

	if raw := models.Deref(a.AuthorURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			errs = append(errs, ValidationError{
				Index:   index,
				Field:   models.KeyAuthorURL,
				Value:   raw,
				Message: "authorUrl must be an absolute http(s) URL",
			})
		}
	}

	if a.IsDraft() {
		result.Stats.Drafts++
	}

	if a.BodyRendered() {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("article %d: body is already rendered HTML", index))

		return errs
	}

	errs = append(errs, v.validateTables(index, models.Deref(a.Body), result)...)

	return errs
}

// validateTables checks that every row of a markdown pipe table has as many
// cells as its header.
func (v *ArticleValidator) validateTables(index int, body string, result *ValidationResult) []ValidationError {
	var (
		errs      []ValidationError
		headerLen int
		inTable   bool
	)

	for lineNum, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)

		if len(line) < 2 || !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			inTable = false
			continue
		}

		cells := countCells(line)

		if !inTable {
			inTable = true
			headerLen = cells
			result.Stats.Tables++

			continue
		}

		if cells != headerLen {
			errs = append(errs, ValidationError{
				Index:   index,
				Field:   models.KeyBody,
				Line:    lineNum + 1,
				Value:   v.strings.TruncateString(line, 50),
				Message: fmt.Sprintf("table row has %d cells, header has %d", cells, headerLen),
			})
		}
	}

	return errs
}

// countCells counts the cells of a pipe table row, ignoring escaped pipes.
func countCells(row string) int {
	row = strings.ReplaceAll(row, `\|`, "")
	return strings.Count(row, "|") - 1
}

// String returns string representation of validation result.
func (r *ValidationResult) String() string {
	status := "VALID"
	if !r.IsValid {
		status = "INVALID"
	}

	return fmt.Sprintf(
		"%s | Total: %d | Valid: %d | Invalid: %d | Drafts: %d | Warnings: %d",
		status,
		r.Stats.TotalArticles,
		r.Stats.ValidArticles,
		r.Stats.InvalidArticles,
		r.Stats.Drafts,
		len(r.Warnings),
	)
}

// PrintErrors writes validation errors in readable format.
func (r *ValidationResult) PrintErrors(w io.Writer) {
	if len(r.Errors) == 0 {
		return
	}

	fmt.Fprintln(w, "Validation errors:")

	for _, err := range r.Errors {
		fmt.Fprintf(w, "  %s\n", err.Error())

		if err.Value != "" {
			fmt.Fprintf(w, "    Found: %q\n", err.Value)
		}
	}
}

// PrintWarnings writes validation warnings.
func (r *ValidationResult) PrintWarnings(w io.Writer) {
	if len(r.Warnings) == 0 {
		return
	}

	fmt.Fprintln(w, "Validation warnings:")

	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  %s\n", warn)
	}
}
