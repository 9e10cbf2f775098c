package validator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"blog/internal/models"
)

func validArticle() *models.Article {
	return models.MustArticle(models.Row{
		"title":       "Valid",
		"author":      "Ada",
		"authorUrl":   "https://ada.example.com",
		"publishedOn": "2015-02-01",
		"body":        "| a | b |\n| - | - |\n| 1 | 2 |",
	})
}

func TestValidate_Valid(t *testing.T) {
	res := NewArticleValidator().Validate(validArticle())

	if !res.IsValid {
		t.Fatalf("expected valid, got errors %v", res.Errors)
	}

	if res.Stats.Tables != 1 || res.Stats.ValidArticles != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		row   models.Row
		field string
	}{
		{
			name:  "missing title",
			row:   models.Row{"author": "Ada", "body": "x"},
			field: models.KeyTitle,
		},
		{
			name:  "blank author",
			row:   models.Row{"title": "t", "author": "  ", "body": "x"},
			field: models.KeyAuthor,
		},
		{
			name:  "null body",
			row:   models.Row{"title": "t", "author": "Ada", "body": nil},
			field: models.KeyBody,
		},
		{
			name:  "relative author URL",
			row:   models.Row{"title": "t", "author": "Ada", "body": "x", "authorUrl": "/ada"},
			field: models.KeyAuthorURL,
		},
		{
			name:  "ragged table",
			row:   models.Row{"title": "t", "author": "Ada", "body": "| a | b |\n| - | - |\n| 1 | 2 | 3 |"},
			field: models.KeyBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewArticleValidator().Validate(models.MustArticle(tt.row))

			if res.IsValid {
				t.Fatal("expected invalid result")
			}

			if len(res.Errors) != 1 || res.Errors[0].Field != tt.field {
				t.Errorf("errors = %v, want one on %s", res.Errors, tt.field)
			}
		})
	}
}

func TestValidate_RaggedTableLine(t *testing.T) {
	body := "intro\n\n| a | b |\n| - | - |\n| 1 |"

	res := NewArticleValidator(models.KeyTitle).Validate(models.MustArticle(models.Row{"title": "t", "body": body}))

	if len(res.Errors) != 1 || res.Errors[0].Line != 5 {
		t.Errorf("errors = %v, want one on line 5", res.Errors)
	}
}

func TestValidate_EscapedPipes(t *testing.T) {
	body := "| a | b |\n| - | - |\n| x \\| y | z |"

	res := NewArticleValidator().Validate(models.MustArticle(models.Row{"title": "t", "author": "a", "body": body}))
	if !res.IsValid {
		t.Errorf("escaped pipe counted as a cell: %v", res.Errors)
	}
}

func TestValidate_Batch(t *testing.T) {
	res := NewArticleValidator().Validate(
		validArticle(),
		models.MustArticle(models.Row{"title": "draft", "author": "a", "body": "b"}),
		models.MustArticle(models.Row{}),
	)

	if res.IsValid {
		t.Error("batch with an empty article should be invalid")
	}

	if res.Stats.TotalArticles != 3 || res.Stats.ValidArticles != 2 || res.Stats.InvalidArticles != 1 {
		t.Errorf("unexpected stats %+v", res.Stats)
	}

	if res.Stats.Drafts != 2 {
		t.Errorf("Drafts = %d, want 2", res.Stats.Drafts)
	}

	if res.Errors[0].Index != 2 {
		t.Errorf("error index = %d, want 2", res.Errors[0].Index)
	}

	if !strings.HasPrefix(res.String(), "INVALID | Total: 3") {
		t.Errorf("String() = %q", res.String())
	}

	var buf bytes.Buffer
	res.PrintErrors(&buf)

	if !strings.Contains(buf.String(), "article 2: [title] required field is empty") {
		t.Errorf("PrintErrors output:\n%s", buf.String())
	}
}

func TestValidate_RenderedBodyWarns(t *testing.T) {
	a := validArticle()
	a.SetRenderedBody("<p>done</p>")

	res := NewArticleValidator().Validate(a)
	if !res.IsValid || len(res.Warnings) != 1 {
		t.Errorf("expected valid with one warning, got %+v", res)
	}
}

func TestCheck(t *testing.T) {
	v := NewArticleValidator()

	if err := v.Check(validArticle()); err != nil {
		t.Errorf("Check(valid) = %v", err)
	}

	err := v.Check(models.MustArticle(models.Row{"title": "t"}))
	if !errors.Is(err, ErrInvalidArticle) {
		t.Fatalf("expected ErrInvalidArticle, got %v", err)
	}

	if !strings.Contains(err.Error(), "[author]") || !strings.Contains(err.Error(), "[body]") {
		t.Errorf("error missing fields: %v", err)
	}

	if strings.Contains(err.Error(), "article -1") {
		t.Errorf("single-article error carries an index: %v", err)
	}
}
