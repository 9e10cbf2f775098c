package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"blog/internal/formatter"
	"blog/internal/models"
	"blog/internal/render"
	"blog/internal/validator"
	"blog/pkg/utils"

	"github.com/spf13/cobra"
)

// ErrIDRequired is returned when a command needs --id and none was given.
var ErrIDRequired = errors.New("--id is required")

// ErrConfirmRequired is returned when truncate runs without --yes.
var ErrConfirmRequired = errors.New("refusing to delete every article without --yes")

func fetchCMD(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Fetch all articles, seeding an empty backend from the fixture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.svc.FetchAll(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d articles (seeding rounds: %d)\n", result.Loaded, result.Seeded)

			return nil
		},
	}
}

func listCMD(a *app) *cobra.Command {
	var width int

	list := &cobra.Command{
		Use:   "list",
		Short: "List articles as a table, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.svc.FetchAll(cmd.Context()); err != nil {
				return err
			}

			sh := utils.NewStringHelper()

			rows := make([][]string, 0, a.svc.Collection().Len())
			for _, art := range a.svc.Collection().All() {
				published := models.Deref(art.PublishedOn)
				if art.IsDraft() {
					published = render.DraftStatus
				}

				rows = append(rows, []string{
					strconv.FormatInt(art.ArticleID, 10),
					published,
					sh.TruncateString(sh.NormalizeWhitespace(models.Deref(art.Author)), width/2),
					sh.TruncateString(sh.NormalizeWhitespace(models.Deref(art.Title)), width),
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), formatter.Table([]string{"ID", "Published", "Author", "Title"}, rows))

			return nil
		},
	}

	list.Flags().IntVar(&width, "width", 50, "maximum title width")

	return list
}

func renderCMD(a *app) *cobra.Command {
	var (
		out   string
		title string
	)

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render every article to an HTML page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.svc.FetchAll(cmd.Context()); err != nil {
				return err
			}

			r, err := render.NewRenderer(a.cfg.Render, a.log)
			if err != nil {
				return err
			}

			page, err := r.RenderIndex(title, a.svc.Collection().All())
			if err != nil {
				return err
			}

			if out == "" {
				fmt.Fprint(cmd.OutOrStdout(), page)
				return nil
			}

			if err := os.WriteFile(out, []byte(page), 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}

			a.log.Info("Rendered articles", "count", a.svc.Collection().Len(), "output", out)

			return nil
		},
	}

	renderCmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	renderCmd.Flags().StringVar(&title, "title", "Blog", "page title")

	return renderCmd
}

func showCMD(a *app) *cobra.Command {
	var (
		id    int64
		style string
		wrap  int
	)

	show := &cobra.Command{
		Use:   "show",
		Short: "Print one article in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == 0 {
				return ErrIDRequired
			}

			art, err := a.svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			r, err := render.NewRenderer(a.cfg.Render, a.log)
			if err != nil {
				return err
			}

			term, err := render.NewTerminalRenderer(r, style, wrap)
			if err != nil {
				return err
			}

			text, err := term.Render(art)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), text)

			return nil
		},
	}

	show.Flags().Int64Var(&id, "id", 0, "article id")
	show.Flags().StringVar(&style, "style", "", "glamour style: dark, light, notty (default: detect)")
	show.Flags().IntVar(&wrap, "wrap", 80, "word wrap width")

	return show
}

func createCMD(a *app) *cobra.Command {
	var (
		file         string
		formatTables bool
		skipValidate bool
	)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an article from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			art, err := readArticle(file, formatTables)
			if err != nil {
				return err
			}

			if !skipValidate {
				if err := validator.NewArticleValidator().Check(art); err != nil {
					return err
				}
			}

			resp, err := a.svc.Insert(cmd.Context(), art)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Body)

			return nil
		},
	}

	create.Flags().StringVarP(&file, "file", "f", "", "JSON file holding one article (required)")
	create.Flags().BoolVar(&formatTables, "format-tables", false, "align markdown tables in the body")
	create.Flags().BoolVar(&skipValidate, "no-validate", false, "send the article without validating it")
	_ = create.MarkFlagRequired("file")

	return create
}

func updateCMD(a *app) *cobra.Command {
	var (
		id           int64
		file         string
		formatTables bool
		skipValidate bool
	)

	update := &cobra.Command{
		Use:   "update",
		Short: "Replace an article from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			art, err := readArticle(file, formatTables)
			if err != nil {
				return err
			}

			if id != 0 {
				art.ArticleID = id
			}

			if !skipValidate {
				if err := validator.NewArticleValidator().Check(art); err != nil {
					return err
				}
			}

			resp, err := a.svc.Update(cmd.Context(), art)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Body)

			return nil
		},
	}

	update.Flags().Int64Var(&id, "id", 0, "article id (overrides article_id in the file)")
	update.Flags().StringVarP(&file, "file", "f", "", "JSON file holding one article (required)")
	update.Flags().BoolVar(&formatTables, "format-tables", false, "align markdown tables in the body")
	update.Flags().BoolVar(&skipValidate, "no-validate", false, "send the article without validating it")
	_ = update.MarkFlagRequired("file")

	return update
}

func deleteCMD(a *app) *cobra.Command {
	var id int64

	del := &cobra.Command{
		Use:   "delete",
		Short: "Delete one article",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == 0 {
				return ErrIDRequired
			}

			resp, err := a.svc.Delete(cmd.Context(), &models.Article{ArticleID: id})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Body)

			return nil
		},
	}

	del.Flags().Int64Var(&id, "id", 0, "article id")

	return del
}

func truncateCMD(a *app) *cobra.Command {
	var yes bool

	truncate := &cobra.Command{
		Use:   "truncate",
		Short: "Delete every article on the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return ErrConfirmRequired
			}

			if err := a.svc.Truncate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "All articles deleted")

			return nil
		},
	}

	truncate.Flags().BoolVar(&yes, "yes", false, "confirm deleting every article")

	return truncate
}

func seedCMD(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Post every fixture entry to the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.svc.Seed(cmd.Context())
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d/%d articles in %s\n",
					report.Created, report.Attempted, report.Duration.Round(time.Millisecond))

				for _, e := range report.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %v\n", e)
				}
			}

			return err
		},
	}
}

// readArticle reads a single article row from a JSON file.
func readArticle(path string, formatTables bool) (*models.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var row models.Row
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	art, err := models.NewArticle(row)
	if err != nil {
		return nil, err
	}

	if formatTables && art.Body != nil {
		art.Body = models.StrPtr(formatter.FormatMarkdown(*art.Body))
	}

	return art, nil
}
