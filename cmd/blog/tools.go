package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"blog/internal/formatter"
	"blog/internal/models"
	"blog/internal/validator"

	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned when validate finds invalid articles.
var ErrValidationFailed = errors.New("validation failed")

// ErrUnformatted is returned by format in dry-run mode when files would change.
var ErrUnformatted = errors.New("files need formatting, run with --write")

func validateCMD(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate article JSON files (single objects or arrays)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := validator.NewArticleValidator()
			out := cmd.OutOrStdout()
			failed := false

			for _, path := range args {
				list, err := readArticles(path)
				if err != nil {
					return err
				}

				res := v.Validate(list...)
				fmt.Fprintf(out, "%s: %s\n", path, res)
				res.PrintErrors(out)
				res.PrintWarnings(out)

				if !res.IsValid {
					failed = true
				}
			}

			a.log.Debug("Validation finished", "files", len(args), "failed", failed)

			if failed {
				return ErrValidationFailed
			}

			return nil
		},
	}
}

func formatCMD(a *app) *cobra.Command {
	var write bool

	format := &cobra.Command{
		Use:   "format PATH",
		Short: "Align markdown tables in .md files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			scanned, changed := 0, 0

			err := filepath.WalkDir(args[0], func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}

				if d.IsDir() {
					// Skip .git and friends
					if strings.HasPrefix(d.Name(), ".") && path != args[0] {
						return filepath.SkipDir
					}

					return nil
				}

				if strings.ToLower(filepath.Ext(path)) != ".md" {
					return nil
				}

				scanned++

				wasChanged, err := formatFile(path, write)
				if err != nil {
					return fmt.Errorf("failed to format %s: %w", path, err)
				}

				if wasChanged {
					changed++

					if write {
						fmt.Fprintf(out, "Formatted: %s\n", path)
					} else {
						fmt.Fprintf(out, "Would format: %s\n", path)
					}
				}

				return nil
			})
			if err != nil {
				return err
			}

			a.log.Info("Format complete", "scanned", scanned, "changed", changed, "write", write)

			if changed > 0 && !write {
				return ErrUnformatted
			}

			return nil
		},
	}

	format.Flags().BoolVarP(&write, "write", "w", false, "write changes (default: dry-run)")

	return format
}

func formatFile(path string, write bool) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	formatted := formatter.FormatMarkdown(string(content))
	if formatted == string(content) {
		return false, nil
	}

	if write {
		if err := os.WriteFile(path, []byte(formatted), 0644); err != nil {
			return false, err
		}
	}

	return true, nil
}

// readArticles reads a JSON file holding one article or an array of them.
func readArticles(path string) ([]*models.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var rows []models.Row
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	} else {
		var row models.Row
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}

		rows = []models.Row{row}
	}

	list := make([]*models.Article, 0, len(rows))
	for i, row := range rows {
		art, err := models.NewArticle(row)
		if err != nil {
			return nil, fmt.Errorf("%s: article %d: %w", path, i, err)
		}

		list = append(list, art)
	}

	return list, nil
}
