// Package fixture loads the static seed rows used to populate an empty backend.
package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"blog/internal/models"
	"blog/pkg/utils"
)

// maxFixtureBytes limits how much of a remote fixture is read.
const maxFixtureBytes = 10 * 1024 * 1024

// Fixture errors.
var (
	ErrEmptyLocation = errors.New("fixture location is empty")
	ErrFetchFixture  = errors.New("failed to fetch fixture")
	ErrParseFixture  = errors.New("failed to parse fixture")
)

// Source provides the rows used for seeding.
type Source interface {
	Load(ctx context.Context) ([]models.Row, error)
}

// Ensure both sources implement Source.
var (
	_ Source = (*FileSource)(nil)
	_ Source = (*HTTPSource)(nil)
)

// NewSource picks an HTTPSource for http(s) URLs and a FileSource otherwise.
func NewSource(location, userAgent string, timeout time.Duration) (Source, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrEmptyLocation
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, userAgent, timeout), nil
	}

	return NewFileSource(location), nil
}

// FileSource reads a fixture from the local filesystem.
type FileSource struct {
	path string
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load reads and decodes the fixture file.
func (s *FileSource) Load(ctx context.Context) ([]models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return Decode(data)
}

func (s *FileSource) String() string {
	return s.path
}

// HTTPSource downloads a fixture over HTTP.
type HTTPSource struct {
	client  *http.Client
	headers *utils.HTTPHelper
	url     string
}

// NewHTTPSource creates a source for the fixture served at url.
func NewHTTPSource(url, userAgent string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client:  &http.Client{Timeout: timeout},
		headers: utils.NewHTTPHelper(userAgent),
		url:     url,
	}
}

// Load downloads and decodes the fixture.
func (s *HTTPSource) Load(ctx context.Context) ([]models.Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = s.headers.BuildHeaders(nil)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFixture, err)
	}
	defer resp.Body.Close()

	if !utils.IsSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetchFixture, s.url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFixtureBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return Decode(data)
}

func (s *HTTPSource) String() string {
	return s.url
}

// Decode parses a JSON array of rows.
func Decode(data []byte) ([]models.Row, error) {
	var rows []models.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFixture, err)
	}

	return rows, nil
}
