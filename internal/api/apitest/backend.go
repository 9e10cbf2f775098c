// Package apitest provides an in-memory article backend for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	"blog/internal/models"
)

// Backend serves the article REST surface from memory.
type Backend struct {
	*httptest.Server

	rows     []models.Row
	requests []string
	mu       sync.Mutex
	nextID   int64
}

// NewBackend starts a backend holding the given rows. Rows without an
// article_id get one assigned.
func NewBackend(rows ...models.Row) *Backend {
	b := &Backend{}
	for _, row := range rows {
		b.insert(row)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /articles", b.list)
	mux.HandleFunc("POST /articles", b.create)
	mux.HandleFunc("DELETE /articles", b.deleteAll)
	mux.HandleFunc("GET /articles/{id}", b.get)
	mux.HandleFunc("PUT /articles/{id}", b.update)
	mux.HandleFunc("DELETE /articles/{id}", b.delete)

	b.Server = httptest.NewServer(b.record(mux))

	return b
}

// Rows returns a copy of the stored rows.
func (b *Backend) Rows() []models.Row {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.Row, len(b.rows))
	for i, r := range b.rows {
		out[i] = r.Clone()
	}

	return out
}

// Requests returns "METHOD /path" for every request served so far.
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.requests...)
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, r.Method+" "+r.URL.Path)
		b.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (b *Backend) insert(row models.Row) {
	row = row.Clone()
	if _, ok := row[models.KeyArticleID]; !ok {
		b.nextID++
		row[models.KeyArticleID] = b.nextID
	}

	b.rows = append(b.rows, row)
}

func (b *Backend) list(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, b.Rows())
}

func (b *Backend) get(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.index(r); i >= 0 {
		writeJSON(w, []models.Row{b.rows[i]})
		return
	}

	writeJSON(w, []models.Row{})
}

func (b *Backend) create(w http.ResponseWriter, r *http.Request) {
	row, err := decodePayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	delete(row, models.KeyArticleID)
	b.insert(row)
	b.mu.Unlock()

	w.Write([]byte("insert complete"))
}

func (b *Backend) update(w http.ResponseWriter, r *http.Request) {
	row, err := decodePayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.index(r)
	if i < 0 {
		http.NotFound(w, r)
		return
	}

	row[models.KeyArticleID] = b.rows[i][models.KeyArticleID]
	b.rows[i] = row

	w.Write([]byte("update complete"))
}

func (b *Backend) delete(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.index(r); i >= 0 {
		b.rows = append(b.rows[:i], b.rows[i+1:]...)
	}

	w.Write([]byte("Delete complete"))
}

func (b *Backend) deleteAll(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.rows = nil
	b.mu.Unlock()

	w.Write([]byte("Delete complete"))
}

// index finds the row addressed by the {id} path value. Callers hold mu.
func (b *Backend) index(r *http.Request) int {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return -1
	}

	for i, row := range b.rows {
		if rowID(row) == id {
			return i
		}
	}

	return -1
}

func rowID(row models.Row) int64 {
	switch v := row[models.KeyArticleID].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}

	return 0
}

func decodePayload(r *http.Request) (models.Row, error) {
	if r.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}

		return formRow(r.PostForm), nil
	}

	var row models.Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		return nil, err
	}

	return row, nil
}

func formRow(form url.Values) models.Row {
	row := make(models.Row, len(form))
	for key := range form {
		row[key] = form.Get(key)
	}

	return row
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
