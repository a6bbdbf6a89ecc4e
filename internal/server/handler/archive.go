package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/oddsdesk/internal/blob/s3"
	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// ArchiveStore lists and opens archived boards.
type ArchiveStore interface {
	List(ctx context.Context, sport string, day time.Time) ([]domain.BlobInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// ArchiveHandler serves the board archive.
type ArchiveHandler struct {
	store  ArchiveStore
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(store ArchiveStore, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{store: store, logger: logger, now: time.Now}
}

// ListArchive lists the boards archived for a sport on a UTC day, newest
// first. date defaults to today.
// GET /api/archive?sport=NBA&date=2026-03-14
func (h *ArchiveHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sport := strings.TrimSpace(q.Get("sport"))
	if sport == "" {
		writeError(w, http.StatusBadRequest, "missing sport")
		return
	}

	day := h.now().UTC()
	if v := q.Get("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}

	items, err := h.store.List(r.Context(), sport, day)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archive failed", slog.String("sport", sport), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	if items == nil {
		items = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sport": sport,
		"date":  day.Format(time.DateOnly),
		"items": items,
	})
}

// GetArchiveObject streams one archived board.
// GET /api/archive/object?path=boards/nba/2026-03-14/181500-<id>.json
func (h *ArchiveHandler) GetArchiveObject(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}

	rc, err := h.store.Open(r.Context(), p)
	switch {
	case errors.Is(err, s3blob.ErrOutsideArchive):
		writeError(w, http.StatusBadRequest, "path outside archive")
		return
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "archive object not found")
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "open archive object failed", slog.String("path", p), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read archive object")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted", slog.String("path", p), slog.String("error", err.Error()))
	}
}
