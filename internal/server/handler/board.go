package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/oddsdesk/internal/server/middleware"
	"github.com/alanyoungcy/oddsdesk/internal/service"
)

// BoardService is what the board endpoints need from service.BoardService.
type BoardService interface {
	View(opts service.ViewOptions) service.BoardView
	MoversView(entitled bool) service.MoversView
	Sport() string
	Sports() []string
	SetSport(sport string) (uint64, error)
	Status() service.BoardStatus
}

// BoardHandler serves the board, the movers list and the active sport.
type BoardHandler struct {
	board  BoardService
	logger *slog.Logger
}

// NewBoardHandler creates a BoardHandler.
func NewBoardHandler(board BoardService, logger *slog.Logger) *BoardHandler {
	return &BoardHandler{board: board, logger: logger}
}

// GetBoard returns the board for the active sport. q narrows it to markets
// whose event or a runner is similar to the query.
// GET /api/board?q=celtics
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	view := h.board.View(service.ViewOptions{
		Entitled: middleware.IsEntitled(r.Context()),
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
	})
	writeJSON(w, http.StatusOK, view)
}

// GetMovers returns the movers for the active sport.
// GET /api/movers
func (h *BoardHandler) GetMovers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.board.MoversView(middleware.IsEntitled(r.Context())))
}

type sportResponse struct {
	Sport      string   `json:"sport"`
	Sports     []string `json:"sports"`
	Generation uint64   `json:"generation"`
}

// GetSport returns the active sport and the choices.
// GET /api/sport
func (h *BoardHandler) GetSport(w http.ResponseWriter, r *http.Request) {
	st := h.board.Status()
	writeJSON(w, http.StatusOK, sportResponse{
		Sport:      st.Sport,
		Sports:     h.board.Sports(),
		Generation: st.Generation,
	})
}

type setSportRequest struct {
	Sport string `json:"sport"`
}

// SetSport switches the active sport. The board empties until the next
// snapshot for the new sport lands.
// POST /api/sport {"sport":"NFL"}
func (h *BoardHandler) SetSport(w http.ResponseWriter, r *http.Request) {
	var req setSportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	gen, err := h.board.SetSport(req.Sport)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSport) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "unknown sport",
				"sports": h.board.Sports(),
			})
			return
		}
		h.logger.ErrorContext(r.Context(), "set sport failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to switch sport")
		return
	}

	writeJSON(w, http.StatusOK, sportResponse{
		Sport:      h.board.Sport(),
		Sports:     h.board.Sports(),
		Generation: gen,
	})
}
