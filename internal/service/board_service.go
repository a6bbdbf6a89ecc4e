package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/grouping"
	"github.com/alanyoungcy/oddsdesk/internal/pipeline"
	"github.com/alanyoungcy/oddsdesk/internal/steam"
)

// MoversChannel carries movers-updated notices.
const MoversChannel = "movers"

// BoardChannel is the notice channel for sport's board.
func BoardChannel(sport string) string {
	return "board:" + strings.ToLower(sport)
}

// ErrUnknownSport is returned by SetSport for sports outside the configured
// list.
var ErrUnknownSport = errors.New("unknown sport")

// BoardConfig holds the polling and filtering parameters.
type BoardConfig struct {
	Sport               string
	Sports              []string
	SnapshotInterval    time.Duration
	MoversInterval      time.Duration
	MoversWindowMinutes int
	TickTimeout         time.Duration
	StartLookback       time.Duration
	Heartbeat           time.Duration
	PreMatchOnly        bool
	WarmStartMaxAge     time.Duration
}

// Notice is the small message published on every state change. Clients
// refetch the full view over REST.
type Notice struct {
	Type       string    `json:"type"`
	Sport      string    `json:"sport"`
	Generation uint64    `json:"generation"`
	Count      int       `json:"count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PollStatus reports a poller's counters.
type PollStatus struct {
	Runs     int64 `json:"runs"`
	Failures int64 `json:"failures"`
	Skipped  int64 `json:"skipped"`
}

// BoardStatus summarizes the service for the health endpoint.
type BoardStatus struct {
	Sport           string     `json:"sport"`
	Generation      uint64     `json:"generation"`
	Markets         int        `json:"markets"`
	Movers          int        `json:"movers"`
	BoardUpdatedAt  time.Time  `json:"board_updated_at"`
	MoversUpdatedAt time.Time  `json:"movers_updated_at"`
	Snapshots       PollStatus `json:"snapshots"`
	MoverPolls      PollStatus `json:"mover_polls"`
}

// BoardService is the single owner of the view state: the active sport, the
// current board and movers, and a generation counter bumped on every sport
// switch. Two pollers refresh the board and the movers; each successful tick
// replaces its half of the state atomically, and a tick that started under
// an older generation is discarded.
type BoardService struct {
	feed     domain.FeedStore
	movers   domain.MoverStore
	engine   *grouping.Engine
	cache    domain.BoardCache
	bus      domain.SignalBus
	renderer *Renderer
	cfg      BoardConfig
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	state    Snapshot
	snapPoll *pipeline.Poller
	movePoll *pipeline.Poller

	restart chan struct{}
}

// NewBoardService creates a BoardService. cache and bus may be nil.
func NewBoardService(
	feed domain.FeedStore,
	movers domain.MoverStore,
	engine *grouping.Engine,
	cache domain.BoardCache,
	bus domain.SignalBus,
	renderer *Renderer,
	cfg BoardConfig,
	logger *slog.Logger,
) *BoardService {
	return &BoardService{
		feed:     feed,
		movers:   movers,
		engine:   engine,
		cache:    cache,
		bus:      bus,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "board")),
		now:      time.Now,
		state:    Snapshot{Sport: cfg.Sport, Board: domain.Board{}},
		restart:  make(chan struct{}, 1),
	}
}

// Name returns "board".
func (s *BoardService) Name() string { return "board" }

// Run polls until ctx is cancelled, restarting both pollers whenever the
// sport changes.
func (s *BoardService) Run(ctx context.Context) error {
	s.warmStart(ctx)

	for {
		genCtx, cancel := context.WithCancel(ctx)
		snap := pipeline.NewPoller("snapshots", s.cfg.SnapshotInterval, s.cfg.TickTimeout, s.RefreshBoard, s.logger)
		move := pipeline.NewPoller("movers", s.cfg.MoversInterval, s.cfg.TickTimeout, s.RefreshMovers, s.logger)

		s.mu.Lock()
		s.snapPoll, s.movePoll = snap, move
		sport := s.state.Sport
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "polling started", slog.String("sport", sport))

		done := make(chan error, 1)
		go func() { done <- pipeline.NewOrchestrator(s.logger, snap, move).Run(genCtx) }()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return ctx.Err()
		case <-s.restart:
			cancel()
			<-done
		case err := <-done:
			cancel()
			if err != nil {
				return err
			}
			return ctx.Err()
		}
	}
}

// Sport returns the active sport.
func (s *BoardService) Sport() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Sport
}

// Sports returns the configured sport list.
func (s *BoardService) Sports() []string {
	return s.cfg.Sports
}

// SetSport switches the active sport. State is reset to empty, the
// generation is bumped and the pollers restart. Switching to the current
// sport is a no-op. It returns the generation now in effect.
func (s *BoardService) SetSport(sport string) (uint64, error) {
	canonical, ok := s.canonicalSport(sport)
	if !ok {
		return 0, fmt.Errorf("board_service: %w: %q", ErrUnknownSport, sport)
	}

	s.mu.Lock()
	if s.state.Sport == canonical {
		gen := s.state.Generation
		s.mu.Unlock()
		return gen, nil
	}
	gen := s.state.Generation + 1
	s.state = Snapshot{Sport: canonical, Generation: gen, Board: domain.Board{}}
	s.mu.Unlock()

	select {
	case s.restart <- struct{}{}:
	default:
	}
	s.logger.Info("sport switched", slog.String("sport", canonical), slog.Uint64("generation", gen))
	return gen, nil
}

func (s *BoardService) canonicalSport(sport string) (string, bool) {
	sport = strings.TrimSpace(sport)
	if sport == "" {
		return "", false
	}
	if len(s.cfg.Sports) == 0 {
		return sport, true
	}
	for _, known := range s.cfg.Sports {
		if strings.EqualFold(known, sport) {
			return known, true
		}
	}
	return "", false
}

// Snapshot returns the current state. The board and movers are replaced
// wholesale on update and never mutated, so the copy shares them.
func (s *BoardService) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// View renders the board for one request.
func (s *BoardService) View(opts ViewOptions) BoardView {
	if opts.Now.IsZero() {
		opts.Now = s.now()
	}
	return s.renderer.Board(s.Snapshot(), opts)
}

// MoversView renders the movers for one request.
func (s *BoardService) MoversView(entitled bool) MoversView {
	return s.renderer.Movers(s.Snapshot(), entitled)
}

// ArchiveSnapshot returns the entitled view of the current board once the
// first snapshot has landed.
func (s *BoardService) ArchiveSnapshot() (string, any, bool) {
	snap := s.Snapshot()
	if snap.BoardUpdatedAt.IsZero() {
		return "", nil, false
	}
	return snap.Sport, s.renderer.Board(snap, ViewOptions{Entitled: true, Now: s.now()}), true
}

// Status summarizes state and poller counters.
func (s *BoardService) Status() BoardStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := BoardStatus{
		Sport:           s.state.Sport,
		Generation:      s.state.Generation,
		Markets:         s.state.Board.MarketCount(),
		Movers:          len(s.state.Movers),
		BoardUpdatedAt:  s.state.BoardUpdatedAt,
		MoversUpdatedAt: s.state.MoversUpdatedAt,
	}
	if s.snapPoll != nil {
		st.Snapshots = PollStatus(s.snapPoll.Stats())
	}
	if s.movePoll != nil {
		st.MoverPolls = PollStatus(s.movePoll.Stats())
	}
	return st
}

func (s *BoardService) current() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Sport, s.state.Generation
}

// RefreshBoard runs one snapshot tick: fetch, filter, group, commit.
func (s *BoardService) RefreshBoard(ctx context.Context) error {
	sport, gen := s.current()
	now := s.now()

	rows, err := s.feed.ListSelections(ctx, domain.SnapshotQuery{
		Sport:        sport,
		StartAfter:   now.Add(-s.cfg.StartLookback),
		PreMatchOnly: s.cfg.PreMatchOnly,
	})
	if err != nil {
		return &domain.FetchError{Source: "snapshot", Err: err}
	}

	board, rowErrs, err := s.group(rows, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "grouping failed, keeping previous board", slog.String("error", err.Error()))
		return err
	}
	if len(rowErrs) > 0 {
		s.logger.DebugContext(ctx, "malformed rows dropped",
			slog.Int("count", len(rowErrs)),
			slog.String("first", rowErrs[0].Error()),
		)
	}

	s.mu.Lock()
	if s.state.Generation != gen {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding stale snapshot", slog.Uint64("generation", gen))
		return nil
	}
	s.state.Board = board
	s.state.BoardUpdatedAt = now
	s.mu.Unlock()

	s.publish(ctx, BoardChannel(sport), Notice{
		Type: "board", Sport: sport, Generation: gen, Count: board.MarketCount(), UpdatedAt: now,
	})
	if s.cache != nil {
		if err := s.cache.SetBoard(ctx, domain.CachedBoard{Sport: sport, Board: board, UpdatedAt: now}); err != nil {
			s.logger.WarnContext(ctx, "board cache write failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

// RefreshMovers runs one movers tick: fetch, classify, index, commit.
func (s *BoardService) RefreshMovers(ctx context.Context) error {
	sport, gen := s.current()
	now := s.now()

	raw, err := s.movers.ListMovers(ctx, s.cfg.MoversWindowMinutes)
	if err != nil {
		return &domain.FetchError{Source: "movers", Err: err}
	}

	movers, overlay, err := s.classify(raw, sport)
	if err != nil {
		s.logger.ErrorContext(ctx, "classify failed, keeping previous movers", slog.String("error", err.Error()))
		return err
	}

	s.mu.Lock()
	if s.state.Generation != gen {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "discarding stale movers", slog.Uint64("generation", gen))
		return nil
	}
	s.state.Movers = movers
	s.state.Overlay = overlay
	s.state.MoversUpdatedAt = now
	s.mu.Unlock()

	s.publish(ctx, MoversChannel, Notice{
		Type: "movers", Sport: sport, Generation: gen, Count: len(movers), UpdatedAt: now,
	})
	return nil
}

// group recovers a panic in the transform into a GroupingError.
func (s *BoardService) group(rows []domain.SelectionRow, now time.Time) (board domain.Board, rowErrs []error, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.GroupingError{Stage: "group", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	active := grouping.Filter(rows, grouping.FilterOptions{
		Now:          now,
		Heartbeat:    s.cfg.Heartbeat,
		PreMatchOnly: s.cfg.PreMatchOnly,
	})
	board, rowErrs = s.engine.Group(active)
	return board, rowErrs, nil
}

func (s *BoardService) classify(raw []domain.Mover, sport string) (movers []domain.Mover, overlay *steam.Overlay, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &domain.GroupingError{Stage: "classify", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	movers = steam.Classify(raw, sport)
	return movers, steam.BuildOverlay(movers, s.engine.Normalizer()), nil
}

func (s *BoardService) publish(ctx context.Context, channel string, n Notice) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "publish notice failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// warmStart restores the cached board for the startup sport when it is
// fresh enough.
func (s *BoardService) warmStart(ctx context.Context) {
	if s.cache == nil || s.cfg.WarmStartMaxAge <= 0 {
		return
	}
	sport, gen := s.current()

	cached, err := s.cache.GetBoard(ctx, sport)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "warm start read failed", slog.String("error", err.Error()))
		}
		return
	}
	age := s.now().Sub(cached.UpdatedAt)
	if age > s.cfg.WarmStartMaxAge || !strings.EqualFold(cached.Sport, sport) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generation != gen || !s.state.BoardUpdatedAt.IsZero() {
		return
	}
	s.state.Board = cached.Board
	s.state.BoardUpdatedAt = cached.UpdatedAt
	s.logger.InfoContext(ctx, "warm start from cache",
		slog.String("sport", sport),
		slog.Int("markets", cached.Board.MarketCount()),
		slog.Duration("age", age),
	)
}
