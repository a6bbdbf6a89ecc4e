package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeFeed struct {
	mu      sync.Mutex
	rows    []domain.SelectionRow
	err     error
	queries []domain.SnapshotQuery
	hook    func(q domain.SnapshotQuery)
}

func (f *fakeFeed) ListSelections(_ context.Context, q domain.SnapshotQuery) ([]domain.SelectionRow, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	hook, rows, err := f.hook, f.rows, f.err
	f.mu.Unlock()
	if hook != nil {
		hook(q)
	}
	return rows, err
}

func (f *fakeFeed) set(rows []domain.SelectionRow, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.err = rows, err
}

func (f *fakeFeed) sports() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.queries))
	for _, q := range f.queries {
		out = append(out, q.Sport)
	}
	return out
}

type fakeMovers struct {
	movers []domain.Mover
	err    error
	window int
}

func (f *fakeMovers) ListMovers(_ context.Context, window int) ([]domain.Mover, error) {
	f.window = window
	return f.movers, f.err
}

type fakeCache struct {
	mu     sync.Mutex
	boards map[string]domain.CachedBoard
}

func newFakeCache() *fakeCache { return &fakeCache{boards: map[string]domain.CachedBoard{}} }

func (c *fakeCache) SetBoard(_ context.Context, b domain.CachedBoard) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards[b.Sport] = b
	return nil
}

func (c *fakeCache) GetBoard(_ context.Context, sport string) (domain.CachedBoard, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.boards[sport]
	if !ok {
		return domain.CachedBoard{}, domain.ErrNotFound
	}
	return b, nil
}

type published struct {
	channel string
	payload []byte
}

type fakeBus struct {
	mu      sync.Mutex
	pubs    []published
	streams map[string][][]byte
}

func newFakeBus() *fakeBus { return &fakeBus{streams: map[string][][]byte{}} }

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pubs = append(b.pubs, published{channel, payload})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *fakeBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.pubs))
	for _, p := range b.pubs {
		out = append(out, p.channel)
	}
	return out
}

type fakeAlertStore struct {
	records map[string]domain.AlertRecord
	sent    []time.Time
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{records: map[string]domain.AlertRecord{}}
}

func (s *fakeAlertStore) Last(_ context.Context, key string) (domain.AlertRecord, error) {
	r, ok := s.records[key]
	if !ok {
		return domain.AlertRecord{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *fakeAlertStore) Record(_ context.Context, rec domain.AlertRecord) error {
	prev := s.records[rec.RunnerKey]
	rec.Count = prev.Count + 1
	s.records[rec.RunnerKey] = rec
	s.sent = append(s.sent, rec.SentAt)
	return nil
}

func (s *fakeAlertStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, t := range s.sent {
		if t.After(since) {
			n++
		}
	}
	return n, nil
}

type fakeLocks struct {
	held bool
}

func (l *fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	l.held = true
	return func() { l.held = false }, nil
}

type recordingNotifier struct {
	err      error
	events   []string
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _ string, message string) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	n.messages = append(n.messages, message)
	return nil
}
