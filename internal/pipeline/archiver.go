package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// BoardArchiver stores one board view and returns where it went.
type BoardArchiver interface {
	Archive(ctx context.Context, sport string, v any) (string, error)
}

// SnapshotSource yields the board view to archive. ok is false when there
// is nothing worth writing yet.
type SnapshotSource interface {
	ArchiveSnapshot() (sport string, view any, ok bool)
}

// Archiver writes the current board to object storage on a cron schedule.
type Archiver struct {
	store  BoardArchiver
	source SnapshotSource
	cron   string
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver firing on cronExpr.
func NewArchiver(store BoardArchiver, source SnapshotSource, cronExpr string, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		source: source,
		cron:   cronExpr,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// Name returns "archiver".
func (a *Archiver) Name() string { return "archiver" }

// RunOnce archives the current snapshot. It returns the object path, or ""
// when the source had nothing to write.
func (a *Archiver) RunOnce(ctx context.Context) (string, error) {
	sport, view, ok := a.source.ArchiveSnapshot()
	if !ok {
		a.logger.DebugContext(ctx, "nothing to archive")
		return "", nil
	}

	path, err := a.store.Archive(ctx, sport, view)
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", sport, err)
	}
	a.logger.InfoContext(ctx, "board archived", slog.String("sport", sport), slog.String("path", path))
	return path, nil
}

// Run fires RunOnce on every cron match until ctx is cancelled. Failed runs
// are logged and retried at the next match.
func (a *Archiver) Run(ctx context.Context) error {
	sched, err := ParseCron(a.cron)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", a.cron, err)
	}
	a.logger.InfoContext(ctx, "archiver cron started", slog.String("cron", a.cron))

	for {
		next, err := sched.Next(a.now().UTC())
		if err != nil {
			return err
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := a.RunOnce(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField matches one cron position. A nil set matches everything.
type cronField struct {
	set map[int]bool
}

func (f cronField) matches(v int) bool {
	return f.set == nil || f.set[v]
}

// parseCronField accepts "*", "*/n", "a", "a-b", "a-b/n" and comma lists of
// those, bounded to [lo, hi].
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{}, nil
	}

	set := make(map[int]bool)
	for part := range strings.SplitSeq(field, ",") {
		rng, stepStr, hasStep := strings.Cut(strings.TrimSpace(part), "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepStr)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid step %q", stepStr)
			}
			step = n
		}

		from, to := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return cronField{}, fmt.Errorf("invalid range start %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return cronField{}, fmt.Errorf("invalid range end %q", b)
			}
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid value %q", rng)
			}
			from = v
			if !hasStep {
				to = v
			}
		}

		if from < lo || to > hi || from > to {
			return cronField{}, fmt.Errorf("%q out of range [%d, %d]", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			set[v] = true
		}
	}
	return cronField{set: set}, nil
}

// Schedule is a parsed five-field cron expression
// (minute hour day-of-month month day-of-week), evaluated in UTC.
type Schedule struct {
	minute, hour, dom, month, dow cronField
}

// ParseCron parses a five-field cron expression.
func ParseCron(expr string) (Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Schedule{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	parsed := make([]cronField, 5)
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return Schedule{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}

	return Schedule{
		minute: parsed[0],
		hour:   parsed[1],
		dom:    parsed[2],
		month:  parsed[3],
		dow:    parsed[4],
	}, nil
}

func (s Schedule) matches(t time.Time) bool {
	return s.minute.matches(t.Minute()) &&
		s.hour.matches(t.Hour()) &&
		s.dom.matches(t.Day()) &&
		s.month.matches(int(t.Month())) &&
		s.dow.matches(int(t.Weekday()))
}

// Next returns the first matching minute strictly after after, searching up
// to one year ahead.
func (s Schedule) Next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if s.matches(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, errors.New("no matching cron time within one year")
}
