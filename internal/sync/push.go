package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
	"facekiosk/pkg/domain/attendance"
)

// pushBatchLimit bounds how many logs one cycle drains. The next cycle
// picks up the remainder five seconds later.
const pushBatchLimit = 500

// PushResult counts what one push cycle moved upstream.
type PushResult struct {
	LogsPushed  int
	LogsFailed  int
	DailyPushed int
	DailyFailed int
}

// Pusher drains unsynced attendance upstream. Rows are pushed in
// log_time order so the server sees per-employee events in the order
// they happened; a failing row is skipped and stays unsynced for the
// next cycle.
type Pusher struct {
	store      *store.Store
	remote     Remote
	clk        clock.Clock
	windowDays int
	log        zerolog.Logger
}

// NewPusher builds the push side. windowDays bounds how far back
// daily summaries are re-pushed.
func NewPusher(st *store.Store, remote Remote, clk clock.Clock, windowDays int, log zerolog.Logger) *Pusher {
	return &Pusher{
		store:      st,
		remote:     remote,
		clk:        clk,
		windowDays: windowDays,
		log:        log.With().Str("component", "push").Logger(),
	}
}

// RunOnce executes one push cycle and records the outcome per stream.
// It returns the counts; connectivity faults are absorbed into the
// sync_status rows rather than returned.
func (p *Pusher) RunOnce(ctx context.Context) PushResult {
	var res PushResult
	now := p.clk.Now()

	var logsErr, dailyErr string
	res.LogsPushed, res.LogsFailed, logsErr = p.pushLogs(ctx, now)
	p.recordPush(ctx, "attendance_logs", res.LogsFailed == 0, logsErr, now)

	res.DailyPushed, res.DailyFailed, dailyErr = p.pushDaily(ctx, now)
	p.recordPush(ctx, "daily_attendance", res.DailyFailed == 0, dailyErr, now)

	if res.LogsPushed+res.DailyPushed > 0 {
		p.log.Info().Int("logs", res.LogsPushed).Int("daily", res.DailyPushed).
			Msg("pushed attendance upstream")
	}
	return res
}

func (p *Pusher) pushLogs(ctx context.Context, now time.Time) (pushed, failed int, lastErr string) {
	logs, err := p.store.UnsyncedLogs(ctx, pushBatchLimit)
	if err != nil {
		p.log.Error().Err(err).Msg("listing unsynced logs failed")
		return 0, 1, err.Error()
	}
	for _, l := range logs {
		if ctx.Err() != nil {
			return pushed, failed, lastErr
		}
		mirrorID, err := p.remote.InsertAttendanceLog(ctx, l)
		if err != nil {
			// Leave the row unsynced; later rows still get a chance.
			p.log.Warn().Err(err).Int64("log_id", l.ID).Msg("log push failed")
			failed++
			lastErr = err.Error()
			continue
		}
		if err := p.store.MarkLogSynced(ctx, l.ID, mirrorID, now); err != nil {
			p.log.Error().Err(err).Int64("log_id", l.ID).Msg("marking log synced failed")
			failed++
			lastErr = err.Error()
			continue
		}
		pushed++
	}
	return pushed, failed, lastErr
}

func (p *Pusher) pushDaily(ctx context.Context, now time.Time) (pushed, failed int, lastErr string) {
	cutoff := now.AddDate(0, 0, -p.windowDays).Format(attendance.DateLayout)
	daily, err := p.store.DailySince(ctx, cutoff)
	if err != nil {
		p.log.Error().Err(err).Msg("listing daily summaries failed")
		return 0, 1, err.Error()
	}
	for _, d := range daily {
		if ctx.Err() != nil {
			return pushed, failed, lastErr
		}
		if err := p.remote.UpsertDailyAttendance(ctx, d); err != nil {
			p.log.Warn().Err(err).Int64("employee_id", d.EmployeeID).Str("date", d.Date).
				Msg("daily push failed")
			failed++
			lastErr = err.Error()
			continue
		}
		pushed++
	}
	return pushed, failed, lastErr
}

func (p *Pusher) recordPush(ctx context.Context, stream string, ok bool, lastErr string, now time.Time) {
	if err := p.store.RecordPush(ctx, stream, ok, lastErr, now); err != nil {
		p.log.Error().Err(err).Str("stream", stream).Msg("recording push status failed")
	}
}
