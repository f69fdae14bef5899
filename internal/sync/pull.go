package sync

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"facekiosk/internal/store"
	"facekiosk/pkg/clock"
	kioskerrors "facekiosk/pkg/errors"
)

// PullResult counts what one pull cycle mirrored down, and whether the
// roster or gallery changed in a way that requires an index rebuild.
type PullResult struct {
	Employees     int
	Schedules     int
	Periods       int
	PeriodsGone   int
	Assignments   int
	AssignsGone   int
	Daily         int
	Embeddings    int
	RosterChanged bool
}

// Puller mirrors server data into the local store. Streams are
// isolated: one failing stream records its error and the rest still
// run.
type Puller struct {
	store  *store.Store
	remote Remote
	clk    clock.Clock
	log    zerolog.Logger
}

// NewPuller builds the pull side.
func NewPuller(st *store.Store, remote Remote, clk clock.Clock, log zerolog.Logger) *Puller {
	return &Puller{
		store:  st,
		remote: remote,
		clk:    clk,
		log:    log.With().Str("component", "pull").Logger(),
	}
}

// RunOnce executes one pull cycle across all streams.
func (p *Puller) RunOnce(ctx context.Context) PullResult {
	var res PullResult
	now := p.clk.Now()

	p.stream(ctx, "employees", now, func() error {
		n, err := p.pullEmployees(ctx, now)
		res.Employees = n
		return err
	})
	p.stream(ctx, "schedules", now, func() error {
		n, err := p.pullSchedules(ctx, now)
		res.Schedules = n
		return err
	})
	p.stream(ctx, "schedule_periods", now, func() error {
		kept, gone, err := p.pullPeriods(ctx, now)
		res.Periods, res.PeriodsGone = kept, gone
		return err
	})
	p.stream(ctx, "employee_schedules", now, func() error {
		kept, gone, err := p.pullAssignments(ctx, now)
		res.Assignments, res.AssignsGone = kept, gone
		return err
	})
	p.stream(ctx, "daily_attendance", now, func() error {
		n, err := p.pullDaily(ctx, now)
		res.Daily = n
		return err
	})
	var embeddingsChanged bool
	p.stream(ctx, "face_embeddings", now, func() error {
		n, changed, err := p.pullEmbeddings(ctx, now)
		res.Embeddings = n
		embeddingsChanged = changed
		return err
	})

	res.RosterChanged = res.Employees > 0 || embeddingsChanged
	return res
}

// stream runs one pull stream and records the outcome.
func (p *Puller) stream(ctx context.Context, name string, now time.Time, fn func() error) {
	err := fn()
	msg := ""
	if err != nil {
		msg = err.Error()
		if errors.Is(err, kioskerrors.ErrTransientRemote) {
			p.log.Warn().Err(err).Str("stream", name).Msg("pull failed, will retry")
		} else {
			p.log.Error().Err(err).Str("stream", name).Msg("pull failed")
		}
	}
	if recErr := p.store.RecordPull(ctx, name, err == nil, msg, now); recErr != nil {
		p.log.Error().Err(recErr).Str("stream", name).Msg("recording pull status failed")
	}
}

// pullEmployees is incremental: only rows touched since the last
// successful pull come down. Deactivation arrives as a status change,
// never as a delete.
func (p *Puller) pullEmployees(ctx context.Context, now time.Time) (int, error) {
	since, err := p.store.LastPullTime(ctx, "employees")
	if errors.Is(err, kioskerrors.ErrNotFound) {
		since = "2000-01-01 00:00:00"
	} else if err != nil {
		return 0, err
	}
	emps, err := p.remote.EmployeesSince(ctx, since)
	if err != nil {
		return 0, err
	}
	for _, e := range emps {
		if _, err := p.store.UpsertEmployee(ctx, e, now); err != nil {
			return 0, err
		}
	}
	return len(emps), nil
}

func (p *Puller) pullSchedules(ctx context.Context, now time.Time) (int, error) {
	scheds, err := p.remote.Schedules(ctx)
	if err != nil {
		return 0, err
	}
	for _, sc := range scheds {
		if err := p.store.UpsertSchedule(ctx, sc, now); err != nil {
			return 0, err
		}
	}
	return len(scheds), nil
}

// pullPeriods mirrors the full remote set; rows absent remotely are
// deleted locally.
func (p *Puller) pullPeriods(ctx context.Context, now time.Time) (int, int, error) {
	periods, err := p.remote.SchedulePeriods(ctx)
	if err != nil {
		return 0, 0, err
	}
	gone, err := p.store.ReplacePeriods(ctx, periods, now)
	if err != nil {
		return 0, 0, err
	}
	return len(periods), gone, nil
}

func (p *Puller) pullAssignments(ctx context.Context, now time.Time) (int, int, error) {
	assigns, err := p.remote.EmployeeSchedules(ctx)
	if err != nil {
		return 0, 0, err
	}
	gone, err := p.store.ReplaceAssignments(ctx, assigns, now)
	if err != nil {
		return 0, 0, err
	}
	return len(assigns), gone, nil
}

func (p *Puller) pullDaily(ctx context.Context, now time.Time) (int, error) {
	daily, err := p.remote.DailyAttendance(ctx)
	if err != nil {
		return 0, err
	}
	for _, d := range daily {
		if _, err := p.store.UpsertDailyMirror(ctx, d, now); err != nil {
			return 0, err
		}
	}
	return len(daily), nil
}

// pullEmbeddings mirrors the gallery. changed reports whether any row
// was newly inserted, which is the trigger for an index rebuild.
func (p *Puller) pullEmbeddings(ctx context.Context, now time.Time) (int, bool, error) {
	embs, err := p.remote.FaceEmbeddings(ctx)
	if err != nil {
		return 0, false, err
	}
	changed := false
	for _, fe := range embs {
		inserted, err := p.store.UpsertFaceEmbedding(ctx, fe.ID, fe.EmployeeID, fe.Vector, now)
		if err != nil {
			return 0, false, err
		}
		changed = changed || inserted
	}
	return len(embs), changed, nil
}
