package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus/dispatch/internal/logging"
	"github.com/marcus/dispatch/internal/tasks"
)

// QueueSource returns the windowed work queue of assignees.
type QueueSource interface {
	FetchTasksByDate(ctx context.Context, assigneeIDs []int64, start, end int64) ([]*tasks.Task, error)
}

// Summary counts one assignee's queue.
type Summary struct {
	AssigneeID int64 `json:"assignee_id"`
	InRange    int   `json:"in_range"`
	CarryOver  int   `json:"carry_over"`
}

// Digest summarizes the work queue of each configured assignee for the
// window [start of today, start of today + horizon].
type Digest struct {
	source    QueueSource
	assignees []int64
	horizon   time.Duration
	location  *time.Location
	now       func() time.Time
	logger    *logging.Logger
}

// NewDigest creates a digest. A zero horizon means one day.
func NewDigest(source QueueSource, assignees []int64, horizon time.Duration, loc *time.Location) *Digest {
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	if loc == nil {
		loc = time.Local
	}
	return &Digest{
		source:    source,
		assignees: append([]int64(nil), assignees...),
		horizon:   horizon,
		location:  loc,
		now:       time.Now,
		logger:    logging.Component("digest"),
	}
}

// Window returns the millisecond window the digest covers at now.
func (d *Digest) Window(now time.Time) (start, end int64) {
	local := now.In(d.location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.location)
	return day.UnixMilli(), day.Add(d.horizon).UnixMilli()
}

// Build computes a summary per assignee, in configured order.
func (d *Digest) Build(ctx context.Context) ([]Summary, error) {
	start, end := d.Window(d.now())
	out := make([]Summary, 0, len(d.assignees))
	for _, id := range d.assignees {
		queue, err := d.source.FetchTasksByDate(ctx, []int64{id}, start, end)
		if err != nil {
			return nil, fmt.Errorf("queue for assignee %d: %w", id, err)
		}
		sum := Summary{AssigneeID: id}
		for _, t := range queue {
			switch tasks.Place(t, start, end) {
			case tasks.InRange:
				sum.InRange++
			case tasks.CarryOver:
				sum.CarryOver++
			}
		}
		out = append(out, sum)
	}
	return out, nil
}

// Run builds the digest and logs one line per assignee. It matches Job.
func (d *Digest) Run(ctx context.Context) {
	summaries, err := d.Build(ctx)
	if err != nil {
		d.logger.Errorf("digest failed: %v", err)
		return
	}
	for _, s := range summaries {
		d.logger.InfoCtx("work queue", map[string]any{
			"assignee_id": s.AssigneeID,
			"in_range":    s.InRange,
			"carry_over":  s.CarryOver,
		})
	}
}
