package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const DefaultWriteTimeout = 5 * time.Second

// Recorder writes entries in the background so the caller never waits on the
// audit store.
type Recorder struct {
	repo    Repository
	timeout time.Duration
	now     func() time.Time

	// OnFailure is called for every failed write, e.g. to bump a metric.
	OnFailure func(err error)

	wg       sync.WaitGroup
	failures atomic.Int64
}

func NewRecorder(repo Repository, timeout time.Duration, now func() time.Time) *Recorder {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{repo: repo, timeout: timeout, now: now}
}

// Record fills ID and CreatedAt when empty and persists e asynchronously.
// Cancelling ctx does not cancel the write.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	e.MismatchCount = len(e.Mismatches)

	wctx := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(wctx, r.timeout)
		defer cancel()

		if err := r.repo.Append(ctx, e); err != nil {
			err = eris.Wrapf(ErrPersistence, "audit: append %s: %v", e.ID, err)
			r.failures.Add(1)
			zap.L().Error("audit: write failed", zap.String("entry_id", e.ID), zap.String("user_id", e.UserID), zap.Error(err))
			if r.OnFailure != nil {
				r.OnFailure(err)
			}
		}
	}()
}

// Wait blocks until in-flight writes finish. Used on shutdown.
func (r *Recorder) Wait() { r.wg.Wait() }

// Failures is the number of writes that failed since start.
func (r *Recorder) Failures() int64 { return r.failures.Load() }
