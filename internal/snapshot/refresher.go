package snapshot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/richard-vock/beer-display-viewer/internal/store"
)

// ChangedFunc is called after a snapshot run that changed cached content.
type ChangedFunc func(*Result)

// Refresher re-snapshots the target at a fixed interval for the life of the
// viewer. Fetch failures are logged and skipped: the display keeps showing
// the last good snapshot until the network comes back.
type Refresher struct {
	snap     *Snapshotter
	store    *store.Store
	interval time.Duration
	onChange ChangedFunc
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// NewRefresher creates a refresher. st may be nil, which disables run
// history. Intervals below ten seconds are raised to ten seconds.
func NewRefresher(snap *Snapshotter, st *store.Store, interval time.Duration, onChange ChangedFunc) *Refresher {
	if interval < 10*time.Second {
		interval = 10 * time.Second
	}
	return &Refresher{snap: snap, store: st, interval: interval, onChange: onChange}
}

// Start begins the refresh loop.
func (r *Refresher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(ctx)
}

// Stop halts the refresh loop.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Refresher) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Run once immediately
	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	res, err := r.snap.Fetch(ctx)
	r.record(res, err)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Likely offline; the cached snapshot stays up.
		log.Printf("[refresh] %v", err)
		return
	}
	if res.Changed {
		log.Printf("[refresh] content changed (%d assets, %d bytes written)", res.Assets, res.Bytes)
		if r.onChange != nil {
			r.onChange(res)
		}
	}
}

func (r *Refresher) record(res *Result, err error) {
	if r.store == nil {
		return
	}
	if _, dberr := r.store.RecordRun(RunRecord(res, err)); dberr != nil {
		log.Printf("[refresh] history: %v", dberr)
	}
}

// RunRecord converts a snapshot outcome into a history row. res may be nil
// when the run failed before producing one.
func RunRecord(res *Result, err error) *store.SnapshotRun {
	run := &store.SnapshotRun{
		StartedAt:  time.Now().Unix(),
		FinishedAt: time.Now().Unix(),
	}
	if res != nil {
		run.StartedAt = res.Started.Unix()
		run.FinishedAt = res.Finished.Unix()
		run.Changed = res.Changed
		run.Assets = res.Assets
		run.Failed = res.Failed
		run.Bytes = res.Bytes
		run.IndexSHA256 = res.IndexSHA256
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}
