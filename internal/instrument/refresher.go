package instrument

import (
	"context"
	"os"
	"time"

	"quotedesk/internal/logger"
)

// Refresher reloads the instrument table from its CSV on a fixed interval.
// A reload only happens when the file's mtime moved, and a failed reload
// keeps the previous snapshot: resolution must never observe a half-written
// or missing table.
type Refresher struct {
	table    *Table
	path     string
	interval time.Duration
	log      *logger.Entry

	lastMod time.Time
}

func NewRefresher(table *Table, path string, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Refresher{
		table:    table,
		path:     path,
		interval: interval,
		log:      logger.GetLogger().WithComponent("instrument_refresher"),
	}
}

// Run loads once immediately, then ticks until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh()
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.refresh()
		}
	}
}

func (r *Refresher) refresh() {
	st, err := os.Stat(r.path)
	if err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"path": r.path}).Warn("instrument file unavailable, keeping previous table")
		return
	}
	if !r.lastMod.IsZero() && !st.ModTime().After(r.lastMod) {
		return
	}
	if err := r.table.Load(r.path); err != nil {
		r.log.WithError(err).WithFields(logger.Fields{"path": r.path}).Warn("instrument reload failed, keeping previous table")
		return
	}
	r.lastMod = st.ModTime()
	r.log.WithFields(logger.Fields{"path": r.path, "records": r.table.Len()}).Info("instrument table swapped")
}
