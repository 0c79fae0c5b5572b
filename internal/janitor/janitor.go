// Package janitor periodically evicts stale session registrations.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/voicehook/internal/logging"
)

// Defaults used when a zero interval or age is configured.
const (
	DefaultPause  = 30 * time.Minute
	DefaultMaxAge = 60 * time.Minute
)

// Sweeper is anything that can evict entries older than a maximum age.
type Sweeper interface {
	Name() string
	SweepOlderThan(maxAge time.Duration) int
}

// Janitor sweeps every registered Sweeper on a fixed interval.
type Janitor struct {
	pause    time.Duration
	maxAge   time.Duration
	sweepers []Sweeper
	log      *logging.Logger
}

// New creates a janitor.
func New(log *logging.Logger, pause, maxAge time.Duration, sweepers ...Sweeper) *Janitor {
	if pause <= 0 {
		pause = DefaultPause
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Janitor{
		pause:    pause,
		maxAge:   maxAge,
		sweepers: sweepers,
		log:      log.Sub("janitor"),
	}
}

// Run sweeps every pause interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	j.log.Info().
		Dur("pause", j.pause).
		Dur("maxAge", j.maxAge).
		Int("sweepers", len(j.sweepers)).
		Msg("janitor started")

	ticker := time.NewTicker(j.pause)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info().Msg("janitor stopped")
			return
		case <-ticker.C:
			j.SweepOnce()
		}
	}
}

// SweepOnce runs one sweep over all sweepers and returns the total number of
// entries removed. A failing sweeper is logged and skipped.
func (j *Janitor) SweepOnce() int {
	total := 0
	for _, s := range j.sweepers {
		n, err := j.sweep(s)
		if err != nil {
			j.log.Error().Err(err).Str("cache", s.Name()).Msg("sweep failed")
			continue
		}
		total += n
	}
	j.log.Debug().Int("removed", total).Msg("sweep complete")
	return total
}

func (j *Janitor) sweep(s Sweeper) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()
	return s.SweepOlderThan(j.maxAge), nil
}
