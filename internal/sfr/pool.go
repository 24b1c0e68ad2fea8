package sfr

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/delaneydunne/joint-limlam-mocker/internal/metrics"
)

// chunkSize is the number of halos one job evaluates.
const chunkSize = 8192

// evalJob covers halos [lo, hi).
type evalJob struct {
	lo, hi int
}

// WorkerPool evaluates the SFR of large halo catalogs on a fixed number of
// goroutines.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// Values below one are treated as one.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{workers: workers, logger: logger}
}

// EvaluateHalos returns t.EvaluateHalos(mass, redshift) computed in chunks.
// Each chunk writes a disjoint range of the output, so the result does not
// depend on scheduling. It stops early and returns ctx.Err() if ctx ends.
func (wp *WorkerPool) EvaluateHalos(ctx context.Context, t *Table, mass, redshift []float64) ([]float64, error) {
	out := make([]float64, len(mass))
	if len(mass) == 0 {
		return out, nil
	}
	start := time.Now()

	jobs := make(chan evalJob, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				copy(out[job.lo:job.hi], t.EvaluateHalos(mass[job.lo:job.hi], redshift[job.lo:job.hi]))
			}
		}()
	}

	// Feed jobs until done or cancelled.
	func() {
		defer close(jobs)
		for lo := 0; lo < len(mass); lo += chunkSize {
			hi := min(lo+chunkSize, len(mass))
			select {
			case jobs <- evalJob{lo: lo, hi: hi}:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	metrics.RecordStage("sfr_evaluate", duration)
	wp.logger.Debug("sfr evaluated",
		"halos", len(mass),
		"workers", wp.workers,
		"duration_ms", duration.Milliseconds(),
	)
	return out, nil
}
