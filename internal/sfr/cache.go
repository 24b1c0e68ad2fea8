package sfr

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/delaneydunne/joint-limlam-mocker/internal/metrics"
)

// Opener returns a fresh reader over the tabulated SFR dataset.
type Opener func() (io.ReadCloser, error)

// FileOpener opens the tabulation at path.
func FileOpener(path string) Opener {
	return func() (io.ReadCloser, error) {
		return os.Open(path)
	}
}

// Cache owns the process-wide SFR interpolant. The table is built on the
// first Get and reused for every later call; reads after construction take no
// lock.
type Cache struct {
	open   Opener
	logger *slog.Logger
	table  atomic.Pointer[Table]
	mu     sync.Mutex // serializes the one-time build
}

// NewCache creates a Cache that reads the tabulation through open.
func NewCache(open Opener, logger *slog.Logger) *Cache {
	return &Cache{open: open, logger: logger}
}

// NewStaticCache wraps an already-built table.
func NewStaticCache(t *Table, logger *slog.Logger) *Cache {
	c := &Cache{logger: logger}
	c.table.Store(t)
	return c
}

// Get returns the interpolant, building it on first use. The extrapolate
// flag only has an effect on the call that builds the table; later calls get
// the cached table whatever they request. A failed build is not cached.
func (c *Cache) Get(extrapolate bool) (*Table, error) {
	if t := c.table.Load(); t != nil {
		return t, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t := c.table.Load(); t != nil {
		return t, nil
	}
	if c.open == nil {
		return nil, fmt.Errorf("sfr: no table source configured")
	}

	start := time.Now()
	rc, err := c.open()
	if err != nil {
		return nil, fmt.Errorf("opening sfr table: %w", err)
	}
	defer rc.Close()

	rows, err := Parse(rc)
	if err != nil {
		return nil, err
	}
	t, err := Build(rows, extrapolate)
	if err != nil {
		return nil, err
	}

	duration := time.Since(start)
	metrics.RecordStage("sfr_table", duration)
	c.logger.Info("sfr table built",
		"rows", len(rows),
		"mass_nodes", len(t.logM),
		"redshift_nodes", len(t.logZp1),
		"extrapolated", extrapolate,
		"duration_ms", duration.Milliseconds(),
	)
	c.table.Store(t)
	return t, nil
}
