package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/researchmind/pkg/models"
)

// RunWriter records finished runs. The orchestrator's history sink.
type RunWriter interface {
	SaveRun(ctx context.Context, res *models.AggregatedResult, req models.Request) error
}

// RunReader answers history queries.
type RunReader interface {
	GetRun(id string) (*StoredRun, error)
	ListRuns(filter RunFilter) ([]RunSummary, error)
	ListRunTasks(runID string) ([]models.Task, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// RunStore is the full run history backend.
type RunStore interface {
	io.Closer
	Migrator
	RunWriter
	RunReader
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

var (
	_ RunStore  = (*DB)(nil)
	_ RunWriter = (*DB)(nil)
	_ RunReader = (*DB)(nil)
)
