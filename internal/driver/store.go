package driver

import (
	"context"
	"fmt"

	"github.com/agenthands/taxgraph/internal/core/graph"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SnapshotStore hands out one Neo4jGraph per build and removes builds that
// have been replaced.
type SnapshotStore struct {
	driver GraphDriver
	log    logrus.FieldLogger
}

func NewSnapshotStore(d GraphDriver, log logrus.FieldLogger) *SnapshotStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SnapshotStore{driver: d, log: log.WithField("component", "snapshot-store")}
}

func (s *SnapshotStore) NewGraph(_ context.Context) (graph.Graph, error) {
	return NewNeo4jGraph(s.driver, uuid.NewString(), s.log), nil
}

// Release deletes the snapshot behind g once no reader needs it.
func (s *SnapshotStore) Release(ctx context.Context, g graph.Graph) error {
	ng, ok := g.(*Neo4jGraph)
	if !ok {
		return nil
	}
	if _, err := s.driver.ExecuteQuery(ctx, DeleteSnapshotQuery, map[string]any{"snapshot": ng.snapshot}); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", ng.snapshot, err)
	}
	s.log.WithField("snapshot", ng.snapshot).Info("snapshot released")
	return nil
}

// Prune deletes every snapshot except keep, e.g. leftovers of a crashed build.
func (s *SnapshotStore) Prune(ctx context.Context, keep string) error {
	if _, err := s.driver.ExecuteQuery(ctx, DeleteOtherSnapshotsQuery, map[string]any{"snapshot": keep}); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
