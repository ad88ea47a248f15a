package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
)

// CommitFunc commits the offsets of records. *kgo.Client.CommitRecords
// satisfies it.
type CommitFunc func(ctx context.Context, recs ...*kgo.Record) error

type heldRecord struct {
	rec     *kgo.Record
	version uint64
}

// Checkpoints holds processed records until the ledger state they produced
// is persisted. A record is held with the state version observed after it
// was applied and released once a snapshot at or past that version is saved.
// Versions never decrease, so records are released in processing order.
type Checkpoints struct {
	mu      sync.Mutex
	commit  CommitFunc
	pending []heldRecord
}

func NewCheckpoints(commit CommitFunc) *Checkpoints {
	return &Checkpoints{commit: commit}
}

// Hold parks rec until version is durable.
func (c *Checkpoints) Hold(rec *kgo.Record, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, heldRecord{rec: rec, version: version})
}

// Release commits every held record whose version is covered by saved and
// returns how many were committed. On a commit failure the records stay
// held and are retried on the next release.
func (c *Checkpoints) Release(ctx context.Context, saved uint64) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for n < len(c.pending) && c.pending[n].version <= saved {
		n++
	}
	if n == 0 {
		return 0, nil
	}
	recs := make([]*kgo.Record, n)
	for i := range recs {
		recs[i] = c.pending[i].rec
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := c.commit(commitCtx, recs...); err != nil {
		return 0, fmt.Errorf("commit %d records up to version %d: %w", n, saved, err)
	}
	c.pending = append(c.pending[:0], c.pending[n:]...)
	return n, nil
}

// Pending reports how many records wait for a snapshot.
func (c *Checkpoints) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
