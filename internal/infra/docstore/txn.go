package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/storypets/storypets/internal/infra/metrics"
)

// maxTxnAttempts bounds internal conflict retries before giving up.
const maxTxnAttempts = 5

// ErrConflict reports an optimistic version conflict. RunTransaction retries
// it internally; callers only see it once retries are exhausted.
var ErrConflict = errors.New("docstore: transaction conflict")

type docKey struct {
	collection string
	id         string
}

// Txn is a single attempt of an optimistic read-compute-write transaction.
// Get records the version of every document read; Set stages a full-body
// write. Commit verifies every recorded version is still current and applies
// all staged writes atomically, or fails with ErrConflict.
type Txn struct {
	store *Store
	ctx   context.Context
	reads map[docKey]int64
	order []docKey
	write map[docKey][]byte
}

// Get reads a document inside the transaction, recording its version for the
// commit-time conflict check.
func (t *Txn) Get(collection, id string) (Snapshot, error) {
	snap, err := t.store.Get(t.ctx, collection, id)
	if err != nil {
		return snap, err
	}
	key := docKey{collection, id}
	if _, seen := t.reads[key]; !seen {
		t.reads[key] = snap.Version
	}
	return snap, nil
}

// Set stages a full-document write, to be committed atomically with all other
// staged writes.
func (t *Txn) Set(collection, id string, body []byte) {
	key := docKey{collection, id}
	if _, staged := t.write[key]; !staged {
		t.order = append(t.order, key)
	}
	t.write[key] = body
}

// SetJSON marshals v and stages it as the document body.
func (t *Txn) SetJSON(collection, id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	t.Set(collection, id, body)
	return nil
}

// RunTransaction executes fn inside an optimistic transaction, retrying on
// version conflicts. fn may be called multiple times and must be free of side
// effects outside the transaction. A fn that stages no writes commits
// nothing.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Txn) error) error {
	var lastErr error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		txn := &Txn{
			store: s,
			ctx:   ctx,
			reads: map[docKey]int64{},
			write: map[docKey][]byte{},
		}

		if err := fn(txn); err != nil {
			return err
		}
		if len(txn.write) == 0 {
			return nil
		}

		err := s.commitTxn(ctx, txn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}

		metrics.StoreTxnConflicts.Inc()
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", lastErr)
}

// commitTxn verifies read versions and applies staged writes in one SQLite
// transaction, then publishes the committed snapshots.
func (s *Store) commitTxn(ctx context.Context, txn *Txn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin txn: %w", err)
	}
	defer tx.Rollback()

	// Conflict check: every document read must be unchanged.
	for key, readVersion := range txn.reads {
		_, current, err := getTx(tx, key.collection, key.id)
		if err != nil {
			return fmt.Errorf("recheck %s/%s: %w", key.collection, key.id, err)
		}
		if current != readVersion {
			return ErrConflict
		}
	}

	now := time.Now()
	snaps := make([]Snapshot, 0, len(txn.order))

	for _, key := range txn.order {
		base, known := txn.reads[key]
		if !known {
			// Blind write: look up the current version to bump it.
			_, base, err = getTx(tx, key.collection, key.id)
			if err != nil {
				return fmt.Errorf("version %s/%s: %w", key.collection, key.id, err)
			}
		}
		body := txn.write[key]
		if err := putTx(tx, key.collection, key.id, base+1, body, now); err != nil {
			return fmt.Errorf("write %s/%s: %w", key.collection, key.id, err)
		}
		snaps = append(snaps, Snapshot{
			Collection: key.collection,
			ID:         key.id,
			Version:    base + 1,
			Body:       json.RawMessage(body),
			UpdatedAt:  now,
			Exists:     true,
		})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit txn: %w", err)
	}

	for _, snap := range snaps {
		s.hub.publish(snap)
	}
	return nil
}
