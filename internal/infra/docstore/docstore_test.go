package docstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/storypets/storypets/internal/infra/docstore"
	"github.com/storypets/storypets/internal/logger"
)

// testStore creates a temporary document store for testing.
func testStore(t *testing.T) *docstore.Store {
	t.Helper()
	store, err := docstore.Open(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

type testDoc struct {
	Coins int64            `json:"coins"`
	Pets  map[string]int64 `json:"pets"`
	Name  string           `json:"name"`
}

func getDoc(t *testing.T, store *docstore.Store, collection, id string) (testDoc, docstore.Snapshot) {
	t.Helper()
	snap, err := store.Get(context.Background(), collection, id)
	if err != nil {
		t.Fatalf("get %s/%s: %v", collection, id, err)
	}
	var d testDoc
	if err := snap.Decode(&d); err != nil {
		t.Fatalf("decode %s/%s: %v", collection, id, err)
	}
	return d, snap
}

// ═══════════════════════════════════════════════════════════════════════════
// Point Read Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestGet_Missing(t *testing.T) {
	store := testStore(t)

	snap, err := store.Get(context.Background(), "users", "nobody")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Exists {
		t.Error("missing document should report Exists=false")
	}
	if snap.Version != 0 {
		t.Errorf("missing document version = %d, want 0", snap.Version)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Field Batch Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestApply_IncrementCreatesDocument(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	err := store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Increment(30, "coins")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	d, snap := getDoc(t, store, "users", "u1")
	if d.Coins != 30 {
		t.Errorf("coins = %d, want 30", d.Coins)
	}
	if snap.Version != 1 {
		t.Errorf("version = %d, want 1", snap.Version)
	}
}

func TestApply_IncrementAccumulates(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Apply(ctx, docstore.DocOps{
			Collection: "users", ID: "u1",
			Ops: []docstore.FieldOp{docstore.Increment(10, "coins")},
		})
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	d, snap := getDoc(t, store, "users", "u1")
	if d.Coins != 30 {
		t.Errorf("coins = %d, want 30", d.Coins)
	}
	if snap.Version != 3 {
		t.Errorf("version = %d, want 3 (one bump per batch)", snap.Version)
	}
}

func TestApply_NestedPathCreatesIntermediates(t *testing.T) {
	store := testStore(t)

	err := store.Apply(context.Background(), docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Increment(5, "pets", "fox")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	d, _ := getDoc(t, store, "users", "u1")
	if d.Pets["fox"] != 5 {
		t.Errorf("pets.fox = %d, want 5", d.Pets["fox"])
	}
}

func TestApply_SetIfMissingOnlyFirstWins(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_ = store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.SetIfMissing("first", "name")},
	})
	_ = store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.SetIfMissing("second", "name")},
	})

	d, _ := getDoc(t, store, "users", "u1")
	if d.Name != "first" {
		t.Errorf("name = %q, want %q (set-if-missing must not overwrite)", d.Name, "first")
	}
}

func TestApply_SetOverwrites(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_ = store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Set("old", "name")},
	})
	_ = store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Set("new", "name")},
	})

	d, _ := getDoc(t, store, "users", "u1")
	if d.Name != "new" {
		t.Errorf("name = %q, want %q", d.Name, "new")
	}
}

func TestApply_DeleteRemovesField(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_ = store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{
			docstore.Increment(3, "pets", "fox"),
			docstore.Increment(7, "coins"),
		},
	})
	err := store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Delete("pets", "fox")},
	})
	if err != nil {
		t.Fatalf("apply delete: %v", err)
	}

	d, _ := getDoc(t, store, "users", "u1")
	if _, ok := d.Pets["fox"]; ok {
		t.Error("pets.fox still present after delete")
	}
	if d.Coins != 7 {
		t.Errorf("coins = %d, want 7 (delete must not touch siblings)", d.Coins)
	}
}

func TestApply_DeleteMissingFieldIsNoop(t *testing.T) {
	store := testStore(t)

	err := store.Apply(context.Background(), docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Delete("pets", "ghost")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestApply_MultiDocumentAtomic(t *testing.T) {
	store := testStore(t)

	err := store.Apply(context.Background(),
		docstore.DocOps{
			Collection: "users", ID: "u1",
			Ops: []docstore.FieldOp{docstore.Increment(10, "coins")},
		},
		docstore.DocOps{
			Collection: "quests", ID: "u1",
			Ops: []docstore.FieldOp{docstore.Increment(1, "pets", "fox")},
		},
	)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	d1, _ := getDoc(t, store, "users", "u1")
	d2, _ := getDoc(t, store, "quests", "u1")
	if d1.Coins != 10 {
		t.Errorf("users coins = %d, want 10", d1.Coins)
	}
	if d2.Pets["fox"] != 1 {
		t.Errorf("quests pets.fox = %d, want 1", d2.Pets["fox"])
	}
}

func TestApply_ConcurrentIncrementsSum(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := store.Apply(ctx, docstore.DocOps{
					Collection: "users", ID: "u1",
					Ops: []docstore.FieldOp{docstore.Increment(1, "coins")},
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent apply: %v", err)
	}

	d, _ := getDoc(t, store, "users", "u1")
	if d.Coins != workers*perWorker {
		t.Errorf("coins = %d, want %d (no increment may be lost)", d.Coins, workers*perWorker)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Transaction Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestRunTransaction_ReadModifyWrite(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	err := store.RunTransaction(ctx, func(tx *docstore.Txn) error {
		snap, err := tx.Get("users", "u1")
		if err != nil {
			return err
		}
		var d testDoc
		if err := snap.Decode(&d); err != nil {
			return err
		}
		d.Coins += 42
		return tx.SetJSON("users", "u1", d)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	d, snap := getDoc(t, store, "users", "u1")
	if d.Coins != 42 {
		t.Errorf("coins = %d, want 42", d.Coins)
	}
	if snap.Version != 1 {
		t.Errorf("version = %d, want 1", snap.Version)
	}
}

func TestRunTransaction_NoWritesCommitsNothing(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_ = store.Apply(ctx, docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Increment(1, "coins")},
	})

	err := store.RunTransaction(ctx, func(tx *docstore.Txn) error {
		_, err := tx.Get("users", "u1")
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	_, snap := getDoc(t, store, "users", "u1")
	if snap.Version != 1 {
		t.Errorf("version = %d, want 1 (read-only transaction must not bump)", snap.Version)
	}
}

func TestRunTransaction_RetriesOnConflict(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	attempts := 0
	err := store.RunTransaction(ctx, func(tx *docstore.Txn) error {
		attempts++
		snap, err := tx.Get("users", "u1")
		if err != nil {
			return err
		}
		var d testDoc
		if err := snap.Decode(&d); err != nil {
			return err
		}
		if attempts == 1 {
			// Bump the version out of band so the first commit conflicts.
			if err := store.Apply(ctx, docstore.DocOps{
				Collection: "users", ID: "u1",
				Ops: []docstore.FieldOp{docstore.Increment(100, "coins")},
			}); err != nil {
				return err
			}
		}
		d.Coins += 1
		return tx.SetJSON("users", "u1", d)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one conflict, one retry)", attempts)
	}

	d, _ := getDoc(t, store, "users", "u1")
	if d.Coins != 101 {
		t.Errorf("coins = %d, want 101 (retry re-reads the interleaved write)", d.Coins)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Subscription Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestSubscribe_DeliversCommittedSnapshot(t *testing.T) {
	store := testStore(t)

	got := make(chan docstore.Snapshot, 1)
	cancel := store.Subscribe("users", "u1", func(snap docstore.Snapshot) {
		select {
		case got <- snap:
		default:
		}
	})
	defer cancel()

	err := store.Apply(context.Background(), docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Increment(5, "coins")},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	select {
	case snap := <-got:
		if snap.Version != 1 {
			t.Errorf("snapshot version = %d, want 1", snap.Version)
		}
		var d testDoc
		if err := snap.Decode(&d); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if d.Coins != 5 {
			t.Errorf("snapshot coins = %d, want 5", d.Coins)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered within 2s")
	}
}

func TestSubscribe_OtherDocumentNotDelivered(t *testing.T) {
	store := testStore(t)

	got := make(chan docstore.Snapshot, 1)
	cancel := store.Subscribe("users", "u1", func(snap docstore.Snapshot) {
		got <- snap
	})
	defer cancel()

	_ = store.Apply(context.Background(), docstore.DocOps{
		Collection: "users", ID: "u2",
		Ops: []docstore.FieldOp{docstore.Increment(5, "coins")},
	})

	select {
	case snap := <-got:
		t.Fatalf("unexpected snapshot for %s/%s", snap.Collection, snap.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribe_CancelStopsDelivery(t *testing.T) {
	store := testStore(t)

	got := make(chan docstore.Snapshot, 4)
	cancel := store.Subscribe("users", "u1", func(snap docstore.Snapshot) {
		got <- snap
	})
	cancel()
	cancel() // Cancelling twice must be safe.

	_ = store.Apply(context.Background(), docstore.DocOps{
		Collection: "users", ID: "u1",
		Ops: []docstore.FieldOp{docstore.Increment(5, "coins")},
	})

	select {
	case <-got:
		t.Fatal("snapshot delivered after cancel")
	case <-time.After(100 * time.Millisecond):
	}
}
