package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/storypets/storypets/internal/infra/metrics"
)

// OpKind is the kind of mutation a FieldOp performs.
type OpKind int

const (
	// OpIncrement adds Delta to an integer field, creating it at Delta if
	// absent. Increments are commutative: safe under arbitrary concurrent
	// interleaving with no preceding read.
	OpIncrement OpKind = iota
	// OpSet overwrites a field with Value.
	OpSet
	// OpSetIfMissing writes Value only when the field is absent. Used for
	// lazy default-initialization (createdAt, activityIndex) inside the
	// same batch as the first increment.
	OpSetIfMissing
	// OpDelete removes a field. Deleting an absent field is a no-op.
	OpDelete
)

// FieldOp is a single mutation addressed by a JSON field path.
type FieldOp struct {
	Path  []string
	Kind  OpKind
	Delta int64
	Value any
}

// Increment returns an atomic integer-increment op.
func Increment(delta int64, path ...string) FieldOp {
	return FieldOp{Path: path, Kind: OpIncrement, Delta: delta}
}

// Set returns a field-overwrite op.
func Set(value any, path ...string) FieldOp {
	return FieldOp{Path: path, Kind: OpSet, Value: value}
}

// SetIfMissing returns a write-if-absent op.
func SetIfMissing(value any, path ...string) FieldOp {
	return FieldOp{Path: path, Kind: OpSetIfMissing, Value: value}
}

// Delete returns a field-removal op.
func Delete(path ...string) FieldOp {
	return FieldOp{Path: path, Kind: OpDelete, Value: nil}
}

// DocOps addresses a batch of field ops at one document.
type DocOps struct {
	Collection string
	ID         string
	Ops        []FieldOp
}

// Apply commits one or more per-document op batches in a single store
// transaction: either every op in every batch lands, or none do. Documents
// are created implicitly when first targeted. Committed snapshots are
// published to subscribers.
func (s *Store) Apply(ctx context.Context, batches ...DocOps) error {
	if len(batches) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	snaps := make([]Snapshot, 0, len(batches))

	for _, b := range batches {
		body, version, err := getTx(tx, b.Collection, b.ID)
		if err != nil {
			return fmt.Errorf("read %s/%s: %w", b.Collection, b.ID, err)
		}
		if body == nil {
			body = []byte("{}")
		}

		next, err := applyOps(body, b.Ops)
		if err != nil {
			return fmt.Errorf("apply ops to %s/%s: %w", b.Collection, b.ID, err)
		}

		if err := putTx(tx, b.Collection, b.ID, version+1, next, now); err != nil {
			return fmt.Errorf("write %s/%s: %w", b.Collection, b.ID, err)
		}

		snaps = append(snaps, Snapshot{
			Collection: b.Collection,
			ID:         b.ID,
			Version:    version + 1,
			Body:       json.RawMessage(next),
			UpdatedAt:  now,
			Exists:     true,
		})
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	metrics.StoreBatchWrites.Inc()
	for _, snap := range snaps {
		s.hub.publish(snap)
	}
	return nil
}

// applyOps mutates a JSON document body with the given field ops.
// Pure function: parses, walks paths, re-serializes.
func applyOps(body []byte, ops []FieldOp) ([]byte, error) {
	doc, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	for _, op := range ops {
		if len(op.Path) == 0 {
			return nil, fmt.Errorf("field op with empty path")
		}

		parent, ok := walkTo(doc, op.Path[:len(op.Path)-1], op.Kind != OpDelete)
		if !ok {
			continue // delete through a missing parent: no-op
		}
		leaf := op.Path[len(op.Path)-1]

		switch op.Kind {
		case OpIncrement:
			cur, err := asInt64(parent[leaf])
			if err != nil {
				return nil, fmt.Errorf("increment %v: %w", op.Path, err)
			}
			parent[leaf] = cur + op.Delta
		case OpSet:
			parent[leaf] = op.Value
		case OpSetIfMissing:
			if _, exists := parent[leaf]; !exists {
				parent[leaf] = op.Value
			}
		case OpDelete:
			delete(parent, leaf)
		default:
			return nil, fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}

	return json.Marshal(doc)
}

// decodeObject parses a JSON object preserving integer precision.
func decodeObject(body []byte) (map[string]any, error) {
	doc := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// walkTo descends the path of nested objects, optionally creating missing
// intermediates. Returns false when an intermediate is absent and create is
// off, or when a path segment addresses a non-object.
func walkTo(doc map[string]any, path []string, create bool) (map[string]any, bool) {
	cur := doc
	for _, seg := range path {
		child, exists := cur[seg]
		if !exists {
			if !create {
				return nil, false
			}
			next := map[string]any{}
			cur[seg] = next
			cur = next
			continue
		}
		obj, ok := child.(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			// overwrite a scalar that is in the way
			obj = map[string]any{}
			cur[seg] = obj
		}
		cur = obj
	}
	return cur, true
}

// asInt64 coerces a decoded JSON value to int64. Absent values count as 0.
func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n.String())
		}
		return i, nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
