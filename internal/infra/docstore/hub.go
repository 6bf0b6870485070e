package docstore

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storypets/storypets/internal/infra/metrics"
)

// subscriberBuffer is the per-subscriber snapshot backlog. A slow subscriber
// drops intermediate snapshots; a later full-document snapshot supersedes
// anything dropped.
const subscriberBuffer = 16

// subscriber is one registered change listener on a single document.
type subscriber struct {
	id   string
	ch   chan Snapshot
	done chan struct{}
	once sync.Once
}

// hub fans committed document snapshots out to subscribers.
// In-process pub/sub over buffered channels; delivery is asynchronous and
// eventually consistent, never a write-path dependency.
type hub struct {
	mu   sync.Mutex
	subs map[docKey]map[string]*subscriber
	log  zerolog.Logger
}

func newHub(log zerolog.Logger) *hub {
	return &hub{
		subs: map[docKey]map[string]*subscriber{},
		log:  log,
	}
}

// publish delivers a committed snapshot to every subscriber of the document.
// Never blocks the committing writer: full subscriber buffers drop the
// snapshot instead.
func (h *hub) publish(snap Snapshot) {
	key := docKey{snap.Collection, snap.ID}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs[key] {
		select {
		case sub.ch <- snap:
		default:
			metrics.SnapshotsDropped.Inc()
			h.log.Debug().
				Str("collection", snap.Collection).
				Str("doc", snap.ID).
				Str("subscription", sub.id).
				Msg("snapshot dropped: slow subscriber")
		}
	}
}

// Subscribe registers fn to receive full-document snapshots on every commit
// of the given document. fn runs on a dedicated goroutine, in commit order
// for that subscriber. The returned cancel func tears the subscription down;
// it is safe to call more than once.
func (s *Store) Subscribe(collection, id string, fn func(Snapshot)) (cancel func()) {
	return s.hub.subscribe(collection, id, fn)
}

func (h *hub) subscribe(collection, id string, fn func(Snapshot)) func() {
	sub := &subscriber{
		id:   uuid.NewString(),
		ch:   make(chan Snapshot, subscriberBuffer),
		done: make(chan struct{}),
	}
	key := docKey{collection, id}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = map[string]*subscriber{}
	}
	h.subs[key][sub.id] = sub
	h.mu.Unlock()
	metrics.SubscriptionsActive.Inc()

	go func() {
		for {
			select {
			case snap := <-sub.ch:
				fn(snap)
			case <-sub.done:
				return
			}
		}
	}()

	return func() { h.unsubscribe(key, sub) }
}

func (h *hub) unsubscribe(key docKey, sub *subscriber) {
	sub.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.subs[key]; ok {
			delete(set, sub.id)
			if len(set) == 0 {
				delete(h.subs, key)
			}
		}
		h.mu.Unlock()

		close(sub.done)
		metrics.SubscriptionsActive.Dec()
	})
}

// closeAll tears down every open subscription. Called on store Close.
func (h *hub) closeAll() {
	h.mu.Lock()
	var all []struct {
		key docKey
		sub *subscriber
	}
	for key, set := range h.subs {
		for _, sub := range set {
			all = append(all, struct {
				key docKey
				sub *subscriber
			}{key, sub})
		}
	}
	h.mu.Unlock()

	for _, e := range all {
		h.unsubscribe(e.key, e.sub)
	}
}
