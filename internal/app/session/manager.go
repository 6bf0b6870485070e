// Package session keeps a signed-in user's progression state hydrated and in
// sync. It reacts to lifecycle signals (sign-in, sign-out, focus regained)
// and to store change snapshots, maintaining cached read models and driving
// the quest rollover scheduler.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/storypets/storypets/internal/app/progression"
	"github.com/storypets/storypets/internal/domain"
	"github.com/storypets/storypets/internal/infra/docstore"
)

// DefaultRolloverThrottle caps how often a single session retries the
// rollover pass.
const DefaultRolloverThrottle = 60 * time.Second

// Config tunes a Manager. Zero values fall back to defaults.
type Config struct {
	RolloverThrottle time.Duration
	Now              func() time.Time
}

// Update carries the refreshed read models emitted after every state change.
type Update struct {
	UserID   string               `json:"userId"`
	Overview domain.Overview      `json:"overview"`
	Quests   []domain.QuestStatus `json:"quests"`
}

// Manager tracks at most one signed-in user at a time.
type Manager struct {
	store    *docstore.Store
	progress *progression.ProgressService
	quests   *progression.QuestService
	streaks  *progression.StreakService
	log      zerolog.Logger
	throttle time.Duration
	now      func() time.Time
	updates  chan Update

	mu           sync.Mutex
	userID       string
	cancels      []func()
	lastAttempt  time.Time
	overview     domain.Overview
	questStates  []domain.QuestStatus
	userVersion  int64
	questVersion int64
}

func NewManager(store *docstore.Store, progress *progression.ProgressService, quests *progression.QuestService, streaks *progression.StreakService, cfg Config, log zerolog.Logger) *Manager {
	if cfg.RolloverThrottle <= 0 {
		cfg.RolloverThrottle = DefaultRolloverThrottle
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:    store,
		progress: progress,
		quests:   quests,
		streaks:  streaks,
		log:      log,
		throttle: cfg.RolloverThrottle,
		now:      cfg.Now,
		updates:  make(chan Update, 16),
	}
}

// Updates exposes the stream of read-model refreshes.
func (m *Manager) Updates() <-chan Update {
	return m.updates
}

// OnSignIn starts a session: any previous session is torn down, the streak
// is updated, read models are hydrated, change subscriptions are installed,
// and a rollover attempt is scheduled.
func (m *Manager) OnSignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrEmptyUserID
	}
	m.OnSignOut()

	if _, err := m.streaks.RecordSignIn(ctx, userID); err != nil {
		// Not fatal: the next sign-in repeats the streak update.
		m.log.Warn().Err(err).Str("user", userID).Msg("streak update failed")
	}

	overview, err := m.progress.Overview(ctx, userID)
	if err != nil {
		return err
	}
	questStates, err := m.quests.QuestStates(ctx, userID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.userID = userID
	m.overview = overview
	m.questStates = questStates
	m.userVersion = 0
	m.questVersion = 0
	m.lastAttempt = time.Time{}
	m.cancels = []func(){
		m.store.Subscribe(progression.UserStateCollection, userID, m.onUserSnapshot),
		m.store.Subscribe(progression.QuestStateCollection, userID, m.onQuestSnapshot),
	}
	m.mu.Unlock()

	m.emit()
	m.maybeRollover(userID)
	return nil
}

// OnSignOut tears down the current session, if any.
func (m *Manager) OnSignOut() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.userID = ""
	m.overview = domain.Overview{}
	m.questStates = nil
	m.userVersion = 0
	m.questVersion = 0
	m.lastAttempt = time.Time{}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// OnFocusRegained nudges the rollover scheduler when the app returns to the
// foreground.
func (m *Manager) OnFocusRegained() {
	m.mu.Lock()
	userID := m.userID
	m.mu.Unlock()
	if userID != "" {
		m.maybeRollover(userID)
	}
}

// UserID reports the signed-in user, if any.
func (m *Manager) UserID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID, m.userID != ""
}

// Overview returns the cached overview for the signed-in user.
func (m *Manager) Overview() (domain.Overview, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overview, m.userID != ""
}

// QuestStates returns the cached quest statuses for the signed-in user.
func (m *Manager) QuestStates() ([]domain.QuestStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questStates, m.userID != ""
}

func (m *Manager) onUserSnapshot(snap docstore.Snapshot) {
	us, err := progression.DecodeUserState(snap, m.now())
	if err != nil {
		m.log.Warn().Err(err).Str("user", snap.ID).Msg("bad user snapshot")
		return
	}

	m.mu.Lock()
	if m.userID != snap.ID || snap.Version <= m.userVersion {
		// Signed out meanwhile, or a stale snapshot: both safe to drop —
		// snapshots are hints, reads go back to the store.
		m.mu.Unlock()
		return
	}
	m.userVersion = snap.Version
	m.overview = progression.OverviewOf(us)
	m.mu.Unlock()

	m.emit()
}

// onQuestSnapshot refreshes the cached quest statuses and, when a quest
// looks due, schedules a rollover. The snapshot is only a hint: the rollover
// transaction re-reads fresh state before changing anything.
func (m *Manager) onQuestSnapshot(snap docstore.Snapshot) {
	now := m.now()
	qs, err := progression.DecodeQuestState(snap, now)
	if err != nil {
		m.log.Warn().Err(err).Str("user", snap.ID).Msg("bad quest snapshot")
		return
	}

	m.mu.Lock()
	if m.userID != snap.ID || snap.Version <= m.questVersion {
		m.mu.Unlock()
		return
	}
	m.questVersion = snap.Version
	m.questStates = progression.StatusesOf(qs, now)
	userID := m.userID
	m.mu.Unlock()

	m.emit()
	if rolloverDue(qs, now) {
		m.maybeRollover(userID)
	}
}

func rolloverDue(qs domain.QuestState, now time.Time) bool {
	for _, pq := range qs.Pets {
		if pq.ActiveProgress() < domain.QuestTarget {
			continue
		}
		if pq.CooldownUntil == nil || !now.Before(*pq.CooldownUntil) {
			return true
		}
	}
	return false
}

func (m *Manager) maybeRollover(userID string) {
	now := m.now()
	m.mu.Lock()
	if m.userID != userID || now.Sub(m.lastAttempt) < m.throttle {
		m.mu.Unlock()
		return
	}
	m.lastAttempt = now
	m.mu.Unlock()

	// nil ownedPets: without an authoritative pet list nothing is pruned.
	if err := m.quests.RolloverAt(context.Background(), userID, nil, now); err != nil {
		m.log.Warn().Err(err).Str("user", userID).Msg("rollover attempt failed")
	}
}

func (m *Manager) emit() {
	m.mu.Lock()
	if m.userID == "" {
		m.mu.Unlock()
		return
	}
	update := Update{
		UserID:   m.userID,
		Overview: m.overview,
		Quests:   m.questStates,
	}
	m.mu.Unlock()

	select {
	case m.updates <- update:
	default:
	}
}
