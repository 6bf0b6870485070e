package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/storypets/storypets/internal/app/progression"
	"github.com/storypets/storypets/internal/app/session"
	"github.com/storypets/storypets/internal/domain"
	"github.com/storypets/storypets/internal/infra/docstore"
	"github.com/storypets/storypets/internal/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := docstore.Open(t.TempDir(), logger.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := logger.Nop()
	progress := progression.NewProgressService(store, log)
	quests := progression.NewQuestService(store, log)
	streaks := progression.NewStreakService(store, log)
	sess := session.NewManager(store, progress, quests, streaks, session.Config{}, log)
	t.Cleanup(sess.OnSignOut)

	return NewServer(store, progress, quests, streaks, sess, log)
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// ─── Health & Version ───────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestAPI_Version(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "GET", "/api/version", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// ─── Progress & Overview ────────────────────────────────────────────────────

func TestAPI_RecordProgressAndOverview(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "POST", "/api/users/mila/progress", recordProgressRequest{
		Pet:             "fox",
		QuestionsSolved: 3,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("progress status = %d, body %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/users/mila/overview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("overview status = %d", w.Code)
	}
	var ov domain.Overview
	if err := json.NewDecoder(w.Body).Decode(&ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.Coins != 30 {
		t.Errorf("coins = %d, want 30", ov.Coins)
	}
	if ov.Pets["fox"].TotalCorrect != 3 {
		t.Errorf("fox total = %d, want 3", ov.Pets["fox"].TotalCorrect)
	}
}

func TestAPI_RecordProgress_NegativeRejected(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "POST", "/api/users/mila/progress", recordProgressRequest{
		Pet:             "fox",
		QuestionsSolved: -2,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPI_RecordProgress_MissingPetRejected(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "POST", "/api/users/mila/progress", recordProgressRequest{
		QuestionsSolved: 2,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Coins ──────────────────────────────────────────────────────────────────

func TestAPI_DeductCoins(t *testing.T) {
	srv := newTestServer(t)

	_ = do(t, srv, "POST", "/api/users/mila/progress", recordProgressRequest{
		Pet: "fox", QuestionsSolved: 5,
	})

	w := do(t, srv, "POST", "/api/users/mila/coins/deduct", deductCoinsRequest{Amount: 20})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		OK    bool  `json:"ok"`
		Coins int64 `json:"coins"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.OK {
		t.Error("expected ok=true with sufficient balance")
	}
	if resp.Coins != 30 {
		t.Errorf("coins = %d, want 30", resp.Coins)
	}

	// Overspend: blocked, balance clamps to zero.
	w = do(t, srv, "POST", "/api/users/mila/coins/deduct", deductCoinsRequest{Amount: 100})
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.OK {
		t.Error("expected ok=false on overspend")
	}
	if resp.Coins != 0 {
		t.Errorf("coins = %d, want 0", resp.Coins)
	}
}

func TestAPI_DeductCoins_InvalidAmount(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "POST", "/api/users/mila/coins/deduct", deductCoinsRequest{Amount: 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Rollover & Quests ──────────────────────────────────────────────────────

func TestAPI_RolloverInitializesPets(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "POST", "/api/users/mila/rollover", rolloverRequest{Pets: []string{"fox", "owl"}})
	if w.Code != http.StatusOK {
		t.Fatalf("rollover status = %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/users/mila/quests", nil)
	var resp struct {
		Quests []domain.QuestStatus `json:"quests"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Quests) != 2 {
		t.Fatalf("quests = %d, want 2", len(resp.Quests))
	}
	if resp.Quests[0].Activity != "house" {
		t.Errorf("activity = %q, want house", resp.Quests[0].Activity)
	}
}

func TestAPI_RolloverEmptyBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/users/mila/rollover", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d (empty body is a plain settle pass)", w.Code, http.StatusOK)
	}
}

// ─── Pet Names & Sleep ──────────────────────────────────────────────────────

func TestAPI_PetNameRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "PUT", "/api/users/mila/pets/fox/name", setPetNameRequest{Name: "Rusty"})
	if w.Code != http.StatusOK {
		t.Fatalf("put name status = %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/users/mila/pets/names", nil)
	var resp struct {
		PetNames map[string]string `json:"petNames"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.PetNames["fox"] != "Rusty" {
		t.Errorf("fox name = %q, want Rusty", resp.PetNames["fox"])
	}
}

func TestAPI_PetNameEmptyRejected(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "PUT", "/api/users/mila/pets/fox/name", setPetNameRequest{Name: "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPI_SleepStartAndClear(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "POST", "/api/users/mila/pets/fox/sleep", startSleepRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("start sleep status = %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/users/mila/quests", nil)
	var resp struct {
		Quests []domain.QuestStatus `json:"quests"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Quests) != 1 || !resp.Quests[0].Sleeping {
		t.Fatalf("expected one sleeping pet, got %+v", resp.Quests)
	}

	w = do(t, srv, "DELETE", "/api/users/mila/pets/fox/sleep", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear sleep status = %d", w.Code)
	}

	w = do(t, srv, "GET", "/api/users/mila/quests", nil)
	resp.Quests = nil
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Quests[0].Sleeping {
		t.Error("expected awake after clearing the window")
	}
}

// ─── Session Lifecycle ──────────────────────────────────────────────────────

func TestAPI_SessionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, "GET", "/api/session/state", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("state before sign-in = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = do(t, srv, "POST", "/api/session/signin", signInRequest{UserID: "mila"})
	if w.Code != http.StatusOK {
		t.Fatalf("signin status = %d, body %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", "/api/session/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state status = %d", w.Code)
	}
	var state struct {
		UserID string `json:"userId"`
	}
	json.NewDecoder(w.Body).Decode(&state)
	if state.UserID != "mila" {
		t.Errorf("userId = %q, want mila", state.UserID)
	}

	w = do(t, srv, "POST", "/api/session/signout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("signout status = %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/session/state", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("state after sign-out = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Change Feed ────────────────────────────────────────────────────────────

func TestAPI_EventsStreamDeliversChange(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/users/mila/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open feed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q, want text/event-stream", ct)
	}

	// Commit a change after the feed is open.
	go func() {
		time.Sleep(100 * time.Millisecond)
		body, _ := json.Marshal(recordProgressRequest{Pet: "fox", QuestionsSolved: 2})
		http.Post(ts.URL+"/api/users/mila/progress", "application/json", bytes.NewReader(body))
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev changeEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Version < 1 {
			t.Errorf("event version = %d, want >= 1", ev.Version)
		}
		return
	}
	t.Fatalf("feed closed without an event: %v", scanner.Err())
}
