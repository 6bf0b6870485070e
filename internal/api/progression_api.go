package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storypets/storypets/internal/domain"
)

// ─── Progression operations (/api/users/{userID}/*) ─────────────────────────

type recordProgressRequest struct {
	Pet             string `json:"pet"`
	QuestionsSolved int64  `json:"questionsSolved"`
	AdventureKey    string `json:"adventureKey,omitempty"`
}

func (s *Server) handleRecordProgress(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req recordProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.progress.RecordProgress(r.Context(), userID, req.Pet, req.QuestionsSolved, req.AdventureKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

type deductCoinsRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleDeductCoins(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req deductCoinsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, remaining, err := s.progress.DeductCoins(r.Context(), userID, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// ok=false means the purchase must be blocked; the balance is clamped,
	// never negative.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":    ok,
		"coins": remaining,
	})
}

type rolloverRequest struct {
	// Pets is the authoritative owned-pets list. Omitted or null processes
	// existing quest sub-records without pruning.
	Pets []string `json:"pets"`
}

func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req rolloverRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.quests.Rollover(r.Context(), userID, req.Pets); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rolled": true})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	ov, err := s.progress.Overview(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleQuestStates(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	states, err := s.quests.QuestStates(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quests": states})
}

type startSleepRequest struct {
	DurationMs int64 `json:"durationMs,omitempty"`
}

func (s *Server) handleStartSleep(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	petID := chi.URLParam(r, "petID")

	var req startSleepRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	duration := time.Duration(req.DurationMs) * time.Millisecond
	if err := s.quests.StartSleep(r.Context(), userID, petID, duration); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sleeping": true})
}

func (s *Server) handleClearSleep(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	petID := chi.URLParam(r, "petID")

	if err := s.quests.ClearSleep(r.Context(), userID, petID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sleeping": false})
}

type setPetNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleSetPetName(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	petID := chi.URLParam(r, "petID")

	var req setPetNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.progress.SetPetName(r.Context(), userID, petID, req.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pet": petID, "name": req.Name})
}

func (s *Server) handlePetNames(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	names, err := s.progress.PetNames(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"petNames": names})
}

// ─── Session lifecycle (/api/session/*) ─────────────────────────────────────

type signInRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.session.OnSignIn(r.Context(), req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.writeSessionState(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.session.OnSignOut()
	writeJSON(w, http.StatusOK, map[string]bool{"signedIn": false})
}

func (s *Server) handleFocusRegained(w http.ResponseWriter, r *http.Request) {
	s.session.OnFocusRegained()
	writeJSON(w, http.StatusOK, map[string]bool{"focused": true})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	s.writeSessionState(w)
}

func (s *Server) writeSessionState(w http.ResponseWriter) {
	userID, ok := s.session.UserID()
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNoActiveSession.Error())
		return
	}
	overview, _ := s.session.Overview()
	quests, _ := s.session.QuestStates()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":   userID,
		"overview": overview,
		"quests":   quests,
	})
}

// writeDomainError maps domain errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyUserID),
		errors.Is(err, domain.ErrEmptyPetID),
		errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownPet),
		errors.Is(err, domain.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
