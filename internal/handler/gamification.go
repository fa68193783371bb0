package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mycine-gamification/internal/domain"
)

// SubmitReview stores a review and runs its gamification steps
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var sub domain.ReviewSubmission
	if err := decodeJSON(w, r, &sub); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := h.svc.Reviews.Submit(r.Context(), userIDFrom(r.Context()), sub)
	if err != nil {
		h.writeServiceError(w, r, "submit review", err)
		return
	}
	if outcome.Created {
		h.writeCreated(w, outcome)
		return
	}
	h.writeSuccess(w, outcome)
}

// DeleteReview soft-deletes the caller's review of a title
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	titleID := chi.URLParam(r, "titleID")
	if err := h.svc.Reviews.Delete(r.Context(), userIDFrom(r.Context()), titleID); err != nil {
		h.writeServiceError(w, r, "delete review", err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "deleted"})
}

// GetProfile returns the caller's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Profiles.Get(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "get profile", err)
		return
	}
	h.writeSuccess(w, p)
}

// UpdateProfile saves the caller's profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd domain.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	p, award, err := h.svc.Profiles.Update(r.Context(), userIDFrom(r.Context()), upd)
	if err != nil {
		h.writeServiceError(w, r, "update profile", err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{
		"profile": p,
		"award":   award,
	})
}

// GetProgress returns the caller's XP, level and rank
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Progression.Progress(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "get progress", err)
		return
	}
	h.writeSuccess(w, p)
}

// ListXPEvents returns the caller's ledger, newest first
func (h *Handler) ListXPEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Progression.Events(r.Context(), userIDFrom(r.Context()), queryInt(r, "limit", 0))
	if err != nil {
		h.writeServiceError(w, r, "list xp events", err)
		return
	}
	h.writeSuccess(w, events)
}

// ListChallenges returns the active challenges with the caller's progress
func (h *Handler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Challenges.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "list challenges", err)
		return
	}
	h.writeSuccess(w, views)
}

// InitializeChallenges creates the caller's progress rows
func (h *Handler) InitializeChallenges(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Challenges.Initialize(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "initialize challenges", err)
		return
	}
	h.writeSuccess(w, map[string]int64{"created": n})
}

// ClaimChallenge collects the reward of a completed challenge
func (h *Handler) ClaimChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Challenges.Claim(r.Context(), userIDFrom(r.Context()), chi.URLParam(r, "challengeID"))
	if err != nil {
		h.writeServiceError(w, r, "claim challenge", err)
		return
	}
	h.writeSuccess(w, res)
}

// ListAchievements returns achievements with the caller's progress
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.Achievements.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "list achievements", err)
		return
	}
	h.writeSuccess(w, views)
}

// EvaluateAchievements unlocks what the caller qualifies for
func (h *Handler) EvaluateAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := h.svc.Achievements.Evaluate(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "evaluate achievements", err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{"unlocked": unlocked})
}

// GetLeaderboard returns the top users by XP
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Leaderboard.Top(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		h.writeServiceError(w, r, "get leaderboard", err)
		return
	}
	h.writeSuccess(w, entries)
}

// GetLeaderboardPosition returns the caller's ranking entry
func (h *Handler) GetLeaderboardPosition(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Leaderboard.Position(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "get leaderboard position", err)
		return
	}
	h.writeSuccess(w, entry)
}

// GetLeaderboardStats summarises the ranking
func (h *Handler) GetLeaderboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Leaderboard.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "get leaderboard stats", err)
		return
	}
	h.writeSuccess(w, stats)
}
