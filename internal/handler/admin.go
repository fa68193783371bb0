package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mycine-gamification/internal/domain"
)

// AdminDashboard returns today's activity counters
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Admin.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "load dashboard", err)
		return
	}
	h.writeSuccess(w, stats)
}

// AdminListChallenges returns every challenge definition
func (h *Handler) AdminListChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.svc.Challenges.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list challenges", err)
		return
	}
	h.writeSuccess(w, challenges)
}

// AdminCreateChallenge adds a challenge definition
func (h *Handler) AdminCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var req domain.ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.svc.Challenges.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "create challenge", err)
		return
	}
	h.writeCreated(w, c)
}

// AdminUpdateChallenge replaces a challenge definition
func (h *Handler) AdminUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	var req domain.ChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := h.svc.Challenges.Update(r.Context(), chi.URLParam(r, "challengeID"), req)
	if err != nil {
		h.writeServiceError(w, r, "update challenge", err)
		return
	}
	h.writeSuccess(w, c)
}

// AdminDeleteChallenge deletes a challenge, or deactivates it once users
// have progress on it
func (h *Handler) AdminDeleteChallenge(w http.ResponseWriter, r *http.Request) {
	deactivated, err := h.svc.Challenges.Delete(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		h.writeServiceError(w, r, "delete challenge", err)
		return
	}
	status := "deleted"
	if deactivated {
		status = "deactivated"
	}
	h.writeSuccess(w, map[string]string{"status": status})
}

// AdminListAchievements returns every achievement definition
func (h *Handler) AdminListAchievements(w http.ResponseWriter, r *http.Request) {
	achievements, err := h.svc.Achievements.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list achievements", err)
		return
	}
	h.writeSuccess(w, achievements)
}

// AdminCreateAchievement adds an achievement definition
func (h *Handler) AdminCreateAchievement(w http.ResponseWriter, r *http.Request) {
	var req domain.AchievementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := h.svc.Achievements.Create(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "create achievement", err)
		return
	}
	h.writeCreated(w, a)
}

// AdminUpdateAchievement replaces an achievement definition; the code
// never changes
func (h *Handler) AdminUpdateAchievement(w http.ResponseWriter, r *http.Request) {
	var req domain.AchievementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	a, err := h.svc.Achievements.Update(r.Context(), chi.URLParam(r, "achievementID"), req)
	if err != nil {
		h.writeServiceError(w, r, "update achievement", err)
		return
	}
	h.writeSuccess(w, a)
}

type moderationRequest struct {
	Action domain.ModerationAction `json:"action"`
	Reason string                  `json:"reason,omitempty"`
}

// AdminModerateReview hides or restores a review
func (h *Handler) AdminModerateReview(w http.ResponseWriter, r *http.Request) {
	var req moderationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	entry, err := h.svc.Admin.ModerateReview(r.Context(), userIDFrom(r.Context()),
		chi.URLParam(r, "reviewID"), req.Action, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, "moderate review", err)
		return
	}
	h.writeSuccess(w, entry)
}

// AdminModerationLogs returns the most recent moderation actions
func (h *Handler) AdminModerationLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.svc.Admin.ModerationLogs(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		h.writeServiceError(w, r, "list moderation logs", err)
		return
	}
	h.writeSuccess(w, logs)
}

// AdminRebuildLeaderboard reloads the ranking cache from the ledger
func (h *Handler) AdminRebuildLeaderboard(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Leaderboard.Rebuild(r.Context(), queryInt(r, "batch_size", 1000))
	if err != nil {
		h.writeServiceError(w, r, "rebuild leaderboard", err)
		return
	}
	h.writeSuccess(w, map[string]int{"users": n})
}

type incrementRequest struct {
	ChallengeType domain.ChallengeType `json:"challenge_type,omitempty"`
	ChallengeID   string               `json:"challenge_id,omitempty"`
	Amount        *int                 `json:"amount,omitempty"`
}

// AdminIncrementChallenges advances a user's challenges by type or id.
// Users never advance their own progress; reviews and the activity topic do.
func (h *Handler) AdminIncrementChallenges(w http.ResponseWriter, r *http.Request) {
	var req incrementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	inc := domain.NewProgressIncrement(chi.URLParam(r, "userID"), req.ChallengeType, req.ChallengeID, req.Amount)
	changes, err := h.svc.Challenges.Increment(r.Context(), inc)
	if err != nil {
		h.writeServiceError(w, r, "increment challenges", err)
		return
	}
	h.writeSuccess(w, changes)
}
