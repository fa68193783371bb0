package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mycine-gamification/internal/config"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
	"github.com/mycine-gamification/internal/service"
	"github.com/mycine-gamification/internal/websocket"
)

const maxBodyBytes = 1 << 20

// Services groups the application services the API exposes
type Services struct {
	Progression  *service.ProgressionService
	Challenges   *service.ChallengeService
	Achievements *service.AchievementService
	Reviews      *service.ReviewService
	Profiles     *service.ProfileService
	Leaderboard  *service.LeaderboardService
	Admin        *service.AdminService
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler provides HTTP handlers for the gamification API
type Handler struct {
	svc     Services
	hub     *websocket.Hub
	auth    config.AuthConfig
	origins []string
	limiter *userLimiter
	checks  map[string]ReadinessCheck
	logger  *logger.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, hub *websocket.Hub, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		svc:     svc,
		hub:     hub,
		auth:    cfg.Auth,
		origins: cfg.Server.AllowedOrigins,
		limiter: newUserLimiter(cfg.Limits.ReviewsPerMinute, cfg.Limits.Burst),
		checks:  map[string]ReadinessCheck{},
		logger:  log.With("component", "http"),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(h.cors)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	r.With(h.Authenticate).Get("/ws", h.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.With(h.RateLimitReviews).Post("/reviews", h.SubmitReview)
		r.Delete("/reviews/{titleID}", h.DeleteReview)

		r.Route("/me", func(r chi.Router) {
			r.Get("/profile", h.GetProfile)
			r.Put("/profile", h.UpdateProfile)
			r.Get("/progress", h.GetProgress)
			r.Get("/xp-events", h.ListXPEvents)
		})

		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", h.ListChallenges)
			r.Post("/initialize", h.InitializeChallenges)
			r.Post("/{challengeID}/claim", h.ClaimChallenge)
		})

		r.Route("/achievements", func(r chi.Router) {
			r.Get("/", h.ListAchievements)
			r.Post("/evaluate", h.EvaluateAchievements)
		})

		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Get("/me", h.GetLeaderboardPosition)
			r.Get("/stats", h.GetLeaderboardStats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)

			r.Get("/dashboard", h.AdminDashboard)

			r.Route("/challenges", func(r chi.Router) {
				r.Get("/", h.AdminListChallenges)
				r.Post("/", h.AdminCreateChallenge)
				r.Put("/{challengeID}", h.AdminUpdateChallenge)
				r.Delete("/{challengeID}", h.AdminDeleteChallenge)
			})

			r.Route("/achievements", func(r chi.Router) {
				r.Get("/", h.AdminListAchievements)
				r.Post("/", h.AdminCreateAchievement)
				r.Put("/{achievementID}", h.AdminUpdateAchievement)
			})

			r.Post("/users/{userID}/challenges/progress", h.AdminIncrementChallenges)
			r.Post("/reviews/{reviewID}/moderation", h.AdminModerateReview)
			r.Get("/moderation-logs", h.AdminModerationLogs)
			r.Post("/leaderboard/rebuild", h.AdminRebuildLeaderboard)
			r.Get("/ws/stats", h.GetWebSocketStats)
		})
	})

	return r
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// writeCreated writes a 201 JSON response
func (h *Handler) writeCreated(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{Success: false, Error: err.Error()})
}

// writeServiceError maps a service error onto a status code. Unclassified
// errors are logged and hidden behind a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case domain.IsValidationError(err):
		h.writeError(w, http.StatusBadRequest, err)
	case domain.IsNotFoundError(err):
		h.writeError(w, http.StatusNotFound, err)
	case domain.IsConflictError(err):
		h.writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrUnauthorized):
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
	case errors.Is(err, domain.ErrForbidden):
		h.writeError(w, http.StatusForbidden, domain.ErrForbidden)
	case errors.Is(err, domain.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited)
	default:
		h.logger.Error("failed to "+op,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
		)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// decodeJSON reads a JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest
	}
	return nil
}

// queryInt parses an integer query parameter, returning def when absent
// or malformed
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck probes every registered dependency
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", "dependency", name, "error", err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{Success: false, Data: status, Error: "not ready"})
		return
	}
	status["status"] = "ready"
	h.writeSuccess(w, status)
}

// HandleWebSocket upgrades an authenticated request
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, w, r, userIDFrom(r.Context()))
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections":       h.hub.GetTotalConnections(),
		"leaderboard_subscribers": h.hub.GetSubscriberCount(websocket.TopicLeaderboard),
	})
}
