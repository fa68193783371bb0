package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mycine-gamification/internal/domain"
	"github.com/mycine-gamification/internal/logger"
)

const maxModerationLogs = 500

// AdminService backs the admin console: roles, dashboard and moderation
type AdminService struct {
	admin   AdminStore
	reviews ReviewStore
	logger  *logger.Logger
	now     func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(admin AdminStore, reviews ReviewStore, log *logger.Logger) *AdminService {
	return &AdminService{
		admin:   admin,
		reviews: reviews,
		logger:  log.With("component", "admin"),
		now:     time.Now,
	}
}

// IsAdmin reports whether the user holds the admin role
func (s *AdminService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.admin.HasRole(ctx, userID, domain.RoleAdmin)
}

// Dashboard returns today's activity counters
func (s *AdminService) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	return s.admin.DashboardStats(ctx, s.now())
}

// ModerateReview hides or restores a review and logs the action
func (s *AdminService) ModerateReview(ctx context.Context, adminID, reviewID string, action domain.ModerationAction, reason string) (*domain.ModerationLog, error) {
	if action != domain.ModerationSoftDelete && action != domain.ModerationRestore {
		return nil, domain.ErrInvalidRequest
	}
	if _, err := s.reviews.GetReview(ctx, reviewID); err != nil {
		return nil, err
	}

	entry := domain.ModerationLog{
		ID:         uuid.NewString(),
		AdminID:    adminID,
		TargetID:   reviewID,
		TargetType: "review",
		Action:     action,
		Reason:     strings.TrimSpace(reason),
		CreatedAt:  s.now(),
	}
	if err := s.reviews.ModerateReview(ctx, entry); err != nil {
		return nil, fmt.Errorf("moderating review: %w", err)
	}
	s.logger.Info("review moderated", "admin_id", adminID, "review_id", reviewID, "action", action)
	return &entry, nil
}

// ModerationLogs returns the most recent moderation actions
func (s *AdminService) ModerationLogs(ctx context.Context, limit int) ([]domain.ModerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > maxModerationLogs {
		limit = maxModerationLogs
	}
	return s.reviews.ListModerationLogs(ctx, limit)
}
