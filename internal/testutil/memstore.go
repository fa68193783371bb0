package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mycine-gamification/internal/domain"
)

type eventKey struct {
	userID    string
	eventType domain.XPEventType
	dedupe    string
}

type pairKey struct {
	userID string
	id     string
}

// MemStore is an in-memory stand-in for the PostgreSQL repository. A single
// mutex makes every method atomic and the maps enforce the same uniqueness
// rules as the schema.
type MemStore struct {
	mu sync.Mutex

	userXP       map[string]*domain.UserXP
	events       []domain.XPEvent
	eventKeys    map[eventKey]bool
	challenges   map[string]domain.Challenge
	progress     map[pairKey]domain.ChallengeProgress
	achievements map[string]domain.Achievement
	unlocks      map[pairKey]domain.AchievementUnlock
	reviews      map[pairKey]domain.Review
	titleGenres  map[string][]string
	profiles     map[string]domain.Profile
	roles        map[pairKey]bool
	modLogs      []domain.ModerationLog
}

// NewMemStore returns an empty store
func NewMemStore() *MemStore {
	return &MemStore{
		userXP:       map[string]*domain.UserXP{},
		eventKeys:    map[eventKey]bool{},
		challenges:   map[string]domain.Challenge{},
		progress:     map[pairKey]domain.ChallengeProgress{},
		achievements: map[string]domain.Achievement{},
		unlocks:      map[pairKey]domain.AchievementUnlock{},
		reviews:      map[pairKey]domain.Review{},
		titleGenres:  map[string][]string{},
		profiles:     map[string]domain.Profile{},
		roles:        map[pairKey]bool{},
	}
}

// SetTitleGenres seeds the categories of a title
func (m *MemStore) SetTitleGenres(titleID string, genres ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titleGenres[titleID] = genres
}

// GrantRole seeds a user role
func (m *MemStore) GrantRole(userID, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[pairKey{userID, role}] = true
}

// EventCount returns the number of ledger rows of a user
func (m *MemStore) EventCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.UserID == userID {
			n++
		}
	}
	return n
}

// UnlockCount returns the number of unlock rows of a user
func (m *MemStore) UnlockCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.unlocks {
		if k.userID == userID {
			n++
		}
	}
	return n
}

// XP ledger

func (m *MemStore) AwardXP(_ context.Context, req domain.AwardRequest) (*domain.AwardResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awardLocked(req), nil
}

func (m *MemStore) awardLocked(req domain.AwardRequest) *domain.AwardResult {
	rec, ok := m.userXP[req.UserID]
	if !ok {
		zero := domain.NewUserXP(req.UserID)
		rec = &zero
	}

	key := eventKey{req.UserID, req.EventType, req.DedupeKey}
	if m.eventKeys[key] {
		return &domain.AwardResult{TotalXP: rec.TotalXP, Level: rec.Level, PreviousLevel: rec.Level}
	}
	m.eventKeys[key] = true

	event := domain.XPEvent{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		EventType:   req.EventType,
		XPAmount:    req.Amount,
		ReferenceID: req.ReferenceID,
		DedupeKey:   req.DedupeKey,
		Metadata:    req.Metadata,
		CreatedAt:   req.At,
	}
	m.events = append(m.events, event)

	if !ok {
		rec.CreatedAt = req.At
		m.userXP[req.UserID] = rec
	}
	previous := domain.LevelForXP(rec.TotalXP)
	rec.TotalXP += req.Amount
	rec.Level = domain.LevelForXP(rec.TotalXP)
	rec.UpdatedAt = req.At

	return &domain.AwardResult{
		Awarded:       true,
		Event:         &event,
		TotalXP:       rec.TotalXP,
		Level:         rec.Level,
		PreviousLevel: previous,
	}
}

func (m *MemStore) GetUserXP(_ context.Context, userID string) (*domain.UserXP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.userXP[userID]; ok {
		cp := *rec
		return &cp, nil
	}
	zero := domain.NewUserXP(userID)
	return &zero, nil
}

func (m *MemStore) ListXPEvents(_ context.Context, userID string, limit int) ([]domain.XPEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.XPEvent{}
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].UserID == userID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *MemStore) AllUserXP(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.userXP))
	for id, rec := range m.userXP {
		if rec.TotalXP > 0 {
			out[id] = rec.TotalXP
		}
	}
	return out, nil
}

// Challenges

func (m *MemStore) ListActiveChallenges(_ context.Context, now time.Time) ([]domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Challenge{}
	for _, c := range m.sortedChallenges() {
		if c.Open(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) ListChallenges(_ context.Context) ([]domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedChallenges(), nil
}

func (m *MemStore) sortedChallenges() []domain.Challenge {
	out := make([]domain.Challenge, 0, len(m.challenges))
	for _, c := range m.challenges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemStore) GetChallenge(_ context.Context, challengeID string) (*domain.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[challengeID]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	return &c, nil
}

func (m *MemStore) ListChallengeProgress(_ context.Context, userID string) ([]domain.ChallengeProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ChallengeProgress{}
	for k, p := range m.progress {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemStore) IncrementChallengeProgress(_ context.Context, inc domain.ProgressIncrement, now time.Time) ([]domain.ProgressChange, error) {
	if err := inc.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if inc.ChallengeID != "" {
		if _, ok := m.challenges[inc.ChallengeID]; !ok {
			return nil, domain.ErrChallengeNotFound
		}
	}

	changes := []domain.ProgressChange{}
	for _, c := range m.sortedChallenges() {
		if !c.Open(now) {
			continue
		}
		if inc.ChallengeType != "" && c.Type != inc.ChallengeType {
			continue
		}
		if inc.ChallengeID != "" && c.ID != inc.ChallengeID {
			continue
		}

		key := pairKey{inc.UserID, c.ID}
		p, ok := m.progress[key]
		if !ok {
			p = domain.NewChallengeProgress(inc.UserID, c.ID, now)
		}
		if p.NeedsReset(c.Type, now) {
			p.Reset(now)
		}
		completed := p.ApplyIncrement(c.TargetValue, inc.Amount, now)
		m.progress[key] = p
		changes = append(changes, domain.ProgressChange{Challenge: c, Progress: p, CompletedNow: completed})
	}
	return changes, nil
}

func (m *MemStore) ClaimChallenge(_ context.Context, userID, challengeID string, now time.Time) (*domain.ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.challenges[challengeID]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	key := pairKey{userID, challengeID}
	p, ok := m.progress[key]
	if !ok {
		return nil, domain.ErrChallengeNotCompleted
	}
	if p.NeedsReset(c.Type, now) {
		p.Reset(now)
	}
	if err := p.Claim(now); err != nil {
		return nil, err
	}

	req := domain.AwardRequest{
		UserID:      userID,
		EventType:   domain.EventChallengeComplete,
		Amount:      c.XPReward,
		ReferenceID: c.ID,
		DedupeKey:   domain.ChallengeClaimKey(c.ID, domain.PeriodStart(c.Type, now)),
		At:          now,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.progress[key] = p
	return &domain.ClaimResult{Progress: p, Award: m.awardLocked(req)}, nil
}

func (m *MemStore) InitializeUserChallenges(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.challenges {
		key := pairKey{userID, c.ID}
		if _, ok := m.progress[key]; ok || !c.Open(now) {
			continue
		}
		m.progress[key] = domain.NewChallengeProgress(userID, c.ID, now)
		n++
	}
	return n, nil
}

func (m *MemStore) ResetExpiredProgress(_ context.Context, t domain.ChallengeType, periodStart, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, p := range m.progress {
		if m.challenges[key.id].Type != t {
			continue
		}
		if p.LastResetAt != nil && !p.LastResetAt.Before(periodStart) {
			continue
		}
		p.Reset(now)
		m.progress[key] = p
		n++
	}
	return n, nil
}

func (m *MemStore) CreateChallenge(_ context.Context, c domain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.ID] = c
	return nil
}

func (m *MemStore) UpdateChallenge(_ context.Context, c domain.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.challenges[c.ID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	if existing.Type != c.Type && m.hasProgressLocked(c.ID) {
		return domain.ErrChallengeTypeLocked
	}
	m.challenges[c.ID] = c
	return nil
}

func (m *MemStore) DeleteChallenge(_ context.Context, challengeID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[challengeID]
	if !ok {
		return false, domain.ErrChallengeNotFound
	}
	if m.hasProgressLocked(challengeID) {
		c.IsActive = false
		c.UpdatedAt = now
		m.challenges[challengeID] = c
		return true, nil
	}
	delete(m.challenges, challengeID)
	return false, nil
}

func (m *MemStore) hasProgressLocked(challengeID string) bool {
	for k := range m.progress {
		if k.id == challengeID {
			return true
		}
	}
	return false
}

// Achievements

func (m *MemStore) ListAchievements(_ context.Context, activeOnly bool) ([]domain.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Achievement{}
	for _, a := range m.achievements {
		if a.IsActive || !activeOnly {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemStore) GetAchievement(_ context.Context, achievementID string) (*domain.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.achievements[achievementID]
	if !ok {
		return nil, domain.ErrAchievementNotFound
	}
	return &a, nil
}

func (m *MemStore) CreateAchievement(_ context.Context, a domain.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.achievements {
		if existing.Code == a.Code {
			return domain.ErrAchievementCodeTaken
		}
	}
	m.achievements[a.ID] = a
	return nil
}

func (m *MemStore) UpdateAchievement(_ context.Context, a domain.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.achievements[a.ID]
	if !ok {
		return domain.ErrAchievementNotFound
	}
	a.Code = existing.Code
	m.achievements[a.ID] = a
	return nil
}

func (m *MemStore) ListUnlocks(_ context.Context, userID string) ([]domain.AchievementUnlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.AchievementUnlock{}
	for k, u := range m.unlocks {
		if k.userID == userID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MemStore) UnlockAchievement(_ context.Context, userID, achievementID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{userID, achievementID}
	if _, ok := m.unlocks[key]; ok {
		return false, nil
	}
	m.unlocks[key] = domain.AchievementUnlock{UserID: userID, AchievementID: achievementID, UnlockedAt: at}
	return true, nil
}

func (m *MemStore) ReviewStats(_ context.Context, userID string) (domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.UserStats
	for k, r := range m.reviews {
		if k.userID != userID || r.IsDeleted {
			continue
		}
		s.ReviewsCount++
		if r.Rating >= domain.HighRatingFloor {
			s.HighRatings++
		}
		if r.Rating <= domain.LowRatingCeil {
			s.LowRatings++
		}
		if r.HasComment() {
			s.CommentsCount++
		}
	}
	return s, nil
}

func (m *MemStore) CountGenresExplored(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	for k, r := range m.reviews {
		if k.userID != userID || r.IsDeleted {
			continue
		}
		for _, g := range m.titleGenres[r.TitleID] {
			seen[g] = true
		}
	}
	return len(seen), nil
}

// Reviews

func (m *MemStore) UpsertReview(_ context.Context, r domain.Review) (*domain.Review, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{r.UserID, r.TitleID}
	existing, ok := m.reviews[key]
	if ok {
		existing.Rating = r.Rating
		existing.Comment = r.Comment
		existing.IsDeleted = false
		existing.UpdatedAt = r.UpdatedAt
		m.reviews[key] = existing
		return &existing, false, nil
	}
	m.reviews[key] = r
	return &r, true, nil
}

func (m *MemStore) GetReview(_ context.Context, reviewID string) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.ID == reviewID {
			return &r, nil
		}
	}
	return nil, domain.ErrReviewNotFound
}

func (m *MemStore) DeleteReview(_ context.Context, userID, titleID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{userID, titleID}
	r, ok := m.reviews[key]
	if !ok || r.IsDeleted {
		return domain.ErrReviewNotFound
	}
	r.IsDeleted = true
	r.UpdatedAt = now
	m.reviews[key] = r
	return nil
}

func (m *MemStore) ModerateReview(_ context.Context, entry domain.ModerationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, r := range m.reviews {
		if r.ID != entry.TargetID {
			continue
		}
		r.IsDeleted = entry.Action == domain.ModerationSoftDelete
		r.UpdatedAt = entry.CreatedAt
		m.reviews[key] = r
		m.modLogs = append(m.modLogs, entry)
		return nil
	}
	return domain.ErrReviewNotFound
}

func (m *MemStore) ListModerationLogs(_ context.Context, limit int) ([]domain.ModerationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.ModerationLog{}
	for i := len(m.modLogs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.modLogs[i])
	}
	return out, nil
}

// Profiles and admin

func (m *MemStore) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &p, nil
}

func (m *MemStore) UpsertProfile(_ context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.UserID]; ok && existing.ProfileCompletedAt != nil {
		p.ProfileCompletedAt = existing.ProfileCompletedAt
	}
	m.profiles[p.UserID] = p
	return nil
}

func (m *MemStore) GetDisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, id := range userIDs {
		p, ok := m.profiles[id]
		if !ok {
			continue
		}
		name := p.DisplayName
		if strings.TrimSpace(name) == "" {
			name = p.Username
		}
		out[id] = name
	}
	return out, nil
}

func (m *MemStore) HasRole(_ context.Context, userID, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[pairKey{userID, role}], nil
}

func (m *MemStore) DashboardStats(_ context.Context, now time.Time) (*domain.DashboardStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dayStart := domain.PeriodStart(domain.ChallengeDaily, now)
	var s domain.DashboardStats
	for _, r := range m.reviews {
		if !r.IsDeleted && !r.CreatedAt.Before(dayStart) {
			s.ReviewsToday++
		}
	}
	active := map[string]bool{}
	for _, e := range m.events {
		if !e.CreatedAt.Before(dayStart) {
			active[e.UserID] = true
		}
	}
	s.ActiveUsersToday = int64(len(active))
	var sum int64
	for _, rec := range m.userXP {
		sum += rec.TotalXP
	}
	s.TotalUsers = int64(len(m.userXP))
	if s.TotalUsers > 0 {
		s.AverageXP = float64(sum) / float64(s.TotalUsers)
	}
	s.TotalTitles = int64(len(m.titleGenres))
	return &s, nil
}
