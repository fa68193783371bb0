package domain

// LeaderboardEntry represents a single user in the XP ranking
type LeaderboardEntry struct {
	Position    int64  `json:"position"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	TotalXP     int64  `json:"total_xp"`
	Level       int    `json:"level"`
	Rank        Rank   `json:"rank"`
}

// NewLeaderboardEntry derives level and rank from the score.
func NewLeaderboardEntry(position int64, userID string, totalXP int64) LeaderboardEntry {
	level := LevelForXP(totalXP)
	return LeaderboardEntry{
		Position: position,
		UserID:   userID,
		TotalXP:  totalXP,
		Level:    level,
		Rank:     RankForLevel(level),
	}
}

// LeaderboardStats contains statistics about the XP ranking
type LeaderboardStats struct {
	TotalUsers   int64 `json:"total_users"`
	DiamondUsers int64 `json:"diamond_users"`
	TopXP        int64 `json:"top_xp,omitempty"`
}
