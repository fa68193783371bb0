package domain

import "math"

// MaxLevel is the highest reachable level.
const MaxLevel = 10

// LevelThresholds holds the cumulative XP needed to enter each level.
// LevelThresholds[k] is the first XP value of level k+1.
var LevelThresholds = [MaxLevel]int64{0, 150, 300, 500, 700, 1000, 1500, 2500, 5000, 10000}

// Rank is the coarse tier shown next to a level
type Rank string

const (
	RankBronze  Rank = "BRONZE"
	RankSilver  Rank = "SILVER"
	RankGold    Rank = "GOLD"
	RankDiamond Rank = "DIAMOND"
)

// rankFloors maps the first level of each tier, highest first.
var rankFloors = []struct {
	minLevel int
	rank     Rank
}{
	{10, RankDiamond},
	{7, RankGold},
	{4, RankSilver},
	{1, RankBronze},
}

// LevelForXP returns the level reached with the given cumulative XP.
// Thresholds are inclusive on the lower edge.
func LevelForXP(totalXP int64) int {
	level := 1
	for i := 1; i < MaxLevel; i++ {
		if totalXP >= LevelThresholds[i] {
			level = i + 1
		}
	}
	return level
}

// LevelProgress returns the percentage travelled from the current level's
// threshold towards the next one, clamped to [0,100]. At MaxLevel it is 100.
func LevelProgress(totalXP int64) float64 {
	level := LevelForXP(totalXP)
	if level >= MaxLevel {
		return 100
	}
	floor := LevelThresholds[level-1]
	ceil := LevelThresholds[level]
	pct := float64(totalXP-floor) / float64(ceil-floor) * 100
	return math.Max(0, math.Min(100, pct))
}

// RankForLevel maps a level onto its rank tier.
func RankForLevel(level int) Rank {
	for _, f := range rankFloors {
		if level >= f.minLevel {
			return f.rank
		}
	}
	return RankBronze
}

// Progression is the derived view of a user's XP.
type Progression struct {
	TotalXP        int64   `json:"total_xp"`
	Level          int     `json:"level"`
	Rank           Rank    `json:"rank"`
	CurrentLevelXP int64   `json:"current_level_xp"`
	NextLevelXP    int64   `json:"next_level_xp"`
	XPToNextLevel  int64   `json:"xp_to_next_level"`
	Progress       float64 `json:"progress"`
	MaxLevel       bool    `json:"max_level"`
}

// DeriveProgression computes level, rank and progress for a total.
func DeriveProgression(totalXP int64) (Progression, error) {
	if totalXP < 0 {
		return Progression{}, ErrInvalidXP
	}
	level := LevelForXP(totalXP)
	p := Progression{
		TotalXP:        totalXP,
		Level:          level,
		Rank:           RankForLevel(level),
		CurrentLevelXP: LevelThresholds[level-1],
		Progress:       LevelProgress(totalXP),
	}
	if level >= MaxLevel {
		p.NextLevelXP = LevelThresholds[MaxLevel-1]
		p.MaxLevel = true
		return p, nil
	}
	p.NextLevelXP = LevelThresholds[level]
	p.XPToNextLevel = p.NextLevelXP - totalXP
	return p, nil
}
