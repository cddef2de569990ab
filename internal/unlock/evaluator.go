package unlock

import (
	"fmt"
	"strconv"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/progress"
)

type Result struct {
	Unlocked    bool    `json:"unlocked"`
	Progress    float64 `json:"progress"`
	Requirement string  `json:"requirement"`
	// Supported is false when the requirement type is unknown and the
	// accessory was unlocked by default.
	Supported bool `json:"-"`
}

var open = Result{Unlocked: true, Progress: 1, Supported: true}

// Evaluate reports whether req is satisfied by snap. A nil requirement is
// always satisfied. Unknown requirement types are treated as satisfied.
func Evaluate(req *accessory.Requirement, snap progress.Snapshot) Result {
	if req == nil || req.Condition == nil {
		return open
	}

	switch c := req.Condition.(type) {
	case accessory.AchievementCondition:
		name := c.Name
		if name == "" {
			name = c.ID
		}
		r := Result{Requirement: "Earn achievement: " + name, Supported: true}
		if snap.HasAchievement(c.ID) {
			r.Unlocked = true
			r.Progress = 1
		}
		return r

	case accessory.GamesPlayedCondition:
		return counted(snap.GamesPlayed, c.Count, fmt.Sprintf("Play %d games", c.Count))

	case accessory.PointsEarnedCondition:
		return counted(snap.TotalPoints, c.Amount, fmt.Sprintf("Earn %s total points", thousands(c.Amount)))

	case accessory.StreakCondition:
		return counted(snap.CurrentStreak, c.Days, fmt.Sprintf("Reach %d day streak", c.Days))

	case accessory.PerfectGamesCondition:
		noun := "game"
		if c.Count > 1 {
			noun = "games"
		}
		return counted(snap.PerfectGames, c.Count, fmt.Sprintf("Score 100%% in %d %s", c.Count, noun))

	case accessory.LevelCondition:
		return counted(snap.EffectiveLevel(), c.Level, fmt.Sprintf("Reach level %d", c.Level))

	default:
		return Result{Unlocked: true, Progress: 1}
	}
}

func counted(current, required int, text string) Result {
	r := Result{Requirement: text, Supported: true}
	if required <= 0 || current >= required {
		r.Unlocked = true
		r.Progress = 1
		return r
	}
	if current > 0 {
		r.Progress = float64(current) / float64(required)
	}
	return r
}

func thousands(n int) string {
	s := strconv.Itoa(n)
	neg := n < 0
	if neg {
		s = s[1:]
	}

	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
