package progress

// Counters are maintained by the gameplay side and only read here.
type Counters struct {
	StudentID     string `json:"student_id" db:"student_id"`
	GamesPlayed   int    `json:"games_played" db:"games_played"`
	CurrentStreak int    `json:"current_streak" db:"current_streak"`
	PerfectGames  int    `json:"perfect_games" db:"perfect_games"`
	Level         int    `json:"level" db:"level"`
}

// Snapshot is a point-in-time view of a player's progress. It is rebuilt on
// demand and never stored.
type Snapshot struct {
	Achievements  []string `json:"achievements"`
	GamesPlayed   int      `json:"gamesPlayed"`
	TotalPoints   int      `json:"totalPoints"`
	CurrentStreak int      `json:"currentStreak"`
	PerfectGames  int      `json:"perfectGames"`
	Level         int      `json:"level"`
}

func NewSnapshot(c Counters, achievements []string, totalPoints int) Snapshot {
	return Snapshot{
		Achievements:  achievements,
		GamesPlayed:   c.GamesPlayed,
		TotalPoints:   totalPoints,
		CurrentStreak: c.CurrentStreak,
		PerfectGames:  c.PerfectGames,
		Level:         c.Level,
	}
}

func (s Snapshot) HasAchievement(id string) bool {
	for _, a := range s.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// EffectiveLevel treats an unknown level as 1.
func (s Snapshot) EffectiveLevel() int {
	if s.Level <= 0 {
		return 1
	}
	return s.Level
}
