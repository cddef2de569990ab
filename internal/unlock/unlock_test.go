package unlock

import (
	"encoding/json"
	"testing"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/progress"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func req(c accessory.Condition) *accessory.Requirement {
	return accessory.NewRequirement(c)
}

func TestEvaluateNilRequirement(t *testing.T) {
	r := Evaluate(nil, progress.Snapshot{})
	assert.True(t, r.Unlocked)
	assert.Equal(t, 1.0, r.Progress)
	assert.Empty(t, r.Requirement)
	assert.True(t, r.Supported)
}

func TestEvaluateVariants(t *testing.T) {
	snap := progress.Snapshot{
		Achievements:  []string{"first_song"},
		GamesPlayed:   5,
		TotalPoints:   750,
		CurrentStreak: 3,
		PerfectGames:  1,
		Level:         4,
	}

	tests := []struct {
		name     string
		cond     accessory.Condition
		unlocked bool
		progress float64
		text     string
	}{
		{"achievement earned", accessory.AchievementCondition{ID: "first_song", Name: "First Song"}, true, 1, "Earn achievement: First Song"},
		{"achievement missing falls back to id", accessory.AchievementCondition{ID: "maestro"}, false, 0, "Earn achievement: maestro"},
		{"games played partial", accessory.GamesPlayedCondition{Count: 10}, false, 0.5, "Play 10 games"},
		{"points earned thousands", accessory.PointsEarnedCondition{Amount: 1500}, false, 0.5, "Earn 1,500 total points"},
		{"streak met", accessory.StreakCondition{Days: 3}, true, 1, "Reach 3 day streak"},
		{"perfect singular", accessory.PerfectGamesCondition{Count: 1}, true, 1, "Score 100% in 1 game"},
		{"perfect plural", accessory.PerfectGamesCondition{Count: 4}, false, 0.25, "Score 100% in 4 games"},
		{"level partial", accessory.LevelCondition{Level: 8}, false, 0.5, "Reach level 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(req(tt.cond), snap)
			assert.Equal(t, tt.unlocked, r.Unlocked)
			assert.InDelta(t, tt.progress, r.Progress, 1e-9)
			assert.Equal(t, tt.text, r.Requirement)
			assert.True(t, r.Supported)
		})
	}
}

func TestEvaluateUnknownLevelDefaultsToOne(t *testing.T) {
	r := Evaluate(req(accessory.LevelCondition{Level: 1}), progress.Snapshot{})
	assert.True(t, r.Unlocked)

	r = Evaluate(req(accessory.LevelCondition{Level: 2}), progress.Snapshot{})
	assert.InDelta(t, 0.5, r.Progress, 1e-9)
}

func TestEvaluateNonPositiveThresholdIsMet(t *testing.T) {
	r := Evaluate(req(accessory.GamesPlayedCondition{Count: 0}), progress.Snapshot{})
	assert.True(t, r.Unlocked)
	assert.Equal(t, 1.0, r.Progress)
}

func TestEvaluateUnsupportedFailsOpen(t *testing.T) {
	r := Evaluate(req(accessory.UnsupportedCondition{Kind: "lessons_completed"}), progress.Snapshot{})
	assert.True(t, r.Unlocked)
	assert.Equal(t, 1.0, r.Progress)
	assert.False(t, r.Supported)
}

func TestEvaluateMalformedRequirementFailsOpen(t *testing.T) {
	for _, in := range []string{`{}`, `{"count":3}`, `{"type":"games_played","count":"ten"}`} {
		var r accessory.Requirement
		require.NoError(t, json.Unmarshal([]byte(in), &r), in)

		res := Evaluate(&r, progress.Snapshot{})
		assert.True(t, res.Unlocked, in)
		assert.False(t, res.Supported, in)
	}
}

func TestEvaluateMonotonicProgress(t *testing.T) {
	conds := []func(n int) (accessory.Condition, progress.Snapshot){
		func(n int) (accessory.Condition, progress.Snapshot) {
			return accessory.GamesPlayedCondition{Count: 12}, progress.Snapshot{GamesPlayed: n}
		},
		func(n int) (accessory.Condition, progress.Snapshot) {
			return accessory.PointsEarnedCondition{Amount: 12}, progress.Snapshot{TotalPoints: n}
		},
		func(n int) (accessory.Condition, progress.Snapshot) {
			return accessory.StreakCondition{Days: 12}, progress.Snapshot{CurrentStreak: n}
		},
		func(n int) (accessory.Condition, progress.Snapshot) {
			return accessory.PerfectGamesCondition{Count: 12}, progress.Snapshot{PerfectGames: n}
		},
		func(n int) (accessory.Condition, progress.Snapshot) {
			return accessory.LevelCondition{Level: 12}, progress.Snapshot{Level: n}
		},
	}

	for _, build := range conds {
		last := -1.0
		for n := 0; n <= 20; n++ {
			c, snap := build(n)
			r := Evaluate(req(c), snap)

			assert.GreaterOrEqual(t, r.Progress, last, "%s at %d", c.Type(), n)
			assert.GreaterOrEqual(t, r.Progress, 0.0)
			assert.LessOrEqual(t, r.Progress, 1.0)
			assert.Equal(t, r.Unlocked, r.Progress == 1, "%s at %d", c.Type(), n)
			last = r.Progress
		}
	}
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "0", thousands(0))
	assert.Equal(t, "999", thousands(999))
	assert.Equal(t, "1,000", thousands(1000))
	assert.Equal(t, "1,234,567", thousands(1234567))
	assert.Equal(t, "-12,000", thousands(-12000))
}

func catalogItem(name string, c accessory.Condition) accessory.Accessory {
	a := accessory.Accessory{ID: uuid.New(), Name: name, Category: accessory.CategoryHat}
	if c != nil {
		a.UnlockRequirement = req(c)
	}
	return a
}

func TestDetectNewlyUnlockedGamesPlayed(t *testing.T) {
	catalog := []accessory.Accessory{
		catalogItem("free cap", nil),
		catalogItem("ten games", accessory.GamesPlayedCondition{Count: 10}),
		catalogItem("twenty games", accessory.GamesPlayedCondition{Count: 20}),
		catalogItem("five games", accessory.GamesPlayedCondition{Count: 5}),
	}

	newly := DetectNewlyUnlocked(catalog,
		progress.Snapshot{GamesPlayed: 9},
		progress.Snapshot{GamesPlayed: 10},
	)

	require.Len(t, newly, 1)
	assert.Equal(t, "ten games", newly[0].Name)
}

func TestDetectNewlyUnlockedKeepsCatalogOrder(t *testing.T) {
	catalog := []accessory.Accessory{
		catalogItem("streak", accessory.StreakCondition{Days: 2}),
		catalogItem("badge", accessory.AchievementCondition{ID: "maestro"}),
		catalogItem("level", accessory.LevelCondition{Level: 3}),
		catalogItem("future", accessory.UnsupportedCondition{Kind: "duets"}),
	}

	before := progress.Snapshot{CurrentStreak: 1, Level: 2}
	after := progress.Snapshot{CurrentStreak: 2, Level: 3, Achievements: []string{"maestro"}}

	newly := DetectNewlyUnlocked(catalog, before, after)

	names := make([]string, 0, len(newly))
	for _, a := range newly {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"streak", "badge", "level"}, names)
}

func TestDetectNewlyUnlockedMatchesEvaluate(t *testing.T) {
	var catalog []accessory.Accessory
	for n := 1; n <= 8; n++ {
		catalog = append(catalog, catalogItem("games", accessory.GamesPlayedCondition{Count: n}))
		catalog = append(catalog, catalogItem("points", accessory.PointsEarnedCondition{Amount: n * 10}))
	}

	for b := 0; b <= 8; b++ {
		for a := 0; a <= 8; a++ {
			before := progress.Snapshot{GamesPlayed: b, TotalPoints: b * 10}
			after := progress.Snapshot{GamesPlayed: a, TotalPoints: a * 10}

			got := map[uuid.UUID]bool{}
			for _, acc := range DetectNewlyUnlocked(catalog, before, after) {
				got[acc.ID] = true
			}
			for _, acc := range catalog {
				want := !Evaluate(acc.UnlockRequirement, before).Unlocked && Evaluate(acc.UnlockRequirement, after).Unlocked
				assert.Equal(t, want, got[acc.ID])
			}
		}
	}
}

func TestUnsupported(t *testing.T) {
	catalog := []accessory.Accessory{
		catalogItem("a", nil),
		catalogItem("b", accessory.UnsupportedCondition{Kind: "duets"}),
		catalogItem("c", accessory.StreakCondition{Days: 1}),
		catalogItem("d", accessory.UnsupportedCondition{Raw: json.RawMessage(`{"count":2}`)}),
	}
	assert.Equal(t, []string{"duets", "untyped"}, Unsupported(catalog))
}

func TestGroupByCategory(t *testing.T) {
	entries := []Status{
		{Accessory: accessory.Accessory{Name: "shirt", Category: accessory.CategoryBody}},
		{Accessory: accessory.Accessory{Name: "cape", Category: "cape"}},
		{Accessory: accessory.Accessory{Name: "cap", Category: accessory.CategoryHat}},
		{Accessory: accessory.Accessory{Name: "mystery"}},
		{Accessory: accessory.Accessory{Name: "tophat", Category: accessory.CategoryHat}},
	}

	groups := GroupByCategory(entries)
	require.Len(t, groups, 4)

	assert.Equal(t, accessory.CategoryHat, groups[0].Category)
	assert.Equal(t, "Hats", groups[0].Name)
	require.Len(t, groups[0].Accessories, 2)
	assert.Equal(t, "cap", groups[0].Accessories[0].Name)
	assert.Equal(t, "tophat", groups[0].Accessories[1].Name)

	assert.Equal(t, accessory.CategoryBody, groups[1].Category)
	assert.Equal(t, accessory.CategoryOther, groups[2].Category)
	assert.Equal(t, accessory.Category("cape"), groups[3].Category)
}
