package accessory

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementDecodesEachVariant(t *testing.T) {
	tests := []struct {
		in   string
		want Condition
	}{
		{`{"type":"achievement","id":"first_song","name":"First Song"}`, AchievementCondition{ID: "first_song", Name: "First Song"}},
		{`{"type":"games_played","count":10}`, GamesPlayedCondition{Count: 10}},
		{`{"type":"points_earned","amount":1500}`, PointsEarnedCondition{Amount: 1500}},
		{`{"type":"streak","days":7}`, StreakCondition{Days: 7}},
		{`{"type":"perfect_games","count":3}`, PerfectGamesCondition{Count: 3}},
		{`{"type":"level","level":5}`, LevelCondition{Level: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.want.Type(), func(t *testing.T) {
			var r Requirement
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))
			assert.Equal(t, tt.want, r.Condition)

			out, err := json.Marshal(r)
			require.NoError(t, err)
			assert.JSONEq(t, tt.in, string(out))
		})
	}
}

func TestRequirementKeepsUnknownTypes(t *testing.T) {
	in := `{"type":"lessons_completed","count":4}`

	var r Requirement
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	u, ok := r.Condition.(UnsupportedCondition)
	require.True(t, ok)
	assert.Equal(t, "lessons_completed", u.Type())
	assert.NoError(t, u.Err)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestRequirementMalformedFailsOpen(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType string
	}{
		{"no type", `{"count":4}`, "untyped"},
		{"empty object", `{}`, "untyped"},
		{"type not a string", `{"type":5,"count":4}`, "untyped"},
		{"not an object", `[1,2]`, "untyped"},
		{"bad field", `{"type":"games_played","count":"ten"}`, "games_played"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Requirement
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))

			u, ok := r.Condition.(UnsupportedCondition)
			require.True(t, ok, "got %T", r.Condition)
			assert.Equal(t, tt.wantType, u.Type())
			assert.Error(t, u.Err)

			out, err := json.Marshal(r)
			require.NoError(t, err)
			assert.JSONEq(t, tt.in, string(out))
		})
	}

	var r Requirement
	require.NoError(t, json.Unmarshal([]byte(`{"count":4}`), &r))
	assert.ErrorIs(t, r.Condition.(UnsupportedCondition).Err, ErrMissingRequirementType)
}

func TestAccessoryMalformedRequirementDecodes(t *testing.T) {
	var a Accessory
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Cap","category":"hat","unlock_requirement":{"count":2}}`), &a))
	require.NotNil(t, a.UnlockRequirement)
	_, ok := a.UnlockRequirement.Condition.(UnsupportedCondition)
	assert.True(t, ok)
}

func TestAccessoryNullRequirement(t *testing.T) {
	var a Accessory
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Cap","category":"hat","unlock_requirement":null}`), &a))
	assert.Nil(t, a.UnlockRequirement)
	assert.True(t, a.Category.Valid())
	assert.False(t, Category("cape").Valid())
}
