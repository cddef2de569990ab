package accessory

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Condition is one variant of an unlock requirement. The set of variants is
// closed: only types in this package implement it.
type Condition interface {
	Type() string
	isCondition()
}

type AchievementCondition struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type GamesPlayedCondition struct {
	Count int `json:"count"`
}

type PointsEarnedCondition struct {
	Amount int `json:"amount"`
}

type StreakCondition struct {
	Days int `json:"days"`
}

type PerfectGamesCondition struct {
	Count int `json:"count"`
}

type LevelCondition struct {
	Level int `json:"level"`
}

// UnsupportedCondition keeps a requirement this build cannot evaluate, so it
// round-trips unchanged and can be reported. Err is set when the payload had
// no type or its fields did not decode; it is nil for a well-formed payload
// of an unknown type.
type UnsupportedCondition struct {
	Kind string
	Raw  json.RawMessage
	Err  error `json:"-"`
}

func (AchievementCondition) Type() string  { return "achievement" }
func (GamesPlayedCondition) Type() string  { return "games_played" }
func (PointsEarnedCondition) Type() string { return "points_earned" }
func (StreakCondition) Type() string       { return "streak" }
func (PerfectGamesCondition) Type() string { return "perfect_games" }
func (LevelCondition) Type() string        { return "level" }
func (c UnsupportedCondition) Type() string {
	if c.Kind == "" {
		return "untyped"
	}
	return c.Kind
}

func (AchievementCondition) isCondition()  {}
func (GamesPlayedCondition) isCondition()  {}
func (PointsEarnedCondition) isCondition() {}
func (StreakCondition) isCondition()       {}
func (PerfectGamesCondition) isCondition() {}
func (LevelCondition) isCondition()        {}
func (UnsupportedCondition) isCondition()  {}

// Requirement is the JSON envelope {"type": "...", ...} around a Condition.
type Requirement struct {
	Condition Condition
}

func NewRequirement(c Condition) *Requirement {
	return &Requirement{Condition: c}
}

var ErrMissingRequirementType = errors.New("unlock requirement has no type")

func (r Requirement) MarshalJSON() ([]byte, error) {
	if u, ok := r.Condition.(UnsupportedCondition); ok && len(u.Raw) > 0 {
		return u.Raw, nil
	}
	if r.Condition == nil {
		return []byte("null"), nil
	}

	body, err := json.Marshal(r.Condition)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(r.Condition.Type())
	return json.Marshal(fields)
}

// UnmarshalJSON never fails on a syntactically valid payload. Anything it
// cannot decode into a known variant becomes an UnsupportedCondition holding
// the raw bytes, which evaluates as unlocked.
func (r *Requirement) UnmarshalJSON(data []byte) error {
	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		r.Condition = UnsupportedCondition{Raw: raw, Err: fmt.Errorf("decode unlock requirement: %w", err)}
		return nil
	}

	var (
		c   Condition
		err error
	)
	switch head.Type {
	case "":
		r.Condition = UnsupportedCondition{Raw: raw, Err: ErrMissingRequirementType}
		return nil
	case "achievement":
		var v AchievementCondition
		err = json.Unmarshal(data, &v)
		c = v
	case "games_played":
		var v GamesPlayedCondition
		err = json.Unmarshal(data, &v)
		c = v
	case "points_earned":
		var v PointsEarnedCondition
		err = json.Unmarshal(data, &v)
		c = v
	case "streak":
		var v StreakCondition
		err = json.Unmarshal(data, &v)
		c = v
	case "perfect_games":
		var v PerfectGamesCondition
		err = json.Unmarshal(data, &v)
		c = v
	case "level":
		var v LevelCondition
		err = json.Unmarshal(data, &v)
		c = v
	default:
		c = UnsupportedCondition{Kind: head.Type, Raw: raw}
	}
	if err != nil {
		c = UnsupportedCondition{Kind: head.Type, Raw: raw, Err: fmt.Errorf("decode %s requirement: %w", head.Type, err)}
	}

	r.Condition = c
	return nil
}
