package celebration

type Tier string

const (
	TierMinimal  Tier = "minimal"
	TierStandard Tier = "standard"
	TierFull     Tier = "full"
	TierEpic     Tier = "epic"
)

type TierConfig struct {
	Duration         string `json:"duration"`
	Confetti         bool   `json:"confetti"`
	Animation        string `json:"animation"`
	MessageIntensity string `json:"messageIntensity"`
}

var tierConfigs = map[Tier]TierConfig{
	TierMinimal:  {Duration: "standard", Confetti: false, Animation: "fade", MessageIntensity: "neutral"},
	TierStandard: {Duration: "standard", Confetti: false, Animation: "bounce", MessageIntensity: "positive"},
	TierFull:     {Duration: "level-up", Confetti: true, Animation: "bounce-glow", MessageIntensity: "excellent"},
	TierEpic:     {Duration: "boss", Confetti: true, Animation: "epic", MessageIntensity: "epic"},
}

// DetermineTier picks how loud the end-of-game celebration is. scorePct is
// accepted for callers that have it but does not change the outcome; stars
// already encode the score bands.
func DetermineTier(stars int, isBoss, leveledUp bool, scorePct float64) Tier {
	switch {
	case isBoss && stars >= 1:
		return TierEpic
	case stars == 3 || leveledUp:
		return TierFull
	case stars >= 1:
		return TierStandard
	default:
		return TierMinimal
	}
}

// ConfigFor returns the presentation settings of tier, falling back to the
// minimal tier for unknown values.
func ConfigFor(tier Tier) TierConfig {
	if c, ok := tierConfigs[tier]; ok {
		return c
	}
	return tierConfigs[TierMinimal]
}
