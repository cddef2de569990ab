package unlock

import (
	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/progress"
)

// DetectNewlyUnlocked returns, in catalog order, the accessories whose
// requirement is unmet in before and met in after. Accessories without a
// requirement are never returned.
func DetectNewlyUnlocked(catalog []accessory.Accessory, before, after progress.Snapshot) []accessory.Accessory {
	var newly []accessory.Accessory
	for _, a := range catalog {
		if a.UnlockRequirement == nil {
			continue
		}
		if Evaluate(a.UnlockRequirement, before).Unlocked {
			continue
		}
		if Evaluate(a.UnlockRequirement, after).Unlocked {
			newly = append(newly, a)
		}
	}
	return newly
}

// Unsupported lists the requirement types in catalog that Evaluate does not
// understand, one entry per accessory.
func Unsupported(catalog []accessory.Accessory) []string {
	var kinds []string
	for _, a := range catalog {
		if a.UnlockRequirement == nil {
			continue
		}
		if u, ok := a.UnlockRequirement.Condition.(accessory.UnsupportedCondition); ok {
			kinds = append(kinds, u.Type())
		}
	}
	return kinds
}
