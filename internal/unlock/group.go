package unlock

import (
	"sort"

	"avatarShopAPI/internal/accessory"
)

var categoryNames = map[accessory.Category]string{
	accessory.CategoryHat:        "Hats",
	accessory.CategoryHeadgear:   "Headgear",
	accessory.CategoryEyes:       "Eyes",
	accessory.CategoryFace:       "Face",
	accessory.CategoryBody:       "Body",
	accessory.CategoryBackground: "Background",
	accessory.CategoryOther:      "Other",
}

// Status is a catalog entry as seen by one player.
type Status struct {
	accessory.Accessory
	Unlock   Result `json:"unlock"`
	Owned    bool   `json:"owned"`
	Equipped bool   `json:"equipped"`
}

type Group struct {
	Category    accessory.Category `json:"category"`
	Name        string             `json:"name"`
	Accessories []Status           `json:"accessories"`
}

func categoryOrder(c accessory.Category) int {
	for i, known := range accessory.Categories {
		if c == known {
			return i
		}
	}
	return len(accessory.Categories)
}

// GroupByCategory buckets entries by category in display order. Entries with
// no category land in "other"; categories outside the known set come last in
// order of first appearance.
func GroupByCategory(entries []Status) []Group {
	index := map[accessory.Category]int{}
	var groups []Group

	for _, e := range entries {
		c := e.Category
		if c == "" {
			c = accessory.CategoryOther
		}
		i, ok := index[c]
		if !ok {
			name, known := categoryNames[c]
			if !known {
				name = string(c)
			}
			i = len(groups)
			index[c] = i
			groups = append(groups, Group{Category: c, Name: name})
		}
		groups[i].Accessories = append(groups[i].Accessories, e)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return categoryOrder(groups[a].Category) < categoryOrder(groups[b].Category)
	})
	return groups
}
