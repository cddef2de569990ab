package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"avatarShopAPI/internal/accessory"

	"github.com/gosimple/slug"
)

// catalogEntry is one accessory as written by designers in the catalog file.
type catalogEntry struct {
	Slug              string                 `json:"slug"`
	Name              string                 `json:"name"`
	Category          accessory.Category     `json:"category"`
	PricePoints       int                    `json:"price_points"`
	ImageURL          string                 `json:"image_url"`
	Metadata          *accessory.Transform   `json:"metadata"`
	UnlockRequirement *accessory.Requirement `json:"unlock_requirement"`
}

// parseCatalog reads and validates a catalog file. Unknown requirement types
// are kept and reported as warnings. A requirement with no type or with
// undecodable fields is an authoring mistake and rejects the file, even
// though the server would read it as unlocked.
func parseCatalog(r io.Reader) ([]accessory.Accessory, []string, error) {
	var entries []catalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	var (
		out      []accessory.Accessory
		warnings []string
		seen     = map[string]int{}
	)
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, nil, fmt.Errorf("entry %d: name is required", i)
		}
		if e.Category == "" {
			e.Category = accessory.CategoryOther
		}
		if !e.Category.Valid() {
			return nil, nil, fmt.Errorf("entry %d (%s): unknown category %q", i, name, e.Category)
		}
		if e.PricePoints < 0 {
			return nil, nil, fmt.Errorf("entry %d (%s): price_points must not be negative", i, name)
		}

		s := e.Slug
		if s == "" {
			s = slug.Make(name)
		}
		if !slug.IsSlug(s) {
			return nil, nil, fmt.Errorf("entry %d (%s): invalid slug %q", i, name, s)
		}
		if prev, dup := seen[s]; dup {
			return nil, nil, fmt.Errorf("entry %d (%s): slug %q already used by entry %d", i, name, s, prev)
		}
		seen[s] = i

		md := accessory.Transform{Scale: 1}
		if e.Metadata != nil {
			md = *e.Metadata
		}
		if e.UnlockRequirement != nil {
			if u, ok := e.UnlockRequirement.Condition.(accessory.UnsupportedCondition); ok {
				if u.Err != nil {
					return nil, nil, fmt.Errorf("entry %d (%s): %w", i, name, u.Err)
				}
				warnings = append(warnings, fmt.Sprintf("%s: unlock requirement type %q is not supported and will always count as unlocked", s, u.Kind))
			}
		}

		out = append(out, accessory.Accessory{
			Slug:              s,
			Name:              name,
			Category:          e.Category,
			PricePoints:       e.PricePoints,
			ImageURL:          e.ImageURL,
			Metadata:          md,
			UnlockRequirement: e.UnlockRequirement,
		})
	}
	return out, warnings, nil
}
