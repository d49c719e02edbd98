package scene

import (
	"cmp"
	"slices"
)

// Filter narrows the catalog down to candidates. Zero values disable a stage.
type Filter struct {
	ExcludeCategories []Category
	// ExcludeCodes normally holds the group's most recently used codes.
	ExcludeCodes []string
	// EnergyBand and TensionBand require containment of the scene's own band.
	EnergyBand  *Band
	TensionBand *Band
	// AICount must fall inside [MinAIs, MaxAIs].
	AICount             int
	ExcludeSeedSpawning bool
	// RequiredRoles are matched by role name or tag.
	RequiredRoles []string
	// PreferredCategories are listed first; the rest are kept.
	PreferredCategories []Category
	// Limit truncates the ranked result when positive.
	Limit int
}

// Apply runs the filter pipeline over scenes and returns the ranked candidates.
func (f Filter) Apply(scenes []*Scene) []*Scene {
	out := make([]*Scene, 0, len(scenes))
	for _, s := range scenes {
		if f.accepts(s) {
			out = append(out, s)
		}
	}

	slices.SortStableFunc(out, compareRank)

	if len(f.PreferredCategories) > 0 {
		preferred := make([]*Scene, 0, len(out))
		rest := make([]*Scene, 0, len(out))
		for _, s := range out {
			if slices.Contains(f.PreferredCategories, s.Category) {
				preferred = append(preferred, s)
			} else {
				rest = append(rest, s)
			}
		}
		out = append(preferred, rest...)
	}

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (f Filter) accepts(s *Scene) bool {
	if slices.Contains(f.ExcludeCategories, s.Category) {
		return false
	}
	if slices.Contains(f.ExcludeCodes, s.Code) {
		return false
	}
	if f.EnergyBand != nil && s.Triggers.Energy != nil && !f.EnergyBand.Contains(*s.Triggers.Energy) {
		return false
	}
	if f.TensionBand != nil && s.Triggers.Tension != nil && !f.TensionBand.Contains(*s.Triggers.Tension) {
		return false
	}
	if f.AICount > 0 && (f.AICount < s.MinAIs || f.AICount > s.MaxAIs) {
		return false
	}
	if f.ExcludeSeedSpawning && s.SpawnsSeeds() {
		return false
	}
	for _, r := range f.RequiredRoles {
		if !s.HasRole(r) {
			return false
		}
	}
	return true
}

// compareRank orders by usage count ascending, then average engagement
// descending, then code for a total order.
func compareRank(a, b *Scene) int {
	if c := cmp.Compare(a.Usage.Count, b.Usage.Count); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Usage.AvgEngagement, a.Usage.AvgEngagement); c != 0 {
		return c
	}
	return cmp.Compare(a.Code, b.Code)
}
