package roles

import (
	"slices"

	"github.com/BaSui01/sceneflow/narrative/scene"
	"github.com/BaSui01/sceneflow/types"
)

// traitPreference says whether a role wants a trait high or low.
type traitPreference struct {
	trait types.Trait
	high  bool
}

var personalityTable = map[scene.RoleTag][]traitPreference{
	scene.TagProtagonist: {
		{types.TraitExtraversion, true},
	},
	scene.TagAntagonist: {
		{types.TraitExtraversion, true},
		{types.TraitAgreeableness, false},
	},
	scene.TagMediator: {
		{types.TraitAgreeableness, true},
		{types.TraitConscientiousness, true},
		{types.TraitNeuroticism, false},
	},
	scene.TagComic: {
		{types.TraitExtraversion, true},
		{types.TraitOpenness, true},
	},
	scene.TagVulnerable: {
		{types.TraitNeuroticism, true},
		{types.TraitOpenness, true},
	},
	scene.TagAlly: {
		{types.TraitAgreeableness, true},
	},
	scene.TagRomantic: {
		{types.TraitOpenness, true},
		{types.TraitAgreeableness, true},
	},
}

var thematicCategories = map[scene.RoleTag][]scene.Category{
	scene.TagAntagonist: {scene.CategoryTension, scene.CategoryDebate},
	scene.TagMediator:   {scene.CategoryReconciliation, scene.CategoryTension},
	scene.TagComic:      {scene.CategoryHumor},
	scene.TagVulnerable: {scene.CategoryVulnerability},
	scene.TagRomantic:   {scene.CategoryRomance},
	scene.TagAlly:       {scene.CategoryReconciliation, scene.CategoryEveryday},
}

// personalityFit scores how well an agent's traits match a role tag. Each
// trait contributes up to ±weight, scaled by its distance from neutral.
func personalityFit(agent types.Agent, tag scene.RoleTag, weight float64) float64 {
	var fit float64
	for _, pref := range personalityTable[tag] {
		delta := (agent.TraitScore(pref.trait) - types.NeutralTraitScore) / types.NeutralTraitScore
		if !pref.high {
			delta = -delta
		}
		fit += clamp(delta, -1, 1) * weight
	}
	return fit
}

// themeMatches reports whether the scene's category is one of the role's themes.
func themeMatches(tag scene.RoleTag, category scene.Category) bool {
	return slices.Contains(thematicCategories[tag], category)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
