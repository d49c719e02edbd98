package scene

import "strings"

// RoleTag is the narrative function of a role.
type RoleTag string

const (
	TagProtagonist RoleTag = "protagonist"
	TagAntagonist  RoleTag = "antagonist"
	TagMediator    RoleTag = "mediator"
	TagComic       RoleTag = "comic"
	TagVulnerable  RoleTag = "vulnerable"
	TagAlly        RoleTag = "ally"
	TagRomantic    RoleTag = "romantic"
	TagWitness     RoleTag = "witness"
)

// IsValid reports whether t is a known tag.
func (t RoleTag) IsValid() bool {
	switch t {
	case TagProtagonist, TagAntagonist, TagMediator, TagComic, TagVulnerable, TagAlly, TagRomantic, TagWitness:
		return true
	}
	return false
}

// tagKeywords is consulted in order; the first match wins.
var tagKeywords = []struct {
	tag      RoleTag
	keywords []string
}{
	{TagProtagonist, []string{"protag", "lider", "leader", "hero", "heroe", "main"}},
	{TagAntagonist, []string{"antag", "rival", "villain", "villan", "provoc", "critic", "esceptic", "skeptic", "contrari", "instigat"}},
	{TagMediator, []string{"mediad", "mediat", "conciliad", "pacific", "peacemaker", "arbitr"}},
	{TagComic, []string{"comic", "bromist", "humor", "jester", "payas", "joker", "gracios"}},
	{TagVulnerable, []string{"vulnerab", "herid", "insegur", "fragil", "wounded"}},
	{TagRomantic, []string{"romant", "crush", "amante", "lover", "pretendient"}},
	{TagAlly, []string{"aliad", "ally", "support", "apoyo", "amig", "friend", "defensor", "confident"}},
}

// ResolveTag derives a tag from a role name for authors that omit one.
// Roles that match nothing are witnesses.
func ResolveTag(roleName string) RoleTag {
	name := normalize(roleName)
	for _, entry := range tagKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(name, kw) {
				return entry.tag
			}
		}
	}
	return TagWitness
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
)

func normalize(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}
