package fixtures

import (
	"github.com/BaSui01/sceneflow/narrative/scene"
)

// Rivalry is a two-role TENSION scene that spawns a jealousy seed and
// raises tension between its roles.
func Rivalry() *scene.Scene {
	return &scene.Scene{
		Code:        "TENSION_RIVALRY",
		Name:        "Rivalidad inesperada",
		Description: "Dos personajes chocan por una opinión",
		Category:    scene.CategoryTension,
		MinAIs:      2,
		MaxAIs:      3,
		Roles: []scene.Role{
			{Name: "PROTAGONISTA", Tag: scene.TagProtagonist},
			{Name: "ANTAGONISTA", Tag: scene.TagAntagonist},
		},
		Interventions: []scene.Intervention{
			{Role: "ANTAGONISTA", Directive: "Cuestiona con dureza lo que dijo {{PROTAGONISTA}}", TargetRole: "PROTAGONISTA"},
			{Role: "PROTAGONISTA", Directive: "Defiéndete de {{ANTAGONISTA}} sin ceder", TargetRole: "ANTAGONISTA"},
		},
		Consequences: scene.Consequences{
			Seeds: []scene.SeedTemplate{{
				Type:          "jealousy",
				Title:         "Rencor pendiente",
				Content:       "{{ANTAGONISTA}} no olvida la discusión con {{PROTAGONISTA}}",
				InvolvedRoles: []string{"PROTAGONISTA", "ANTAGONISTA"},
			}},
			Relations: []scene.RelationDelta{{
				RoleA:         "PROTAGONISTA",
				RoleB:         "ANTAGONISTA",
				AffinityDelta: -1,
				TensionDelta:  0.3,
				AddDynamics:   []string{"rivalry"},
			}},
		},
		Triggers: scene.Triggers{Energy: &scene.Band{Min: 0, Max: 1}},
		Active:   true,
	}
}

// Joke is a HUMOR scene with a single comic role and no consequences.
func Joke() *scene.Scene {
	return &scene.Scene{
		Code:     "HUMOR_JOKE",
		Name:     "Chiste improvisado",
		Category: scene.CategoryHumor,
		MinAIs:   1,
		MaxAIs:   4,
		Roles:    []scene.Role{{Name: "COMICO", Tag: scene.TagComic}},
		Interventions: []scene.Intervention{
			{Role: "COMICO", Directive: "Cuenta un chiste sobre el tema actual"},
		},
		Active: true,
	}
}

// Confession is a VULNERABILIDAD scene pairing a vulnerable and an ally role.
func Confession() *scene.Scene {
	return &scene.Scene{
		Code:     "VULN_CONFESSION",
		Name:     "Confesión",
		Category: scene.CategoryVulnerability,
		MinAIs:   2,
		MaxAIs:   3,
		Roles: []scene.Role{
			{Name: "VULNERABLE", Tag: scene.TagVulnerable},
			{Name: "CONFIDENTE", Tag: scene.TagAlly},
		},
		Interventions: []scene.Intervention{
			{Role: "VULNERABLE", Directive: "Confiesa a {{CONFIDENTE}} algo que te preocupa", TargetRole: "CONFIDENTE"},
			{Role: "CONFIDENTE", Directive: "Apoya a {{VULNERABLE}}", TargetRole: "VULNERABLE"},
		},
		Consequences: scene.Consequences{
			Relations: []scene.RelationDelta{{
				RoleA:         "VULNERABLE",
				RoleB:         "CONFIDENTE",
				AffinityDelta: 1.5,
				SharedMoment:  "{{VULNERABLE}} se abrió con {{CONFIDENTE}}",
			}},
		},
		Active: true,
	}
}

// Debate is a three-role DEBATE scene with a mediator.
func Debate() *scene.Scene {
	return &scene.Scene{
		Code:     "DEBATE_OPEN",
		Name:     "Debate abierto",
		Category: scene.CategoryDebate,
		MinAIs:   3,
		MaxAIs:   5,
		Roles: []scene.Role{
			{Name: "DEFENSOR", Tag: scene.TagProtagonist},
			{Name: "CRITICO", Tag: scene.TagAntagonist},
			{Name: "MEDIADOR", Tag: scene.TagMediator},
		},
		Interventions: []scene.Intervention{
			{Role: "DEFENSOR", Directive: "Plantea una postura firme"},
			{Role: "CRITICO", Directive: "Rebate a {{DEFENSOR}}", TargetRole: "DEFENSOR"},
			{Role: "MEDIADOR", Directive: "Busca un punto medio entre {{DEFENSOR}} y {{CRITICO}}"},
		},
		Consequences: scene.Consequences{
			Effects: []scene.Effect{{
				Kind:  scene.EffectAdjustTension,
				RoleA: "DEFENSOR",
				RoleB: "CRITICO",
				Delta: 0.1,
			}},
		},
		Active: true,
	}
}

// Catalog returns every fixture scene.
func Catalog() []*scene.Scene {
	return []*scene.Scene{Rivalry(), Joke(), Confession(), Debate()}
}

// CatalogYAML is an authoring file equivalent to a subset of Catalog.
const CatalogYAML = `scenes:
  - code: HUMOR_JOKE
    name: Chiste improvisado
    category: HUMOR
    min_ais: 1
    max_ais: 4
    roles:
      - name: COMICO
        tag: comic
    interventions:
      - role: COMICO
        directive: Cuenta un chiste sobre el tema actual
  - code: VULN_CONFESSION
    name: Confesión
    category: VULNERABILIDAD
    min_ais: 2
    max_ais: 3
    roles:
      - name: VULNERABLE
        tag: vulnerable
      - name: CONFIDENTE
        tag: ally
    interventions:
      - role: VULNERABLE
        directive: Confiesa a {{CONFIDENTE}} algo que te preocupa
        target_role: CONFIDENTE
      - role: CONFIDENTE
        directive: Apoya a {{VULNERABLE}}
        target_role: VULNERABLE
`
