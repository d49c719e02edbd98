package scene

import "fmt"

func testScene(code string, category Category) *Scene {
	return &Scene{
		Code:     code,
		Name:     code,
		Category: category,
		MinAIs:   2,
		MaxAIs:   3,
		Roles: []Role{
			{Name: "PROTAGONISTA", Tag: TagProtagonist},
			{Name: "ANTAGONISTA", Tag: TagAntagonist},
		},
		Interventions: []Intervention{
			{Role: "ANTAGONISTA", Directive: "Provoca a {{PROTAGONISTA}}", TargetRole: "PROTAGONISTA"},
			{Role: "PROTAGONISTA", Directive: "Responde a {{ANTAGONISTA}}"},
		},
		Active: true,
	}
}

func testScenes(n int) []*Scene {
	cats := []Category{CategoryTension, CategoryHumor, CategoryDebate, CategoryVulnerability}
	out := make([]*Scene, n)
	for i := range out {
		out[i] = testScene(fmt.Sprintf("S%02d", i), cats[i%len(cats)])
	}
	return out
}

func codes(scenes []*Scene) []string {
	out := make([]string, len(scenes))
	for i, s := range scenes {
		out[i] = s.Code
	}
	return out
}
