package executor

import (
	"regexp"
	"strings"
	"time"

	"github.com/BaSui01/sceneflow/narrative/scene"
)

// Step is one resolved intervention. It only describes what should be
// generated; delivering it is the caller's job.
type Step struct {
	Index          int           `json:"index"`
	Role           string        `json:"role"`
	AgentID        string        `json:"agent_id"`
	AgentName      string        `json:"agent_name"`
	Directive      string        `json:"directive"`
	TargetAgentIDs []string      `json:"target_agent_ids,omitempty"`
	Delay          time.Duration `json:"delay"`
	Tone           string        `json:"tone,omitempty"`
}

// Plan is a scene bound to agents and resolved into ordered steps.
type Plan struct {
	GroupID   string            `json:"group_id"`
	SceneCode string            `json:"scene_code"`
	SceneName string            `json:"scene_name"`
	Category  scene.Category    `json:"category"`
	Roles     []string          `json:"roles"`
	Bindings  map[string]string `json:"bindings"`
	// Names maps bound agent ids to display names.
	Names     map[string]string `json:"names,omitempty"`
	Steps     []Step            `json:"steps"`
	CreatedAt time.Time         `json:"created_at"`
}

// Resolve replaces {{ROLE}} tokens in text with the bound agents' names.
func (p *Plan) Resolve(text string) string {
	return resolveVariables(text, p.Bindings, p.Names)
}

// Participants returns the distinct bound agents in role declaration order.
func (p *Plan) Participants() []string {
	seen := make(map[string]bool, len(p.Bindings))
	out := make([]string, 0, len(p.Bindings))
	for _, role := range p.Roles {
		id := p.Bindings[role]
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// StepView is a step plus its position in the plan.
type StepView struct {
	Step   Step `json:"step"`
	IsLast bool `json:"is_last"`
}

// NextStep returns the step at index, or false once the plan is exhausted.
func NextStep(plan *Plan, index int) (StepView, bool) {
	if plan == nil || index < 0 || index >= len(plan.Steps) {
		return StepView{}, false
	}
	return StepView{Step: plan.Steps[index], IsLast: index == len(plan.Steps)-1}, true
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// resolveVariables replaces {{ROLE}} tokens with bound display names.
// Tokens naming an unbound or unknown role are kept verbatim.
func resolveVariables(template string, bindings, names map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(tok string) string {
		role := strings.TrimSpace(tokenPattern.FindStringSubmatch(tok)[1])
		id, ok := bindings[role]
		if !ok || id == "" {
			return tok
		}
		if name := names[id]; name != "" {
			return name
		}
		return id
	})
}
