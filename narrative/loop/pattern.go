package loop

import (
	"time"

	"github.com/BaSui01/sceneflow/narrative/scene"
)

// Kind identifies a repetition pattern.
type Kind string

const (
	KindAgreement            Kind = "agreement"
	KindCompliments          Kind = "compliments"
	KindApologies            Kind = "apologies"
	KindExcessQuestions      Kind = "excess_questions"
	KindTopicRepetition      Kind = "topic_repetition"
	KindProtagonistDominance Kind = "protagonist_dominance"
)

// Pattern is one finding of a scan. It is not persisted.
type Pattern struct {
	Kind       Kind      `json:"kind"`
	Count      int       `json:"count"`
	Threshold  float64   `json:"threshold"`
	DetectedAt time.Time `json:"detected_at"`
	Detail     string    `json:"detail"`
	// AgentID names the dominant speaker for protagonist_dominance.
	AgentID string `json:"agent_id,omitempty"`
	// Keyword is the most repeated keyword for topic_repetition.
	Keyword string `json:"keyword,omitempty"`
}

// Overshoot is (count-threshold)/threshold clamped to [0,1].
func (p Pattern) Overshoot() float64 {
	if p.Threshold <= 0 {
		return 1
	}
	v := (float64(p.Count) - p.Threshold) / p.Threshold
	return max(0, min(v, 1))
}

// Corrective is the suggested response to a pattern.
type Corrective struct {
	Kind       Kind             `json:"kind"`
	Categories []scene.Category `json:"categories"`
	Directive  string           `json:"directive"`
	// Priority ranges 1-10; higher is more urgent.
	Priority int `json:"priority"`
}

var correctives = map[Kind]Corrective{
	KindAgreement: {
		Categories: []scene.Category{scene.CategoryDebate, scene.CategoryTension},
		Directive:  "Break the consensus: someone challenges the last point with a concrete counter-argument.",
		Priority:   8,
	},
	KindCompliments: {
		Categories: []scene.Category{scene.CategoryHumor, scene.CategoryDebate},
		Directive:  "Cut the mutual praise with playful teasing or an honest critique.",
		Priority:   6,
	},
	KindApologies: {
		Categories: []scene.Category{scene.CategoryHumor, scene.CategoryEveryday},
		Directive:  "Stop apologising and move on with confidence.",
		Priority:   5,
	},
	KindExcessQuestions: {
		Categories: []scene.Category{scene.CategoryDiscovery, scene.CategoryProactivity},
		Directive:  "Answer instead of asking: share a story, an opinion or a plan.",
		Priority:   6,
	},
	KindTopicRepetition: {
		Categories: []scene.Category{scene.CategoryDiscovery, scene.CategoryHumor},
		Directive:  "Steer the conversation toward a fresh topic.",
		Priority:   7,
	},
	KindProtagonistDominance: {
		Categories: []scene.Category{scene.CategoryVulnerability, scene.CategoryEveryday},
		Directive:  "Give the floor to quieter members while the dominant speaker steps back.",
		Priority:   9,
	},
}

// CorrectiveAction returns the fixed corrective for a pattern kind.
func CorrectiveAction(kind Kind) (Corrective, bool) {
	c, ok := correctives[kind]
	if !ok {
		return Corrective{}, false
	}
	c.Kind = kind
	c.Categories = append([]scene.Category(nil), c.Categories...)
	return c, true
}

// MostUrgent returns the corrective of the highest-priority pattern. Ties
// keep the earliest pattern.
func MostUrgent(patterns []Pattern) (Corrective, bool) {
	var best Corrective
	found := false
	for _, p := range patterns {
		c, ok := CorrectiveAction(p.Kind)
		if !ok {
			continue
		}
		if !found || c.Priority > best.Priority {
			best, found = c, true
		}
	}
	return best, found
}

// MonotonyScore averages the normalized overshoot of every finding into a
// 0-1 signal. No findings score 0.
func MonotonyScore(patterns []Pattern) float64 {
	if len(patterns) == 0 {
		return 0
	}
	var sum float64
	for _, p := range patterns {
		sum += p.Overshoot()
	}
	return sum / float64(len(patterns))
}
