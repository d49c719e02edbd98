package director

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/sceneflow/types"
)

const (
	energyFullLength = 200.0
	energyDecayRate  = 0.1 // per minute
)

// Analysis summarizes the recent message window.
type Analysis struct {
	// Participation is exp(-CV) over per-agent message counts; 1 is perfectly even.
	Participation float64 `json:"participation"`
	// Energy weights message length by recency, in [0,1].
	Energy float64 `json:"energy"`
	// Tension is the narrative tension used for band filtering, in [0,1].
	Tension       float64        `json:"tension"`
	SpeakerCounts map[string]int `json:"speaker_counts"`
	MessageCount  int            `json:"message_count"`
}

// Analyze computes participation balance and conversation energy.
func Analyze(roster types.Roster, messages []types.Message, now time.Time) Analysis {
	a := Analysis{
		SpeakerCounts: make(map[string]int, len(roster)),
		MessageCount:  len(messages),
	}
	for _, ag := range roster {
		a.SpeakerCounts[ag.ID] = 0
	}
	for _, m := range types.AgentMessages(messages) {
		if _, ok := a.SpeakerCounts[m.SpeakerID]; ok {
			a.SpeakerCounts[m.SpeakerID]++
		}
	}
	a.Participation = participationBalance(a.SpeakerCounts)
	a.Energy = energy(messages, now)
	return a
}

func participationBalance(counts map[string]int) float64 {
	if len(counts) == 0 {
		return 1
	}
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))
	if mean == 0 {
		return 1
	}
	var variance float64
	for _, c := range counts {
		d := float64(c) - mean
		variance += d * d
	}
	cv := math.Sqrt(variance/float64(len(counts))) / mean
	return math.Exp(-cv)
}

func energy(messages []types.Message, now time.Time) float64 {
	if len(messages) == 0 {
		return 0
	}
	var total float64
	for _, m := range messages {
		length := math.Min(float64(utf8.RuneCountInString(m.Content))/energyFullLength, 1)
		age := 0.0
		if !m.CreatedAt.IsZero() {
			age = math.Max(now.Sub(m.CreatedAt).Minutes(), 0)
		}
		total += length * math.Exp(-energyDecayRate*age)
	}
	return total / float64(len(messages))
}
