// Package fixtures provides canned rosters, conversations and scenes for tests.
package fixtures

import (
	"fmt"
	"time"

	"github.com/BaSui01/sceneflow/types"
)

// BaseTime is the fixed clock used by the fixtures.
var BaseTime = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

// --- Agents ---

// Agent builds an agent that never held a protagonist role.
func Agent(id, name string, traits map[types.Trait]float64) types.Agent {
	return types.Agent{
		ID:                  id,
		Name:                name,
		Personality:         traits,
		LastProtagonistTurn: -1,
	}
}

// Extrovert scores high on extraversion and openness.
func Extrovert(id, name string) types.Agent {
	return Agent(id, name, map[types.Trait]float64{
		types.TraitExtraversion:  85,
		types.TraitOpenness:      70,
		types.TraitAgreeableness: 55,
	})
}

// Confrontational scores low on agreeableness, high on neuroticism.
func Confrontational(id, name string) types.Agent {
	return Agent(id, name, map[types.Trait]float64{
		types.TraitAgreeableness: 15,
		types.TraitNeuroticism:   75,
		types.TraitExtraversion:  60,
	})
}

// Gentle scores high on agreeableness and conscientiousness.
func Gentle(id, name string) types.Agent {
	return Agent(id, name, map[types.Trait]float64{
		types.TraitAgreeableness:     90,
		types.TraitConscientiousness: 70,
		types.TraitNeuroticism:       30,
	})
}

// Roster returns a three-agent group with distinct temperaments.
func Roster() types.Roster {
	return types.Roster{
		Extrovert("ai-luna", "Luna"),
		Confrontational("ai-marco", "Marco"),
		Gentle("ai-sofia", "Sofía"),
	}
}

// LargeRoster returns n agents cycling through the three temperaments.
func LargeRoster(n int) types.Roster {
	makers := []func(id, name string) types.Agent{Extrovert, Confrontational, Gentle}
	out := make(types.Roster, n)
	for i := range out {
		id := fmt.Sprintf("ai-%02d", i)
		out[i] = makers[i%len(makers)](id, fmt.Sprintf("Agent %02d", i))
	}
	return out
}

// --- Messages ---

// AgentMessage is a message written by an agent of the roster.
func AgentMessage(a types.Agent, content string, at time.Time) types.Message {
	return types.Message{
		ID:          fmt.Sprintf("%s-%d", a.ID, at.UnixNano()),
		SpeakerID:   a.ID,
		SpeakerType: types.SpeakerAgent,
		SpeakerName: a.DisplayName(),
		Content:     content,
		CreatedAt:   at,
	}
}

// UserMessage is a message written by a human member.
func UserMessage(userID, content string, at time.Time) types.Message {
	return types.Message{
		ID:          fmt.Sprintf("%s-%d", userID, at.UnixNano()),
		SpeakerID:   userID,
		SpeakerType: types.SpeakerUser,
		SpeakerName: userID,
		Content:     content,
		CreatedAt:   at,
	}
}

// Conversation is a short varied exchange over the default roster, one
// message per minute ending at BaseTime.
func Conversation() []types.Message {
	r := Roster()
	lines := []struct {
		speaker int
		text    string
	}{
		{-1, "Hola a todos, ¿qué tal el día?"},
		{0, "Genial, acabo de volver de una exposición de fotografía."},
		{1, "Las exposiciones están sobrevaloradas, prefiero salir a la montaña."},
		{2, "A mí me gustan las dos cosas, depende del día."},
		{0, "Marco, ¿cuándo fue la última vez que fuiste a la montaña?"},
		{1, "El sábado pasado, subí al pico más alto de la sierra."},
	}
	start := BaseTime.Add(-time.Duration(len(lines)-1) * time.Minute)
	out := make([]types.Message, len(lines))
	for i, l := range lines {
		at := start.Add(time.Duration(i) * time.Minute)
		if l.speaker < 0 {
			out[i] = UserMessage("user-1", l.text, at)
			continue
		}
		out[i] = AgentMessage(r[l.speaker], l.text, at)
	}
	return out
}

// AgreementLoop is a window where every agent keeps agreeing.
func AgreementLoop() []types.Message {
	r := Roster()
	texts := []string{
		"Totalmente de acuerdo contigo.",
		"Sí, exacto, tienes toda la razón.",
		"De acuerdo, es justo lo que pienso.",
		"Claro que sí, estoy de acuerdo.",
		"Exacto, tienes razón.",
		"Sí, totalmente de acuerdo.",
	}
	start := BaseTime.Add(-time.Duration(len(texts)-1) * time.Minute)
	out := make([]types.Message, len(texts))
	for i, text := range texts {
		out[i] = AgentMessage(r[i%len(r)], text, start.Add(time.Duration(i)*time.Minute))
	}
	return out
}
