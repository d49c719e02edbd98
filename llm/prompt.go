package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/sceneflow/llm/tokenizer"
	"github.com/BaSui01/sceneflow/narrative/director"
	"github.com/BaSui01/sceneflow/types"
)

const systemPrompt = `You are the narrative director of a group chat between AI characters and human users.
Pick at most one scene from the candidate list to inject into the conversation now.
Prefer scenes that fit the current mood, give quieter characters room, and break any loop that is flagged.
Answer with the scene code only, exactly as listed, or the word none if no scene fits.`

// Prompt is a built chooser prompt.
type Prompt struct {
	System string
	User   string
	// Tokens is the estimated prompt size including message overhead.
	Tokens int
	// Messages is how many conversation messages made it into the prompt.
	Messages int
}

// PromptBuilder renders a director.Request into a chat prompt, dropping the
// oldest conversation messages until the prompt fits its token budget.
// The roster and candidate list are never dropped.
type PromptBuilder struct {
	tok         tokenizer.Tokenizer
	budget      int
	maxMessages int
}

// NewPromptBuilder creates a builder. budget <= 0 disables trimming;
// maxMessages <= 0 keeps every message that fits.
func NewPromptBuilder(tok tokenizer.Tokenizer, budget, maxMessages int) *PromptBuilder {
	if tok == nil {
		tok = tokenizer.NewEstimatorTokenizer()
	}
	return &PromptBuilder{tok: tok, budget: budget, maxMessages: maxMessages}
}

// Build renders the prompt.
func (b *PromptBuilder) Build(req director.Request) (Prompt, error) {
	var head, tail strings.Builder

	head.WriteString("Characters in the group:\n")
	for _, a := range req.Roster {
		fmt.Fprintf(&head, "- %s [%s]%s\n", a.DisplayName(), a.ID, traitSummary(a))
	}

	if req.Corrective != nil {
		fmt.Fprintf(&tail, "\nThe conversation is stuck (%s). %s\n", req.Corrective.Kind, req.Corrective.Directive)
	}
	tail.WriteString("\nCandidate scenes:\n")
	for _, sc := range req.Candidates {
		fmt.Fprintf(&tail, "- %s [%s] %s", sc.Code, sc.Category, sc.Name)
		if sc.Description != "" {
			fmt.Fprintf(&tail, ": %s", sc.Description)
		}
		fmt.Fprintf(&tail, " (roles: %s)\n", strings.Join(sc.RoleNames(), ", "))
	}
	tail.WriteString("\nAnswer with one scene code or none.")

	fixed := systemPrompt + head.String() + tail.String()
	used, err := b.tok.CountTokens(fixed)
	if err != nil {
		return Prompt{}, fmt.Errorf("count prompt tokens: %w", err)
	}
	used += 2 * tokenizer.MessageOverhead

	msgs := req.Messages
	if b.maxMessages > 0 && len(msgs) > b.maxMessages {
		msgs = msgs[len(msgs)-b.maxMessages:]
	}

	// Newest first until the budget runs out.
	lines := make([]string, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		line := messageLine(msgs[i])
		n, err := b.tok.CountTokens(line)
		if err != nil {
			return Prompt{}, fmt.Errorf("count message tokens: %w", err)
		}
		if b.budget > 0 && used+n > b.budget {
			break
		}
		used += n
		lines = append(lines, line)
	}

	var user strings.Builder
	user.WriteString(head.String())
	if len(lines) > 0 {
		user.WriteString("\nRecent conversation (oldest first):\n")
		for i := len(lines) - 1; i >= 0; i-- {
			user.WriteString(lines[i])
		}
	}
	user.WriteString(tail.String())

	return Prompt{System: systemPrompt, User: user.String(), Tokens: used, Messages: len(lines)}, nil
}

func messageLine(m types.Message) string {
	name := m.SpeakerName
	if name == "" {
		name = m.SpeakerID
	}
	content := strings.Join(strings.Fields(m.Content), " ")
	return fmt.Sprintf("%s: %s\n", name, content)
}

// traitSummary lists the agent's strongest declared traits.
func traitSummary(a types.Agent) string {
	if len(a.Personality) == 0 {
		return ""
	}
	type kv struct {
		trait types.Trait
		score float64
	}
	traits := make([]kv, 0, len(a.Personality))
	for t, s := range a.Personality {
		traits = append(traits, kv{t, s})
	}
	sort.Slice(traits, func(i, j int) bool {
		if traits[i].score != traits[j].score {
			return traits[i].score > traits[j].score
		}
		return traits[i].trait < traits[j].trait
	})
	if len(traits) > 2 {
		traits = traits[:2]
	}
	parts := make([]string, len(traits))
	for i, t := range traits {
		parts[i] = fmt.Sprintf("%s %.0f", t.trait, t.score)
	}
	return " - " + strings.Join(parts, ", ")
}
