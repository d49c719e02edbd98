package loop

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/sceneflow/types"
)

// Config holds per-detector thresholds.
type Config struct {
	// MinMessages is the minimum number of agent messages to scan (default: 3)
	MinMessages int `json:"min_messages" yaml:"min_messages"`
	// Window bounds how many of the most recent agent messages are scanned (default: 20)
	Window int `json:"window" yaml:"window"`

	AgreementThreshold  int `json:"agreement_threshold" yaml:"agreement_threshold"`
	ComplimentThreshold int `json:"compliment_threshold" yaml:"compliment_threshold"`
	ApologyThreshold    int `json:"apology_threshold" yaml:"apology_threshold"`
	QuestionThreshold   int `json:"question_threshold" yaml:"question_threshold"`
	// QuestionRatio is the share of question sentences that makes a message count (default: 0.7)
	QuestionRatio  float64 `json:"question_ratio" yaml:"question_ratio"`
	TopicThreshold int     `json:"topic_threshold" yaml:"topic_threshold"`
	// MinKeywordLength drops shorter words from topic extraction (default: 4)
	MinKeywordLength int `json:"min_keyword_length" yaml:"min_keyword_length"`
	// DominanceFactor flags a speaker above this multiple of the average (default: 2)
	DominanceFactor float64 `json:"dominance_factor" yaml:"dominance_factor"`
}

// DefaultConfig returns the default detector thresholds
func DefaultConfig() Config {
	return Config{
		MinMessages:         3,
		Window:              20,
		AgreementThreshold:  4,
		ComplimentThreshold: 3,
		ApologyThreshold:    3,
		QuestionThreshold:   3,
		QuestionRatio:       0.7,
		TopicThreshold:      5,
		MinKeywordLength:    4,
		DominanceFactor:     2,
	}
}

// Detector scans a recent-message window for repetition patterns.
// It is stateless and safe for concurrent use.
type Detector struct {
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewDetector creates a detector. Zero thresholds take their defaults.
func NewDetector(config Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultConfig()
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&config.MinMessages, def.MinMessages)
	fill(&config.Window, def.Window)
	fill(&config.AgreementThreshold, def.AgreementThreshold)
	fill(&config.ComplimentThreshold, def.ComplimentThreshold)
	fill(&config.ApologyThreshold, def.ApologyThreshold)
	fill(&config.QuestionThreshold, def.QuestionThreshold)
	fill(&config.TopicThreshold, def.TopicThreshold)
	fill(&config.MinKeywordLength, def.MinKeywordLength)
	if config.QuestionRatio <= 0 || config.QuestionRatio > 1 {
		config.QuestionRatio = def.QuestionRatio
	}
	if config.DominanceFactor <= 1 {
		config.DominanceFactor = def.DominanceFactor
	}
	return &Detector{
		config: config,
		logger: logger.With(zap.String("component", "loop_detector")),
		now:    time.Now,
	}
}

// Detect scans the agent-authored messages of the window. Fewer than
// MinMessages agent messages yield no findings.
func (d *Detector) Detect(window []types.Message) []Pattern {
	msgs := types.Tail(types.AgentMessages(window), d.config.Window)
	if len(msgs) < d.config.MinMessages {
		return nil
	}

	now := d.now()
	folded := make([]string, len(msgs))
	for i, m := range msgs {
		folded[i] = fold(m.Content)
	}

	var found []Pattern
	add := func(p *Pattern) {
		if p != nil {
			p.DetectedAt = now
			found = append(found, *p)
		}
	}

	add(phraseDetector(KindAgreement, agreementPhrases, d.config.AgreementThreshold, folded))
	add(phraseDetector(KindCompliments, complimentPhrases, d.config.ComplimentThreshold, folded))
	add(phraseDetector(KindApologies, apologyPhrases, d.config.ApologyThreshold, folded))
	add(d.detectQuestions(msgs))
	add(d.detectTopics(msgs, folded))
	add(d.detectDominance(msgs))

	if len(found) > 0 {
		kinds := make([]string, len(found))
		for i, p := range found {
			kinds[i] = string(p.Kind)
		}
		d.logger.Debug("loops detected", zap.Strings("kinds", kinds), zap.Int("messages", len(msgs)))
	}
	return found
}

func phraseDetector(kind Kind, phrases []string, threshold int, folded []string) *Pattern {
	count := 0
	for _, text := range folded {
		for _, p := range phrases {
			if strings.Contains(text, p) {
				count++
				break
			}
		}
	}
	if count < threshold {
		return nil
	}
	return &Pattern{
		Kind:      kind,
		Count:     count,
		Threshold: float64(threshold),
		Detail:    fmt.Sprintf("%d of %d messages", count, len(folded)),
	}
}

func (d *Detector) detectQuestions(msgs []types.Message) *Pattern {
	count := 0
	for _, m := range msgs {
		questions, sentences := countSentences(m.Content)
		if sentences > 0 && float64(questions)/float64(sentences) >= d.config.QuestionRatio {
			count++
		}
	}
	if count < d.config.QuestionThreshold {
		return nil
	}
	return &Pattern{
		Kind:      KindExcessQuestions,
		Count:     count,
		Threshold: float64(d.config.QuestionThreshold),
		Detail:    fmt.Sprintf("%d of %d messages are mostly questions", count, len(msgs)),
	}
}

// countSentences splits on terminal punctuation and newlines. A sentence is
// a question when it ends in '?' or opens with '¿'.
func countSentences(text string) (questions, sentences int) {
	var cur strings.Builder
	opened := false
	flush := func(question bool) {
		if strings.TrimSpace(cur.String()) != "" || question {
			sentences++
			if question || opened {
				questions++
			}
		}
		cur.Reset()
		opened = false
	}

	for _, r := range text {
		switch r {
		case '?':
			flush(true)
		case '.', '!', '\n':
			flush(false)
		case '¿':
			if strings.TrimSpace(cur.String()) != "" {
				flush(false)
			}
			opened = true
		default:
			cur.WriteRune(r)
		}
	}
	flush(false)
	return questions, sentences
}

func (d *Detector) detectTopics(msgs []types.Message, folded []string) *Pattern {
	names := make(map[string]struct{})
	for _, m := range msgs {
		for _, w := range words(fold(m.SpeakerName)) {
			names[w] = struct{}{}
		}
	}

	freq := make(map[string]int)
	for _, text := range folded {
		seen := make(map[string]bool)
		for _, w := range words(text) {
			if len([]rune(w)) < d.config.MinKeywordLength || seen[w] {
				continue
			}
			if _, stop := stopwords[w]; stop {
				continue
			}
			if _, name := names[w]; name {
				continue
			}
			seen[w] = true
			freq[w]++
		}
	}

	type kw struct {
		word  string
		count int
	}
	var hot []kw
	for w, c := range freq {
		if c >= d.config.TopicThreshold {
			hot = append(hot, kw{w, c})
		}
	}
	if len(hot) == 0 {
		return nil
	}
	sort.Slice(hot, func(i, j int) bool {
		if hot[i].count != hot[j].count {
			return hot[i].count > hot[j].count
		}
		return hot[i].word < hot[j].word
	})

	top := make([]string, 0, 3)
	for i := 0; i < len(hot) && i < 3; i++ {
		top = append(top, fmt.Sprintf("%s(%d)", hot[i].word, hot[i].count))
	}
	return &Pattern{
		Kind:      KindTopicRepetition,
		Count:     hot[0].count,
		Threshold: float64(d.config.TopicThreshold),
		Keyword:   hot[0].word,
		Detail:    "repeated keywords: " + strings.Join(top, ", "),
	}
}

func (d *Detector) detectDominance(msgs []types.Message) *Pattern {
	counts := make(map[string]int)
	order := make([]string, 0)
	for _, m := range msgs {
		if _, ok := counts[m.SpeakerID]; !ok {
			order = append(order, m.SpeakerID)
		}
		counts[m.SpeakerID]++
	}
	if len(order) < 2 {
		return nil
	}

	avg := float64(len(msgs)) / float64(len(order))
	limit := d.config.DominanceFactor * avg

	top := order[0]
	for _, id := range order[1:] {
		if counts[id] > counts[top] {
			top = id
		}
	}
	if float64(counts[top]) <= limit {
		return nil
	}
	return &Pattern{
		Kind:      KindProtagonistDominance,
		Count:     counts[top],
		Threshold: limit,
		AgentID:   top,
		Detail:    fmt.Sprintf("%s wrote %d of %d messages (average %.1f)", top, counts[top], len(msgs), avg),
	}
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"’", "'",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(s))
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
