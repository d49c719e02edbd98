package loop

// Phrase lists are matched as accent-folded, lower-cased substrings.
var (
	agreementPhrases = []string{
		"estoy de acuerdo", "de acuerdo contigo", "tienes razon", "tienes toda la razon",
		"exacto", "exactamente", "totalmente", "sin duda", "claro que si", "coincido",
		"pienso lo mismo", "opino igual", "asi es",
		"i agree", "totally agree", "you're right", "you are right", "so true",
		"exactly", "absolutely", "same here",
	}

	complimentPhrases = []string{
		"que buena idea", "me encanta", "eres increible", "eres genial", "que lindo",
		"bien dicho", "excelente", "brillante", "que inteligente", "me fascina",
		"great idea", "love that", "you're amazing", "you are amazing", "well said",
		"so smart", "awesome", "brilliant",
	}

	apologyPhrases = []string{
		"perdon", "perdona", "lo siento", "disculpa", "mis disculpas", "lo lamento",
		"sorry", "my bad", "i apologize", "apologies", "forgive me",
	}
)

var stopwords = toSet(
	// es
	"para", "pero", "como", "esto", "esta", "este", "estos", "estas", "estoy", "eres",
	"tiene", "tienes", "tengo", "porque", "cuando", "donde", "tambien", "todo", "todos",
	"toda", "todas", "nada", "algo", "creo", "sobre", "entre", "hacer", "puede", "puedo",
	"bueno", "buena", "bien", "solo", "estar", "seria", "ellos", "ellas", "nosotros",
	"usted", "aqui", "ahora", "entonces", "siempre", "mucho", "mucha", "muchos", "cosa",
	"cosas", "digo", "dice", "decir", "hace", "hacia", "desde", "hasta", "menos", "otro",
	"otra", "otros", "pues", "vale", "claro", "sido", "fuera", "mismo", "misma", "verdad",
	"quiero", "quieres", "sabes", "saber", "tanto", "tiempo", "vamos", "tal",
	// en
	"that", "this", "with", "have", "what", "just", "really", "like", "about", "there",
	"they", "your", "would", "could", "should", "think", "from", "been", "were", "when",
	"then", "than", "them", "will", "also", "very", "some", "more", "much", "know",
	"because", "yeah", "well", "sure", "here", "only", "even", "into", "maybe", "thing",
	"things", "going", "want", "being", "their", "which", "these", "those",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
