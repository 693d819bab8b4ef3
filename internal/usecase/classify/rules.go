package classify

import (
	"regexp"
	"slices"

	"github.com/openprogramia/propuestas/internal/domain/classification"
	"github.com/openprogramia/propuestas/internal/textnorm"
)

// Rule decides a query type from the normalized query. Rules are tried in
// order and the first match wins.
type Rule struct {
	Name  string
	Type  classification.QueryType
	Match func(normalized string, words []string) bool
}

// PatternRule matches when the regular expression finds the normalized query.
// Patterns are written without accents.
func PatternRule(name, pattern string, qt classification.QueryType) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{
		Name:  name,
		Type:  qt,
		Match: func(normalized string, _ []string) bool { return re.MatchString(normalized) },
	}
}

var specificPatterns = []string{
	`\bisapres?\b`,
	`\bfonasa\b`,
	`listas?\s+de\s+espera`,
	`medicamentos?`,
	`salud\s+mental`,
	`\bcae\b`,
	`gratuidad\s+universitaria`,
	`educacion\s+tecnica`,
	`\bpsu\b`,
	`\bpaes\b`,
	`salario\s+minimo`,
	`jornada\s+laboral`,
	`\bafp\b`,
	`sindicatos?`,
	`narcotrafico`,
	`tren\s+de\s+aragua`,
	`carabineros`,
	`delincuencia`,
	`campamentos?`,
	`subsidio\s+habitacional`,
	`deficit\s+habitacional`,
	`crisis\s+hidrica`,
	`energias?\s+renovables?`,
	`\blitio\b`,
	`hidrogeno\s+verde`,
	`inflacion`,
	`\biva\b`,
	`impuestos?`,
	`\bpib\b`,
}

const topicAlternation = `(salud|educacion|economia|seguridad|pensiones|trabajo|vivienda|medioambiente)`

var generalPatterns = []string{
	`^` + topicAlternation + `$`,
	`cuales?\s+son\s+las\s+propuestas\s+(en|sobre|de)\b`,
	`que\s+(propone|hara|medidas|planes)\s+(en|sobre|para)\s+` + topicAlternation,
	`como\s+(enfrentara|solucionara|mejorara)\s+(la\s+|el\s+)?` + topicAlternation,
	`propuestas\s+(en|de|sobre)\s+` + topicAlternation,
	`sistema\s+de\s+(salud|educacion|pensiones|afp)$`,
	`sistema\s+previsional`,
	`pensiones\s+(en\s+general|generales?)`,
}

var generalWords = []string{
	"salud", "educacion", "economia", "seguridad", "pensiones",
	"trabajo", "vivienda", "empleo", "medioambiente",
}

var topicNoun = regexp.MustCompile(`\b(salud|educacion|economia|seguridad|pensiones|trabajo|vivienda)\b`)

// maxShortTopicWords bounds the "short query about a broad topic" heuristic.
const maxShortTopicWords = 4

// DefaultRules returns the built-in rule table: named sub-topics first, then
// broad-topic phrasings, then two length heuristics.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, len(specificPatterns)+len(generalPatterns)+2)
	for _, p := range specificPatterns {
		rules = append(rules, PatternRule("specific:"+p, p, classification.Specific))
	}
	for _, p := range generalPatterns {
		rules = append(rules, PatternRule("general:"+p, p, classification.General))
	}
	rules = append(rules,
		Rule{
			Name: "general:single-topic-word",
			Type: classification.General,
			Match: func(_ string, words []string) bool {
				return len(words) == 1 && slices.Contains(generalWords, words[0])
			},
		},
		Rule{
			Name: "general:short-topic-query",
			Type: classification.General,
			Match: func(normalized string, words []string) bool {
				return len(words) <= maxShortTopicWords && topicNoun.MatchString(normalized)
			},
		},
	)
	return rules
}

// DetectQueryType applies rules to query; queries no rule claims are specific.
func DetectQueryType(query string, rules []Rule) classification.QueryType {
	normalized := textnorm.Normalize(query)
	words := textnorm.Words(query)
	for _, r := range rules {
		if r.Match(normalized, words) {
			return r.Type
		}
	}
	return classification.Specific
}
