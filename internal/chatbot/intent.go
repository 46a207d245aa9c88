package chatbot

import (
	"regexp"
	"strings"
)

// Classifier is the lightweight, deterministic intent analyzer. It is a total
// function over any input string: classification never fails.
type Classifier struct{}

// NewClassifier returns the keyword/regex based classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

var (
	greetingWords = wordSet("oi", "olá", "ola", "hey", "ei", "bom dia", "boa tarde", "boa noite")
	farewellWords = wordSet("tchau", "bye", "até logo", "adeus", "falou", "obrigado", "obrigada")
	startWords    = wordSet("iniciar", "começar", "comecar", "nova", "novo", "marcar", "agendar")
	helpWords     = wordSet("ajuda", "help", "socorro", "como", "que", "o que")

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`),
		regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`),
	}

	accentReplacer = strings.NewReplacer(
		"á", "a", "à", "a", "ã", "a", "â", "a",
		"é", "e", "ê", "e",
		"í", "i", "î", "i",
		"ó", "o", "ô", "o", "õ", "o",
		"ú", "u", "û", "u",
		"ç", "c",
	)
)

const (
	greetingReply = "Olá! Como posso ajudar você hoje? 😊"
	farewellReply = "Até logo! Foi um prazer ajudar você! 👋"

	helpReply = `🤖 **Como posso ajudar você:**

📝 **Para marcar uma consulta:**
• Digite 'iniciar' ou 'nova consulta'
• Informe seu nome quando solicitado
• Escolha a data (formato: dd/mm/aaaa)
• Escolha o período (manhã ou tarde)

🔄 **Comandos úteis:**
• 'nova' ou 'iniciar' - Nova consulta
• 'ajuda' - Este menu de ajuda

💡 **Dica:** Seja claro nas suas respostas para um melhor atendimento!`
)

// Classify analyzes a raw message and returns the detected intent. Priority
// is fixed: greeting, farewell, start, help, date, unknown; first match wins.
// Keyword matching is exact-token membership over the normalized text, while
// date detection runs against the original text.
func (c *Classifier) Classify(message string) IntentResult {
	tokens := strings.Fields(normalize(message))

	if containsAny(tokens, greetingWords) {
		return IntentResult{Intent: IntentGreeting, Confidence: 0.8, SuggestedReply: greetingReply}
	}
	if containsAny(tokens, farewellWords) {
		return IntentResult{Intent: IntentFarewell, Confidence: 0.8, SuggestedReply: farewellReply}
	}
	if containsAny(tokens, startWords) {
		return IntentResult{Intent: IntentStart, Confidence: 0.9}
	}
	if containsAny(tokens, helpWords) {
		return IntentResult{Intent: IntentHelp, Confidence: 0.7, SuggestedReply: helpReply}
	}
	if date := detectDate(message); date != "" {
		return IntentResult{Intent: IntentDate, Confidence: 0.85, ExtractedDate: date}
	}
	return IntentResult{Intent: IntentUnknown, Confidence: 0.3}
}

// ExtractEntities pulls a date and/or a period out of a message. The period
// check is a substring match over the normalized text, deliberately looser
// than the token-exact intent matching.
func (c *Classifier) ExtractEntities(message string) (date, period string) {
	date = detectDate(message)

	normalized := normalize(message)
	switch {
	case strings.Contains(normalized, "manha"):
		period = PeriodMorning
	case strings.Contains(normalized, "tarde"):
		period = PeriodAfternoon
	}
	return date, period
}

// EnhanceReply applies the cosmetic layer to a reply. A suggested canned
// reply fully replaces the original; otherwise decorative markers are added
// after the flow's own prompts.
func (c *Classifier) EnhanceReply(reply string, result IntentResult) string {
	if result.SuggestedReply != "" {
		return result.SuggestedReply
	}

	reply = strings.ReplaceAll(reply, "nome?", "nome? 😊")
	reply = strings.ReplaceAll(reply, "data?", "data? 📅")
	reply = strings.ReplaceAll(reply, "período?", "período? ⏰")
	reply = strings.ReplaceAll(reply, "periodo?", "periodo? ⏰")
	return reply
}

// normalize lowercases, trims and folds the common Portuguese accents.
func normalize(s string) string {
	return accentReplacer.Replace(strings.TrimSpace(strings.ToLower(s)))
}

func detectDate(s string) string {
	for _, p := range datePatterns {
		if m := p.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func containsAny(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
