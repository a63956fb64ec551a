package orchestrator

// Persona and mode instructions are kept verbatim from the client app's
// prompt set (Portuguese). The gateway does not redesign prompt wording.
const personaPreamble = "És o Mentor Nkelo, IA Soberana de Angola. Converte para crianças. Regras: Analogias locais, chama de Aspirante, usa Kwanza (AOA)."

const (
	ModeStorytelling = "STORYTELLING"
	ModePractice     = "PRACTICE"
	ModeTactical     = "TACTICAL"
)

var modeInstructions = map[string]string{
	ModeStorytelling: "MODO ANCESTRAL: Usa storytelling angolano, analogias locais e tom de fogueira.",
	ModePractice:     "MODO OFICINA: Explica passo a passo como uma oficina prática Maker.",
	ModeTactical:     "MODO SINCRONIA: Briefing direto, frases curtas e objetivas.",
}

// transmuteSystemPrompt layers the mode instruction under the persona
// preamble. An unrecognized mode falls back to the tactical briefing.
func transmuteSystemPrompt(mode string) string {
	instruction, ok := modeInstructions[mode]
	if !ok {
		instruction = modeInstructions[ModeTactical]
	}
	return personaPreamble + " " + instruction
}

const (
	exploreSystemPrompt     = "Mentor Nkelo. Usa Grounding para precisão factual sobre Angola."
	defaultChatSystemPrompt = "És o Mentor Nkelo."
	defaultExploreQuery     = "Angola"
)

// recommendationSchema constrains the recommend profile to a fixed object
// shape the client can parse without defensive fallbacks.
var recommendationSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"recommendedModule": map[string]any{"type": "STRING"},
		"justification":     map[string]any{"type": "STRING"},
	},
	"required": []string{"recommendedModule", "justification"},
}
