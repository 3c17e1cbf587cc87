package reef

// Default inference parameters, applied when the caller does not override.
const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.1
	defaultTopP        = 0.9
)

// InferenceConfig holds per-agent inference overrides. Nil fields fall back
// to the defaults; set fields merge over them.
type InferenceConfig struct {
	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	StopSequences []string
}

// RequestPayload is the transport-ready request. One payload is owned by one
// loop run and mutated in place between rounds: the loop appends assistant
// and tool-result turns to Messages as the recursion progresses. It is never
// shared across concurrent requests.
type RequestPayload struct {
	Model         string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	StopSequences []string
	System        string
	Messages      []Turn
	Tools         []ToolDeclaration
}

// buildPayload assembles the payload from the composed system prompt, the
// conversation, the merged inference parameters, and the tool declarations
// resolved at construction.
func (a *Agent) buildPayload(messages []Turn, systemPrompt string) *RequestPayload {
	p := &RequestPayload{
		Model:       a.modelID,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
		System:      systemPrompt,
		Messages:    messages,
	}
	if a.inference.MaxTokens != nil {
		p.MaxTokens = *a.inference.MaxTokens
	}
	if a.inference.Temperature != nil {
		p.Temperature = *a.inference.Temperature
	}
	if a.inference.TopP != nil {
		p.TopP = *a.inference.TopP
	}
	if len(a.inference.StopSequences) > 0 {
		p.StopSequences = a.inference.StopSequences
	}
	if a.tools != nil {
		p.Tools = a.tools.declarations
	}
	return p
}
