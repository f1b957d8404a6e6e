package adapter

// ThinkingLevel is a coarse knob for how much internal reasoning the
// provider performs before answering. Thought tokens are billed as output.
type ThinkingLevel string

// ThinkingOff is the zero value, meaning unset: stage config falls back to
// its defaults. ThinkingDisabled is an explicit "off" that does not fall
// back, so a stage can switch thinking off even when the defaults enable it.
const (
	ThinkingOff      ThinkingLevel = ""
	ThinkingDisabled ThinkingLevel = "off"
	ThinkingLow      ThinkingLevel = "low"
	ThinkingMedium   ThinkingLevel = "medium"
	ThinkingHigh     ThinkingLevel = "high"
)

// Valid reports whether the level is one of the known values.
func (l ThinkingLevel) Valid() bool {
	switch l {
	case ThinkingOff, ThinkingDisabled, ThinkingLow, ThinkingMedium, ThinkingHigh:
		return true
	}
	return false
}

// Attachment is a file payload (PDF or image bytes) sent alongside a prompt.
type Attachment struct {
	Filename string
	MIMEType string
	Data     []byte
}

// Request carries everything a provider needs for a single generation call.
type Request struct {
	Model         string
	Prompt        string
	Attachments   []Attachment
	Temperature   float64
	ThinkingLevel ThinkingLevel
	MaxTokens     int
	TopP          *float64
	TopK          *float64
}

// Usage captures normalized token usage for one call. OutputTokens already
// includes ThoughtTokens; ThoughtTokens is broken out for diagnostics only.
type Usage struct {
	InputTokens   int `json:"input_tokens"`
	OutputTokens  int `json:"output_tokens"`
	ThoughtTokens int `json:"thought_tokens,omitempty"`
	TotalTokens   int `json:"total_tokens"`
}

// Response wraps a provider's assembled text output and its usage report.
type Response struct {
	Text  string
	Model string
	Usage Usage
}
