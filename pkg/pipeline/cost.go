package pipeline

// Per-million-token prices (USD) for the configured model tier. Output
// tokens already include thought tokens, which are billed at the output
// rate; callers must not add them again.
const (
	InputPricePerMillion  = 0.50
	OutputPricePerMillion = 3.00
)

// CalculateCost returns the USD cost of a call given its token usage.
// Negative counts are clamped to zero.
func CalculateCost(inputTokens, outputTokens int) float64 {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	return float64(inputTokens)/1e6*InputPricePerMillion +
		float64(outputTokens)/1e6*OutputPricePerMillion
}
