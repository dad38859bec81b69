package chunker

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English and code; RTL
	// scripts pack slightly more bytes per token, which only makes the
	// estimate more conservative.
	charsPerToken = 4
)

// EstimateTokens returns a rough token count for s using the character
// heuristic. Embedding backends use different tokenizers, so an exact count
// is not possible here; the heuristic deliberately under-estimates to leave
// headroom.
func EstimateTokens(s string) int {
	return tokensForBytes(len(s))
}

func tokensForBytes(n int) int {
	t := n / charsPerToken
	if t == 0 && n > 0 {
		return 1
	}
	return t
}
