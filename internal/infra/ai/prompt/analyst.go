package prompt

import (
	"encoding/json"

	"github.com/bxxst/aixbt-agent/internal/domain/ticker"
)

const systemPrompt = `You are a cryptocurrency (project) analytics expert. Analyze the crypto ticker's project information and any latest news about it, compile and summarize all of the information into a single, digestible and well formatted message.

Provide:
1. market cap
2. holders count
3. Tvl, liquidity locked, transactions count
4. supply information
5. technical analysis
6. fundamental analysis`

// GetSystemPrompt returns the fixed analyst instructions.
func GetSystemPrompt() string {
	return systemPrompt
}

// GetUserPrompt encodes the ticker as a JSON string, e.g. "\"$ABC\"".
func GetUserPrompt(sym ticker.Symbol) string {
	b, err := json.Marshal(string(sym))
	if err != nil {
		return string(sym)
	}
	return string(b)
}
