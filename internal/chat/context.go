package chat

const (
	// maxRecentExchanges is how many user/assistant pairs ride along
	// verbatim; anything older is summarized instead.
	maxRecentExchanges = 6
	// contextTokenBudget bounds the estimated size of the assembled
	// history window.
	contextTokenBudget = 2000
)

// BuildContext assembles the conversation window from stored turns. Older
// exchanges collapse into a one-line recap carried as a synthetic assistant
// turn, recent exchanges are appended in pairs oldest first, and a pair
// that would cross the token budget is retracted along with everything
// after it. The window feeds the persona composer; it is never sent as
// separate wire messages.
func BuildContext(history []ChatMessage) []ChatMessage {
	if len(history) == 0 {
		return nil
	}

	var out []ChatMessage
	budget := contextTokenBudget

	recent := history
	if cut := len(history) - maxRecentExchanges*2; cut > 0 {
		older := history[:cut]
		recent = history[cut:]
		if recap := SummarizeTurns(older); recap != "" {
			synthetic := ChatMessage{
				Role:    RoleAssistant,
				Content: "[Earlier conversation context: " + recap + "]",
			}
			if cost := EstimateTokens(synthetic.Content); cost <= budget {
				out = append(out, synthetic)
				budget -= cost
			}
		}
	}

	// Walk recent turns in user/assistant pairs so the window never ends
	// with a dangling user turn.
	for start := 0; start < len(recent); {
		end := start + 1
		if recent[start].Role == RoleUser && end < len(recent) && recent[end].Role == RoleAssistant {
			end++
		}
		pair := recent[start:end]

		cost := 0
		for _, m := range pair {
			cost += EstimateTokens(m.Content)
		}
		if cost > budget {
			break
		}
		out = append(out, pair...)
		budget -= cost
		start = end
	}

	return out
}
