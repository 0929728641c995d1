package chat

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairHistory(n int) []ChatMessage {
	var history []ChatMessage
	for i := 0; i < n; i++ {
		history = append(history,
			ChatMessage{Role: RoleUser, Content: fmt.Sprintf("question %d about the Widget Project", i)},
			ChatMessage{Role: RoleAssistant, Content: fmt.Sprintf("answer %d", i)},
		)
	}
	return history
}

func TestBuildContextEmptyHistory(t *testing.T) {
	assert.Nil(t, BuildContext(nil))
}

func TestBuildContextSummarizesOlderExchanges(t *testing.T) {
	out := BuildContext(pairHistory(10))
	require.NotEmpty(t, out)
	assert.Equal(t, RoleAssistant, out[0].Role)
	assert.True(t, strings.HasPrefix(out[0].Content, "[Earlier conversation context:"))
	// recap plus the six most recent exchanges, kept verbatim
	assert.Len(t, out, 1+maxRecentExchanges*2)
}

func TestBuildContextShortHistoryPassesThrough(t *testing.T) {
	out := BuildContext(pairHistory(4))
	require.Len(t, out, 8)
	for _, m := range out {
		assert.NotContains(t, m.Content, "[Earlier conversation context:")
	}
}

func TestBuildContextKeepsSixExchangesVerbatim(t *testing.T) {
	out := BuildContext(pairHistory(6))
	// Exactly at the window boundary nothing is summarized.
	require.Len(t, out, 12)
	assert.Equal(t, "question 0 about the Widget Project", out[0].Content)
	assert.Equal(t, "answer 5", out[11].Content)
}

func TestBuildContextRespectsBudget(t *testing.T) {
	big := strings.Repeat("w ", 3000) // well past the budget on its own
	history := []ChatMessage{
		{Role: RoleUser, Content: big},
		{Role: RoleAssistant, Content: big},
	}
	out := BuildContext(history)

	total := 0
	for _, m := range out {
		total += EstimateTokens(m.Content)
	}
	assert.LessOrEqual(t, total, contextTokenBudget)
	assert.Empty(t, out, "a single oversized pair is retracted whole")
}

func TestBuildContextNeverSplitsPairs(t *testing.T) {
	filler := strings.Repeat("x", 4200) // 1050 tokens per turn
	history := []ChatMessage{
		{Role: RoleUser, Content: "small opener"},
		{Role: RoleAssistant, Content: "small reply"},
		{Role: RoleUser, Content: filler},
		{Role: RoleAssistant, Content: filler},
	}
	out := BuildContext(history)

	// The oversized pair must be retracted whole, not half-included.
	require.Len(t, out, 2)
	assert.Equal(t, "small opener", out[0].Content)
	assert.Equal(t, "small reply", out[1].Content)
}
