package chat

import (
	"fmt"
	"strings"
	"unicode"
)

// EstimateTokens approximates the token cost of a string without a real
// tokenizer: one token per four characters, rounded up.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + 3) / 4
}

// connector words that usually precede a technology or topic mention.
var topicConnectors = map[string]bool{
	"using":     true,
	"with":      true,
	"tech":      true,
	"framework": true,
	"library":   true,
}

// SummarizeTurns condenses older conversation turns into a short recap line
// for the persona prompt. It pulls out capitalized phrases and words that
// follow technology connectors, keeping the five most frequent.
func SummarizeTurns(turns []ChatMessage) string {
	if len(turns) == 0 {
		return ""
	}

	counts := map[string]int{}
	order := []string{}
	note := func(phrase string) {
		phrase = strings.TrimFunc(phrase, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(phrase) < 2 {
			return
		}
		key := strings.ToLower(phrase)
		if counts[key] == 0 {
			order = append(order, phrase)
		}
		counts[key]++
	}

	for _, turn := range turns {
		words := strings.Fields(turn.Content)
		var phrase []string
		for i, word := range words {
			// Capitalized runs, skipping sentence-initial words.
			first := []rune(word)
			if len(first) > 0 && unicode.IsUpper(first[0]) && i > 0 {
				phrase = append(phrase, word)
				continue
			}
			if len(phrase) > 0 {
				note(strings.Join(phrase, " "))
				phrase = nil
			}
			// Words right after a connector.
			if topicConnectors[strings.ToLower(word)] && i+1 < len(words) {
				note(words[i+1])
			}
		}
		if len(phrase) > 0 {
			note(strings.Join(phrase, " "))
		}
	}

	if len(order) == 0 {
		// Nothing notable to extract; fall back to a count-based recap.
		return fmt.Sprintf("%d previous messages about the user's projects and experience", len(turns))
	}

	// Keep the five most frequent topics, preserving first-seen order on ties.
	type topic struct {
		phrase string
		count  int
		seen   int
	}
	topics := make([]topic, 0, len(order))
	for i, phrase := range order {
		topics = append(topics, topic{phrase: phrase, count: counts[strings.ToLower(phrase)], seen: i})
	}
	for i := 0; i < len(topics); i++ {
		for j := i + 1; j < len(topics); j++ {
			if topics[j].count > topics[i].count ||
				(topics[j].count == topics[i].count && topics[j].seen < topics[i].seen) {
				topics[i], topics[j] = topics[j], topics[i]
			}
		}
	}
	if len(topics) > 5 {
		topics = topics[:5]
	}

	names := make([]string, len(topics))
	for i, tp := range topics {
		names[i] = tp.phrase
	}
	return fmt.Sprintf("%d previous messages covering: %s", len(turns), strings.Join(names, ", "))
}
