package chat

import (
	"strings"
)

// ProcessedResponse is what postprocessing derives from the raw model
// output and the triggering user message.
type ProcessedResponse struct {
	Text          string
	QuickStarters []string
	Animation     string
	MorphTargets  map[string]float64
	IsDealClose   bool
}

// PostProcess derives display metadata from the raw completion. rawText is
// the full model output including any starters block; userMessage is what
// the visitor sent.
func PostProcess(rawText, userMessage string) ProcessedResponse {
	clean := StripQuickStarters(rawText)
	return ProcessedResponse{
		Text:          clean,
		QuickStarters: ExtractQuickStarters(rawText),
		Animation:     detectAnimation(clean),
		MorphTargets:  detectMorphTargets(clean),
		IsDealClose:   DetectDealIntent(userMessage),
	}
}

const (
	startersFence   = "```starters"
	maxQuickStarters = 3
)

// ExtractQuickStarters pulls follow-up suggestions out of the trailing
// fenced starters block. Lines keep their order; list markers and
// surrounding whitespace are stripped, and at most three suggestions are
// returned no matter how many the model produced.
func ExtractQuickStarters(text string) []string {
	start := strings.Index(text, startersFence)
	if start == -1 {
		return nil
	}
	rest := text[start+len(startersFence):]
	end := strings.Index(rest, "```")
	if end == -1 {
		end = len(rest)
	}

	var starters []string
	for _, line := range strings.Split(rest[:end], "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		line = strings.TrimSpace(line)
		if line != "" {
			starters = append(starters, line)
			if len(starters) == maxQuickStarters {
				break
			}
		}
	}
	return starters
}

// StripQuickStarters removes the starters block from the reply text. It is
// idempotent: text without a block passes through unchanged.
func StripQuickStarters(text string) string {
	start := strings.Index(text, startersFence)
	if start == -1 {
		return strings.TrimSpace(text)
	}
	rest := text[start+len(startersFence):]
	tail := ""
	if end := strings.Index(rest, "```"); end != -1 {
		tail = rest[end+3:]
	}
	return strings.TrimSpace(text[:start] + tail)
}

// animationCue maps reply phrases to avatar clips. Order matters: more
// specific phrases come before their substrings.
type animationCue struct {
	phrase string
	clip   string
}

var animationCues = []animationCue{
	{"playing golf", "golf"},
	{"golf", "golf"},
	{"wave", "wave"},
	{"hello", "wave"},
	{"hi there", "wave"},
	{"haha", "laughing"},
	{"funny", "laughing"},
	{"laugh", "laughing"},
	{"dance", "dance"},
	{"celebrate", "dance"},
	{"thumbs up", "thumbsup"},
	{"great choice", "thumbsup"},
	{"absolutely", "thumbsup"},
	{"let me think", "thinking"},
	{"hmm", "thinking"},
	{"good question", "thinking"},
}

const defaultAnimation = "talking"

// detectAnimation picks the avatar clip for a reply. First matching cue
// wins; anything else plays the talking clip.
func detectAnimation(text string) string {
	if strings.TrimSpace(text) == "" {
		return "idle"
	}
	lower := strings.ToLower(text)
	for _, cue := range animationCues {
		if strings.Contains(lower, cue.phrase) {
			return cue.clip
		}
	}
	return defaultAnimation
}

// emotionCue maps reply phrases to a facial blendshape set. Ordered;
// first match wins.
type emotionCue struct {
	phrases []string
	targets map[string]float64
}

var emotionCues = []emotionCue{
	{[]string{"glad", "happy", "excited", "love", "awesome"}, map[string]float64{
		"mouthSmileLeft": 0.7, "mouthSmileRight": 0.7, "cheekSquintLeft": 0.3, "cheekSquintRight": 0.3,
	}},
	{[]string{"sorry", "unfortunately", "sad"}, map[string]float64{
		"mouthFrownLeft": 0.5, "mouthFrownRight": 0.5, "browInnerUp": 0.4,
	}},
	{[]string{"frustrating", "annoying"}, map[string]float64{
		"browDownLeft": 0.6, "browDownRight": 0.6, "jawForward": 0.2,
	}},
	{[]string{"wow", "amazing", "incredible", "surprised"}, map[string]float64{
		"browInnerUp": 0.8, "eyeWideLeft": 0.6, "eyeWideRight": 0.6, "jawOpen": 0.3,
	}},
	{[]string{"interesting", "curious", "tell me more"}, map[string]float64{
		"browOuterUpLeft": 0.5, "browOuterUpRight": 0.5, "eyeWideLeft": 0.2, "eyeWideRight": 0.2,
	}},
	{[]string{"let me think", "hmm", "consider"}, map[string]float64{
		"browDownLeft": 0.3, "browDownRight": 0.3, "eyeLookUpLeft": 0.4, "eyeLookUpRight": 0.4,
	}},
}

// detectMorphTargets derives the facial expression for a reply. Returns nil
// when the text carries no recognizable emotional cue.
func detectMorphTargets(text string) map[string]float64 {
	lower := strings.ToLower(text)
	for _, cue := range emotionCues {
		for _, phrase := range cue.phrases {
			if strings.Contains(lower, phrase) {
				return cue.targets
			}
		}
	}
	return nil
}

// dealKeywords flag a visitor message as hiring intent.
var dealKeywords = []string{
	"hire", "hiring", "project", "work together", "can you", "build me",
	"i need", "freelance", "quote", "budget", "collaborate", "available for",
}

// DetectDealIntent reports whether the visitor message reads like a
// business inquiry. Scanned against the user message, never the reply.
func DetectDealIntent(userMessage string) bool {
	lower := strings.ToLower(userMessage)
	for _, kw := range dealKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
