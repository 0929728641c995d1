package speech

import (
	"strings"
	"unicode"
)

// Viseme is one mouth-shape event: a phoneme class and the millisecond
// offset at which the avatar should display it.
type Viseme struct {
	Class    int `json:"phonemeClass"`
	OffsetMs int `json:"offsetMs"`
}

// Phoneme classes for the fallback generator. The synthesis backend emits
// richer IDs; these cover the mouth shapes the avatar actually renders.
const (
	PhonemeSilence   = 0
	PhonemeA         = 1
	PhonemeE         = 2
	PhonemeI         = 3
	PhonemeO         = 4
	PhonemeU         = 5
	PhonemeStop      = 6 // p, b, m
	PhonemeFricative = 7 // f, v, t, d
	PhonemeSibilant  = 8 // s, z, c, j, x
	PhonemeOther     = 9
)

const (
	charDurationMs    = 80
	wordGapMs         = 40
	flatWordSpacingMs = 120
	flatWordCap       = 80
)

// FallbackVisemes derives a deterministic lip-sync track from text when the
// synthesis backend fails or returns no events. Each word is framed by
// silence and every character advances the clock by a fixed duration, so
// the mouth keeps moving even without real audio timing.
func FallbackVisemes(text string) []Viseme {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	events := make([]Viseme, 0, len(text)+2*len(words))
	offset := 0
	for _, word := range words {
		events = append(events, Viseme{Class: PhonemeSilence, OffsetMs: offset})
		for _, r := range word {
			offset += charDurationMs
			events = append(events, Viseme{Class: classifyRune(r), OffsetMs: offset})
		}
		offset += wordGapMs
		events = append(events, Viseme{Class: PhonemeSilence, OffsetMs: offset})
	}
	return events
}

// FlatVisemes emits one event per word at fixed spacing. It is the cheap
// guarantee of some animation when a response already has final text but
// full synthesis was not (re)run.
func FlatVisemes(text string) []Viseme {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if len(words) > flatWordCap {
		words = words[:flatWordCap]
	}

	events := make([]Viseme, 0, len(words))
	for i, word := range words {
		events = append(events, Viseme{
			Class:    classifyRune(firstLetter(word)),
			OffsetMs: i * flatWordSpacingMs,
		})
	}
	return events
}

func firstLetter(word string) rune {
	for _, r := range word {
		if unicode.IsLetter(r) {
			return r
		}
	}
	return 'a'
}

func classifyRune(r rune) int {
	switch unicode.ToLower(r) {
	case 'a', 'à', 'á', 'ä':
		return PhonemeA
	case 'e', 'è', 'é', 'ë', 'y':
		return PhonemeE
	case 'i', 'ì', 'í', 'ï':
		return PhonemeI
	case 'o', 'ò', 'ó', 'ö':
		return PhonemeO
	case 'u', 'ù', 'ú', 'ü', 'w':
		return PhonemeU
	case 'p', 'b', 'm':
		return PhonemeStop
	case 'f', 'v', 't', 'd', 'h':
		return PhonemeFricative
	case 's', 'z', 'c', 'j', 'x':
		return PhonemeSibilant
	default:
		if unicode.IsLetter(r) {
			return PhonemeOther
		}
		return PhonemeSilence
	}
}
