package speech

import (
	"context"

	"github.com/calebwren/portfolio-ai/pkg/logging"
)

// Service wraps the synthesis backend with caching and the deterministic
// viseme fallback. It never returns an error: when the backend is down or
// unconfigured the caller still gets a usable viseme track, just no audio.
type Service struct {
	synth  Synthesizer
	voice  string
	cache  *resultCache
	logger *logging.Logger
}

// Output is what the chat pipeline consumes.
type Output struct {
	Audio          []byte
	Visemes        []Viseme
	AudioAvailable bool
}

// NewService creates a speech service. synth may be nil, in which case
// every call takes the fallback path.
func NewService(synth Synthesizer, voice string, cacheSize int, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		synth:  synth,
		voice:  voice,
		cache:  newResultCache(cacheSize),
		logger: logger,
	}
}

// Generate synthesizes text, falling back to the text-scan viseme track
// when the backend errors or returns no viseme events.
func (s *Service) Generate(ctx context.Context, text string) Output {
	if text == "" {
		return Output{}
	}

	if s.synth == nil {
		return Output{Visemes: FallbackVisemes(text)}
	}

	key := resultKey(text, s.voice)
	if cached, ok := s.cache.get(key); ok {
		return Output{Audio: cached.Audio, Visemes: cached.Visemes, AudioAvailable: true}
	}

	result, err := s.synth.Synthesize(ctx, text, s.voice)
	if err != nil {
		s.logger.Warn("speech: synthesis failed, using fallback visemes", "error", err)
		return Output{Visemes: FallbackVisemes(text)}
	}
	if len(result.Visemes) == 0 {
		result.Visemes = FallbackVisemes(text)
	}

	s.cache.set(key, result)
	return Output{Audio: result.Audio, Visemes: result.Visemes, AudioAvailable: true}
}
