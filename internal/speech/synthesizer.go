package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result is the output of one synthesis call: raw audio plus the ordered
// viseme track that accompanies it.
type Result struct {
	Audio   []byte
	Visemes []Viseme
}

// Synthesizer converts text into audio plus viseme events.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Result, error)
}

// HTTPSynthesizer calls a speech-synthesis HTTP backend. The backend
// returns base64 audio and viseme events with offsets in 100ns ticks.
type HTTPSynthesizer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSynthesizer creates a synthesizer against the given endpoint.
func NewHTTPSynthesizer(baseURL, apiKey string) *HTTPSynthesizer {
	if strings.TrimSpace(baseURL) == "" {
		panic("speech: synthesizer base URL cannot be empty")
	}
	return &HTTPSynthesizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

type synthesisRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

type synthesisResponse struct {
	Audio   string `json:"audio"`
	Visemes []struct {
		VisemeID    int   `json:"visemeId"`
		AudioOffset int64 `json:"audioOffset"` // 100ns ticks
	} `json:"visemes"`
}

// Synthesize posts text to the backend and converts offsets to milliseconds.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text, voice string) (*Result, error) {
	payload, err := json.Marshal(synthesisRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, fmt.Errorf("speech: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("speech: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("speech: synthesis call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("speech: backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded synthesisResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("speech: decode response: %w", err)
	}
	if decoded.Audio == "" {
		return nil, errors.New("speech: backend returned no audio")
	}

	audio, err := base64.StdEncoding.DecodeString(decoded.Audio)
	if err != nil {
		return nil, fmt.Errorf("speech: decode audio: %w", err)
	}

	visemes := make([]Viseme, 0, len(decoded.Visemes))
	for _, ev := range decoded.Visemes {
		visemes = append(visemes, Viseme{
			Class:    ev.VisemeID,
			OffsetMs: int(ev.AudioOffset / 10_000),
		})
	}

	return &Result{Audio: audio, Visemes: visemes}, nil
}
