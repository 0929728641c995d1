package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSynthesizerConvertsOffsets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/synthesize", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req synthesisRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		assert.Equal(t, "voice-a", req.Voice)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"audio": base64.StdEncoding.EncodeToString([]byte("pcm")),
			"visemes": []map[string]any{
				{"visemeId": 3, "audioOffset": 500_000},   // 50ms in ticks
				{"visemeId": 7, "audioOffset": 1_200_000}, // 120ms
			},
		})
	}))
	defer server.Close()

	synth := NewHTTPSynthesizer(server.URL, "test-key")
	result, err := synth.Synthesize(context.Background(), "hello", "voice-a")
	require.NoError(t, err)

	assert.Equal(t, []byte("pcm"), result.Audio)
	require.Len(t, result.Visemes, 2)
	assert.Equal(t, Viseme{Class: 3, OffsetMs: 50}, result.Visemes[0])
	assert.Equal(t, Viseme{Class: 7, OffsetMs: 120}, result.Visemes[1])
}

func TestHTTPSynthesizerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "voice not found", http.StatusBadRequest)
	}))
	defer server.Close()

	synth := NewHTTPSynthesizer(server.URL, "")
	_, err := synth.Synthesize(context.Background(), "hello", "bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestHTTPSynthesizerNoAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"visemes": []any{}})
	}))
	defer server.Close()

	synth := NewHTTPSynthesizer(server.URL, "")
	_, err := synth.Synthesize(context.Background(), "hello", "voice-a")
	assert.Error(t, err)
}
