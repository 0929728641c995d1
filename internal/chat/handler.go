package chat

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/calebwren/portfolio-ai/internal/speech"
	"github.com/calebwren/portfolio-ai/pkg/logging"
)

const (
	maxMessageChars   = 5000
	maxSessionIDChars = 100
	maxRequestPrompts = 10
)

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	SessionID string   `json:"sessionId"`
	Message   string   `json:"message"`
	Prompts   []string `json:"prompts,omitempty"`
}

// SpeechRequest is the POST /api/speech body, used to retry audio for a
// reply whose synthesis failed.
type SpeechRequest struct {
	Text string `json:"text"`
}

// Handler exposes the chat pipeline over HTTP.
type Handler struct {
	service *Service
	speech  *speech.Service
	logger  *logging.Logger
}

func NewHandler(service *Service, speechSvc *speech.Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("chat: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, speech: speechSvc, logger: logger.WithComponent("chat_handler")}
}

// HandleChat streams a chat exchange as newline-delimited JSON. Validation
// failures reject the whole request before any event is written.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateChatRequest(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for event := range h.service.Stream(r.Context(), req.SessionID, req.Message, req.Prompts) {
		if err := enc.Encode(event); err != nil {
			h.logger.Debug("client write failed, stopping stream", "error", err)
			return
		}
		flusher.Flush()
	}
}

func validateChatRequest(req ChatRequest) string {
	if len(req.Message) == 0 || len(req.Message) > maxMessageChars {
		return "message must be between 1 and 5000 characters"
	}
	if len(req.SessionID) == 0 || len(req.SessionID) > maxSessionIDChars {
		return "sessionId must be between 1 and 100 characters"
	}
	if len(req.Prompts) > maxRequestPrompts {
		return "at most 10 prompts allowed"
	}
	return ""
}

// HandleSpeech regenerates audio for a given reply text. Synthesis failures
// still return fallback visemes so the avatar keeps moving.
func (h *Handler) HandleSpeech(w http.ResponseWriter, r *http.Request) {
	var req SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Text) == 0 || len(req.Text) > maxMessageChars {
		writeError(w, http.StatusBadRequest, "text must be between 1 and 5000 characters")
		return
	}

	var out speech.Output
	if h.speech != nil {
		out = h.speech.Generate(r.Context(), req.Text)
	} else {
		out = speech.Output{Visemes: speech.FlatVisemes(req.Text)}
	}

	resp := map[string]any{
		"audioAvailable": out.AudioAvailable,
		"visemes":        out.Visemes,
	}
	if len(out.Audio) > 0 {
		resp["audio"] = base64.StdEncoding.EncodeToString(out.Audio)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
