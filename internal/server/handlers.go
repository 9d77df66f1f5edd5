package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/book-expert/elevenlabs-service/internal/core"
	"github.com/book-expert/elevenlabs-service/internal/elevenlabs"
	"github.com/book-expert/elevenlabs-service/internal/text"
)

// Machine-readable error codes surfaced in error envelopes.
const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeNotInitialized = "NOT_INITIALIZED"
	codeTTSFailed      = "TTS_FAILED"
	codeSTTUnavailable = "STT_UNAVAILABLE"
	codeProviderError  = "PROVIDER_ERROR"
	codeInternalError  = "INTERNAL_ERROR"
)

// Placeholder transcript returned when every transcription path failed and
// degraded mode is enabled. The confidence is fixed so consumers can detect
// the degraded response.
const (
	placeholderTranscript = "speech-to-text temporarily unavailable"
	placeholderConfidence = 0.80
)

// Multipart form field names accepted by the file upload endpoint.
const (
	formFieldFile      = "file"
	formFieldFileAlias = "audio"
	formFieldModelID   = "model_id"
	formFieldLanguage  = "language"
)

const fallbackLanguage = "en"

// Error detail messages.
const (
	detailBadJSONBody      = "request body is not valid JSON"
	detailBadBase64        = "audio_data is not valid base64"
	detailMissingFormFile  = "missing form file 'file' or 'audio'"
	detailNotInitialized   = "ElevenLabs client not initialized"
	detailEmptyText        = "text cannot be empty"
	detailEmptyAudio       = "audio data cannot be empty"
	detailSTTUnavailable   = "transcription is temporarily unavailable"
	detailReadUploadFailed = "failed to read uploaded file"
	errFmtArchiveFailed    = "Failed to archive generated audio: %v"
	errFmtEncodeResponse   = "Failed to encode response: %v"
	errFmtReadUploadFailed = "failed to read uploaded file: %v"
)

// TTSRequest is the JSON body of the /tts endpoint.
type TTSRequest struct {
	Text          string              `json:"text"`
	VoiceID       string              `json:"voice_id,omitempty"`
	ModelID       string              `json:"model_id,omitempty"`
	VoiceSettings *core.VoiceSettings `json:"voice_settings,omitempty"`
}

// TTSResponse is the JSON response of the /tts endpoint. AudioData carries
// the generated audio as base64 and Size records the decoded byte count.
type TTSResponse struct {
	AudioData   string  `json:"audio_data"`
	VoiceID     string  `json:"voice_id"`
	ModelID     string  `json:"model_id"`
	Duration    float64 `json:"duration"`
	Size        int     `json:"size"`
	GeneratedAt string  `json:"generated_at"`
	AudioKey    string  `json:"audio_key,omitempty"`
}

// STTRequest is the JSON body of the /stt endpoint. AudioData is base64.
type STTRequest struct {
	AudioData string `json:"audio_data"`
	ModelID   string `json:"model_id,omitempty"`
	Language  string `json:"language,omitempty"`
}

// STTResponse is the JSON response of the /stt and /stt-file endpoints.
type STTResponse struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	Language       string  `json:"language"`
	ProcessingTime float64 `json:"processing_time"`
	ModelID        string  `json:"model_id"`
}

// HealthResponse is the JSON response of the /health endpoint.
type HealthResponse struct {
	Status              string  `json:"status"`
	Service             string  `json:"service"`
	Version             string  `json:"version"`
	Uptime              float64 `json:"uptime"`
	ElevenLabsConnected bool    `json:"elevenlabs_connected"`
}

// ModelsResponse is the JSON response of the /models endpoint.
type ModelsResponse struct {
	TTSModels []core.ModelInfo `json:"tts_models"`
	STTModels []core.ModelInfo `json:"stt_models"`
}

// RootResponse is the JSON response of the root endpoint.
type RootResponse struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}

// ErrorResponse is the JSON error envelope used by every endpoint.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, RootResponse{
		Service: ServiceName,
		Version: ServiceVersion,
		Status:  "running",
		Endpoints: map[string]string{
			"health":   routeHealth,
			"tts":      routeTTS,
			"stt":      routeSTT,
			"stt_file": routeSTTFile,
			"voices":   routeVoices,
			"models":   routeModels,
			"user":     routeUser,
		},
	})
}

// handleHealth never fails, whatever the provider state.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:              "healthy",
		Service:             ServiceName,
		Version:             ServiceVersion,
		Uptime:              time.Since(s.startedAt).Seconds(),
		ElevenLabsConnected: s.provider.IsConnected(),
	})
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, detailBadJSONBody, codeInvalidRequest)

		return
	}

	req.Text = text.Normalize(req.Text)
	if req.Text == "" {
		s.writeError(w, http.StatusBadRequest, detailEmptyText, codeInvalidRequest)

		return
	}

	if !s.provider.IsConnected() {
		s.writeError(w, http.StatusServiceUnavailable, detailNotInitialized, codeNotInitialized)

		return
	}

	speechReq := core.SpeechRequest{
		Text:     req.Text,
		VoiceID:  req.VoiceID,
		ModelID:  req.ModelID,
		Settings: req.VoiceSettings,
	}

	if speechReq.VoiceID == "" {
		speechReq.VoiceID = s.defaultVoiceID
	}

	if speechReq.ModelID == "" {
		speechReq.ModelID = s.defaultTTSModel
	}

	started := time.Now()

	var audioData []byte

	err = s.pool.Submit(r.Context(), func(ctx context.Context) error {
		var synthErr error

		audioData, synthErr = s.provider.TextToSpeech(ctx, speechReq)

		return synthErr
	})
	if err != nil {
		s.writeProviderError(w, err, codeTTSFailed)

		return
	}

	s.writeJSON(w, http.StatusOK, TTSResponse{
		AudioData:   base64.StdEncoding.EncodeToString(audioData),
		VoiceID:     speechReq.VoiceID,
		ModelID:     speechReq.ModelID,
		Duration:    time.Since(started).Seconds(),
		Size:        len(audioData),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		AudioKey:    s.archiveAudio(r.Context(), audioData),
	})
}

func (s *Server) handleSTT(w http.ResponseWriter, r *http.Request) {
	var req STTRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, detailBadJSONBody, codeInvalidRequest)

		return
	}

	audioData, err := base64.StdEncoding.DecodeString(req.AudioData)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, detailBadBase64, codeInvalidRequest)

		return
	}

	s.transcribe(w, r, audioData, req.ModelID, req.Language)
}

func (s *Server) handleSTTFile(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile(formFieldFile)
	if err != nil {
		file, _, err = r.FormFile(formFieldFileAlias)
	}

	if err != nil {
		s.writeError(w, http.StatusBadRequest, detailMissingFormFile, codeInvalidRequest)

		return
	}

	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			s.log.Warn("Failed to close uploaded file: %v", closeErr)
		}
	}()

	audioData, ok := s.readUpload(w, file)
	if !ok {
		return
	}

	s.transcribe(w, r, audioData, r.FormValue(formFieldModelID), r.FormValue(formFieldLanguage))
}

// readUpload drains the uploaded form file. A read failure here is a local
// I/O problem, not a provider one, and is reported as such.
func (s *Server) readUpload(w http.ResponseWriter, file multipart.File) ([]byte, bool) {
	audioData, err := io.ReadAll(file)
	if err != nil {
		s.log.Error(errFmtReadUploadFailed, err)
		s.writeError(w, http.StatusInternalServerError, detailReadUploadFailed, codeInternalError)

		return nil, false
	}

	return audioData, true
}

// transcribe is the shared core of the /stt and /stt-file endpoints.
func (s *Server) transcribe(w http.ResponseWriter, r *http.Request, audioData []byte, modelID, language string) {
	if len(audioData) == 0 {
		s.writeError(w, http.StatusBadRequest, detailEmptyAudio, codeInvalidRequest)

		return
	}

	if !s.provider.IsConnected() {
		s.writeError(w, http.StatusServiceUnavailable, detailNotInitialized, codeNotInitialized)

		return
	}

	if modelID == "" {
		modelID = s.defaultSTTModel
	}

	started := time.Now()

	var transcript core.Transcript

	err := s.pool.Submit(r.Context(), func(ctx context.Context) error {
		var sttErr error

		transcript, sttErr = s.provider.SpeechToText(ctx, audioData, modelID, language)

		return sttErr
	})
	if err != nil {
		s.writeTranscriptionError(w, err, started, modelID, language)

		return
	}

	s.writeJSON(w, http.StatusOK, STTResponse{
		Text:           transcript.Text,
		Confidence:     transcript.Confidence,
		Language:       transcript.Language,
		ProcessingTime: time.Since(started).Seconds(),
		ModelID:        modelID,
	})
}

// writeTranscriptionError maps a failed transcription to its response. When
// degraded mode is on, a total provider outage yields the placeholder
// transcript instead of an error so the caller's pipeline keeps moving.
func (s *Server) writeTranscriptionError(
	w http.ResponseWriter,
	err error,
	started time.Time,
	modelID, language string,
) {
	if errors.Is(err, core.ErrTranscriptionUnavailable) {
		if s.allowDegraded {
			s.log.Warn("Transcription unavailable, returning degraded placeholder: %v", err)
			s.writeJSON(w, http.StatusOK, STTResponse{
				Text:           placeholderTranscript,
				Confidence:     placeholderConfidence,
				Language:       resolveLanguage(language),
				ProcessingTime: time.Since(started).Seconds(),
				ModelID:        modelID,
			})

			return
		}

		s.log.Error("Transcription unavailable: %v", err)
		s.writeError(w, http.StatusBadGateway, detailSTTUnavailable, codeSTTUnavailable)

		return
	}

	s.writeProviderError(w, err, codeProviderError)
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	if !s.provider.IsConnected() {
		s.writeError(w, http.StatusServiceUnavailable, detailNotInitialized, codeNotInitialized)

		return
	}

	var voices []core.VoiceInfo

	err := s.pool.Submit(r.Context(), func(ctx context.Context) error {
		var listErr error

		voices, listErr = s.provider.Voices(ctx)

		return listErr
	})
	if err != nil {
		s.writeProviderError(w, err, codeProviderError)

		return
	}

	s.writeJSON(w, http.StatusOK, voices)
}

// handleModels serves the static catalog and never fails.
func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, ModelsResponse{
		TTSModels: elevenlabs.TTSModels(),
		STTModels: elevenlabs.STTModels(),
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if !s.provider.IsConnected() {
		s.writeError(w, http.StatusServiceUnavailable, detailNotInitialized, codeNotInitialized)

		return
	}

	var user core.UserInfo

	err := s.pool.Submit(r.Context(), func(ctx context.Context) error {
		var userErr error

		user, userErr = s.provider.User(ctx)

		return userErr
	})
	if err != nil {
		s.writeProviderError(w, err, codeProviderError)

		return
	}

	s.writeJSON(w, http.StatusOK, user)
}

// archiveAudio stores the generated audio when an archive is configured.
// Archive failures are logged, never surfaced to the synthesis caller.
func (s *Server) archiveAudio(ctx context.Context, audioData []byte) string {
	if s.archive == nil {
		return ""
	}

	key, err := s.archive.Store(ctx, audioData)
	if err != nil {
		s.log.Warn(errFmtArchiveFailed, err)

		return ""
	}

	return key
}

// writeProviderError maps adapter errors to status codes: validation errors
// to 400, an uninitialized adapter to 503, everything else to 500.
func (s *Server) writeProviderError(w http.ResponseWriter, err error, code string) {
	switch {
	case errors.Is(err, core.ErrEmptyText):
		s.writeError(w, http.StatusBadRequest, detailEmptyText, codeInvalidRequest)
	case errors.Is(err, core.ErrEmptyAudio):
		s.writeError(w, http.StatusBadRequest, detailEmptyAudio, codeInvalidRequest)
	case errors.Is(err, core.ErrNotInitialized):
		s.writeError(w, http.StatusServiceUnavailable, detailNotInitialized, codeNotInitialized)
	default:
		s.log.Error("Provider call failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error(), code)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		s.log.Error(errFmtEncodeResponse, err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail, code string) {
	s.writeJSON(w, status, ErrorResponse{
		Detail:    detail,
		ErrorCode: code,
	})
}

func resolveLanguage(language string) string {
	if language == "" {
		return fallbackLanguage
	}

	return language
}
