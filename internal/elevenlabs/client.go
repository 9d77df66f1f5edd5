// Package elevenlabs wraps the ElevenLabs REST API behind the core.Provider
// contract, normalizing results and errors into plain data structures.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/elevenlabs-service/internal/core"
)

// API endpoint paths.
const (
	apiTextToSpeech = "/v1/text-to-speech"
	apiSpeechToText = "/v1/speech-to-text"
	apiVoices       = "/v1/voices"
	apiUser         = "/v1/user"
)

// HTTP headers and content types.
const (
	headerAPIKey      = "Xi-Api-Key"
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// Multipart form field names for the speech-to-text endpoint.
const (
	formFieldFile     = "file"
	formFieldModelID  = "model_id"
	formFieldLanguage = "language"
	uploadFileName    = "audio.wav"
)

// Model identifiers. The service accepts the widely-used "whisper-1" name as
// an alias and rewrites it to the provider's own transcription model.
const (
	ModelWhisperAlias = "whisper-1"
	ModelScribeV1     = "scribe_v1"
)

// defaultTranscriptConfidence is reported when the provider response carries
// no confidence signal of its own.
const defaultTranscriptConfidence = 0.95

// defaultLanguage is assumed when neither the caller nor the provider names one.
const defaultLanguage = "en"

// Error messages and format strings.
const (
	errReceivedEmptyAudio  = "received empty audio data"
	errFmtAPIStatus        = "API request failed with status %d: %s"
	errFmtCreateRequest    = "failed to create request: %w"
	errFmtSendRequest      = "failed to send request to %s: %w"
	errFmtDecodeResponse   = "failed to decode response: %w"
	errFmtCreateFormFile   = "failed to create form file: %w"
	errFmtWriteFormField   = "failed to write %s field: %w"
	errFmtCloseWriter      = "failed to close multipart writer: %w"
	logFmtConnected        = "Connected to ElevenLabs, subscription tier: %s"
	logFmtSynthesized      = "Synthesized %d bytes of audio with voice %s"
	logFmtPrimarySTTFailed = "Primary transcription attempt failed, retrying with parameters: %v"
	logFmtCloseResponseErr = "Failed to close response body: %v"
)

// Client is an HTTP client for the ElevenLabs REST API. A single instance is
// shared by all requests; the connected flag is the only mutable state.
type Client struct {
	httpClient *http.Client
	log        *logger.Logger
	baseURL    string
	apiKey     string
	connected  atomic.Bool
}

var _ core.Provider = (*Client)(nil)

// New creates an ElevenLabs client. The timeout applies to every outbound
// request, including the transcription fallback path.
func New(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Initialize verifies the credential by fetching the account's subscription
// data. It fails fast on a missing or rejected key and leaves the client
// disconnected.
func (c *Client) Initialize(ctx context.Context) error {
	user, err := c.User(ctx)
	if err != nil {
		c.connected.Store(false)

		return fmt.Errorf("failed to verify ElevenLabs credential: %w", err)
	}

	c.connected.Store(true)
	c.log.Info(logFmtConnected, user.Tier)

	return nil
}

// IsConnected reports whether the last Initialize call succeeded.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// speechPayload is the JSON body for the text-to-speech endpoint.
type speechPayload struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings core.VoiceSettings `json:"voice_settings"`
}

// TextToSpeech converts text to raw audio bytes using the configured voice
// and model. The provider returns MPEG audio on success.
func (c *Client) TextToSpeech(ctx context.Context, req core.SpeechRequest) ([]byte, error) {
	if !c.IsConnected() {
		return nil, core.ErrNotInitialized
	}

	if req.Text == "" {
		return nil, core.ErrEmptyText
	}

	settings := core.DefaultVoiceSettings()
	if req.Settings != nil {
		settings = *req.Settings
	}

	payload := speechPayload{
		Text:          req.Text,
		ModelID:       req.ModelID,
		VoiceSettings: settings,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	url := c.baseURL + apiTextToSpeech + "/" + req.VoiceID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf(errFmtCreateRequest, err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(errFmtSendRequest, url, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, errors.New(errReceivedEmptyAudio)
	}

	c.log.Info(logFmtSynthesized, len(audioData), req.VoiceID)

	return audioData, nil
}

// transcriptPayload is the JSON response shape of the speech-to-text
// endpoint. LanguageProbability is a pointer so an omitted field can be told
// apart from a reported probability of zero.
type transcriptPayload struct {
	Text                string   `json:"text"`
	LanguageCode        string   `json:"language_code"`
	LanguageProbability *float64 `json:"language_probability"`
}

// SpeechToText transcribes raw audio bytes. The primary attempt posts only
// the audio file; when the provider rejects it, a second attempt adds the
// model (with the whisper-1 alias rewritten) and language form fields. When
// both attempts fail the error wraps core.ErrTranscriptionUnavailable so the
// caller can decide whether to degrade.
func (c *Client) SpeechToText(ctx context.Context, audio []byte, modelID, language string) (core.Transcript, error) {
	if !c.IsConnected() {
		return core.Transcript{}, core.ErrNotInitialized
	}

	if len(audio) == 0 {
		return core.Transcript{}, core.ErrEmptyAudio
	}

	transcript, primaryErr := c.transcribe(ctx, audio, "", "")
	if primaryErr == nil {
		return c.resolveTranscript(transcript, language), nil
	}

	c.log.Warn(logFmtPrimarySTTFailed, primaryErr)

	transcript, fallbackErr := c.transcribe(ctx, audio, resolveModelID(modelID), language)
	if fallbackErr == nil {
		return c.resolveTranscript(transcript, language), nil
	}

	return core.Transcript{}, fmt.Errorf(
		"%w: %w (primary attempt: %w)",
		core.ErrTranscriptionUnavailable,
		fallbackErr,
		primaryErr,
	)
}

// Voices lists the voices available to the account.
func (c *Client) Voices(ctx context.Context) ([]core.VoiceInfo, error) {
	if !c.IsConnected() {
		return nil, core.ErrNotInitialized
	}

	var payload voicesPayload

	err := c.getJSON(ctx, apiVoices, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to get voices: %w", err)
	}

	return projectVoices(payload), nil
}

// User fetches the account's subscription projection. Unlike the other
// operations it does not require a prior Initialize, because Initialize
// itself uses it to verify the credential.
func (c *Client) User(ctx context.Context) (core.UserInfo, error) {
	var payload userPayload

	err := c.getJSON(ctx, apiUser, &payload)
	if err != nil {
		return core.UserInfo{}, fmt.Errorf("failed to get user info: %w", err)
	}

	return core.UserInfo{
		Tier:           payload.Subscription.Tier,
		CharacterCount: payload.Subscription.CharacterCount,
		CharacterLimit: payload.Subscription.CharacterLimit,
		Status:         payload.Subscription.Status,
	}, nil
}

// transcribe performs a single multipart upload to the speech-to-text
// endpoint. Empty modelID and language leave the corresponding form fields
// out entirely.
func (c *Client) transcribe(ctx context.Context, audio []byte, modelID, language string) (transcriptPayload, error) {
	var zero transcriptPayload

	body, contentType, err := buildTranscriptionForm(audio, modelID, language)
	if err != nil {
		return zero, err
	}

	url := c.baseURL + apiSpeechToText

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return zero, fmt.Errorf(errFmtCreateRequest, err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set(headerContentType, contentType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf(errFmtSendRequest, url, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return zero, c.apiError(resp)
	}

	var payload transcriptPayload

	err = json.NewDecoder(resp.Body).Decode(&payload)
	if err != nil {
		return zero, fmt.Errorf(errFmtDecodeResponse, err)
	}

	return payload, nil
}

// resolveTranscript maps the wire payload to the core type, filling in the
// requested language and the default confidence when the provider omits them.
func (c *Client) resolveTranscript(payload transcriptPayload, requestedLanguage string) core.Transcript {
	confidence := defaultTranscriptConfidence
	if payload.LanguageProbability != nil {
		confidence = *payload.LanguageProbability
	}

	language := payload.LanguageCode
	if language == "" {
		language = requestedLanguage
	}

	if language == "" {
		language = defaultLanguage
	}

	return core.Transcript{
		Text:       payload.Text,
		Confidence: confidence,
		Language:   language,
	}
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	url := c.baseURL + path

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf(errFmtCreateRequest, err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf(errFmtSendRequest, url, err)
	}
	defer c.closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}

	err = json.NewDecoder(resp.Body).Decode(target)
	if err != nil {
		return fmt.Errorf(errFmtDecodeResponse, err)
	}

	return nil
}

// apiError preserves the raw provider response body for diagnostics.
func (c *Client) apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	return fmt.Errorf(errFmtAPIStatus, resp.StatusCode, string(body))
}

func (c *Client) closeBody(resp *http.Response) {
	closeErr := resp.Body.Close()
	if closeErr != nil {
		c.log.Warn(logFmtCloseResponseErr, closeErr)
	}
}

// resolveModelID rewrites the whisper-1 alias to the provider's own
// transcription model name.
func resolveModelID(modelID string) string {
	if modelID == "" || modelID == ModelWhisperAlias {
		return ModelScribeV1
	}

	return modelID
}

// buildTranscriptionForm assembles the multipart body for a transcription
// attempt and returns it together with its content type.
func buildTranscriptionForm(audio []byte, modelID, language string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(formFieldFile, uploadFileName)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtCreateFormFile, err)
	}

	_, err = part.Write(audio)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	if modelID != "" {
		err = writer.WriteField(formFieldModelID, modelID)
		if err != nil {
			return nil, "", fmt.Errorf(errFmtWriteFormField, formFieldModelID, err)
		}
	}

	if language != "" {
		err = writer.WriteField(formFieldLanguage, language)
		if err != nil {
			return nil, "", fmt.Errorf(errFmtWriteFormField, formFieldLanguage, err)
		}
	}

	closeErr := writer.Close()
	if closeErr != nil {
		return nil, "", fmt.Errorf(errFmtCloseWriter, closeErr)
	}

	return &buf, writer.FormDataContentType(), nil
}
