// Package core defines the shared contracts between the HTTP facade and the
// voice provider adapter.
package core

import (
	"context"
	"errors"
)

// Sentinel errors shared across the service boundary.
var (
	// ErrNotInitialized indicates the provider adapter has not completed a
	// successful Initialize call.
	ErrNotInitialized = errors.New("provider client not initialized")
	// ErrTranscriptionUnavailable indicates that every speech-to-text path
	// failed. Callers decide whether to surface the failure or degrade.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	// ErrEmptyText indicates a synthesis request with no input text.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates a transcription request with no audio payload.
	ErrEmptyAudio = errors.New("audio data cannot be empty")
)

// Default voice tuning parameters, passed through to the provider unchanged
// when a request does not override them.
const (
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.75
	DefaultStyle           = 0.0
)

// VoiceSettings holds the numeric tuning parameters for speech synthesis.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the fixed default tuning parameters.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
		Style:           DefaultStyle,
		UseSpeakerBoost: true,
	}
}

// SpeechRequest describes a single text-to-speech call. VoiceID and ModelID
// are resolved by the facade before the request reaches the adapter. A nil
// Settings field means "use the defaults".
type SpeechRequest struct {
	Text     string
	VoiceID  string
	ModelID  string
	Settings *VoiceSettings
}

// Transcript is the result of a speech-to-text call.
type Transcript struct {
	Text       string
	Confidence float64
	Language   string
}

// VoiceInfo is a read-only projection of a provider-side voice descriptor.
type VoiceInfo struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
}

// UserInfo is a read-only projection of the provider-side subscription data.
type UserInfo struct {
	Tier           string `json:"tier"`
	CharacterCount int64  `json:"character_count"`
	CharacterLimit int64  `json:"character_limit"`
	Status         string `json:"status"`
}

// ModelInfo describes an entry in the static model catalog.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Provider defines the contract for the voice-AI provider adapter.
type Provider interface {
	Initialize(ctx context.Context) error
	IsConnected() bool
	TextToSpeech(ctx context.Context, req SpeechRequest) ([]byte, error)
	SpeechToText(ctx context.Context, audio []byte, modelID, language string) (Transcript, error)
	Voices(ctx context.Context) ([]VoiceInfo, error)
	User(ctx context.Context) (UserInfo, error)
}

// AudioArchive persists generated audio and returns the storage key. A nil
// archive disables the feature at the facade.
type AudioArchive interface {
	Store(ctx context.Context, audio []byte) (string, error)
}
