package elevenlabs

import (
	"github.com/samber/lo"

	"github.com/book-expert/elevenlabs-service/internal/core"
)

// voicesPayload is the JSON response shape of the voices endpoint.
type voicesPayload struct {
	Voices []voicePayload `json:"voices"`
}

type voicePayload struct {
	VoiceID     string `json:"voice_id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	PreviewURL  string `json:"preview_url"`
}

// userPayload is the JSON response shape of the user endpoint.
type userPayload struct {
	Subscription subscriptionPayload `json:"subscription"`
}

type subscriptionPayload struct {
	Tier           string `json:"tier"`
	CharacterCount int64  `json:"character_count"`
	CharacterLimit int64  `json:"character_limit"`
	Status         string `json:"status"`
}

// projectVoices maps the wire payload to the read-only core projection.
func projectVoices(payload voicesPayload) []core.VoiceInfo {
	return lo.Map(payload.Voices, func(voice voicePayload, _ int) core.VoiceInfo {
		return core.VoiceInfo{
			VoiceID:     voice.VoiceID,
			Name:        voice.Name,
			Category:    voice.Category,
			Description: voice.Description,
			PreviewURL:  voice.PreviewURL,
		}
	})
}

// TTSModels returns the static synthesis model catalog. The catalog never
// touches the network.
func TTSModels() []core.ModelInfo {
	return []core.ModelInfo{
		{
			ID:          "eleven_monolingual_v1",
			Name:        "Eleven Monolingual v1",
			Description: "High quality English model",
		},
		{
			ID:          "eleven_multilingual_v1",
			Name:        "Eleven Multilingual v1",
			Description: "Multilingual model supporting various languages",
		},
		{
			ID:          "eleven_multilingual_v2",
			Name:        "Eleven Multilingual v2",
			Description: "Latest multilingual model with improved quality",
		},
	}
}

// STTModels returns the static transcription model catalog.
func STTModels() []core.ModelInfo {
	return []core.ModelInfo{
		{
			ID:          ModelScribeV1,
			Name:        "Scribe v1",
			Description: "ElevenLabs transcription model (accepts whisper-1 as an alias)",
		},
	}
}
