// Package elevenlabs_test tests the ElevenLabs provider adapter.
package elevenlabs_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/elevenlabs-service/internal/core"
	"github.com/book-expert/elevenlabs-service/internal/elevenlabs"
)

const (
	testAPIKey    = "test-api-key"
	testVoiceID   = "voice-1"
	testTTSModel  = "eleven_monolingual_v1"
	testTimeout   = 10 * time.Second
	testUserBody  = `{"subscription":{"tier":"creator","character_count":1200,"character_limit":100000,"status":"active"}}`
	testAudioBody = "fake-mpeg-audio"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	return log
}

// newConnectedClient builds a client against the given handler and runs
// Initialize through it. The handler must serve GET /v1/user.
func newConnectedClient(t *testing.T, handler http.Handler) (*elevenlabs.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := elevenlabs.New(server.URL, testAPIKey, testTimeout, newTestLogger(t))

	err := client.Initialize(context.Background())
	require.NoError(t, err)

	return client, server
}

func userHandler(t *testing.T) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("Xi-Api-Key"))
		w.Header().Set("Content-Type", "application/json")

		_, err := w.Write([]byte(testUserBody))
		require.NoError(t, err)
	}
}

func TestInitialize_Success(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))

	client, _ := newConnectedClient(t, mux)

	assert.True(t, client.IsConnected())
}

func TestInitialize_RejectedCredential(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := elevenlabs.New(server.URL, "bad-key", testTimeout, newTestLogger(t))

	err := client.Initialize(context.Background())
	require.Error(t, err)
	assert.False(t, client.IsConnected())
}

func TestTextToSpeech_Success(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))
	mux.HandleFunc("POST /v1/text-to-speech/"+testVoiceID, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("Xi-Api-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			Text          string             `json:"text"`
			ModelID       string             `json:"model_id"`
			VoiceSettings core.VoiceSettings `json:"voice_settings"`
		}

		err := json.NewDecoder(r.Body).Decode(&payload)
		require.NoError(t, err)

		assert.Equal(t, "Hello, world!", payload.Text)
		assert.Equal(t, testTTSModel, payload.ModelID)
		assert.InEpsilon(t, core.DefaultStability, payload.VoiceSettings.Stability, 0.001)
		assert.InEpsilon(t, core.DefaultSimilarityBoost, payload.VoiceSettings.SimilarityBoost, 0.001)
		assert.True(t, payload.VoiceSettings.UseSpeakerBoost)

		w.Header().Set("Content-Type", "audio/mpeg")

		_, err = w.Write([]byte(testAudioBody))
		require.NoError(t, err)
	})

	client, _ := newConnectedClient(t, mux)

	audio, err := client.TextToSpeech(context.Background(), core.SpeechRequest{
		Text:     "Hello, world!",
		VoiceID:  testVoiceID,
		ModelID:  testTTSModel,
		Settings: nil,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte(testAudioBody), audio)
}

func TestTextToSpeech_EmptyText(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))

	client, _ := newConnectedClient(t, mux)

	_, err := client.TextToSpeech(context.Background(), core.SpeechRequest{
		Text:     "",
		VoiceID:  testVoiceID,
		ModelID:  testTTSModel,
		Settings: nil,
	})
	require.ErrorIs(t, err, core.ErrEmptyText)
}

func TestTextToSpeech_NotInitialized(t *testing.T) {
	t.Parallel()

	client := elevenlabs.New("http://localhost:1", testAPIKey, testTimeout, newTestLogger(t))

	_, err := client.TextToSpeech(context.Background(), core.SpeechRequest{
		Text:     "Hello",
		VoiceID:  testVoiceID,
		ModelID:  testTTSModel,
		Settings: nil,
	})
	require.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestTextToSpeech_ProviderError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))
	mux.HandleFunc("POST /v1/text-to-speech/"+testVoiceID, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	})

	client, _ := newConnectedClient(t, mux)

	_, err := client.TextToSpeech(context.Background(), core.SpeechRequest{
		Text:     "Hello",
		VoiceID:  testVoiceID,
		ModelID:  testTTSModel,
		Settings: nil,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestSpeechToText_PrimarySuccess(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))
	mux.HandleFunc("POST /v1/speech-to-text", func(w http.ResponseWriter, r *http.Request) {
		// The primary attempt sends the audio file only.
		assert.Empty(t, r.FormValue("model_id"))

		w.Header().Set("Content-Type", "application/json")

		_, err := w.Write([]byte(`{"text":"hello there","language_code":"en","language_probability":0.98}`))
		require.NoError(t, err)
	})

	client, _ := newConnectedClient(t, mux)

	transcript, err := client.SpeechToText(context.Background(), []byte("fake-wav"), "whisper-1", "")
	require.NoError(t, err)

	assert.Equal(t, "hello there", transcript.Text)
	assert.InEpsilon(t, 0.98, transcript.Confidence, 0.001)
	assert.Equal(t, "en", transcript.Language)
}

func TestSpeechToText_ZeroProbabilityPreserved(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))
	mux.HandleFunc("POST /v1/speech-to-text", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// A reported probability of zero is a real value, not an omission.
		_, err := w.Write([]byte(`{"text":"static noise","language_code":"en","language_probability":0}`))
		require.NoError(t, err)
	})

	client, _ := newConnectedClient(t, mux)

	transcript, err := client.SpeechToText(context.Background(), []byte("fake-wav"), "whisper-1", "")
	require.NoError(t, err)

	assert.Equal(t, "static noise", transcript.Text)
	assert.Zero(t, transcript.Confidence)
}

func TestSpeechToText_FallbackWithParameters(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))
	mux.HandleFunc("POST /v1/speech-to-text", func(w http.ResponseWriter, r *http.Request) {
		// Reject the bare upload; accept the retry that carries the
		// rewritten model name and the language.
		if r.FormValue("model_id") == "" {
			http.Error(w, `{"detail":"model_id is required"}`, http.StatusBadRequest)

			return
		}

		assert.Equal(t, elevenlabs.ModelScribeV1, r.FormValue("model_id"))
		assert.Equal(t, "es", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")

		_, err := w.Write([]byte(`{"text":"hola"}`))
		require.NoError(t, err)
	})

	client, _ := newConnectedClient(t, mux)

	transcript, err := client.SpeechToText(context.Background(), []byte("fake-wav"), "whisper-1", "es")
	require.NoError(t, err)

	assert.Equal(t, "hola", transcript.Text)
	assert.InEpsilon(t, 0.95, transcript.Confidence, 0.001)
	assert.Equal(t, "es", transcript.Language)
}

func TestSpeechToText_TotalFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))
	mux.HandleFunc("POST /v1/speech-to-text", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"detail":"upstream outage"}`, http.StatusBadGateway)
	})

	client, _ := newConnectedClient(t, mux)

	_, err := client.SpeechToText(context.Background(), []byte("fake-wav"), "whisper-1", "")
	require.ErrorIs(t, err, core.ErrTranscriptionUnavailable)
	assert.Contains(t, err.Error(), "upstream outage")
}

func TestSpeechToText_EmptyAudio(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))

	client, _ := newConnectedClient(t, mux)

	_, err := client.SpeechToText(context.Background(), nil, "whisper-1", "")
	require.ErrorIs(t, err, core.ErrEmptyAudio)
}

func TestVoices_Success(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))
	mux.HandleFunc("GET /v1/voices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testAPIKey, r.Header.Get("Xi-Api-Key"))
		w.Header().Set("Content-Type", "application/json")

		body := `{"voices":[{"voice_id":"v1","name":"Rachel","category":"premade","preview_url":"https://example.com/v1.mp3"}]}`

		_, err := w.Write([]byte(body))
		require.NoError(t, err)
	})

	client, _ := newConnectedClient(t, mux)

	voices, err := client.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)

	assert.Equal(t, "v1", voices[0].VoiceID)
	assert.Equal(t, "Rachel", voices[0].Name)
	assert.Equal(t, "premade", voices[0].Category)
	assert.Equal(t, "https://example.com/v1.mp3", voices[0].PreviewURL)
}

func TestUser_Success(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/user", userHandler(t))

	client, _ := newConnectedClient(t, mux)

	user, err := client.User(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "creator", user.Tier)
	assert.Equal(t, int64(1200), user.CharacterCount)
	assert.Equal(t, int64(100000), user.CharacterLimit)
	assert.Equal(t, "active", user.Status)
}

func TestModelCatalogs(t *testing.T) {
	t.Parallel()

	ttsModels := elevenlabs.TTSModels()
	require.Len(t, ttsModels, 3)
	assert.Equal(t, "eleven_monolingual_v1", ttsModels[0].ID)
	assert.Equal(t, "eleven_multilingual_v2", ttsModels[2].ID)

	sttModels := elevenlabs.STTModels()
	require.Len(t, sttModels, 1)
	assert.Equal(t, elevenlabs.ModelScribeV1, sttModels[0].ID)
}
