package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestElevenLabsSynthesize(t *testing.T) {
	pcm := []byte{0x10, 0x27, 0x10, 0x27}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/text-to-speech/"+ElevenLabsPresets["rachel"]) {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("output_format") != string(EncodingPCM24) {
			t.Errorf("output_format = %s", r.URL.Query().Get("output_format"))
		}
		if r.Header.Get("xi-api-key") != "key" {
			t.Error("missing api key header")
		}
		var body struct {
			Text          string                 `json:"text"`
			VoiceSettings map[string]interface{} `json:"voice_settings"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Text != "Hello" || body.VoiceSettings["speed"] != 1.2 {
			t.Errorf("body = %+v", body)
		}
		w.Write(append([]byte(nil), pcm...))
	}))
	defer server.Close()

	p, err := NewElevenLabs(WithAPIKey("key"), WithVoice("rachel"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := p.Synthesize(context.Background(), "Hello", Prosody{Rate: 2, Volume: 0.5})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(result.Audio) != 4 || result.Audio[0] != 0x88 || result.Audio[1] != 0x13 {
		t.Errorf("volume not applied: %v", result.Audio)
	}
	if result.Format.SampleRate != 24000 {
		t.Errorf("sample rate = %d", result.Format.SampleRate)
	}
}

func TestElevenLabsRetriesAndErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key","message":"bad key"}}`))
	}))
	defer server.Close()

	p, _ := NewElevenLabs(WithAPIKey("key"), WithBaseURL(server.URL), WithRetry(2, time.Millisecond))
	_, err := p.Synthesize(context.Background(), "Hello", DefaultProsody())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() || apiErr.Message != "bad key" {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("401 should not be retried, got %d attempts", attempts.Load())
	}

	if _, err := p.Synthesize(context.Background(), "  ", DefaultProsody()); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank text error = %v", err)
	}
}

func TestElevenLabsRequiresKey(t *testing.T) {
	if _, err := NewElevenLabs(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("error = %v", err)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":{"message":"busy"}}`))
			return
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["response_format"] != "pcm" || body["speed"] != 1.5 || body["input"] != "Hi" {
			t.Errorf("body = %v", body)
		}
		w.Write(make([]byte, 48000))
	}))
	defer server.Close()

	p, err := NewOpenAI(WithAPIKey("key"), WithBaseURL(server.URL), WithRetry(1, time.Millisecond))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := p.Synthesize(context.Background(), "Hi", Prosody{Rate: 1.5})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if result.Duration != time.Second || attempts.Load() != 2 {
		t.Errorf("duration=%v attempts=%d", result.Duration, attempts.Load())
	}
}

func TestGoogleSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	wav := append(append([]byte("RIFF"), make([]byte, wavHeaderSize-4)...), pcm...)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/text:synthesize") {
			t.Errorf("path = %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			AudioConfig struct {
				AudioEncoding string  `json:"audioEncoding"`
				SpeakingRate  float64 `json:"speakingRate"`
				Pitch         float64 `json:"pitch"`
			} `json:"audioConfig"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.AudioConfig.AudioEncoding != "LINEAR16" || body.AudioConfig.SpeakingRate != 0.8 || body.AudioConfig.Pitch != 12 {
			t.Errorf("audio config = %+v", body.AudioConfig)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"audioContent": base64.StdEncoding.EncodeToString(wav)})
	}))
	defer server.Close()

	p, err := NewGoogle(context.Background(),
		WithAPIKey("key"),
		WithBaseURL(server.URL+"/"),
		WithHTTPClient(server.Client()),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result, err := p.Synthesize(context.Background(), "Hello", Prosody{Rate: 0.8, Pitch: 2, Volume: 1})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(result.Audio) != string(pcm) {
		t.Errorf("wav header not stripped: %v", result.Audio)
	}
}

func TestGoogleAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid"}}`))
	}))
	defer server.Close()

	p, _ := NewGoogle(context.Background(), WithAPIKey("key"), WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()))
	_, err := p.Synthesize(context.Background(), "Hello", DefaultProsody())

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsForbidden() {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVolumeGainDb(t *testing.T) {
	if volumeGainDb(1) != 0 {
		t.Error("unity gain should be 0 dB")
	}
	if volumeGainDb(0) != -96 {
		t.Error("mute should be -96 dB")
	}
}
