package tts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestElevenLabs(t *testing.T, handler http.HandlerFunc) *ElevenLabsProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewElevenLabsProvider(ElevenLabsConfig{APIKey: "test-key", BaseURL: srv.URL + "/"})
}

func TestElevenLabs_Voices(t *testing.T) {
	p := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/voices" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"voices":[
			{"voice_id":"2EiwWnXFnvU5JabPnv8n","name":"Clyde","category":"premade"},
			{"voice_id":"21m00Tcm4TlvDq8ikWAM","name":"Rachel"}
		]}`)
	})

	voices, err := p.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("expected 2 voices, got %d", len(voices))
	}
	if voices[0] != DefaultVoice {
		t.Errorf("voices[0] = %+v, want %+v", voices[0], DefaultVoice)
	}
	if voices[1].Name != "Rachel" {
		t.Errorf("voices[1].Name = %q", voices[1].Name)
	}
}

func TestElevenLabs_VoicesUnauthorized(t *testing.T) {
	p := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`)
	})

	_, err := p.Voices(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid key")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Invalid API key" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestElevenLabs_Synthesize(t *testing.T) {
	audio := []byte{0xFF, 0xFB, 0x90, 0x00, 0x01, 0x02}
	p := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/v1/text-to-speech/2EiwWnXFnvU5JabPnv8n" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("output_format"); got != "mp3_44100_128" {
			t.Errorf("output_format = %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["text"] != "Hello World!" {
			t.Errorf("text = %q", body["text"])
		}
		if body["model_id"] != "eleven_multilingual_v2" {
			t.Errorf("model_id = %q", body["model_id"])
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	})

	got, err := p.Synthesize(context.Background(), DefaultVoice, "Hello World!")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if got.Format != "mp3" {
		t.Errorf("Format = %q", got.Format)
	}
	if string(got.Data) != string(audio) {
		t.Errorf("Data = %v", got.Data)
	}
}

func TestElevenLabs_SynthesizeRejectsBadInput(t *testing.T) {
	p := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	if _, err := p.Synthesize(context.Background(), DefaultVoice, "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if _, err := p.Synthesize(context.Background(), Voice{}, "hi"); err == nil {
		t.Error("expected error for empty voice")
	}
}

func TestElevenLabs_ServerErrorPlainText(t *testing.T) {
	p := newTestElevenLabs(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "upstream exploded\n")
	})

	_, err := p.Synthesize(context.Background(), DefaultVoice, "hi")
	if err == nil || !strings.Contains(err.Error(), "upstream exploded") {
		t.Errorf("expected plain-text error message, got %v", err)
	}
}

func TestElevenLabs_OutputFormat(t *testing.T) {
	tests := []struct {
		outputFormat string
		want         string
	}{
		{"mp3_44100_128", "mp3"},
		{"pcm_16000", "pcm"},
		{"wav_44100", "wav"},
		{"ulaw_8000", "ulaw"},
		{"", "mp3"},
	}
	for _, tt := range tests {
		if got := formatFromOutput(tt.outputFormat); got != tt.want {
			t.Errorf("formatFromOutput(%q) = %q, want %q", tt.outputFormat, got, tt.want)
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("output_format"); got != "pcm_16000" {
			t.Errorf("output_format = %q", got)
		}
		w.Write([]byte{0, 1, 2, 3})
	}))
	defer srv.Close()

	p := NewElevenLabsProvider(ElevenLabsConfig{APIKey: "k", BaseURL: srv.URL, OutputFormat: "pcm_16000"})
	got, err := p.Synthesize(context.Background(), DefaultVoice, "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got.Format != "pcm" {
		t.Errorf("Format = %q, want pcm", got.Format)
	}
}

func TestErrorMessage_TruncatesOnRunes(t *testing.T) {
	body := []byte(strings.Repeat("错", maxErrorRunes+50))
	msg := errorMessage(body)

	if !utf8.ValidString(msg) {
		t.Fatalf("truncated message is not valid UTF-8: %q", msg)
	}
	if n := utf8.RuneCountInString(msg); n != maxErrorRunes {
		t.Errorf("rune count = %d, want %d", n, maxErrorRunes)
	}
}
