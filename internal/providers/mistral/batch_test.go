package mistral

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestTranscribeUploadsMultipartForm(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.FormValue("model"); got != "voxtral-mini-latest" {
			t.Errorf("unexpected model: %q", got)
		}
		if got := r.FormValue("timestamp_granularities"); got != "segment" {
			t.Errorf("unexpected granularity: %q", got)
		}
		if got := r.FormValue("diarize"); got != "true" {
			t.Errorf("expected diarize flag, got %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"text": "Bonjour tout le monde. Comment allez-vous ?",
			"segments": [
				{"text": "Bonjour tout le monde.", "start": 0.0, "end": 2.5, "speaker_id": "speaker_1"},
				{"text": "Comment allez-vous ?", "start": 2.5, "end": 4.0, "speaker_id": "speaker_2"}
			]
		}`))
	}))
	defer srv.Close()

	audioPath := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(audioPath, []byte("RIFF fake"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	p := NewProvider(Config{APIKey: "test-key", APIBaseURL: srv.URL}, zerolog.Nop())
	result, err := p.Transcribe(context.Background(), audioPath, true)
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}

	if len(result.Segments) != 2 {
		t.Fatalf("unexpected segment count: %d", len(result.Segments))
	}
	if result.Segments[0].Speaker != "speaker_1" {
		t.Fatalf("unexpected speaker: %q", result.Segments[0].Speaker)
	}
	if !result.Segments[0].Diarized {
		t.Fatalf("batch segments should be marked diarized")
	}
	if result.Segments[1].Text != "Comment allez-vous ?" {
		t.Fatalf("unexpected text: %q", result.Segments[1].Text)
	}
}

func TestTranscribeAcceptsSpeakerAlias(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Hello","segments":[{"text":"Hello","start":0,"end":1,"speaker":"Speaker 1"}]}`))
	}))
	defer srv.Close()

	audioPath := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(audioPath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	p := NewProvider(Config{APIKey: "k", APIBaseURL: srv.URL}, zerolog.Nop())
	result, err := p.Transcribe(context.Background(), audioPath, false)
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if result.Segments[0].Speaker != "Speaker 1" {
		t.Fatalf("expected speaker alias to be honored, got %q", result.Segments[0].Speaker)
	}
}

func TestTranscribeWithoutSegments(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"Hello world"}`))
	}))
	defer srv.Close()

	audioPath := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(audioPath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	p := NewProvider(Config{APIKey: "k", APIBaseURL: srv.URL}, zerolog.Nop())
	result, err := p.Transcribe(context.Background(), audioPath, false)
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if result.Text != "Hello world" || len(result.Segments) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTranscribeSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	audioPath := filepath.Join(t.TempDir(), "rec.wav")
	if err := os.WriteFile(audioPath, []byte("x"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	p := NewProvider(Config{APIKey: "k", APIBaseURL: srv.URL}, zerolog.Nop())
	if _, err := p.Transcribe(context.Background(), audioPath, false); err == nil {
		t.Fatalf("expected API error")
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{APIKey: "k"}, zerolog.Nop())
	if _, err := p.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav"), false); err == nil {
		t.Fatalf("expected read error")
	}
}
