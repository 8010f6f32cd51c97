package audio

import (
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// Archive writes full-fidelity recordings to disk as mono 16-bit WAV files,
// one per recording id.
type Archive struct {
	dir string
	log zerolog.Logger
}

func NewArchive(dir string, log zerolog.Logger) *Archive {
	return &Archive{dir: dir, log: log.With().Str("component", "archive").Logger()}
}

// Save persists the accumulated samples and returns the written path.
func (a *Archive) Save(recordingID string, samples []int16, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		return "", fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	path := filepath.Join(a.dir, recordingID+".wav")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return "", fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize wav: %w", err)
	}

	a.log.Info().Str("path", path).Int("samples", len(samples)).Msg("recording archived")
	return path, nil
}
