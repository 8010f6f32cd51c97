package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"meetscribe/internal/domain"
)

// batchSegment mirrors the vendor response shape. The API returns
// speaker_id; speaker is accepted as a legacy alias.
type batchSegment struct {
	Text      string  `json:"text"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	SpeakerID string  `json:"speaker_id"`
	Speaker   string  `json:"speaker"`
}

func (s batchSegment) speaker() string {
	if s.SpeakerID != "" {
		return s.SpeakerID
	}
	return s.Speaker
}

type batchResponse struct {
	Text     string         `json:"text"`
	Segments []batchSegment `json:"segments"`
}

// Transcribe uploads a full archived recording for batch transcription with
// segment-granularity timestamps and optional diarization. Used only for the
// finishing pass after a recording stops.
func (p *Provider) Transcribe(ctx context.Context, audioPath string, diarize bool) (domain.BatchResult, error) {
	fileBytes, err := os.ReadFile(audioPath)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("failed to read %s: %w", audioPath, err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("model", p.cfg.BatchModel); err != nil {
		return domain.BatchResult{}, err
	}
	if err := form.WriteField("timestamp_granularities", "segment"); err != nil {
		return domain.BatchResult{}, err
	}
	if diarize {
		if err := form.WriteField("diarize", "true"); err != nil {
			return domain.BatchResult{}, err
		}
	}
	if p.cfg.Language != "" {
		if err := form.WriteField("language", p.cfg.Language); err != nil {
			return domain.BatchResult{}, err
		}
	}
	part, err := form.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return domain.BatchResult{}, err
	}
	if _, err := part.Write(fileBytes); err != nil {
		return domain.BatchResult{}, err
	}
	if err := form.Close(); err != nil {
		return domain.BatchResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return domain.BatchResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := p.http.Do(req)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("batch transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.BatchResult{}, fmt.Errorf("batch transcription API error %d: %s", resp.StatusCode, detail)
	}

	var decoded batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.BatchResult{}, fmt.Errorf("failed to decode batch response: %w", err)
	}

	result := domain.BatchResult{Text: decoded.Text}
	for _, seg := range decoded.Segments {
		result.Segments = append(result.Segments, domain.Segment{
			Text:     seg.Text,
			Start:    seg.Start,
			End:      seg.End,
			Speaker:  seg.speaker(),
			Diarized: true,
		})
	}
	return result, nil
}
