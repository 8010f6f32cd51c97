// Package mistral implements the vendor transcription endpoints: the
// realtime websocket session, the batch re-transcription upload, and the
// chat-based title/summary generation.
package mistral

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"meetscribe/internal/domain"
	"meetscribe/internal/pcm"
	"meetscribe/internal/ports"
)

const (
	defaultAPIBaseURL = "https://api.mistral.ai/v1"

	defaultRealtimeModel = "voxtral-mini-transcribe-realtime-2602"
	defaultBatchModel    = "voxtral-mini-latest"
	defaultChatModel     = "mistral-small-latest"

	// canonicalSampleRate is the only rate the realtime endpoint accepts;
	// everything is resampled to it before hitting the wire.
	canonicalSampleRate = 16000
)

// ErrHandshakeFailed means the transport closed or the server reported an
// error before both handshake acknowledgments arrived.
var ErrHandshakeFailed = errors.New("realtime handshake failed")

// Config controls the Mistral API endpoints and models.
type Config struct {
	APIKey        string
	APIBaseURL    string
	RealtimeModel string
	BatchModel    string
	ChatModel     string
	// Language is an optional hint for the batch pass; empty means
	// auto-detect.
	Language string
}

// Provider implements ports.RealtimeProvider, ports.BatchTranscriber and
// ports.Summarizer against the Mistral API.
type Provider struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

func NewProvider(cfg Config, log zerolog.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.RealtimeModel == "" {
		cfg.RealtimeModel = defaultRealtimeModel
	}
	if cfg.BatchModel == "" {
		cfg.BatchModel = defaultBatchModel
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	return &Provider{
		cfg:  cfg,
		http: &http.Client{},
		log:  log.With().Str("component", "mistral").Logger(),
	}
}

// wsIncoming covers every inbound realtime message shape.
type wsIncoming struct {
	Type          string          `json:"type"`
	Text          string          `json:"text"`
	AudioLanguage string          `json:"audio_language"`
	Start         float64         `json:"start"`
	End           float64         `json:"end"`
	Error         json.RawMessage `json:"error"`
}

type sessionUpdateMsg struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	AudioFormat audioFormat `json:"audio_format"`
}

type audioFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type appendAudioMsg struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type endAudioMsg struct {
	Type string `json:"type"`
}

// Connect opens the realtime websocket and performs the two-phase handshake:
// wait for session.created, declare the canonical audio format, wait for
// session.updated. Audio is only ever sent into a session the server has
// acknowledged.
func (p *Provider) Connect(ctx context.Context, sourceSampleRate int) (ports.RealtimeSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("mistral API key is not configured")
	}

	wsURL, err := buildRealtimeURL(p.cfg.APIBaseURL, p.cfg.RealtimeModel)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+p.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	if err := awaitAck(conn, "session.created"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	update := sessionUpdateMsg{
		Type: "session.update",
		Session: sessionConfig{
			AudioFormat: audioFormat{Encoding: "pcm_s16le", SampleRate: canonicalSampleRate},
		},
	}
	if err := conn.WriteJSON(update); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to send session.update: %v", ErrHandshakeFailed, err)
	}
	if err := awaitAck(conn, "session.updated"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	p.log.Info().Int("sourceRate", sourceSampleRate).Msg("realtime session configured")

	if sourceSampleRate <= 0 {
		sourceSampleRate = canonicalSampleRate
	}
	session := &realtimeSession{
		conn:       conn,
		log:        p.log,
		sourceRate: sourceSampleRate,
		events:     make(chan domain.TranscriptionEvent, 64),
		audio:      make(chan []int16, 256),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.done)
		_ = conn.Close()
	}()

	return session, nil
}

// awaitAck drains inbound messages until the expected acknowledgment
// arrives. Unparseable messages during the handshake are ignored; a server
// error event or transport closure before the ack is fatal.
func awaitAck(conn *websocket.Conn, ackType string) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: transport closed before %s: %v", ErrHandshakeFailed, ackType, err)
		}
		var msg wsIncoming
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Type == "" {
			continue
		}
		switch msg.Type {
		case ackType:
			return nil
		case "error":
			return fmt.Errorf("%w: server rejected session: %s", ErrHandshakeFailed, string(msg.Error))
		}
	}
}

type realtimeSession struct {
	conn       *websocket.Conn
	log        zerolog.Logger
	sourceRate int

	events chan domain.TranscriptionEvent
	audio  chan []int16
	// closing is shut by Close and releases a reader blocked on a slow
	// event consumer; done is shut once both loops have exited.
	closing chan struct{}
	done    chan struct{}

	wg sync.WaitGroup

	endOnce   sync.Once
	closeOnce sync.Once

	sendMu     sync.RWMutex
	sendClosed bool
}

// SendAudio enqueues a chunk for FIFO transmission. It never blocks past
// enqueueing: chunks sent after End, after session teardown, or into a full
// queue are dropped.
func (s *realtimeSession) SendAudio(samples []int16) {
	if len(samples) == 0 {
		return
	}

	// The read lock is held across the enqueue so End cannot close the
	// queue mid-send; the send itself never blocks.
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return
	}

	copied := append([]int16(nil), samples...)
	select {
	case s.audio <- copied:
	case <-s.done:
	default:
		s.log.Warn().Int("samples", len(samples)).Msg("outbound audio queue full, dropping chunk")
	}
}

// End marks end-of-audio; the writer transmits the end envelope after the
// queue drains and then terminates.
func (s *realtimeSession) End() {
	s.endOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
}

func (s *realtimeSession) Events() <-chan domain.TranscriptionEvent {
	return s.events
}

// Close tears the session down without waiting for the server's done event.
func (s *realtimeSession) Close() error {
	s.closeOnce.Do(func() {
		s.End()
		close(s.closing)
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

func (s *realtimeSession) writeLoop() {
	defer s.wg.Done()

	for samples := range s.audio {
		out := pcm.ResampleLinear(samples, s.sourceRate, canonicalSampleRate)
		payload := base64.StdEncoding.EncodeToString(pcm.Int16ToBytes(out))
		if err := s.conn.WriteJSON(appendAudioMsg{Type: "input_audio.append", Audio: payload}); err != nil {
			s.log.Debug().Err(err).Msg("audio send failed")
			return
		}
	}

	if err := s.conn.WriteJSON(endAudioMsg{Type: "input_audio.end"}); err != nil {
		s.log.Debug().Err(err).Msg("end-of-audio send failed")
	}
}

func (s *realtimeSession) readLoop() {
	// The reader owns the event channel; it closes as soon as the stream
	// ends, even while the writer is still draining outbound audio.
	defer s.wg.Done()
	defer close(s.events)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				s.emit(domain.TranscriptionEvent{Kind: domain.EventError, Message: fmt.Sprintf("transport error: %v", err)})
			}
			return
		}

		var msg wsIncoming
		if err := json.Unmarshal(payload, &msg); err != nil || msg.Type == "" {
			s.log.Debug().Str("payload", string(payload)).Msg("discarding unparseable realtime message")
			continue
		}

		switch msg.Type {
		case "transcription.language":
			s.emit(domain.TranscriptionEvent{Kind: domain.EventLanguage, Language: msg.AudioLanguage})
		case "transcription.text.delta":
			s.emit(domain.TranscriptionEvent{Kind: domain.EventDelta, Text: msg.Text})
		case "transcription.segment":
			s.emit(domain.TranscriptionEvent{Kind: domain.EventSegment, Text: msg.Text, Start: msg.Start, End: msg.End})
		case "transcription.done":
			s.emit(domain.TranscriptionEvent{Kind: domain.EventDone, Text: msg.Text})
			return
		case "error":
			s.emit(domain.TranscriptionEvent{Kind: domain.EventError, Message: string(msg.Error)})
			return
		default:
			// session.updated and future shapes.
		}
	}
}

// emit delivers an event to the consumer, blocking until there is room.
// Transcript events must not be dropped on backpressure; Close is the only
// way out once the session is being torn down.
func (s *realtimeSession) emit(event domain.TranscriptionEvent) {
	select {
	case s.events <- event:
	case <-s.closing:
	}
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	)
}

// buildRealtimeURL derives the websocket endpoint from the API base,
// rewriting an http(s) scheme to ws(s).
func buildRealtimeURL(base, model string) (string, error) {
	base = strings.TrimSpace(base)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + "/audio/transcriptions/realtime")
	if err != nil {
		return "", fmt.Errorf("invalid API base URL: %w", err)
	}
	query := u.Query()
	query.Set("model", model)
	u.RawQuery = query.Encode()
	return u.String(), nil
}
