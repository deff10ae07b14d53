package assemblyai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"memoai/internal/domain"
	"memoai/internal/ports"
)

// Config controls the AssemblyAI realtime websocket settings.
type Config struct {
	APIKey                       string
	Endpoint                     string
	Language                     string
	FormatTurns                  bool
	EndOfTurnConfidenceThreshold float64
	MinEndOfTurnSilenceMs        int
	MaxTurnSilenceMs             int
}

// Provider implements ports.TranscriptionProvider for AssemblyAI v3
// realtime streaming.
type Provider struct {
	cfg Config
	log *zap.Logger
}

func NewProvider(cfg Config, log *zap.Logger) *Provider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "wss://streaming.assemblyai.com/v3/ws"
	}
	if cfg.EndOfTurnConfidenceThreshold <= 0 {
		cfg.EndOfTurnConfidenceThreshold = 0.7
	}
	if cfg.MinEndOfTurnSilenceMs <= 0 {
		cfg.MinEndOfTurnSilenceMs = 160
	}
	if cfg.MaxTurnSilenceMs <= 0 {
		cfg.MaxTurnSilenceMs = 2400
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{cfg: cfg, log: log}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("ASSEMBLYAI_API_KEY is not configured")
	}

	wsURL, err := buildStreamURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AssemblyAI websocket: %w", err)
	}

	session := &streamingSession{
		conn:       conn,
		log:        p.log,
		events:     make(chan domain.RecognitionEvent, 64),
		audio:      make(chan []byte, 32),
		sendClosed: make(chan struct{}),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		<-ctx.Done()
		_ = session.Close()
	}()

	return session, nil
}

type streamingSession struct {
	conn *websocket.Conn
	log  *zap.Logger

	events chan domain.RecognitionEvent
	audio  chan []byte

	// sendClosed ends the outbound half, closing arms teardown of the whole
	// session, done closes once both loops have exited. The audio channel
	// itself is never closed, so a SendAudio racing CloseSend cannot panic.
	sendClosed chan struct{}
	closing    chan struct{}
	done       chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	select {
	case <-s.sendClosed:
		return errors.New("audio stream is already closed")
	default:
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.sendClosed:
		return errors.New("audio stream is already closed")
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("session closed")
	}
}

func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		close(s.sendClosed)
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.RecognitionEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		close(s.closing)
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()

	for {
		select {
		case chunk := <-s.audio:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.setErr(fmt.Errorf("failed to send audio: %w", err))
				return
			}
		case <-s.sendClosed:
			// Flush chunks that were enqueued before the close won the race.
			for {
				select {
				case chunk := <-s.audio:
					if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
						s.setErr(fmt.Errorf("failed to send audio: %w", err))
						return
					}
				default:
					if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Terminate"}`)); err != nil {
						s.setErr(fmt.Errorf("failed to terminate stream: %w", err))
					}
					return
				}
			}
		}
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var message realtimeMessage
		if err := json.Unmarshal(payload, &message); err != nil {
			s.log.Warn("dropping malformed provider message", zap.Error(err))
			continue
		}

		event, action := classify(message)
		switch action {
		case actionEmit:
			s.emit(event)
		case actionTerminate:
			return
		case actionFail:
			detail := strings.TrimSpace(message.Error)
			if detail == "" {
				detail = "provider returned an unknown error"
			}
			s.setErr(errors.New(detail))
			return
		case actionDrop:
			s.log.Debug("ignoring provider message", zap.String("type", message.Type))
		}
	}
}

// emit delivers exactly one event per inbound provider message. When the
// buffer is full it waits for the consumer rather than dropping a final;
// a session being torn down unblocks it.
func (s *streamingSession) emit(event domain.RecognitionEvent) {
	select {
	case s.events <- event:
	case <-s.closing:
	}
}

type streamAction int

const (
	actionDrop streamAction = iota
	actionEmit
	actionTerminate
	actionFail
)

// classify maps one decoded provider message onto the recognition event
// union. Anything it does not recognize is dropped, never surfaced.
func classify(message realtimeMessage) (domain.RecognitionEvent, streamAction) {
	switch message.Type {
	case "PartialTranscript":
		text := message.Text
		if text == "" {
			text = message.Transcript
		}
		return domain.RecognitionEvent{
			Kind:   domain.RecognitionKindPartial,
			Text:   text,
			TurnID: message.turnIdentifier(),
		}, actionEmit
	case "Turn":
		text := message.Transcript
		if text == "" {
			text = message.Text
		}
		if strings.TrimSpace(text) == "" {
			return domain.RecognitionEvent{}, actionDrop
		}
		return domain.RecognitionEvent{
			Kind:   domain.RecognitionKindFinal,
			Text:   text,
			TurnID: message.turnIdentifier(),
		}, actionEmit
	case "Begin":
		return domain.RecognitionEvent{}, actionDrop
	case "Termination":
		return domain.RecognitionEvent{}, actionTerminate
	case "Error":
		return domain.RecognitionEvent{}, actionFail
	default:
		return domain.RecognitionEvent{}, actionDrop
	}
}

// realtimeMessage is the tagged union of inbound provider messages. Fields
// not listed here are ignored on decode.
type realtimeMessage struct {
	Type            string     `json:"type"`
	Text            string     `json:"text"`
	Transcript      string     `json:"transcript"`
	TurnID          flexibleID `json:"turn_id"`
	TurnOrder       flexibleID `json:"turn_order"`
	TurnIsFormatted bool       `json:"turn_is_formatted"`
	EndOfTurn       bool       `json:"end_of_turn"`
	Error           string     `json:"error"`
}

func (m realtimeMessage) turnIdentifier() string {
	if m.TurnID != "" {
		return string(m.TurnID)
	}
	return string(m.TurnOrder)
}

// flexibleID accepts the string or numeric turn identifiers different
// provider versions emit.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

func buildStreamURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.Endpoint)
	if base == "" {
		base = "wss://streaming.assemblyai.com/v3/ws"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	streamURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid AssemblyAI endpoint: %w", err)
	}

	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}

	query := streamURL.Query()
	query.Set("token", providerCfg.APIKey)
	query.Set("sample_rate", strconv.Itoa(streamCfg.SampleRate))
	query.Set("format_turns", strconv.FormatBool(providerCfg.FormatTurns))
	query.Set("end_of_turn_confidence_threshold", strconv.FormatFloat(providerCfg.EndOfTurnConfidenceThreshold, 'f', -1, 64))
	query.Set("min_end_of_turn_silence_when_confident", strconv.Itoa(providerCfg.MinEndOfTurnSilenceMs))
	query.Set("max_turn_silence", strconv.Itoa(providerCfg.MaxTurnSilenceMs))
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	streamURL.RawQuery = query.Encode()
	return streamURL.String(), nil
}
