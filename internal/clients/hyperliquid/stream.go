package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	writeWait          = 10 * time.Second
	dialTimeout        = 30 * time.Second
	baseReconnectDelay = 2 * time.Second
	maxReconnectDelay  = 2 * time.Minute
)

// wsMessage is the envelope of every server push
type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// MidsStream keeps an allMids snapshot current over the websocket feed
type MidsStream struct {
	url string
	log zerolog.Logger
	now func() time.Time

	mu         sync.RWMutex
	mids       map[string]float64
	lastUpdate time.Time
	connected  bool
}

// NewMidsStream creates a stream against url. An empty url uses mainnet.
func NewMidsStream(url string, log zerolog.Logger) *MidsStream {
	if url == "" {
		url = DefaultWSURL
	}
	return &MidsStream{
		url:  url,
		log:  log.With().Str("component", "hyperliquid-stream").Logger(),
		now:  time.Now,
		mids: make(map[string]float64),
	}
}

// Snapshot returns a copy of the latest mids and when they arrived
func (s *MidsStream) Snapshot() (map[string]float64, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.mids))
	for coin, price := range s.mids {
		out[coin] = price
	}
	return out, s.lastUpdate
}

// Fresh returns the mids when the last push is younger than maxAge
func (s *MidsStream) Fresh(maxAge time.Duration) (map[string]float64, bool) {
	mids, at := s.Snapshot()
	if at.IsZero() || len(mids) == 0 || s.now().Sub(at) > maxAge {
		return nil, false
	}
	return mids, true
}

// Connected reports whether a websocket session is open
func (s *MidsStream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff after every failure
func (s *MidsStream) Run(ctx context.Context) {
	s.log.Info().Str("url", s.url).Msg("Starting allMids stream")
	delay := baseReconnectDelay

	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			s.log.Info().Msg("allMids stream stopped")
			return
		}
		if err != nil {
			s.log.Warn().Err(err).Dur("retry_in", delay).Msg("allMids stream disconnected")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// session runs one connection until it fails or ctx ends
func (s *MidsStream) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)

	if err := s.subscribe(ctx, conn); err != nil {
		return err
	}

	s.setConnected(true)
	defer s.setConnected(false)
	s.log.Info().Msg("Subscribed to allMids")

	for {
		msgType, message, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return fmt.Errorf("read failed: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := s.handleMessage(message); err != nil {
			s.log.Debug().Err(err).Msg("Failed to handle stream message")
		}
	}
}

func (s *MidsStream) subscribe(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(map[string]interface{}{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "allMids"},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	return nil
}

func (s *MidsStream) handleMessage(message []byte) error {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Channel != "allMids" {
		return nil
	}

	var payload struct {
		Mids map[string]string `json:"mids"`
	}
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return fmt.Errorf("failed to parse mids: %w", err)
	}

	mids := ParseMids(payload.Mids, s.log)
	if len(mids) == 0 {
		return nil
	}

	s.mu.Lock()
	for coin, price := range mids {
		s.mids[coin] = price
	}
	s.lastUpdate = s.now()
	s.mu.Unlock()
	return nil
}

func (s *MidsStream) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}
