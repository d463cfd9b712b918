package cloud

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// LokutorTTS streams synthesized speech over a persistent websocket:
// a JSON synthesis request, binary audio frames decoded into []int16
// PCM, and "EOS"/"ERR:" text sentinels marking the end of the stream
// or a server-side failure. Abort() lets the scheduler cut synthesis
// short on barge-in.
type LokutorTTS struct {
	apiKey string
	host   string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewLokutorTTS(apiKey string) *LokutorTTS {
	return &LokutorTTS{apiKey: apiKey, host: "api.lokutor.com"}
}

func (t *LokutorTTS) Name() string { return "lokutor" }

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	u := url.URL{Scheme: "wss", Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}
	t.conn = conn
	return conn, nil
}

func (t *LokutorTTS) StreamSynthesize(ctx context.Context, text string, voice string, onChunk func([]int16) error) error {
	conn, err := t.getConn(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	req := map[string]interface{}{
		"text":    text,
		"voice":   voice,
		"speed":   1.05,
		"steps":   5,
		"version": "versa-1.0",
	}
	writeErr := wsjson.Write(ctx, conn, req)
	t.mu.Unlock()

	if writeErr != nil {
		t.invalidate(conn)
		return fmt.Errorf("failed to send synthesis request: %w", writeErr)
	}

	for {
		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			t.invalidate(conn)
			return fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := onChunk(bytesToInt16(payload)); err != nil {
				return err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *LokutorTTS) invalidate(stale *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == stale {
		t.conn.Close(websocket.StatusAbnormalClosure, "stream error")
		t.conn = nil
	}
}

// Abort closes the active connection, forcibly terminating any
// in-flight StreamSynthesize call (its next conn.Read returns an
// error), and clears state so the next call reconnects cleanly.
func (t *LokutorTTS) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close(websocket.StatusNormalClosure, "aborted")
	t.conn = nil
	return err
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}
