package ws

import (
	"encoding/json"
	"sync"
)

// mockSink captures every frame written to it.
type mockSink struct {
	id      string
	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	sendErr error
}

func (m *mockSink) write(_ int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, data)
	return nil
}

func (m *mockSink) writeJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return m.write(0, raw)
}

func (m *mockSink) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockSink) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	copy(out, m.frames)
	return out
}
