package stream

import (
	"encoding/json"
	"log/slog"
	"sync"
)

type CursorManager struct {
	mu      sync.RWMutex
	cursors map[string]*CursorPayload // userID -> cursor
}

func NewCursorManager() *CursorManager {
	return &CursorManager{
		cursors: make(map[string]*CursorPayload),
	}
}

func (cm *CursorManager) Update(userID string, p *CursorPayload) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cursors[userID] = p
}

func (cm *CursorManager) Remove(userID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.cursors, userID)
}

func (cm *CursorManager) GetAll() map[string]*CursorPayload {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	result := make(map[string]*CursorPayload, len(cm.cursors))
	for k, v := range cm.cursors {
		result[k] = v
	}
	return result
}

func (cm *CursorManager) StateMessage() *Message {
	all := cm.GetAll()
	payload, err := json.Marshal(CursorStatePayload{Cursors: all})
	if err != nil {
		slog.Error("marshal cursor state", "error", err)
		return nil
	}
	return &Message{
		Type:    TypeCursorState,
		Payload: payload,
	}
}
