package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/geometry"
	"github.com/AryanRai/AriesUI-sub001/internal/typeid"
)

// DocumentLoader fetches a profile's last saved layout document.
type DocumentLoader func(profileID string) (json.RawMessage, error)

// DocumentSaver persists a profile's layout document.
type DocumentSaver func(profileID string, doc json.RawMessage) error

type Room struct {
	profileID string
	clients   map[string]*Client // clientID -> client
	cursors   *CursorManager
	registry  *Registry

	state    *DocState
	docDirty bool
}

func NewRoom(profileID string) *Room {
	return &Room{
		profileID: profileID,
		clients:   make(map[string]*Client),
		cursors:   NewCursorManager(),
		registry:  NewRegistry(),
		state: NewDocState(document.Document{
			GridSize: geometry.DefaultGridSize,
			Viewport: document.Viewport{Zoom: 1},
		}),
	}
}

// Hub routes clients into per-profile rooms. Each room carries the latest
// stream values and the profile's layout document; the document is loaded
// when the room opens and saved when the room empties or the hub stops.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // profileID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan chan struct{}

	loader DocumentLoader
	saver  DocumentSaver
}

func NewHub(loader DocumentLoader, saver DocumentSaver) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan chan struct{}),
		loader:     loader,
		saver:      saver,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case done := <-h.stop:
			h.saveAllRooms()
			close(done)
			return
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop flushes every room's dirty document and halts the run loop.
func (h *Hub) Stop() {
	done := make(chan struct{})
	h.stop <- done
	<-done
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProfileID]
	if !ok {
		room = NewRoom(client.ProfileID)
		if h.loader != nil {
			raw, err := h.loader(client.ProfileID)
			if err != nil {
				slog.Warn("load profile document", "profile", client.ProfileID, "error", err)
			} else if len(raw) > 0 {
				var doc document.Document
				if err := json.Unmarshal(raw, &doc); err != nil {
					slog.Warn("parse profile document", "profile", client.ProfileID, "error", err)
				} else {
					room.state.Replace(doc)
				}
			}
		}
		h.rooms[client.ProfileID] = room
	}
	room.clients[client.ClientID] = client
	welcome := WelcomePayload{
		ClientID:  client.ClientID,
		Document:  room.state.MarshalDocument(),
		Streams:   room.registry.Snapshot(),
		ServerSeq: room.registry.ServerSeq(),
	}
	h.mu.Unlock()

	payload, _ := json.Marshal(welcome)
	client.Send(&Message{Type: TypeWelcome, Payload: payload})

	if stateMsg := room.cursors.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	h.broadcastToRoom(client.ProfileID, &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "profile", client.ProfileID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ProfileID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	close(client.send)
	room.cursors.Remove(client.UserID)

	if len(room.clients) == 0 {
		h.saveRoomLocked(room)
		delete(h.rooms, client.ProfileID)
	}
	h.mu.Unlock()

	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		UserID: client.UserID,
	})
	h.broadcastToRoom(client.ProfileID, &Message{
		Type:    TypePresenceLeave,
		UserID:  client.UserID,
		Payload: leavePayload,
	}, "")

	slog.Info("client left", "user", client.UserID, "profile", client.ProfileID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypeCursorUpdate:
		h.handleCursorUpdate(sender, msg)
	case TypeDataPush:
		h.handleDataPush(sender, msg)
	case TypeOpSubmit:
		h.handleOpSubmit(sender, msg)
	case TypeDocUpdate:
		h.handleDocUpdate(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
	}
}

func (h *Hub) handleCursorUpdate(sender *Client, msg *Message) {
	var cursor CursorPayload
	if err := json.Unmarshal(msg.Payload, &cursor); err != nil {
		slog.Warn("invalid cursor payload", "error", err)
		return
	}

	cursor.DisplayName = sender.DisplayName

	h.mu.RLock()
	room, ok := h.rooms[sender.ProfileID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.cursors.Update(sender.UserID, &cursor)

	outPayload, _ := json.Marshal(cursor)
	h.broadcastToRoom(sender.ProfileID, &Message{
		Type:    TypeCursorUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)
}

// handleDataPush validates a telemetry sample against the room registry,
// acks the sender with the assigned sequence and fans the sample out to the
// room's other clients.
func (h *Hub) handleDataPush(sender *Client, msg *Message) {
	var push DataPushPayload
	if err := json.Unmarshal(msg.Payload, &push); err != nil {
		h.sendNack(sender, "", "invalid payload")
		return
	}

	h.mu.RLock()
	room, ok := h.rooms[sender.ProfileID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	seq, err := room.registry.Apply(push)
	if err != nil {
		h.sendNack(sender, push.StreamID, err.Error())
		return
	}

	stored, _ := room.registry.Get(push.StreamID)

	ackPayload, _ := json.Marshal(DataAckPayload{StreamID: push.StreamID, ServerSeq: seq})
	sender.Send(&Message{Type: TypeDataAck, Seq: seq, Payload: ackPayload})

	outPayload, _ := json.Marshal(DataBroadcastPayload{
		StreamID:  push.StreamID,
		Value:     stored.Value,
		Timestamp: stored.Timestamp,
		ServerSeq: seq,
	})
	h.broadcastToRoom(sender.ProfileID, &Message{
		Type:    TypeDataBroadcast,
		UserID:  sender.UserID,
		Seq:     seq,
		Payload: outPayload,
	}, sender.ClientID)
}

// handleOpSubmit applies one grid operation to the room's document, acks
// the sender with the assigned sequence and fans the operation out to the
// room's other clients.
func (h *Hub) handleOpSubmit(sender *Client, msg *Message) {
	var submit OpSubmitPayload
	if err := json.Unmarshal(msg.Payload, &submit); err != nil {
		h.sendOpNack(sender, "", "invalid payload")
		return
	}
	op := submit.Operation
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}

	h.mu.RLock()
	room, ok := h.rooms[sender.ProfileID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	seq, err := room.state.Apply(op)
	if err != nil {
		h.sendOpNack(sender, op.ID, err.Error())
		return
	}

	h.mu.Lock()
	room.docDirty = true
	h.mu.Unlock()

	ackPayload, _ := json.Marshal(OpAckPayload{
		OperationID:     op.ID,
		ServerSeq:       seq,
		ServerTimestamp: time.Now().UnixMilli(),
	})
	sender.Send(&Message{Type: TypeOpAck, Seq: seq, Payload: ackPayload})

	outPayload, _ := json.Marshal(OpBroadcastPayload{Operation: op, ServerSeq: seq})
	h.broadcastToRoom(sender.ProfileID, &Message{
		Type:    TypeOpBroadcast,
		UserID:  sender.UserID,
		Seq:     seq,
		Payload: outPayload,
	}, sender.ClientID)
}

func (h *Hub) sendOpNack(c *Client, opID, reason string) {
	payload, _ := json.Marshal(OpNackPayload{OperationID: opID, Reason: reason})
	c.Send(&Message{Type: TypeOpNack, Payload: payload})
}

func (h *Hub) handleDocUpdate(sender *Client, msg *Message) {
	var update DocUpdatePayload
	if err := json.Unmarshal(msg.Payload, &update); err != nil || len(update.Document) == 0 {
		slog.Warn("invalid doc update", "user", sender.UserID)
		return
	}
	var doc document.Document
	if err := json.Unmarshal(update.Document, &doc); err != nil {
		slog.Warn("invalid doc update", "user", sender.UserID, "error", err)
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[sender.ProfileID]
	if ok {
		room.state.Replace(doc)
		room.docDirty = true
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	outPayload, _ := json.Marshal(update)
	h.broadcastToRoom(sender.ProfileID, &Message{
		Type:    TypeDocSync,
		UserID:  sender.UserID,
		Payload: outPayload,
	}, sender.ClientID)
}

func (h *Hub) sendNack(c *Client, streamID, reason string) {
	payload, _ := json.Marshal(DataNackPayload{StreamID: streamID, Reason: reason})
	c.Send(&Message{Type: TypeDataNack, Payload: payload})
}

func (h *Hub) broadcastToRoom(profileID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[profileID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func (h *Hub) saveRoomLocked(room *Room) {
	if !room.docDirty || h.saver == nil {
		return
	}
	if err := h.saver(room.profileID, room.state.MarshalDocument()); err != nil {
		slog.Error("save profile document", "profile", room.profileID, "error", err)
		return
	}
	room.docDirty = false
}

// RunAutoSave periodically flushes dirty room documents so a crash loses at
// most one interval of edits.
func (h *Hub) RunAutoSave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.saveAllRooms()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) saveAllRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		h.saveRoomLocked(room)
	}
}
