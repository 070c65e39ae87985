package stream

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
)

func recvMessage(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func recvOfType(t *testing.T, c *Client, msgType string) Message {
	t.Helper()
	for {
		msg := recvMessage(t, c)
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestRegistry_ApplyAssignsSequence(t *testing.T) {
	r := NewRegistry()

	seq, err := r.Apply(DataPushPayload{StreamID: "hw_mod_1.temp", Value: json.RawMessage(`23.5`), Timestamp: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = r.Apply(DataPushPayload{StreamID: "hw_mod_1.temp", Value: json.RawMessage(`24.0`), Timestamp: 2000})
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	v, ok := r.Get("hw_mod_1.temp")
	require.True(t, ok)
	assert.Equal(t, json.RawMessage(`24.0`), v.Value)
	assert.Equal(t, int64(2000), v.Timestamp)
}

func TestRegistry_RejectsBadPushes(t *testing.T) {
	r := NewRegistry()

	_, err := r.Apply(DataPushPayload{StreamID: "", Value: json.RawMessage(`1`)})
	assert.Error(t, err)

	_, err = r.Apply(DataPushPayload{StreamID: "s", Value: json.RawMessage(`{broken`)})
	assert.Error(t, err)

	assert.Zero(t, r.ServerSeq(), "rejected pushes do not advance the sequence")
}

func TestRegistry_StampsMissingTimestamp(t *testing.T) {
	r := NewRegistry()
	_, err := r.Apply(DataPushPayload{StreamID: "s", Value: json.RawMessage(`1`)})
	require.NoError(t, err)

	v, _ := r.Get("s")
	assert.NotZero(t, v.Timestamp)
}

func TestHub_WelcomeCarriesDocumentAndStreams(t *testing.T) {
	loaded := json.RawMessage(`{"mainItems":[],"gridSize":20}`)
	hub := NewHub(func(profileID string) (json.RawMessage, error) {
		assert.Equal(t, "prof_a", profileID)
		return loaded, nil
	}, nil)
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil, "user_1", "Aryan", "prof_a", "client_1")
	hub.Register(c)

	msg := recvOfType(t, c, TypeWelcome)
	var welcome WelcomePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &welcome))
	assert.Equal(t, "client_1", welcome.ClientID)
	assert.Empty(t, welcome.Streams)

	var doc document.Document
	require.NoError(t, json.Unmarshal(welcome.Document, &doc))
	assert.Equal(t, 20.0, doc.GridSize)
	assert.Empty(t, doc.MainItems)
}

func TestHub_DataPushAcksSenderBroadcastsOthers(t *testing.T) {
	hub := NewHub(nil, nil)
	go hub.Run()
	defer hub.Stop()

	sensor := NewClient(hub, nil, "user_hw", "Rig", "prof_a", "client_hw")
	ui := NewClient(hub, nil, "user_ui", "Dash", "prof_a", "client_ui")
	hub.Register(sensor)
	hub.Register(ui)
	recvOfType(t, sensor, TypeWelcome)
	recvOfType(t, ui, TypeWelcome)

	payload, _ := json.Marshal(DataPushPayload{StreamID: "hw_mod_1.rpm", Value: json.RawMessage(`1450`), Timestamp: 99})
	hub.handleMessage(sensor, &Message{Type: TypeDataPush, ProfileID: "prof_a", Payload: payload})

	ack := recvOfType(t, sensor, TypeDataAck)
	var ackPayload DataAckPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &ackPayload))
	assert.Equal(t, "hw_mod_1.rpm", ackPayload.StreamID)
	assert.Equal(t, int64(1), ackPayload.ServerSeq)

	bcast := recvOfType(t, ui, TypeDataBroadcast)
	var out DataBroadcastPayload
	require.NoError(t, json.Unmarshal(bcast.Payload, &out))
	assert.Equal(t, "hw_mod_1.rpm", out.StreamID)
	assert.Equal(t, json.RawMessage(`1450`), out.Value)
	assert.Equal(t, int64(99), out.Timestamp)
}

func TestHub_InvalidPushNacks(t *testing.T) {
	hub := NewHub(nil, nil)
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil, "user_hw", "Rig", "prof_a", "client_hw")
	hub.Register(c)
	recvOfType(t, c, TypeWelcome)

	payload, _ := json.Marshal(DataPushPayload{StreamID: "", Value: json.RawMessage(`1`)})
	hub.handleMessage(c, &Message{Type: TypeDataPush, ProfileID: "prof_a", Payload: payload})

	nack := recvOfType(t, c, TypeDataNack)
	var np DataNackPayload
	require.NoError(t, json.Unmarshal(nack.Payload, &np))
	assert.NotEmpty(t, np.Reason)
}

func TestHub_DocUpdateBroadcastsAndSavesOnStop(t *testing.T) {
	var mu sync.Mutex
	saved := map[string]json.RawMessage{}
	hub := NewHub(nil, func(profileID string, doc json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		saved[profileID] = doc
		return nil
	})
	go hub.Run()

	editor := NewClient(hub, nil, "user_a", "A", "prof_a", "client_a")
	watcher := NewClient(hub, nil, "user_b", "B", "prof_a", "client_b")
	hub.Register(editor)
	hub.Register(watcher)
	recvOfType(t, editor, TypeWelcome)
	recvOfType(t, watcher, TypeWelcome)

	doc := json.RawMessage(`{"mainItems":[{"id":"widget_a"}]}`)
	payload, _ := json.Marshal(DocUpdatePayload{Document: doc})
	hub.handleMessage(editor, &Message{Type: TypeDocUpdate, ProfileID: "prof_a", Payload: payload})

	syncMsg := recvOfType(t, watcher, TypeDocSync)
	var update DocUpdatePayload
	require.NoError(t, json.Unmarshal(syncMsg.Payload, &update))
	assert.JSONEq(t, string(doc), string(update.Document))

	hub.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, saved, "prof_a")

	var savedDoc document.Document
	require.NoError(t, json.Unmarshal(saved["prof_a"], &savedDoc))
	require.Len(t, savedDoc.MainItems, 1)
	assert.Equal(t, "widget_a", savedDoc.MainItems[0].ID)
}

func TestHub_CursorFanOutExcludesSender(t *testing.T) {
	hub := NewHub(nil, nil)
	go hub.Run()
	defer hub.Stop()

	a := NewClient(hub, nil, "user_a", "A", "prof_a", "client_a")
	b := NewClient(hub, nil, "user_b", "B", "prof_a", "client_b")
	hub.Register(a)
	hub.Register(b)
	recvOfType(t, a, TypeWelcome)
	recvOfType(t, b, TypeWelcome)

	payload, _ := json.Marshal(CursorPayload{Cursor: &CursorPos{X: 10, Y: 20}})
	hub.handleMessage(a, &Message{Type: TypeCursorUpdate, ProfileID: "prof_a", Payload: payload})

	msg := recvOfType(t, b, TypeCursorUpdate)
	assert.Equal(t, "user_a", msg.UserID)

	var cursor CursorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &cursor))
	require.NotNil(t, cursor.Cursor)
	assert.Equal(t, 10.0, cursor.Cursor.X)
	assert.Equal(t, "A", cursor.DisplayName, "server stamps the sender's display name")
}

func TestHub_RoomsAreIsolatedByProfile(t *testing.T) {
	hub := NewHub(nil, nil)
	go hub.Run()
	defer hub.Stop()

	a := NewClient(hub, nil, "user_a", "A", "prof_a", "client_a")
	b := NewClient(hub, nil, "user_b", "B", "prof_b", "client_b")
	hub.Register(a)
	hub.Register(b)
	recvOfType(t, a, TypeWelcome)
	recvOfType(t, b, TypeWelcome)

	payload, _ := json.Marshal(DataPushPayload{StreamID: "s", Value: json.RawMessage(`1`)})
	hub.handleMessage(a, &Message{Type: TypeDataPush, ProfileID: "prof_a", Payload: payload})
	recvOfType(t, a, TypeDataAck)

	select {
	case data := <-b.send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		t.Fatalf("client in another room received %s", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_OpSubmitAcksSenderBroadcastsOthers(t *testing.T) {
	var mu sync.Mutex
	saved := map[string]json.RawMessage{}
	hub := NewHub(nil, func(profileID string, doc json.RawMessage) error {
		mu.Lock()
		defer mu.Unlock()
		saved[profileID] = doc
		return nil
	})
	go hub.Run()

	editor := NewClient(hub, nil, "user_a", "A", "prof_a", "client_a")
	watcher := NewClient(hub, nil, "user_b", "B", "prof_a", "client_b")
	hub.Register(editor)
	hub.Register(watcher)
	recvOfType(t, editor, TypeWelcome)
	recvOfType(t, watcher, TypeWelcome)

	payload, _ := json.Marshal(OpSubmitPayload{Operation: Operation{
		Type: OpItemCreate,
		Kind: "widget",
		Item: json.RawMessage(`{"id":"widget_a","x":100,"y":100,"w":40,"h":40}`),
	}})
	hub.handleMessage(editor, &Message{Type: TypeOpSubmit, ProfileID: "prof_a", Payload: payload})

	ack := recvOfType(t, editor, TypeOpAck)
	var ackPayload OpAckPayload
	require.NoError(t, json.Unmarshal(ack.Payload, &ackPayload))
	assert.True(t, strings.HasPrefix(ackPayload.OperationID, "op_"), "server assigns an id when the client omits one")
	assert.Equal(t, int64(1), ackPayload.ServerSeq)
	assert.NotZero(t, ackPayload.ServerTimestamp)

	bcast := recvOfType(t, watcher, TypeOpBroadcast)
	var out OpBroadcastPayload
	require.NoError(t, json.Unmarshal(bcast.Payload, &out))
	assert.Equal(t, ackPayload.OperationID, out.Operation.ID)
	assert.Equal(t, OpItemCreate, out.Operation.Type)
	assert.Equal(t, int64(1), out.ServerSeq)

	hub.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, saved, "prof_a")

	var savedDoc document.Document
	require.NoError(t, json.Unmarshal(saved["prof_a"], &savedDoc))
	require.Len(t, savedDoc.MainItems, 1)
	assert.Equal(t, "widget_a", savedDoc.MainItems[0].ID)
}

func TestHub_RejectedOpNacks(t *testing.T) {
	hub := NewHub(nil, nil)
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil, "user_a", "A", "prof_a", "client_a")
	hub.Register(c)
	recvOfType(t, c, TypeWelcome)

	payload, _ := json.Marshal(OpSubmitPayload{Operation: Operation{
		ID:       "op_bad",
		Type:     OpItemMove,
		ItemID:   "widget_missing",
		Position: json.RawMessage(`{"x":0,"y":0}`),
	}})
	hub.handleMessage(c, &Message{Type: TypeOpSubmit, ProfileID: "prof_a", Payload: payload})

	nack := recvOfType(t, c, TypeOpNack)
	var np OpNackPayload
	require.NoError(t, json.Unmarshal(nack.Payload, &np))
	assert.Equal(t, "op_bad", np.OperationID)
	assert.NotEmpty(t, np.Reason)
}
