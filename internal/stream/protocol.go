package stream

import "encoding/json"

type Message struct {
	Type      string          `json:"type"`
	ProfileID string          `json:"profileId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	// Connection
	TypeWelcome = "welcome"
	TypeError   = "error"

	// Presence
	TypeCursorUpdate  = "cursor.update"
	TypeCursorState   = "cursor.state"
	TypePresenceJoin  = "presence.join"
	TypePresenceLeave = "presence.leave"

	// Live telemetry
	TypeDataPush      = "data.push"
	TypeDataAck       = "data.ack"
	TypeDataNack      = "data.nack"
	TypeDataBroadcast = "data.broadcast"

	// Grid operations
	TypeOpSubmit    = "op.submit"
	TypeOpAck       = "op.ack"
	TypeOpNack      = "op.nack"
	TypeOpBroadcast = "op.broadcast"

	// Layout sync
	TypeDocUpdate = "doc.update"
	TypeDocSync   = "doc.sync"
)

// WelcomePayload is sent once on connect: the profile's last saved layout
// plus the latest value of every known stream, so a client renders without a
// second round trip.
type WelcomePayload struct {
	ClientID  string                 `json:"clientId"`
	Document  json.RawMessage        `json:"document,omitempty"`
	Streams   map[string]StreamValue `json:"streams"`
	ServerSeq int64                  `json:"serverSeq"`
}

// DataPushPayload carries one telemetry sample from a hardware client.
type DataPushPayload struct {
	StreamID  string          `json:"streamId"`
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// DataAckPayload confirms a push with its assigned server sequence.
type DataAckPayload struct {
	StreamID  string `json:"streamId"`
	ServerSeq int64  `json:"serverSeq"`
}

// DataNackPayload rejects a push.
type DataNackPayload struct {
	StreamID string `json:"streamId,omitempty"`
	Reason   string `json:"reason"`
}

// DataBroadcastPayload fans a push out to the room's UI clients.
type DataBroadcastPayload struct {
	StreamID  string          `json:"streamId"`
	Value     json.RawMessage `json:"value"`
	Timestamp int64           `json:"timestamp"`
	ServerSeq int64           `json:"serverSeq"`
}

// OpSubmitPayload carries one grid operation from an editing client.
type OpSubmitPayload struct {
	Operation Operation `json:"operation"`
}

// OpAckPayload confirms an applied operation with its assigned sequence.
type OpAckPayload struct {
	OperationID     string `json:"operationId"`
	ServerSeq       int64  `json:"serverSeq"`
	ServerTimestamp int64  `json:"serverTimestamp"`
}

// OpNackPayload rejects an operation.
type OpNackPayload struct {
	OperationID string `json:"operationId,omitempty"`
	Reason      string `json:"reason"`
}

// OpBroadcastPayload fans an applied operation out to the room's other
// clients.
type OpBroadcastPayload struct {
	Operation Operation `json:"operation"`
	ServerSeq int64     `json:"serverSeq"`
}

// DocUpdatePayload carries a full layout document from an editing client.
type DocUpdatePayload struct {
	Document json.RawMessage `json:"document"`
}

// CursorPayload is a collaborator's pointer in world coordinates, plus their
// current selection.
type CursorPayload struct {
	Cursor      *CursorPos `json:"cursor,omitempty"`
	Selection   []string   `json:"selection,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
}

type CursorPos struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CursorStatePayload struct {
	Cursors map[string]*CursorPayload `json:"cursors"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
