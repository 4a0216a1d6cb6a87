package comm

import (
	"encoding/json"
)

// WSMessage is the envelope for everything that crosses a websocket or a NATS
// topic between the services. RoomId addresses a match room, SocketId a single
// client connection.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join-room", "match-update"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
	RoomId   string          `json:"roomid,omitempty"`
}

// JoinRoom is sent by a client right after it learned its match id.
type JoinRoom struct {
	MatchId string `json:"match_id"`
}

// LeaveMatch is an explicit departure (quit button), as opposed to a dropped
// connection.
type LeaveMatch struct {
	MatchId string `json:"match_id"`
}

// SocketClosed is published by socketsvc when a connection bound to a room
// goes away without an explicit leave.
type SocketClosed struct {
	SocketId string `json:"socketid"`
	MatchId  string `json:"match_id"`
}

// PresenceRequest asks socketsvc whether a connection is still live.
type PresenceRequest struct {
	SocketId string `json:"socketid"`
}

type PresenceReply struct {
	Online bool `json:"online"`
}
