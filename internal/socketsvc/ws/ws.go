package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/quizwire/duel-services/internal/comm"
	"github.com/quizwire/duel-services/internal/socketsvc/broker"
	natsx "github.com/quizwire/duel-services/internal/nats"
)

// Ws tracks live connections and their room bindings. A room id is a match
// id; the duel service addresses pushes by room, never by raw connection.
type Ws struct {
	connMap sync.Map // socketId -> *websocket.Conn
	roomMap sync.Map // socketId -> matchId
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage handles a message from a web client.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "join-room":
		s.handleJoinRoom(socketId, message)
	case "leave-match":
		s.handleLeaveMatch(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

// handleJoinRoom binds the connection to a match room so pushes for that
// match reach this client.
func (s *Ws) handleJoinRoom(socketId string, msg *comm.WSMessage) {
	var payload comm.JoinRoom
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: malformed join-room payload %s", err)
		return
	}
	if payload.MatchId == "" {
		log.Error("Invalid join-room payload: missing match id")
		return
	}

	s.StoreRoom(socketId, payload.MatchId)
	log.Infof("socket %s joined room %s", socketId, payload.MatchId)
}

// handleLeaveMatch forwards an explicit departure to the duel service and
// drops the room binding.
func (s *Ws) handleLeaveMatch(socketId string, msg *comm.WSMessage) {
	roomId, ok := s.GetRoom(socketId)
	if !ok {
		// Fall back on the payload for clients that leave before re-joining
		// the room after a reload.
		var payload comm.LeaveMatch
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.MatchId == "" {
			log.Warnf("leave-match from socket %s with no room binding", socketId)
			return
		}
		roomId = payload.MatchId
	}

	data, err := json.Marshal(comm.LeaveMatch{MatchId: roomId})
	if err != nil {
		log.Errorf("Failed to marshal leave-match for NATS: %v", err)
		return
	}

	out := &comm.WSMessage{Type: "leave-match", Data: data, SocketId: socketId}
	bytes, err := json.Marshal(out)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(natsx.TopicSocketService, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", natsx.TopicSocketService, err)
		return
	}

	s.roomMap.Delete(socketId)
	log.Infof("socket %s left room %s", socketId, roomId)
}

// HandleDisconnect runs when a connection drops without an explicit leave.
// The duel service decides what the drop means for the bound match.
func (s *Ws) HandleDisconnect(socketId string) {
	if roomId, ok := s.GetRoom(socketId); ok {
		data, err := json.Marshal(comm.SocketClosed{SocketId: socketId, MatchId: roomId})
		if err == nil {
			out := &comm.WSMessage{Type: "socket-closed", Data: data, SocketId: socketId}
			if bytes, err := json.Marshal(out); err == nil {
				if err := s.Broker.Publish(natsx.TopicSocketService, bytes); err != nil {
					log.Errorf("Failed to publish socket-closed for %s: %v", socketId, err)
				}
			}
		}
	}

	s.connMap.Delete(socketId)
	s.roomMap.Delete(socketId)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

func (s *Ws) StoreRoom(socketId string, roomId string) {
	s.roomMap.Store(socketId, roomId)
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return room.(string), true
}

func (s *Ws) GetRoomSockets(roomId string) ([]string, bool) {
	var sockets []string
	found := false

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == roomId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}
