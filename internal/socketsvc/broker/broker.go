package broker

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/quizwire/duel-services/internal/comm"
)

// Broker relays duel-service pushes to websocket clients and answers
// presence queries from its connection map.
type Broker struct {
	Conn           *nats.Conn
	GetConnection  func(string) (*websocket.Conn, bool)
	GetRoomSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncGetConnection func(string) (*websocket.Conn, bool), fncGetRoomSockets func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:           conn,
		GetConnection:  fncGetConnection,
		GetRoomSockets: fncGetRoomSockets,
	}
}

// Subscribe consumes pushes from the duel service.
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// SubscribePresence answers "is this connection still live" queries during
// matchmaking.
func (b *Broker) SubscribePresence(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, func(msg *nats.Msg) {
		var req comm.PresenceRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("invalid presence request: %s", err)
			return
		}

		_, online := b.GetConnection(req.SocketId)
		reply, err := json.Marshal(comm.PresenceReply{Online: online})
		if err != nil {
			log.Errorf("Error %s", err)
			return
		}

		if err := msg.Respond(reply); err != nil {
			log.Errorf("Error replying to presence request: %s", err)
		}
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receives pushes from the duel service.
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	err := json.Unmarshal(msgNats.Data, &message)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Type {
	case "match-update":
		b.sendToRoom(message)
	default:
		log.Error("Unknown message")
		return
	}
}

// sendToRoom fans one push out to every socket bound to the room. Delivery is
// best effort; a client that misses a push recovers with a plain read.
func (b *Broker) sendToRoom(m *comm.WSMessage) {
	sockets, ok := b.GetRoomSockets(m.RoomId)
	if !ok {
		return
	}

	for _, socketId := range sockets {
		conn, ok := b.GetConnection(socketId)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(m); err != nil {
			log.Errorf("Error writing to socket %s: %s", socketId, err)
		}
	}
}
