package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/quizwire/duel-services/internal/comm"
	"github.com/quizwire/duel-services/internal/duelsvc/config"
	"github.com/quizwire/duel-services/internal/duelsvc/models"
	"github.com/quizwire/duel-services/internal/duelsvc/service"
	natsx "github.com/quizwire/duel-services/internal/nats"
)

// Broker is duelsvc's NATS edge: it fans match snapshots out to socketsvc,
// asks socketsvc whether a connection is still live, and consumes the
// lifecycle events (leave, disconnect) socketsvc publishes. Engine is set
// after construction because the engine itself broadcasts through the broker.
type Broker struct {
	Conn   *nats.Conn
	Engine *service.RoundEngine
	cfg    config.Config
}

func NewBroker(nc *nats.Conn, cfg config.Config) *Broker {
	return &Broker{Conn: nc, cfg: cfg}
}

// BroadcastMatch publishes the full match snapshot to the match room.
// Fire-and-forget: a dropped update is recovered by the client's next read.
func (b *Broker) BroadcastMatch(m *models.Match) {
	snapshot := comm.NewMatchSnapshot(m, b.cfg.RoundSeconds)
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Errorf("unable to marshal snapshot for match %s: %s", m.ID, err)
		return
	}

	msg := &comm.WSMessage{
		Type:   "match-update",
		Data:   data,
		RoomId: m.ID,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	b.Publish(natsx.TopicGameService, payload)
}

// IsOnline asks socketsvc whether the connection handle still has a live
// websocket. No reply within the timeout counts as offline, which matches
// how a vanished creator should be treated during matchmaking.
func (b *Broker) IsOnline(ctx context.Context, socketID string) bool {
	req, err := json.Marshal(comm.PresenceRequest{SocketId: socketID})
	if err != nil {
		log.Errorf("unable to marshal presence request: %s", err)
		return false
	}

	resp, err := b.Conn.Request(natsx.TopicPresence, req, b.cfg.PresenceTimeout)
	if err != nil {
		log.Infof("presence check for socket %s failed: %s", socketID, err)
		return false
	}

	var reply comm.PresenceReply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		log.Errorf("invalid presence reply: %s", err)
		return false
	}

	return reply.Online
}

// handleMessage consumes lifecycle events published by socketsvc.
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	err := json.Unmarshal(msgNat.Data, &msg)
	if err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	switch msg.Type {
	case "leave-match":
		var request comm.LeaveMatch
		if err := json.Unmarshal(msg.Data, &request); err != nil {
			log.Errorf("Error decoding leave-match: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := b.Engine.Leave(ctx, request.MatchId); err != nil {
			log.Errorf("Error [Engine.Leave] match %s: %s", request.MatchId, err)
		}
	case "socket-closed":
		var event comm.SocketClosed
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Errorf("Error decoding socket-closed: %s", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := b.Engine.HandleDisconnect(ctx, event.MatchId); err != nil {
			log.Errorf("Error [Engine.HandleDisconnect] match %s: %s", event.MatchId, err)
		}
	default:
		log.Error("Unknown message")
		return
	}
}

// SubscribeSocketService consumes lifecycle events from the socket service.
func (b *Broker) SubscribeSocketService(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
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
