package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/comm"
)

// Conn is the part of *nats.Conn the broker uses.
type Conn interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Sender writes one JSON frame to a web client.
type Sender interface {
	WriteJSON(v interface{}) error
}

type Broker struct {
	Conn           Conn
	GetConnection  func(string) (Sender, bool)
	GetRoomSockets func(string) ([]string, bool)
	JoinRoom       func(socketId, roomId string)
}

func NewBroker(conn Conn, fncGetConnection func(string) (Sender, bool), fncGetRoomSockets func(string) ([]string, bool),
	fncJoinRoom func(string, string)) *Broker {
	return &Broker{
		Conn:           conn,
		GetConnection:  fncGetConnection,
		GetRoomSockets: fncGetRoomSockets,
		JoinRoom:       fncJoinRoom,
	}
}

// consume message from game service. Every socketsvc instance needs every
// event, so this is a plain subscription.
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

// handleMessages receive message from game service
func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Deliver(message)
}

// Deliver routes a game service message: action results go to the socket
// that asked, game events go to everyone in the game's room.
func (b *Broker) Deliver(message *comm.WSMessage) {
	switch message.Type {
	case comm.EventActionResult:
		b.trackJoin(message)
		b.sendMessage(message.SocketId, message)
	case comm.EventGameStarted, comm.EventClaimSubmitted, comm.EventClaimRejected,
		comm.EventDisputeSubmitted, comm.EventEliminationVerified, comm.EventGameCompleted,
		comm.EventAnnouncement, comm.EventAnnouncementUpdated, comm.EventAnnouncementDeleted:
		ev := comm.GameEvent{}
		if err := json.Unmarshal(message.Data, &ev); err != nil || ev.GameID == "" {
			log.Errorf("Error game event %s without game id: %v", message.Type, err)
			return
		}
		b.broadcast(ev.GameID, message)
	default:
		log.Warnf("Unknown message %s", message.Type)
	}
}

// trackJoin adds the socket to the room once gamesvc accepted join-room.
func (b *Broker) trackJoin(message *comm.WSMessage) {
	res := comm.ActionResult{}
	if err := json.Unmarshal(message.Data, &res); err != nil {
		log.Errorf("Error action result %s", err)
		return
	}
	if res.Action != comm.ActionJoinRoom || !res.OK {
		return
	}
	room := comm.JoinRoom{}
	if err := json.Unmarshal(res.Data, &room); err != nil || room.GameID == "" {
		log.Errorf("Error join-room result without game id: %v", err)
		return
	}
	b.JoinRoom(message.SocketId, room.GameID)
}

func (b *Broker) broadcast(roomId string, m *comm.WSMessage) {
	sockets, ok := b.GetRoomSockets(roomId)
	if !ok {
		return
	}
	out := *m
	out.SocketId = ""
	for _, socketId := range sockets {
		b.sendMessage(socketId, &out)
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(socketId string, m *comm.WSMessage) {
	if conn, ok := b.GetConnection(socketId); ok {
		if err := conn.WriteJSON(m); err != nil {
			log.Warnf("Error writing to socket %s: %s", socketId, err)
		}
	}
}
