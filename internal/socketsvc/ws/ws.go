package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/socketsvc/broker"
)

const writeWait = 10 * time.Second

// Client is one authenticated web socket. gorilla allows a single
// concurrent writer, so writes are serialized.
type Client struct {
	UserId string
	conn   *websocket.Conn
	mu     sync.Mutex
}

func NewClient(conn *websocket.Conn, userId string) *Client {
	return &Client{UserId: userId, conn: conn}
}

func (c *Client) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // socketId -> broker.Sender
	userMap sync.Map // socketId -> verified user id
	roomMap sync.Map // socketId -> gameId, one room per socket
	Broker  *broker.Broker
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.ActionJoinRoom, comm.ActionSubmitClaim, comm.ActionSubmitDispute:
		s.forward(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.sendError(socketId, message.Type, "unknown message type")
	}
}

// forward hands a client action to the game service. The actor is always
// the user the socket authenticated as, never what the client claims.
func (s *Ws) forward(socketId string, msg *comm.WSMessage) {
	userId, ok := s.GetUser(socketId)
	if !ok {
		log.Errorf("socket %s has no authenticated user", socketId)
		return
	}

	msg.SocketId = socketId
	msg.UserId = userId

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(comm.SocketServiceTopic, bytes); err != nil {
		s.sendError(socketId, msg.Type, "game service unavailable")
		return
	}

	log.Debugf("Published %s for user %s to topic %s", msg.Type, userId, comm.SocketServiceTopic)
}

func (s *Ws) sendError(socketId, action, errorMsg string) {
	conn, ok := s.GetConnection(socketId)
	if !ok {
		return
	}
	res, _ := json.Marshal(comm.ActionResult{Action: action, Code: "bad_request", Error: errorMsg})
	if err := conn.WriteJSON(comm.WSMessage{Type: comm.EventActionResult, Data: res, SocketId: socketId}); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}

func (s *Ws) StoreConnection(socketId string, conn broker.Sender, userId string) {
	s.connMap.Store(socketId, conn)
	s.userMap.Store(socketId, userId)
}

func (s *Ws) GetConnection(socketId string) (broker.Sender, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(broker.Sender), true
}

func (s *Ws) GetUser(socketId string) (string, bool) {
	userId, ok := s.userMap.Load(socketId)
	if !ok {
		return "", false
	}
	return userId.(string), true
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.userMap.Delete(socketId)
	s.roomMap.Delete(socketId)
}

func (s *Ws) StoreRoom(socketId string, roomId string) {
	s.roomMap.Store(socketId, roomId)
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
