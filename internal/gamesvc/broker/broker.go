package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/assassins-services/internal/comm"
	"github.com/avvvet/assassins-services/internal/gamesvc/service"
)

const actionTimeout = 10 * time.Second

// Conn is the part of *nats.Conn the broker uses.
type Conn interface {
	Publish(subj string, data []byte) error
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Broker publishes committed game events to socketsvc and runs the
// actions socketsvc forwards from clients.
type Broker struct {
	Conn           Conn
	GameService    *service.GameService
	ClaimService   *service.EliminationService
	DisputeService *service.DisputeService
}

// NewBroker returns a broker that can publish events right away. Actions
// are served once Attach has been called.
func NewBroker(nc Conn) *Broker {
	return &Broker{Conn: nc}
}

func (b *Broker) Attach(gameService *service.GameService, claimService *service.EliminationService,
	disputeService *service.DisputeService) {
	b.GameService = gameService
	b.ClaimService = claimService
	b.DisputeService = disputeService
}

// Notify implements service.Notifier.
func (b *Broker) Notify(_ context.Context, ev comm.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("Error marshal game event %s: %s", ev.Type, err)
		return
	}
	msg := comm.WSMessage{Type: ev.Type, Data: data}
	b.publishMessage(msg)
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, &msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	data, err := b.dispatch(ctx, msg)
	b.PublishActionResult(msg.Type, msg.SocketId, data, err)
}

func (b *Broker) dispatch(ctx context.Context, msg comm.WSMessage) (any, error) {
	if msg.UserId == "" {
		return nil, service.ErrNotPlayerOwner
	}
	if b.GameService == nil {
		return nil, errors.New("broker: services not attached")
	}

	switch msg.Type {
	case comm.ActionJoinRoom:
		req := comm.JoinRoom{}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		// only participants may listen to a game's room
		if _, err := b.GameService.MyPlayer(ctx, req.GameID, msg.UserId); err != nil {
			return nil, err
		}
		return req, nil

	case comm.ActionSubmitClaim:
		req := comm.SubmitClaim{}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return b.ClaimService.SubmitClaim(ctx, service.ClaimInput{
			GameID:      req.GameID,
			UserID:      msg.UserId,
			EvidenceURL: req.EvidenceURL,
			VictimID:    req.VictimID,
		})

	case comm.ActionSubmitDispute:
		req := comm.SubmitDispute{}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return b.DisputeService.SubmitDispute(ctx, req.PlayerID, msg.UserId, service.DisputeInput{Text: req.Text})

	default:
		return nil, &service.Error{Kind: service.ErrValidation, Code: "unknown_action", Message: "unknown action " + msg.Type}
	}
}

func decode(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &service.Error{Kind: service.ErrValidation, Code: "validation", Message: "invalid payload: " + err.Error()}
	}
	return nil
}

// PublishActionResult answers the socket that sent the action.
func (b *Broker) PublishActionResult(action, socketId string, data any, actionErr error) {
	res := comm.ActionResult{Action: action, OK: actionErr == nil}

	if actionErr != nil {
		res.Code = service.CodeOf(actionErr)
		res.Error = actionErr.Error()
		if res.Code == "" {
			log.Errorf("Error [%s] for socket %s: %s", action, socketId, actionErr)
			res.Code = "internal"
			res.Error = "internal error"
		}
	} else if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			log.Errorf("Error marshal %s result: %s", action, err)
			return
		}
		res.Data = payload
	}

	payload, err := json.Marshal(res)
	if err != nil {
		log.Errorf("Error marshal action result: %s", err)
		return
	}

	b.publishMessage(comm.WSMessage{Type: comm.EventActionResult, Data: payload, SocketId: socketId})
}

func (b *Broker) publishMessage(msg comm.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error marshal message %s", err)
		return
	}
	_ = b.Publish(comm.GameServiceTopic, payload)
}

// QueueSubscribSignal spreads socket actions over every gamesvc instance
// in queueGroup.
func (b *Broker) QueueSubscribSignal(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
	if err != nil {
		log.Errorf("Error subscribing to topic %s: %s", topic, err)
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
