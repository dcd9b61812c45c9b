package livekit

import (
	"context"
	"fmt"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/voice-booking-agent/agent/contract"
	logx "github.com/tanpawarit/voice-booking-agent/pkg/logger"
)

// Room is a joined LiveKit room used as a data-packet transport.
type Room struct {
	identity string
	room     *lksdk.Room
	log      zerolog.Logger

	// inbound is held while the handler runs so delivery order matches
	// arrival order, replayed packets included.
	inbound sync.Mutex
	handler func(contractx.InboundMessage)
	pending []contractx.InboundMessage
}

var _ contractx.Transport = (*Room)(nil)

// Join mints a token for identity and connects to roomName.
func Join(cfg Config, roomName, identity string) (*Room, error) {
	token, err := NewTokenGenerator(cfg).Generate(roomName, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: mint token: %v", contractx.ErrTransport, err)
	}

	r := &Room{
		identity: identity,
		log:      logx.Component("livekit").With().Str("room", roomName).Logger(),
	}

	cb := &lksdk.RoomCallback{
		OnDisconnected: func() {
			r.log.Warn().Msg("disconnected from room")
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnDataPacket: r.onDataPacket,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(cfg.URL, token, cb, lksdk.WithAutoSubscribe(false))
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %v", contractx.ErrTransport, roomName, err)
	}
	r.room = room
	r.log.Info().Str("identity", identity).Msg("joined room")
	return r, nil
}

func (r *Room) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	packet, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}
	if params.SenderIdentity == r.identity {
		return
	}

	msg := contractx.InboundMessage{
		Payload:        packet.Payload,
		SenderIdentity: params.SenderIdentity,
		Kind:           contractx.DeliveryReliable,
		Topic:          packet.Topic,
	}

	r.deliver(msg)
}

func (r *Room) deliver(msg contractx.InboundMessage) {
	r.inbound.Lock()
	defer r.inbound.Unlock()

	if r.handler == nil {
		r.pending = append(r.pending, msg)
		return
	}
	r.handler(msg)
}

// Subscribe installs the inbound handler and replays packets received before
// it was set. The handler must not block.
func (r *Room) Subscribe(handler func(contractx.InboundMessage)) {
	r.inbound.Lock()
	defer r.inbound.Unlock()

	r.handler = handler
	for _, msg := range r.pending {
		handler(msg)
	}
	r.pending = nil
}

func (r *Room) Publish(ctx context.Context, msg contractx.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	packet := lksdk.UserData(msg.Payload)
	opts := []lksdk.DataPublishOption{
		lksdk.WithDataPublishReliable(msg.Kind != contractx.DeliveryLossy),
	}
	if msg.Topic != "" {
		opts = append(opts, lksdk.WithDataPublishTopic(msg.Topic))
	}
	if len(msg.DestinationIdentities) > 0 {
		opts = append(opts, lksdk.WithDataPublishDestination(msg.DestinationIdentities))
	}

	if err := r.room.LocalParticipant.PublishDataPacket(packet, opts...); err != nil {
		return fmt.Errorf("%w: publish data: %v", contractx.ErrTransport, err)
	}
	return nil
}

func (r *Room) Close() error {
	if r.room != nil {
		r.room.Disconnect()
	}
	return nil
}
