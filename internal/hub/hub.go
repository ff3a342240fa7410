package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
	"github.com/DoyleJ11/battlefield-lobby/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

type GetLobby struct {
	Room  string
	Reply chan *lobby.Lobby
}

// EnsureLobby returns the live lobby for Room, creating a fresh one when the
// room is unknown or its previous lobby has stopped.
type EnsureLobby struct {
	Room  string
	Reply chan *lobby.Lobby
}

// RemoveLobby forgets Room, but only while it still maps to Lobby.
type RemoveLobby struct {
	Room  string
	Lobby *lobby.Lobby
}

type ListRooms struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ListRooms) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type Option func(*Hub)

func WithLogger(log *zap.Logger) Option {
	return func(h *Hub) { h.log = log }
}

func WithRandom(src engine.RandomSource) Option {
	return func(h *Hub) { h.rng = src }
}

// WithBinder makes every lobby mirror its membership into b.
func WithBinder(b lobby.Binder) Option {
	return func(h *Hub) { h.binder = b }
}

// Hub is the directory of room lobbies. It owns the map on its own goroutine.
type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	rules   engine.Rules
	rng     engine.RandomSource
	binder  lobby.Binder
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub starts a hub whose rooms are created with rules.
func NewHub(parent context.Context, rules engine.Rules, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		rules:   rules,
		rng:     engine.DefaultRandom(),
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case GetLobby:
				lb := h.lobbies[msg.Room]
				if lb != nil && lb.Closed() {
					lb = nil
				}
				msg.Reply <- lb // May be nil

			case EnsureLobby:
				if lb := h.lobbies[msg.Room]; lb != nil && !lb.Closed() {
					msg.Reply <- lb
					break
				}
				opts := []lobby.Option{
					lobby.WithLogger(h.log),
					lobby.WithRandom(h.rng),
					lobby.WithOnClosed(h.forget),
				}
				if h.binder != nil {
					opts = append(opts, lobby.WithBinder(h.binder))
				}
				lb := lobby.NewLobby(h.ctx, engine.NewRoomState(msg.Room, h.rules), opts...)
				h.lobbies[msg.Room] = lb
				h.log.Debug("room created", zap.String("room", msg.Room))
				msg.Reply <- lb

			case RemoveLobby:
				if h.lobbies[msg.Room] == msg.Lobby {
					delete(h.lobbies, msg.Room)
					h.log.Debug("room removed", zap.String("room", msg.Room))
				}

			case ListRooms:
				rooms := make([]string, 0, len(h.lobbies))
				for room := range h.lobbies {
					rooms = append(rooms, room)
				}
				msg.Reply <- rooms

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

// forget runs on a lobby goroutine once that lobby has stopped.
func (h *Hub) forget(lb *lobby.Lobby) {
	select {
	case h.inbox <- RemoveLobby{Room: lb.Room(), Lobby: lb}:
	case <-h.done:
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		select {
		case lb.Inbox() <- lobby.Shutdown{}:
		case <-lb.Done():
		}
	}
	clear(h.lobbies)
}

func (h *Hub) Ensure(ctx context.Context, room string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	return request(ctx, h, EnsureLobby{Room: room, Reply: reply}, reply)
}

// Get returns nil when the room does not exist.
func (h *Hub) Get(ctx context.Context, room string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	return request(ctx, h, GetLobby{Room: room, Reply: reply}, reply)
}

func (h *Hub) Rooms(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	return request(ctx, h, ListRooms{Reply: reply}, reply)
}

var errHubStopped = &engine.Error{Code: engine.CodeInternal, Message: "hub stopped"}

func request[T any](ctx context.Context, h *Hub, m HubMsg, reply <-chan T) (T, error) {
	var zero T
	select {
	case h.inbox <- m:
	case <-h.done:
		return zero, errHubStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-h.done:
		return zero, errHubStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
