package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
	"github.com/DoyleJ11/battlefield-lobby/internal/hub"
	"github.com/DoyleJ11/battlefield-lobby/internal/lobby"
	"github.com/DoyleJ11/battlefield-lobby/internal/registry"
	"github.com/DoyleJ11/battlefield-lobby/internal/types"
)

// joinAttempts bounds retries when a join races with clearRoom.
const joinAttempts = 3

// Manager turns transport signals and client requests into room transactions.
// Lobbies bind members into reg as they are admitted; the manager unbinds on
// disconnect, which makes the registry the exactly-once gate for leaving.
type Manager struct {
	hub *hub.Hub
	reg *registry.Registry
	log *zap.Logger

	mu    sync.RWMutex
	peers map[string]lobby.Peer
}

// NewManager expects h to have been built with hub.WithBinder(reg).
func NewManager(h *hub.Hub, reg *registry.Registry, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		hub:   h,
		reg:   reg,
		log:   log,
		peers: make(map[string]lobby.Peer),
	}
}

// Connect registers a new transport connection and greets it with its id.
func (m *Manager) Connect(p lobby.Peer) {
	m.mu.Lock()
	m.peers[p.ID()] = p
	m.mu.Unlock()

	p.Send(types.Hello(p.ID()))
	m.log.Info("connected", zap.String("conn", p.ID()))
}

// Disconnect handles the loss of a connection. Duplicate calls are harmless:
// only the call that wins the registry unbind touches the room.
func (m *Manager) Disconnect(ctx context.Context, connID string) {
	m.mu.Lock()
	delete(m.peers, connID)
	m.mu.Unlock()

	b, ok := m.reg.Unbind(connID)
	if !ok {
		return
	}
	m.leaveRoom(ctx, b.Room, connID)
	m.log.Info("disconnected", zap.String("conn", connID), zap.String("room", b.Room))
}

// Logout ends a login session by force-closing its connection.
func (m *Manager) Logout(ctx context.Context, connID string) error {
	if b, ok := m.reg.Unbind(connID); ok {
		lb, err := m.hub.Get(ctx, b.Room)
		if err != nil {
			return err
		}
		if lb != nil {
			_, err := lb.Kick(ctx, connID, engine.EvictLoggedOut)
			if err == nil {
				return nil
			}
			if !errors.Is(err, engine.ErrRoomClosed) {
				return err
			}
		}
	}

	p, ok := m.peer(connID)
	if !ok {
		return engine.ErrUnknownTarget
	}
	p.Send(types.Evicted(engine.EvictLoggedOut))
	p.Close(string(engine.EvictLoggedOut))
	return nil
}

// Room returns the current view of room, or false when it does not exist.
func (m *Manager) Room(ctx context.Context, room string) (lobby.View, bool, error) {
	lb, err := m.hub.Get(ctx, room)
	if err != nil || lb == nil {
		return lobby.View{}, false, err
	}
	v, err := lb.View(ctx)
	if errors.Is(err, engine.ErrRoomClosed) {
		return lobby.View{}, false, nil
	}
	return v, err == nil, err
}

// RoomSummary is one entry of the room directory.
type RoomSummary struct {
	Room        string `json:"room"`
	Connections int    `json:"connections"`
}

// Rooms lists the live rooms with the number of connections bound to each,
// sorted by name.
func (m *Manager) Rooms(ctx context.Context) ([]RoomSummary, error) {
	rooms, err := m.hub.Rooms(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(rooms)
	out := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, RoomSummary{Room: room, Connections: len(m.reg.InRoom(room))})
	}
	return out, nil
}

// Handle runs one decoded client request. Failures are reported to p only.
func (m *Manager) Handle(ctx context.Context, p lobby.Peer, req types.Request) {
	log := m.log.With(zap.String("conn", p.ID()), zap.String("event", req.EventType()))
	log.Debug("request")

	var err error
	switch r := req.(type) {
	case types.JoinRoom:
		if err = m.join(ctx, p, r); err != nil {
			log.Warn("join rejected", zap.Error(err))
			p.Send(types.Failure(types.MsgJoinError, err))
		}
		return

	case types.Action:
		if r.Type == types.EvtLeaveRoom {
			if b, ok := m.reg.Unbind(p.ID()); ok {
				m.leaveRoom(ctx, b.Room, p.ID())
			}
			return
		}
		err = m.command(ctx, p.ID(), req)

	case types.RollDice:
		err = m.roll(ctx, p.ID(), r.DieKind)

	default:
		err = m.command(ctx, p.ID(), req)
	}

	if err != nil {
		log.Warn("request failed", zap.Error(err))
		p.Send(types.Failure(types.MsgError, err))
	}
}

func (m *Manager) join(ctx context.Context, p lobby.Peer, r types.JoinRoom) error {
	room := strings.TrimSpace(r.Room)
	if room == "" || strings.TrimSpace(r.Identity.DisplayName) == "" {
		return engine.ErrMissingFields
	}
	if b, ok := m.reg.Lookup(p.ID()); ok && b.Room != room {
		return engine.ErrAlreadyBound
	}
	id := engine.Identity{
		ConnID: p.ID(),
		Name:   strings.TrimSpace(r.Identity.DisplayName),
		Role:   engine.Role(r.Identity.Role),
	}

	for attempt := 0; attempt < joinAttempts; attempt++ {
		lb, err := m.hub.Ensure(ctx, room)
		if err != nil {
			return err
		}
		res, err := lb.Join(ctx, p, id)
		if errors.Is(err, engine.ErrRoomClosed) {
			continue
		}
		if err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}

		m.log.Info("bound", zap.String("conn", p.ID()), zap.String("room", room), zap.String("name", id.Name))
		return nil
	}
	return engine.ErrRoomClosed
}

func (m *Manager) command(ctx context.Context, connID string, req types.Request) error {
	cmd, err := toEngineCommand(req)
	if err != nil {
		return err
	}
	return m.do(ctx, connID, cmd)
}

// do routes cmd to the room connID is bound to.
func (m *Manager) do(ctx context.Context, connID string, cmd engine.Command) error {
	b, lb, err := m.boundLobby(ctx, connID)
	if err != nil {
		return err
	}
	cmd.Actor = connID

	res, err := lb.Do(ctx, cmd)
	if errors.Is(err, engine.ErrRoomClosed) {
		m.reg.UnbindFrom(connID, b.Room)
	}
	if err != nil {
		return err
	}
	return res.Err
}

func (m *Manager) roll(ctx context.Context, connID, kind string) error {
	_, lb, err := m.boundLobby(ctx, connID)
	if err != nil {
		return err
	}
	res, err := lb.Roll(ctx, connID, kind)
	if err != nil {
		return err
	}
	return res.Err
}

func (m *Manager) boundLobby(ctx context.Context, connID string) (registry.Binding, *lobby.Lobby, error) {
	b, ok := m.reg.Lookup(connID)
	if !ok {
		return b, nil, engine.ErrNotInRoom
	}
	lb, err := m.hub.Get(ctx, b.Room)
	if err != nil {
		return b, nil, err
	}
	if lb == nil {
		m.reg.UnbindFrom(connID, b.Room)
		return b, nil, engine.ErrNotInRoom
	}
	return b, lb, nil
}

func (m *Manager) leaveRoom(ctx context.Context, room, connID string) {
	lb, err := m.hub.Get(ctx, room)
	if err != nil || lb == nil {
		return
	}
	if _, err := lb.Leave(ctx, connID); err != nil && !errors.Is(err, engine.ErrRoomClosed) {
		m.log.Warn("leave failed", zap.String("conn", connID), zap.String("room", room), zap.Error(err))
	}
}

func (m *Manager) peer(connID string) (lobby.Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[connID]
	return p, ok
}

// Connections reports the number of live transport connections.
func (m *Manager) Connections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}
