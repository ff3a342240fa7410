package lobby

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
	"github.com/DoyleJ11/battlefield-lobby/internal/types"
)

// Peer is the lobby's handle on one live connection.
type Peer interface {
	ID() string
	// Send queues msg without blocking. False means the peer cannot keep up.
	Send(msg types.ServerMessage) bool
	// Close terminates the connection. Safe to call more than once.
	Close(reason string)
}

// Binder mirrors room membership into the connection registry. It is called
// from inside the room transaction, so bindings never lag room state.
type Binder interface {
	Bind(connID, room string, id engine.Identity) error
	UnbindFrom(connID, room string) bool
}

type nopBinder struct{}

func (nopBinder) Bind(string, string, engine.Identity) error { return nil }
func (nopBinder) UnbindFrom(string, string) bool             { return false }

type Msg interface{ isLobbyMsg() }

type Join struct {
	Peer     Peer
	Identity engine.Identity
	Reply    chan Result
}

func (Join) isLobbyMsg() {}

type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isLobbyMsg() {}

type RollDice struct {
	ConnID string
	Kind   string
	Reply  chan Result
}

func (RollDice) isLobbyMsg() {}

// Leave removes a member without closing its connection.
type Leave struct {
	ConnID string
	Reply  chan Result
}

func (Leave) isLobbyMsg() {}

// Kick removes a member, notifies it with Reason and closes its connection.
type Kick struct {
	ConnID string
	Reason engine.EvictReason
	Reply  chan Result
}

func (Kick) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Result reports the outcome of one transaction. Evicted lists connections
// removed and closed by it.
type Result struct {
	Version int
	Evicted []string
	Err     error
}

type View struct {
	Version    int
	NumClients int
	Snapshot   engine.Snapshot
}

type Option func(*Lobby)

func WithLogger(log *zap.Logger) Option {
	return func(l *Lobby) { l.log = log }
}

func WithRandom(src engine.RandomSource) Option {
	return func(l *Lobby) { l.rng = src }
}

func WithBinder(b Binder) Option {
	return func(l *Lobby) { l.binder = b }
}

// WithOnClosed registers fn to run once the lobby has stopped accepting messages.
func WithOnClosed(fn func(*Lobby)) Option {
	return func(l *Lobby) { l.onClosed = fn }
}

// Lobby owns one room. All reads and writes of the room happen on its loop
// goroutine, so every transaction is applied and broadcast before the next
// one starts.
type Lobby struct {
	room     string
	inbox    chan Msg
	state    engine.State
	version  int
	peers    map[string]Peer
	slow     map[string]struct{}
	rng      engine.RandomSource
	binder   Binder
	log      *zap.Logger
	onClosed func(*Lobby)
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewLobby(parent context.Context, initial engine.State, opts ...Option) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	l := &Lobby{
		room:    initial.Room,
		inbox:   make(chan Msg, 64),
		state:   initial,
		version: 0,
		peers:   make(map[string]Peer),
		slow:    make(map[string]struct{}),
		rng:     engine.DefaultRandom(),
		binder:  nopBinder{},
		log:     zap.NewNop(),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.log = l.log.With(zap.String("room", l.room))

	go l.loop()
	return l
}

func (l *Lobby) Room() string { return l.room }

// Inbox exposes the mailbox for callers that manage replies themselves.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed when the lobby stops, either on shutdown or after the room
// was cleared.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *Lobby) loop() {
	defer l.close()

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown("server shutting down")
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				reply(msg.Reply, l.join(msg))

			case FromClient:
				res := l.apply(msg.Cmd)
				reply(msg.Reply, res)
				if res.Err == nil && msg.Cmd.Type == engine.CmdClearRoom {
					l.log.Info("room cleared", zap.String("by", msg.Cmd.Actor))
					l.dropSlow()
					return
				}

			case RollDice:
				reply(msg.Reply, l.rollDice(msg))

			case Leave:
				reply(msg.Reply, l.apply(engine.Command{Type: engine.CmdLeave, Actor: msg.ConnID}))

			case Kick:
				reply(msg.Reply, l.kick(msg))

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.peers),
					Snapshot:   l.state.Snapshot(),
				}

			case Shutdown:
				l.shutdown("server shutting down")
				return
			}
			l.dropSlow()
		}
	}
}

func reply(ch chan Result, res Result) {
	if ch != nil {
		ch <- res
	}
}

func (l *Lobby) join(msg Join) Result {
	id := msg.Identity
	id.ConnID = msg.Peer.ID()

	events, next, err := engine.Apply(l.state, engine.Command{Type: engine.CmdJoin, Identity: id})
	if err != nil {
		l.log.Debug("join rejected", zap.String("conn", id.ConnID), zap.Error(err))
		return Result{Version: l.version, Err: err}
	}
	if err := l.binder.Bind(id.ConnID, l.room, id); err != nil {
		return Result{Version: l.version, Err: err}
	}

	l.peers[id.ConnID] = msg.Peer
	l.send(msg.Peer, types.Joined(id))
	l.log.Info("joined", zap.String("conn", id.ConnID), zap.String("name", id.Name), zap.String("role", string(id.Role)))
	return l.commit(next, events)
}

func (l *Lobby) apply(cmd engine.Command) Result {
	events, next, err := engine.Apply(l.state, cmd)
	if err != nil {
		return Result{Version: l.version, Err: err}
	}
	return l.commit(next, events)
}

func (l *Lobby) kick(msg Kick) Result {
	p, ok := l.peers[msg.ConnID]
	res := l.apply(engine.Command{Type: engine.CmdLeave, Actor: msg.ConnID})
	if ok {
		delete(l.peers, msg.ConnID)
		delete(l.slow, msg.ConnID)
		if !p.Send(types.Evicted(msg.Reason)) {
			l.log.Debug("eviction notice dropped", zap.String("conn", msg.ConnID))
		}
		p.Close(string(msg.Reason))
	}
	res.Evicted = append(res.Evicted, msg.ConnID)
	return res
}

func (l *Lobby) rollDice(msg RollDice) Result {
	id, ok := l.state.MemberByConn(msg.ConnID)
	if !ok {
		return Result{Version: l.version, Err: engine.ErrNotInRoom}
	}
	value, err := engine.Roll(l.rng, msg.Kind)
	if err != nil {
		return Result{Version: l.version, Err: err}
	}
	l.broadcast(types.DiceRolled(id.Name, value, msg.Kind))
	return Result{Version: l.version}
}

// commit installs next and fans out everything the transaction produced:
// eviction notices first, then one snapshot, then the narrow events.
func (l *Lobby) commit(next engine.State, events []engine.Event) Result {
	prev := l.state
	l.state = next

	var evicted []string
	for _, e := range events {
		switch e.Type {
		case engine.EvtEvicted:
			evicted = append(evicted, e.Identity.ConnID)
			l.binder.UnbindFrom(e.Identity.ConnID, l.room)
			l.evict(e.Identity.ConnID, e.Reason)
		case engine.EvtLeft:
			l.binder.UnbindFrom(e.Identity.ConnID, l.room)
			delete(l.peers, e.Identity.ConnID)
			l.log.Info("left", zap.String("conn", e.Identity.ConnID))
		}
	}

	if slices.ContainsFunc(events, func(e engine.Event) bool { return e.Type.Mutates() }) {
		l.version++
		l.broadcast(types.RoomUpdate(l.version, l.state.Snapshot()))
	}

	for _, e := range events {
		if msg, ok := l.narrow(e); ok {
			l.broadcast(msg)
		}
	}
	if !slices.Equal(prev.Battlefield, l.state.Battlefield) {
		l.broadcast(l.battlefieldPlayers())
	}
	if present := l.state.Host != nil; present != (prev.Host != nil) {
		l.broadcast(types.HostStatus(present))
	}

	return Result{Version: l.version, Evicted: evicted}
}

func (l *Lobby) evict(connID string, reason engine.EvictReason) {
	p, ok := l.peers[connID]
	if !ok {
		return
	}
	delete(l.peers, connID)
	delete(l.slow, connID)
	l.send(p, types.Evicted(reason))
	p.Close(string(reason))
	l.log.Info("evicted", zap.String("conn", connID), zap.String("reason", string(reason)))
}

// narrow maps an engine event onto its targeted server message, if any.
func (l *Lobby) narrow(e engine.Event) (types.ServerMessage, bool) {
	switch e.Type {
	case engine.EvtBattlefieldOpened:
		return types.ServerMessage{Type: types.MsgBattlefieldOpened}, true
	case engine.EvtGameStarted:
		return types.ServerMessage{Type: types.MsgGameStarted}, true
	case engine.EvtGameEnded:
		return types.ServerMessage{Type: types.MsgGameEnded}, true
	case engine.EvtBattlefieldJoined:
		return types.ServerMessage{Type: types.MsgPlayerJoinedBattlefield, Payload: types.PlayerPayload{Identity: e.Identity}}, true
	case engine.EvtBattlefieldLeft:
		return types.ServerMessage{Type: types.MsgPlayerLeftBattlefield, Payload: types.PlayerPayload{Identity: e.Identity}}, true
	case engine.EvtAssetPlaced:
		return types.ServerMessage{Type: types.MsgAssetPlaced, Payload: l.assetPayload(e)}, true
	case engine.EvtAssetDiscovered:
		return types.ServerMessage{Type: types.MsgAssetDiscovered, Payload: l.assetPayload(e)}, true
	case engine.EvtTokenMoved:
		return types.ServerMessage{Type: types.MsgTokenMoved, Payload: types.TokenMovedPayload{Identity: e.Identity, X: e.X, Y: e.Y}}, true
	}
	return types.ServerMessage{}, false
}

func (l *Lobby) assetPayload(e engine.Event) types.AssetPayload {
	p := types.AssetPayload{AssetID: e.AssetID, X: e.X, Y: e.Y, DisplayName: e.Identity.Name}
	for _, a := range l.state.Assets {
		if a.ID == e.AssetID {
			p.Name = a.Name
		}
	}
	return p
}

func (l *Lobby) battlefieldPlayers() types.ServerMessage {
	members := make([]engine.Identity, 0, len(l.state.Battlefield))
	for _, connID := range l.state.Battlefield {
		if id, ok := l.state.MemberByConn(connID); ok {
			members = append(members, id)
		}
	}
	return types.ServerMessage{Type: types.MsgBattlefieldPlayers, Payload: types.BattlefieldPlayersPayload{Members: members}}
}

func (l *Lobby) broadcast(msg types.ServerMessage) {
	for _, p := range l.peers {
		l.send(p, msg)
	}
}

func (l *Lobby) send(p Peer, msg types.ServerMessage) {
	if _, dropped := l.slow[p.ID()]; dropped {
		return
	}
	if !p.Send(msg) {
		l.slow[p.ID()] = struct{}{}
	}
}

// dropSlow disconnects peers whose outbox overflowed and removes them from
// the room as if their transport had gone away.
func (l *Lobby) dropSlow() {
	for len(l.slow) > 0 {
		ids := make([]string, 0, len(l.slow))
		for id := range l.slow {
			ids = append(ids, id)
		}
		clear(l.slow)

		for _, id := range ids {
			p, ok := l.peers[id]
			if !ok {
				continue
			}
			delete(l.peers, id)
			p.Close("slow consumer")
			l.log.Warn("dropped slow consumer", zap.String("conn", id))
			l.apply(engine.Command{Type: engine.CmdLeave, Actor: id})
		}
	}
}

func (l *Lobby) shutdown(reason string) {
	for id, p := range l.peers {
		p.Close(reason)
		delete(l.peers, id)
	}
}

func (l *Lobby) close() {
	l.cancel()
	close(l.done)
	if l.onClosed != nil {
		l.onClosed(l)
	}
}
