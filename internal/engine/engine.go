package engine

import (
	"slices"
)

type Role string

const (
	RoleCreator Role = "creator"
	RoleHost    Role = "host"
	RolePlayer  Role = "player"
)

func (r Role) Valid() bool {
	return r == RoleCreator || r == RoleHost || r == RolePlayer
}

// Privileged roles may drive the game phase and manage the room.
func (r Role) Privileged() bool {
	return r == RoleCreator || r == RoleHost
}

type Phase string

const (
	PhaseLobby           Phase = "lobby"
	PhaseBattlefieldOpen Phase = "battlefieldOpen"
	PhaseInProgress      Phase = "inProgress"
)

type Identity struct {
	ConnID string `json:"connectionId"`
	Name   string `json:"displayName"`
	Role   Role   `json:"role"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type Asset struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Position   *Position `json:"position"` // nil while unplaced
	Discovered bool      `json:"discovered"`
}

type HostRequirement string

const (
	HostRequirementNone          HostRequirement = "none"
	HostRequirementHost          HostRequirement = "host"
	HostRequirementHostOrCreator HostRequirement = "hostOrCreator"
)

type Rules struct {
	MaxPlayers       int
	ReservedHostName string // empty: any name may hold the host seat
	HostRequirement  HostRequirement
	// CreatorIsHost makes a creator join occupy the host seat with the same identity.
	CreatorIsHost bool
	// CascadeCreatorRemoval evicts a distinct host when the creator leaves or is removed.
	CascadeCreatorRemoval bool
	HostObservesOnly      bool
	GridColumns           int
	GridRows              int
	AssetCatalog          []string
}

type State struct {
	Room        string
	Creator     *Identity
	Host        *Identity
	Players     []Identity
	Battlefield []string // connection ids, in entry order
	Phase       Phase
	Assets      []Asset
	Rules       Rules
}

type CommandType string

const (
	CmdJoin             CommandType = "Join"
	CmdLeave            CommandType = "Leave"
	CmdOpenBattlefield  CommandType = "OpenBattlefield"
	CmdStartGame        CommandType = "StartGame"
	CmdEndGame          CommandType = "EndGame"
	CmdClearRoom        CommandType = "ClearRoom"
	CmdRemovePlayer     CommandType = "RemovePlayer"
	CmdPlaceAsset       CommandType = "PlaceAsset"
	CmdJoinBattlefield  CommandType = "JoinBattlefield"
	CmdLeaveBattlefield CommandType = "LeaveBattlefield"
	CmdMoveToken        CommandType = "MoveToken"
)

/*
	CmdJoin             -> EvtEvicted* (reconnect-replace) -> EvtJoined
	CmdLeave            -> EvtLeft -> EvtEvicted (creator cascade)
	CmdOpenBattlefield  -> EvtBattlefieldOpened
	CmdStartGame        -> EvtGameStarted
	CmdEndGame          -> EvtGameEnded (battlefield cleared, assets reset)
	CmdClearRoom        -> EvtEvicted* -> EvtRoomCleared
	CmdRemovePlayer     -> EvtEvicted -> EvtEvicted (creator cascade)
	CmdPlaceAsset       -> EvtAssetPlaced
	CmdJoinBattlefield  -> EvtBattlefieldJoined
	CmdLeaveBattlefield -> EvtBattlefieldLeft
	CmdMoveToken        -> EvtTokenMoved -> EvtAssetDiscovered
*/

type Command struct {
	Type     CommandType
	Actor    string   // connection id issuing the command
	Identity Identity // CmdJoin only
	// CmdRemovePlayer resolves TargetConnID first, then TargetName.
	TargetConnID string
	TargetName   string
	AssetID      int
	X            int
	Y            int
}

type EventType string

const (
	EvtJoined            EventType = "Joined"
	EvtLeft              EventType = "Left"
	EvtEvicted           EventType = "Evicted"
	EvtBattlefieldOpened EventType = "BattlefieldOpened"
	EvtGameStarted       EventType = "GameStarted"
	EvtGameEnded         EventType = "GameEnded"
	EvtBattlefieldJoined EventType = "BattlefieldJoined"
	EvtBattlefieldLeft   EventType = "BattlefieldLeft"
	EvtAssetPlaced       EventType = "AssetPlaced"
	EvtAssetDiscovered   EventType = "AssetDiscovered"
	EvtTokenMoved        EventType = "TokenMoved"
	EvtRoomCleared       EventType = "RoomCleared"
)

// Mutates reports whether an event records a change to room state. Token
// moves are relayed but never stored.
func (t EventType) Mutates() bool {
	return t != EvtTokenMoved
}

type EvictReason string

const (
	EvictReplaced EvictReason = "replaced"
	EvictRemoved  EvictReason = "removed"
	EvictCleared  EvictReason = "cleared"
	EvictCascade  EvictReason = "creatorLeft"

	// EvictLoggedOut is applied outside Apply, when a login session ends.
	EvictLoggedOut EvictReason = "loggedOut"
)

type Event struct {
	Type     EventType
	Identity Identity
	Reason   EvictReason
	AssetID  int
	X        int
	Y        int
}

// Apply validates cmd against s and returns the events it produced together
// with the new state. s is never modified; on error the original is returned.
func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s.Clone()

	var (
		events []Event
		err    error
	)

	switch cmd.Type {
	case CmdJoin:
		events, err = applyJoin(&newState, cmd.Identity)
	case CmdLeave:
		events = removeWithCascade(&newState, cmd.Actor, "", EvtLeft, "")
	case CmdOpenBattlefield, CmdStartGame, CmdEndGame:
		events, err = applyPhaseChange(&newState, cmd)
	case CmdClearRoom:
		events, err = applyClearRoom(&newState, cmd.Actor)
	case CmdRemovePlayer:
		events, err = applyRemovePlayer(&newState, cmd)
	case CmdPlaceAsset:
		events, err = applyPlaceAsset(&newState, cmd)
	case CmdJoinBattlefield:
		events, err = applyJoinBattlefield(&newState, cmd.Actor)
	case CmdLeaveBattlefield:
		events, err = applyLeaveBattlefield(&newState, cmd.Actor)
	case CmdMoveToken:
		events, err = applyMoveToken(&newState, cmd)
	default:
		return nil, s, ErrUnsupportedCommand
	}

	if err != nil {
		return nil, s, err
	}
	return events, newState, nil
}

func applyJoin(s *State, id Identity) ([]Event, error) {
	d := Decide(*s, id)
	if !d.Accepted() {
		return nil, ErrorFor(d.Reason)
	}

	// Same connection, same seat: nothing to change.
	if current, ok := memberByConn(*s, id.ConnID); ok && current.Role == id.Role && current.Name == id.Name {
		return []Event{{Type: EvtJoined, Identity: current}}, nil
	}

	removeMember(s, id.ConnID)

	var events []Event
	for _, connID := range d.Evict {
		if gone, ok := removeMember(s, connID); ok {
			events = append(events, Event{Type: EvtEvicted, Identity: gone, Reason: EvictReplaced})
		}
	}

	switch id.Role {
	case RoleHost:
		s.Host = &id
	case RoleCreator:
		s.Creator = &id
		if s.Rules.CreatorIsHost {
			host := id
			s.Host = &host
		}
	case RolePlayer:
		s.Players = append(s.Players, id)
	}

	return append(events, Event{Type: EvtJoined, Identity: id}), nil
}

// removeWithCascade removes connID and, when it held the creator seat and the
// rules ask for it, the host as well. protect is never cascaded onto.
func removeWithCascade(s *State, connID, protect string, evt EventType, reason EvictReason) []Event {
	gone, ok := removeMember(s, connID)
	if !ok {
		return nil
	}
	events := []Event{{Type: evt, Identity: gone, Reason: reason}}

	if gone.Role == RoleCreator && s.Rules.CascadeCreatorRemoval && s.Host != nil && s.Host.ConnID != protect {
		if host, ok := removeMember(s, s.Host.ConnID); ok {
			events = append(events, Event{Type: EvtEvicted, Identity: host, Reason: EvictCascade})
		}
	}
	return events
}

// authorize returns the actor's identity if it may run a privileged command.
func authorize(s State, actor string) (Identity, error) {
	id, ok := memberByConn(s, actor)
	if !ok {
		return Identity{}, ErrNotInRoom
	}
	if !id.Role.Privileged() {
		return Identity{}, ErrForbidden
	}
	return id, nil
}

func applyPhaseChange(s *State, cmd Command) ([]Event, error) {
	if _, err := authorize(*s, cmd.Actor); err != nil {
		return nil, err
	}

	if cmd.Type == CmdStartGame && s.Phase == PhaseBattlefieldOpen && len(s.Players) == 0 {
		return nil, invalidState("cannot start a game without players")
	}

	if err := transition(s, cmd.Type); err != nil {
		return nil, err
	}

	switch cmd.Type {
	case CmdOpenBattlefield:
		return []Event{{Type: EvtBattlefieldOpened}}, nil
	case CmdStartGame:
		return []Event{{Type: EvtGameStarted}}, nil
	default:
		s.Battlefield = []string{}
		for i := range s.Assets {
			s.Assets[i].Discovered = false
			s.Assets[i].Position = nil
		}
		return []Event{{Type: EvtGameEnded}}, nil
	}
}

func applyClearRoom(s *State, actor string) ([]Event, error) {
	if _, err := authorize(*s, actor); err != nil {
		return nil, err
	}
	if err := transition(s, CmdClearRoom); err != nil {
		return nil, err
	}

	var events []Event
	for _, id := range members(*s) {
		events = append(events, Event{Type: EvtEvicted, Identity: id, Reason: EvictCleared})
	}
	*s = NewRoomState(s.Room, s.Rules)
	return append(events, Event{Type: EvtRoomCleared}), nil
}

func applyRemovePlayer(s *State, cmd Command) ([]Event, error) {
	if _, err := authorize(*s, cmd.Actor); err != nil {
		return nil, err
	}

	target, ok := memberByConn(*s, cmd.TargetConnID)
	if !ok && cmd.TargetName != "" {
		target, ok = memberByName(*s, cmd.TargetName)
	}
	if !ok {
		return nil, ErrUnknownTarget
	}
	if target.ConnID == cmd.Actor {
		return nil, invalidState("use leaveRoom to leave the room")
	}

	return removeWithCascade(s, target.ConnID, cmd.Actor, EvtEvicted, EvictRemoved), nil
}

func applyPlaceAsset(s *State, cmd Command) ([]Event, error) {
	if _, err := authorize(*s, cmd.Actor); err != nil {
		return nil, err
	}
	if s.Phase == PhaseInProgress {
		return nil, invalidState("assets cannot be placed while a game is in progress")
	}

	i := slices.IndexFunc(s.Assets, func(a Asset) bool { return a.ID == cmd.AssetID })
	if i < 0 {
		return nil, ErrUnknownAsset
	}
	if !inGrid(s.Rules, cmd.X, cmd.Y) {
		return nil, missingFields("position (%d,%d) is outside the grid", cmd.X, cmd.Y)
	}

	s.Assets[i].Position = &Position{X: cmd.X, Y: cmd.Y}
	s.Assets[i].Discovered = false
	return []Event{{Type: EvtAssetPlaced, AssetID: cmd.AssetID, X: cmd.X, Y: cmd.Y}}, nil
}

func applyJoinBattlefield(s *State, actor string) ([]Event, error) {
	id, ok := memberByConn(*s, actor)
	if !ok {
		return nil, ErrNotInRoom
	}
	if s.Rules.HostObservesOnly && id.Role.Privileged() {
		return nil, ErrNotPermitted
	}
	if !battlefieldOpen(s.Phase) {
		return nil, invalidState("battlefield is not open")
	}
	if slices.Contains(s.Battlefield, actor) {
		return nil, nil
	}

	s.Battlefield = append(s.Battlefield, actor)
	return []Event{{Type: EvtBattlefieldJoined, Identity: id}}, nil
}

func applyLeaveBattlefield(s *State, actor string) ([]Event, error) {
	i := slices.Index(s.Battlefield, actor)
	if i < 0 {
		return nil, ErrNotInRoom
	}
	id, _ := memberByConn(*s, actor)

	s.Battlefield = slices.Delete(s.Battlefield, i, i+1)
	return []Event{{Type: EvtBattlefieldLeft, Identity: id}}, nil
}

func applyMoveToken(s *State, cmd Command) ([]Event, error) {
	if !slices.Contains(s.Battlefield, cmd.Actor) {
		return nil, ErrNotInRoom
	}
	if s.Phase != PhaseInProgress {
		return nil, invalidState("tokens move only while a game is in progress")
	}
	if !inGrid(s.Rules, cmd.X, cmd.Y) {
		return nil, missingFields("position (%d,%d) is outside the grid", cmd.X, cmd.Y)
	}

	id, _ := memberByConn(*s, cmd.Actor)
	events := []Event{{Type: EvtTokenMoved, Identity: id, X: cmd.X, Y: cmd.Y}}

	for i, a := range s.Assets {
		if a.Discovered || a.Position == nil || a.Position.X != cmd.X || a.Position.Y != cmd.Y {
			continue
		}
		s.Assets[i].Discovered = true
		events = append(events, Event{Type: EvtAssetDiscovered, Identity: id, AssetID: a.ID, X: cmd.X, Y: cmd.Y})
	}
	return events, nil
}
