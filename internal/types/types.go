package types

import (
	"errors"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
)

// Client -> server event names.
const (
	EvtJoinRoom         = "joinRoom"
	EvtLeaveRoom        = "leaveRoom"
	EvtOpenBattlefield  = "openBattlefield"
	EvtStartGame        = "startGame"
	EvtEndGame          = "endGame"
	EvtJoinBattlefield  = "joinBattlefield"
	EvtLeaveBattlefield = "leaveBattlefield"
	EvtRollDice         = "rollDice"
	EvtRemovePlayer     = "removePlayer"
	EvtClearRoom        = "clearRoom"
	EvtPlaceAsset       = "placeAsset"
	EvtMoveToken        = "moveToken"

	// Older clients spell it with a capital F.
	evtJoinBattleFieldAlias = "joinBattleField"
)

// Server -> client message types.
const (
	MsgHello                   = "hello"
	MsgJoined                  = "joined"
	MsgRoomUpdate              = "roomUpdate"
	MsgJoinError               = "joinError"
	MsgError                   = "error"
	MsgHostStatus              = "hostStatus"
	MsgBattlefieldOpened       = "battlefieldOpened"
	MsgGameStarted             = "gameStarted"
	MsgGameEnded               = "gameEnded"
	MsgBattlefieldPlayers      = "battlefieldPlayers"
	MsgPlayerJoinedBattlefield = "playerJoinedBattlefield"
	MsgPlayerLeftBattlefield   = "playerLeftBattlefield"
	MsgAssetPlaced             = "assetPlaced"
	MsgAssetDiscovered         = "assetDiscovered"
	MsgTokenMoved              = "tokenMoved"
	MsgDiceRolled              = "diceRolled"
	MsgRemovedFromLobby        = "removedFromLobby"
	MsgForceLeave              = "forceLeave"
)

type ServerMessage struct {
	Type    string           `json:"type"`
	Version int              `json:"version,omitempty"`
	Room    *engine.Snapshot `json:"room,omitempty"`
	Error   *ErrorBody       `json:"error,omitempty"`
	Payload any              `json:"payload,omitempty"`
}

type ErrorBody struct {
	Kind     engine.Code `json:"kind"`
	Category string      `json:"category"`
	Message  string      `json:"message"`
}

type HelloPayload struct {
	ConnectionID string `json:"connectionId"`
}

type JoinedPayload struct {
	ConnectionID string          `json:"connectionId"`
	Identity     engine.Identity `json:"identity"`
}

type HostStatusPayload struct {
	Present bool `json:"present"`
}

type PlayerPayload struct {
	Identity engine.Identity `json:"identity"`
}

type BattlefieldPlayersPayload struct {
	Members []engine.Identity `json:"members"`
}

type AssetPayload struct {
	AssetID     int    `json:"assetId"`
	Name        string `json:"name"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	DisplayName string `json:"displayName,omitempty"`
}

type TokenMovedPayload struct {
	Identity engine.Identity `json:"identity"`
	X        int             `json:"x"`
	Y        int             `json:"y"`
}

type DiceRolledPayload struct {
	DisplayName string `json:"displayName"`
	Value       int    `json:"value"`
	DieKind     string `json:"dieKind"`
}

type EvictionPayload struct {
	Reason engine.EvictReason `json:"reason"`
}

func Hello(connID string) ServerMessage {
	return ServerMessage{Type: MsgHello, Payload: HelloPayload{ConnectionID: connID}}
}

func Joined(id engine.Identity) ServerMessage {
	return ServerMessage{Type: MsgJoined, Payload: JoinedPayload{ConnectionID: id.ConnID, Identity: id}}
}

func RoomUpdate(version int, snap engine.Snapshot) ServerMessage {
	return ServerMessage{Type: MsgRoomUpdate, Version: version, Room: &snap}
}

// Failure renders err for the initiating connection. msgType is MsgJoinError
// for rejected joins and MsgError otherwise.
func Failure(msgType string, err error) ServerMessage {
	code := engine.CodeOf(err)
	msg := "internal error"
	var e *engine.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	return ServerMessage{Type: msgType, Error: &ErrorBody{Kind: code, Category: code.Kind(), Message: msg}}
}

func HostStatus(present bool) ServerMessage {
	return ServerMessage{Type: MsgHostStatus, Payload: HostStatusPayload{Present: present}}
}

// Evicted is the notice a connection receives before it is closed.
func Evicted(reason engine.EvictReason) ServerMessage {
	t := MsgForceLeave
	if reason == engine.EvictRemoved {
		t = MsgRemovedFromLobby
	}
	return ServerMessage{Type: t, Payload: EvictionPayload{Reason: reason}}
}

func DiceRolled(name string, value int, kind string) ServerMessage {
	return ServerMessage{Type: MsgDiceRolled, Payload: DiceRolledPayload{DisplayName: name, Value: value, DieKind: kind}}
}
