package session

import (
	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
	"github.com/DoyleJ11/battlefield-lobby/internal/types"
)

var actionCommands = map[string]engine.CommandType{
	types.EvtOpenBattlefield:  engine.CmdOpenBattlefield,
	types.EvtStartGame:        engine.CmdStartGame,
	types.EvtEndGame:          engine.CmdEndGame,
	types.EvtJoinBattlefield:  engine.CmdJoinBattlefield,
	types.EvtLeaveBattlefield: engine.CmdLeaveBattlefield,
	types.EvtClearRoom:        engine.CmdClearRoom,
}

// toEngineCommand maps the payload-carrying requests onto engine commands.
// Actor is filled in by the caller.
func toEngineCommand(req types.Request) (engine.Command, error) {
	switch r := req.(type) {
	case types.Action:
		t, ok := actionCommands[r.Type]
		if !ok {
			return engine.Command{}, types.ErrUnknownType
		}
		return engine.Command{Type: t}, nil
	case types.RemovePlayer:
		return engine.Command{Type: engine.CmdRemovePlayer, TargetConnID: r.TargetConnectionID, TargetName: r.TargetDisplayName}, nil
	case types.PlaceAsset:
		return engine.Command{Type: engine.CmdPlaceAsset, AssetID: r.AssetID, X: *r.X, Y: *r.Y}, nil
	case types.MoveToken:
		return engine.Command{Type: engine.CmdMoveToken, X: *r.X, Y: *r.Y}, nil
	default:
		return engine.Command{}, types.ErrUnknownType
	}
}
