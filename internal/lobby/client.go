package lobby

import (
	"context"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
)

// Join admits p under id. Rejections come back as Result.Err.
func (l *Lobby) Join(ctx context.Context, p Peer, id engine.Identity) (Result, error) {
	reply := make(chan Result, 1)
	return request(ctx, l, Join{Peer: p, Identity: id, Reply: reply}, reply)
}

// Do runs one engine command on behalf of cmd.Actor.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) (Result, error) {
	reply := make(chan Result, 1)
	return request(ctx, l, FromClient{Cmd: cmd, Reply: reply}, reply)
}

func (l *Lobby) Roll(ctx context.Context, connID, kind string) (Result, error) {
	reply := make(chan Result, 1)
	return request(ctx, l, RollDice{ConnID: connID, Kind: kind, Reply: reply}, reply)
}

func (l *Lobby) Leave(ctx context.Context, connID string) (Result, error) {
	reply := make(chan Result, 1)
	return request(ctx, l, Leave{ConnID: connID, Reply: reply}, reply)
}

func (l *Lobby) Kick(ctx context.Context, connID string, reason engine.EvictReason) (Result, error) {
	reply := make(chan Result, 1)
	return request(ctx, l, Kick{ConnID: connID, Reason: reason, Reply: reply}, reply)
}

func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	return request(ctx, l, GetState{Reply: reply}, reply)
}

// request delivers m and waits for its reply. A lobby that stopped before
// answering yields engine.ErrRoomClosed.
func request[T any](ctx context.Context, l *Lobby, m Msg, reply <-chan T) (T, error) {
	var zero T

	select {
	case l.inbox <- m:
	case <-l.done:
		return zero, engine.ErrRoomClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		// The reply may have been sent just before the lobby stopped.
		select {
		case v := <-reply:
			return v, nil
		default:
			return zero, engine.ErrRoomClosed
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
