package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/battlefield-lobby/internal/types"
)

// peer is one websocket connection as seen by the rooms. Rooms only ever
// enqueue; the writer goroutine owns the socket.
type peer struct {
	id     string
	conn   *websocket.Conn
	outbox chan types.ServerMessage
	closed chan struct{}
	once   sync.Once
	reason string
	log    *zap.Logger
}

func newPeer(id string, conn *websocket.Conn, size int, log *zap.Logger) *peer {
	return &peer{
		id:     id,
		conn:   conn,
		outbox: make(chan types.ServerMessage, size),
		closed: make(chan struct{}),
		log:    log,
	}
}

func (p *peer) ID() string { return p.id }

func (p *peer) Send(msg types.ServerMessage) bool {
	select {
	case <-p.closed:
		return false
	default:
	}
	select {
	case p.outbox <- msg:
		return true
	default:
		return false
	}
}

func (p *peer) Close(reason string) {
	p.once.Do(func() {
		p.reason = reason
		close(p.closed)
	})
}

// writePump drains the outbox onto the socket. Once the peer is closed it
// flushes what is already queued, so eviction notices still arrive, and then
// closes the socket.
func (p *peer) writePump(ctx context.Context, timeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-p.outbox:
			if err := p.write(ctx, msg, timeout); err != nil {
				p.log.Debug("write failed", zap.Error(err))
				p.Close("write failed")
				_ = p.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-p.closed:
			p.flush(ctx, timeout)
			_ = p.conn.Close(websocket.StatusNormalClosure, p.reason)
			return
		}
	}
}

func (p *peer) flush(ctx context.Context, timeout time.Duration) {
	for {
		select {
		case msg := <-p.outbox:
			if err := p.write(ctx, msg, timeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (p *peer) write(ctx context.Context, msg types.ServerMessage, timeout time.Duration) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.conn.Write(wctx, websocket.MessageText, payload)
}
