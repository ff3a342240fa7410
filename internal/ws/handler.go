package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/battlefield-lobby/internal/engine"
	"github.com/DoyleJ11/battlefield-lobby/internal/lobby"
	"github.com/DoyleJ11/battlefield-lobby/internal/types"
)

// Sessions is the part of the session manager the transport drives.
type Sessions interface {
	Connect(p lobby.Peer)
	Handle(ctx context.Context, p lobby.Peer, req types.Request)
	Disconnect(ctx context.Context, connID string)
}

type Options struct {
	OriginPatterns []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	OutboxSize     int
	MessageRate    float64
	MessageBurst   int
	ReadLimit      int64
}

func DefaultOptions() Options {
	return Options{
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Second,
		OutboxSize:   32,
		MessageRate:  20,
		MessageBurst: 40,
		ReadLimit:    8 << 10,
	}
}

var errBinaryFrame = &engine.Error{Code: engine.CodeMissingFields, Message: "binary frames are not supported"}

func Handler(s Sessions, opts Options, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		if opts.ReadLimit > 0 {
			conn.SetReadLimit(opts.ReadLimit)
		}

		id := uuid.NewString()
		clog := log.With(zap.String("conn", id))
		p := newPeer(id, conn, opts.OutboxSize, clog)

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			p.writePump(writeCtx, opts.WriteTimeout)
		}()

		s.Connect(p)
		clog.Info("connection accepted", zap.String("remote", r.RemoteAddr))

		readLoop(r.Context(), conn, p, s, opts, clog)

		p.Close("connection closed")
		select {
		case <-writerDone:
		case <-time.After(opts.WriteTimeout):
		}
		writeCancel()

		ctx, cancel := context.WithTimeout(context.Background(), opts.WriteTimeout)
		defer cancel()
		s.Disconnect(ctx, id)
		clog.Info("connection closed", zap.String("reason", p.reason))
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, p *peer, s Sessions, opts Options, log *zap.Logger) {
	limiter := rate.NewLimiter(rate.Limit(opts.MessageRate), opts.MessageBurst)

	for {
		rctx, cancel := context.WithTimeout(ctx, opts.ReadTimeout)
		typ, data, err := conn.Read(rctx)
		cancel()
		if err != nil {
			switch {
			case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
				websocket.CloseStatus(err) == websocket.StatusGoingAway:
			case errors.Is(err, context.DeadlineExceeded):
				log.Info("idle timeout")
				p.Close("idle timeout")
			default:
				log.Debug("read ended", zap.Error(err))
			}
			return
		}

		if !limiter.Allow() {
			log.Debug("rate limited, dropping message")
			continue
		}
		if typ != websocket.MessageText {
			p.Send(types.Failure(types.MsgError, errBinaryFrame))
			continue
		}

		req, err := types.Decode(data)
		if err != nil {
			p.Send(types.Failure(types.MsgError, err))
			continue
		}
		s.Handle(ctx, p, req)
	}
}
