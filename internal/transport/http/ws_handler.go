package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/utils"
)

// errClosedByServer ends the write loop when the core terminated the client.
var errClosedByServer = errors.New("closed by server")

// flushTimeout bounds how long queued events are flushed to a terminated client.
const flushTimeout = time.Second

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub *core.Hub
	cfg *config.Config
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	opts := &websocket.AcceptOptions{InsecureSkipVerify: true}
	if len(h.cfg.AllowedOrigins) > 0 {
		opts = &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins}
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), h.cfg.EventBuffer)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)
	h.log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.startAuthTimer(ctx, client)

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	if errors.Is(err, errClosedByServer) {
		// Close before cancelling so the close frame carries the reason.
		h.log.Debug().Str("client_id", client.ID).Str("reason", client.CloseReason()).Msg("ws closed by server")
		conn.Close(websocket.StatusPolicyViolation, client.CloseReason())
		cancel()
		<-errCh
		return
	}
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// startAuthTimer terminates the client if it has not joined within the
// configured timeout.
func (h *WSHandler) startAuthTimer(ctx context.Context, client *core.Client) {
	if h.cfg.AuthTimeout <= 0 {
		return
	}
	go func() {
		timer := time.NewTimer(h.cfg.AuthTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			if !client.Authenticated() {
				h.log.Warn().Str("client_id", client.ID).Msg("closing connection that never joined")
				client.Close("authentication timeout")
			}
		case <-ctx.Done():
		case <-client.Done():
		}
	}()
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)
	limiter.startReset(ctx.Done())

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.log.Debug().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			}
			return err
		}

		if !limiter.allow() {
			h.log.Warn().Str("client_id", client.ID).Msg("rate limit exceeded")
			if err := writeError(ctx, conn, &proto.Error{Code: proto.ErrCodeRateLimited, Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			h.log.Warn().Str("client_id", client.ID).Str("type", inbound.Type).Str("code", protoErr.Code).Msg("rejected inbound frame")
			if err := writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			// The write loop reports the termination.
			<-ctx.Done()
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			h.flush(conn, client)
			return errClosedByServer
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flush writes the events queued before termination, such as forced_disconnect.
func (h *WSHandler) flush(conn *websocket.Conn, client *core.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return
			}
		default:
			return
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr})
}
