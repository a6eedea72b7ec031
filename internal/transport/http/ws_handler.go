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

	"github.com/vovakirdan/conclave/internal/core"
	"github.com/vovakirdan/conclave/internal/proto"
	"github.com/vovakirdan/conclave/internal/utils"
)

const (
	tapFrameLimit  = 30
	tapFrameWindow = time.Minute
)

// WSHandler upgrades HTTP connections and streams bus events to them.
type WSHandler struct {
	hub    *core.Hub
	nodeID string
	log    *zerolog.Logger
}

// NewWSHandler builds a new tap handler.
func NewWSHandler(hub *core.Hub, nodeID string, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, nodeID: nodeID, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	client := core.NewClient(utils.NewID())
	if err := h.hub.RegisterClient(client); err != nil {
		conn.Close(websocket.StatusGoingAway, "node stopping")
		return
	}
	defer h.hub.UnregisterClient(client)
	h.log.Debug().Str("client_id", client.ID).Msg("tap observer connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limiter := newRateLimiter(tapFrameLimit, tapFrameWindow)
	limiter.startReset(ctx.Done())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
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
	h.log.Debug().Str("client_id", client.ID).Msg("tap observer disconnected")
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		frameErr := inboundError(inbound)
		if frameErr == nil && !limiter.allow() {
			frameErr = core.RateLimited("too many frames")
		}
		if frameErr == nil {
			continue
		}
		h.log.Debug().Str("client_id", client.ID).Str("code", frameErr.Code).Msg("rejecting observer frame")
		if err := wsjson.Write(ctx, conn, errorFrame(frameErr)); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(h.nodeID, event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
