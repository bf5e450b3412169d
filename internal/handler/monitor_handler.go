package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/examinator/internal/service"
	ws "github.com/stemsi/examinator/internal/websocket"
)

const (
	keepAliveInterval = 30 * time.Second
	snapshotTimeout   = 5 * time.Second
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams an exam's live events to teachers over WebSocket.
type MonitorHandler struct {
	monitor  *service.MonitorService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitor *service.MonitorService, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		monitor:  monitor,
		log:      log.With().Str("component", "monitor_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// MonitorExam godoc
// WS /ws/v1/exams/:exam_id/monitor?token=
// Sends a snapshot on connect, then forwards join, answer, cancel and grading
// events as they are published. Clients may send {"action":"ping"} or
// {"action":"snapshot"}.
func (h *MonitorHandler) MonitorExam(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	// Resolve the exam before upgrading so unknown ids get a normal 404.
	snap, err := h.snapshot(c.Request.Context(), examID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("exam_id", examID.String()).Logger()
	wsLog.Info().Msg("Monitor attached")

	if err := ws.WriteTyped(conn, snap); err != nil {
		return
	}

	// The request context is not canceled when a hijacked connection drops,
	// so the reader owns the lifetime.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.monitor.Subscribe(ctx, examID)
	defer pubsub.Close()
	events := pubsub.Channel()

	actions := make(chan ws.Action, 4)
	go func() {
		defer cancel()
		for {
			var env ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &env); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			select {
			case actions <- env.Action:
			case <-ctx.Done():
				return
			}
		}
	}()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	pong := ws.PongResponse{Event: ws.EventPong}

	for {
		var werr error
		select {
		case <-ctx.Done():
			wsLog.Info().Msg("Monitor detached")
			return

		case msg, open := <-events:
			if !open {
				return
			}
			// Payloads are already encoded monitor events.
			werr = ws.WriteRaw(conn, []byte(msg.Payload))

		case action := <-actions:
			switch action {
			case ws.ActionPing:
				werr = ws.WriteTyped(conn, pong)
			case ws.ActionSnapshot:
				s, err := h.snapshot(ctx, examID)
				if err != nil {
					werr = ws.WriteError(conn, "snapshot unavailable")
					break
				}
				werr = ws.WriteTyped(conn, s)
			default:
				werr = ws.WriteError(conn, "unknown action: "+string(action))
			}

		case <-keepAlive.C:
			werr = ws.WriteTyped(conn, pong)
		}

		if werr != nil {
			wsLog.Debug().Err(werr).Msg("Write failed")
			return
		}
	}
}

func (h *MonitorHandler) snapshot(parent context.Context, examID uuid.UUID) (*ws.SnapshotResponse, error) {
	ctx, cancel := context.WithTimeout(parent, snapshotTimeout)
	defer cancel()
	return h.monitor.Snapshot(ctx, examID)
}

