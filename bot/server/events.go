package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liuran001/SongShare-Go/bot"
	"github.com/liuran001/SongShare-Go/bot/slack"
	"github.com/liuran001/SongShare-Go/bot/telemetry"
	"github.com/liuran001/SongShare-Go/bot/worker"
)

// maxBodyBytes caps inbound event payloads.
const maxBodyBytes = 1 << 20

// Submitter queues work without blocking the request.
type Submitter interface {
	TrySubmit(task func()) error
}

// MessageProcessor handles one chat message.
type MessageProcessor interface {
	Process(ctx context.Context, evt bot.MessageEvent)
}

// EventsHandler receives chat platform event callbacks.
type EventsHandler struct {
	SigningSecret string
	Processor     MessageProcessor
	Pool          Submitter
	Logger        bot.Logger
}

// Handle authenticates, parses and acknowledges one event delivery. Message
// events are processed in the background after the response is written.
func (h *EventsHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	if err := slack.VerifyRequest(h.SigningSecret, c.Request.Header, body); err != nil {
		telemetry.CountEvent("unauthorized")
		h.warn("rejected event delivery", "error", err, "corr", telemetry.GetCorrelation(c.Request.Context()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	env, err := slack.ParseEnvelope(body)
	if err != nil {
		telemetry.CountEvent("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	telemetry.CountEvent(env.Type)

	switch env.Type {
	case slack.TypeURLVerification:
		c.String(http.StatusOK, env.Challenge)
		return
	case slack.TypeEventCallback:
	default:
		c.Status(http.StatusOK)
		return
	}

	msg, ok := env.Message()
	if !ok {
		c.Status(http.StatusOK)
		return
	}

	evt := msg.ToBot()
	if evt.FromBot() {
		c.Status(http.StatusOK)
		return
	}

	// The dispatch outlives the request; keep its values but not its deadline.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.Pool.TrySubmit(func() { h.Processor.Process(ctx, evt) }); err != nil {
		h.warn("dispatch queue unavailable", "error", err, "event_id", env.EventID, "channel", evt.ChannelID)
		status := http.StatusInternalServerError
		if errors.Is(err, worker.ErrPoolFull) || errors.Is(err, worker.ErrPoolClosed) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "busy"})
		return
	}

	c.Status(http.StatusOK)
}

func (h *EventsHandler) warn(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Warn(msg, args...)
	}
}
