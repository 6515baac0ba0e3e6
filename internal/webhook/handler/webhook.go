package handler

import (
	"context"
	"net/http"

	"salespilot/internal/observability"
	"salespilot/internal/store"
	"salespilot/internal/webhook/processor"
	"salespilot/internal/workers"

	"github.com/gin-gonic/gin"
)

// Dispatcher queues webhook events for ordered asynchronous processing.
type Dispatcher interface {
	Submit(ctx context.Context, job workers.Job) error
}

type Handler struct {
	webhookProcessor processor.WebhookProcessor
	dispatcher       Dispatcher
	verifyToken      string
	logger           *observability.Logger
}

func New(webhookProcessor processor.WebhookProcessor, dispatcher Dispatcher, verifyToken string, logger *observability.Logger) Handler {
	return Handler{
		webhookProcessor: webhookProcessor,
		dispatcher:       dispatcher,
		verifyToken:      verifyToken,
		logger:           logger,
	}
}

// HandleVerify answers Meta's subscription handshake.
func (h *Handler) HandleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.String(http.StatusBadRequest, "missing hub parameters")
		return
	}
	if mode != "subscribe" || token != h.verifyToken {
		c.String(http.StatusForbidden, "verification failed")
		return
	}
	c.String(http.StatusOK, challenge)
}

type webhookBody struct {
	Object string `json:"object"`
	Entry  []struct {
		ID        string                     `json:"id"`
		Time      int64                      `json:"time"`
		Messaging []processor.MessagingEvent `json:"messaging"`
	} `json:"entry"`
}

// HandleFacebookEvent acks the delivery immediately and queues each
// messaging event on the conversation-keyed dispatcher. Meta retries the
// whole batch on non-200, so the ack must not wait for processing.
func (h *Handler) HandleFacebookEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var body webhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error(ctx, "failed to parse webhook body", err)
		c.String(http.StatusBadRequest, "invalid body")
		return
	}
	if body.Object != "page" {
		c.String(http.StatusNotFound, "unknown object")
		return
	}

	for _, entry := range body.Entry {
		for _, event := range entry.Messaging {
			event := event
			job := workers.Job{
				Key: event.ConversationKey(),
				Run: func(jobCtx context.Context) {
					h.webhookProcessor.Process(jobCtx, store.PlatformFacebook, event)
				},
			}
			if err := h.dispatcher.Submit(ctx, job); err != nil {
				h.logger.Error(ctx, "failed to queue webhook event", err)
			}
		}
	}

	c.String(http.StatusOK, "EVENT_RECEIVED")
}

// HandleInstagramEvent acks Instagram deliveries. Instagram DMs share the
// Messenger pipeline once the page connection carries Instagram scopes;
// until then events are acknowledged and dropped.
func (h *Handler) HandleInstagramEvent(c *gin.Context) {
	ctx := c.Request.Context()

	var body webhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, "invalid body")
		return
	}
	if body.Object != "instagram" {
		c.String(http.StatusNotFound, "unknown object")
		return
	}

	h.logger.Info(ctx, "instagram webhook event acknowledged")
	c.String(http.StatusOK, "EVENT_RECEIVED")
}
