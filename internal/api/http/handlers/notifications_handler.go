package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/facilityops/facility-service/internal/api/dto"
	"github.com/facilityops/facility-service/internal/realtime"
	"github.com/facilityops/facility-service/internal/service"
)

const heartbeatInterval = 25 * time.Second

// NotificationsHandler serves the inbox and its live stream.
type NotificationsHandler struct {
	notifications *service.NotificationService
	hub           *realtime.Hub
	logger        *zap.Logger
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService, hub *realtime.Hub, logger *zap.Logger) *NotificationsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationsHandler{notifications: notifications, hub: hub, logger: logger}
}

// List GET /notifications?limit=&offset=.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	page, err := h.notifications.List(c.UserContext(), actor, parseInt(c.Query("limit"), 0), parseInt(c.Query("offset"), 0))
	if err != nil {
		return err
	}
	resp := dto.NotificationListResponse{
		Items:       make([]dto.NotificationResponse, 0, len(page.Items)),
		UnreadCount: page.Unread,
	}
	for _, n := range page.Items {
		resp.Items = append(resp.Items, notificationResponse(n))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	n, err := h.notifications.MarkRead(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponse(*n)})
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	updated, err := h.notifications.MarkAllRead(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": updated}})
}

// Stream GET /notifications/stream. Server-sent events until the client disconnects.
func (h *NotificationsHandler) Stream(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	unread, err := h.notifications.UnreadCount(c.UserContext(), actor)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	messages, unsubscribe := h.hub.Subscribe(actor.ID)
	logger := h.logger.With(zap.String("recipient_id", actor.ID))
	initial := realtime.Message{
		Kind:        realtime.KindUnreadCount,
		RecipientID: actor.ID,
		UnreadCount: &unread,
		SentAt:      time.Now().UTC(),
	}

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		if err := writeEvent(w, initial); err != nil {
			return
		}
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if err := writeEvent(w, msg); err != nil {
					logger.Debug("stream closed", zap.Error(err))
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					logger.Debug("stream closed", zap.Error(err))
					return
				}
			}
		}
	}))
	return nil
}

type flushWriter interface {
	io.Writer
	Flush() error
}

func writeEvent(w flushWriter, msg realtime.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Kind, payload); err != nil {
		return err
	}
	return w.Flush()
}
