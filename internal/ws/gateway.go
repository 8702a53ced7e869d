package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-relay/internal/apperror"
	"chat-relay/internal/logging"
	"chat-relay/internal/middleware"
	"chat-relay/internal/models"
	"chat-relay/internal/observability"
	"chat-relay/internal/services"
)

// MessageSender persists a message and returns what to deliver.
type MessageSender interface {
	Send(ctx context.Context, sender services.Identity, recipient, body string) (models.Delivery, error)
}

// GatewayHandler upgrades authenticated connections and relays messages
// between users' channels.
type GatewayHandler struct {
	hub      *Hub
	messages MessageSender
}

// NewGatewayHandler constructs a GatewayHandler.
func NewGatewayHandler(hub *Hub, messages MessageSender) *GatewayHandler {
	return &GatewayHandler{hub: hub, messages: messages}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const sendFailedMessage = "Error sending message"

// Handle upgrades the connection and joins it to the caller's own channel.
// It must run behind middleware.RequireToken; without claims it refuses with
// 401 and never upgrades.
func (h *GatewayHandler) Handle(c *gin.Context) {
	ctx, span := observability.Tracer("chat-relay/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	claims, ok := middleware.ClaimsFromContext(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthenticated")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication error"})
		return
	}
	span.SetAttributes(attribute.String("chat.username", claims.Username))

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      claims.UserID,
		Username:    claims.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   logging.RequestIDFromContext(c),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := newClient(conn, info)
	h.hub.Join(info.Username, client)

	logger := slog.Default().With("username", info.Username, "conn_id", info.ConnID)
	logger.Info("user connected")
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(context.WithoutCancel(ctx), "ws_connect", info, "")

	go client.writePump()
	go func() {
		err := client.readPump(func(raw []byte) {
			h.dispatch(client, logger, raw)
		})

		h.hub.Leave(info.Username, client)
		client.close()

		reason := ""
		if err != nil && !isExpectedCloseError(err) {
			reason = err.Error()
			observability.IncWSEvent("ws_error")
		}
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle(context.Background(), "ws_disconnect", info, reason)
		logger.Info("user disconnected", "duration_ms", time.Since(info.ConnectedAt).Milliseconds())
	}()
}

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (h *GatewayHandler) dispatch(client *Client, logger *slog.Logger, raw []byte) {
	var in inboundEvent
	if err := json.Unmarshal(raw, &in); err != nil {
		logger.Debug("ignoring malformed realtime frame", "error", err)
		return
	}

	switch in.Event {
	case models.EventSendMessage:
		var req models.SendRequest
		if len(in.Data) > 0 {
			_ = json.Unmarshal(in.Data, &req)
		}
		h.sendMessage(client, logger, req)
	default:
		logger.Debug("ignoring unknown realtime event", "event", in.Event)
	}
}

// sendMessage relays one message: persist, then deliver to the recipient's
// channel and echo to the sender's channel. Errors go to this connection only.
func (h *GatewayHandler) sendMessage(client *Client, logger *slog.Logger, req models.SendRequest) {
	ctx, span := observability.Tracer("chat-relay/ws").Start(context.Background(), "ws.sendMessage")
	defer span.End()

	sender := services.Identity{UserID: client.info.UserID, Username: client.info.Username}
	delivery, err := h.messages.Send(ctx, sender, req.Recipient, req.Message)
	if err != nil {
		if apperror.Kind(err) == nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "send failed")
			logger.Error("error sending message", "recipient", req.Recipient, "error", err)
			observability.IncMessage("failed")
		} else {
			observability.IncMessage("rejected")
		}
		client.emit(models.Event{Event: models.EventError, Data: apperror.Message(err, sendFailedMessage)})
		return
	}

	event := models.Event{Event: models.EventReceiveMessage, Data: delivery}
	delivered := h.hub.Emit(req.Recipient, event)
	if req.Recipient != sender.Username {
		delivered += h.hub.Emit(sender.Username, event)
	}
	observability.IncMessage("delivered")
	logger.Debug("message relayed", "recipient", req.Recipient, "connections", delivered)
}

func (h *GatewayHandler) publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
	envelope := observability.NewEnvelope("ws_events", event, payload)
	if err := observability.PublishEvent(ctx, observability.RoutingKeyWS, envelope, observability.BuildHeaders(info.RequestID, info.TraceID)); err != nil {
		slog.Warn("publish lifecycle event", "event", event, "error", err)
	}
}
