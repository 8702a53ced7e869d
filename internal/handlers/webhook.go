package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/deploy"
	"chat-relay/internal/logging"
	"chat-relay/internal/observability"
)

const (
	eventHeader    = "X-GitHub-Event"
	deliveryHeader = "X-GitHub-Delivery"

	maxWebhookBody = 25 << 20
)

// Deployer updates and restarts the service.
type Deployer interface {
	Deploy(ctx context.Context) error
}

// WebhookHandler verifies signed repository events and deploys on push.
type WebhookHandler struct {
	secret   string
	deployer Deployer
}

// NewWebhookHandler builds a WebhookHandler.
func NewWebhookHandler(secret string, deployer Deployer) *WebhookHandler {
	return &WebhookHandler{secret: secret, deployer: deployer}
}

// Handle serves POST /webhook.
func (h *WebhookHandler) Handle(c *gin.Context) {
	logger := logging.FromContext(c.Request.Context())

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid body")
		return
	}

	if !deploy.VerifySignature(h.secret, body, c.GetHeader(deploy.SignatureHeader)) {
		logger.Warn("webhook signature rejected", "ip", c.ClientIP())
		observability.IncDeployment("rejected")
		c.String(http.StatusUnauthorized, "Invalid signature")
		return
	}

	event := c.GetHeader(eventHeader)
	delivery := c.GetHeader(deliveryHeader)
	if event != "push" {
		logger.Info("webhook event ignored", "event", event, "delivery", delivery)
		c.String(http.StatusOK, "Event received")
		return
	}

	// The deploy outlives a sender that gives up waiting.
	ctx := context.WithoutCancel(c.Request.Context())
	logger.Info("deploy started", "delivery", delivery)
	if err := h.deployer.Deploy(ctx); err != nil {
		logger.Error("deploy failed", "delivery", delivery, "error", err)
		observability.IncDeployment("failed")
		h.publish(ctx, c, "deploy_failed", delivery)
		c.String(http.StatusInternalServerError, "Deployment failed")
		return
	}

	logger.Info("deploy succeeded", "delivery", delivery)
	observability.IncDeployment("succeeded")
	h.publish(ctx, c, "deploy_succeeded", delivery)
	c.String(http.StatusOK, "Deployed")
}

func (h *WebhookHandler) publish(ctx context.Context, c *gin.Context, name, delivery string) {
	envelope := observability.NewEnvelope("deploy_events", name, map[string]string{"delivery": delivery})
	headers := observability.BuildHeaders(logging.RequestIDFromContext(c), "")
	if err := observability.PublishEvent(ctx, observability.RoutingKeyDeploy, envelope, headers); err != nil {
		logging.FromContext(ctx).Warn("deploy event publish failed", "event", name, "error", err)
	}
}
