package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/service-request-engine/internal/config"
	"github.com/spec-kit/service-request-engine/internal/events"
)

// NotificationService forwards request events to the external notification
// collaborator. Delivery itself stays out of the engine; this is the
// boundary where the returned-state trigger payload leaves the process.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	client     *http.Client
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventRequestStatusChanged, n.handleEvent)
	n.dispatcher.Subscribe(events.EventRequestAssigned, n.handleEvent)
	n.dispatcher.Subscribe(events.EventRequestNoteAdded, n.handleEvent)
	n.dispatcher.Subscribe(events.EventRequestContentEdited, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("request event",
		zap.String("event_type", string(event.Type)),
		zap.String("request_id", event.RequestID),
		zap.String("actor_id", event.Actor.UserID),
	)
	n.forwardWebhook(ctx, event)
	return nil
}

func (n *NotificationService) forwardWebhook(ctx context.Context, event events.Event) {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("marshal webhook payload", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("deliver webhook", zap.Error(err), zap.String("event_type", string(event.Type)))
		return
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		n.logger.Warn("webhook rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("event_type", string(event.Type)))
	}
}
