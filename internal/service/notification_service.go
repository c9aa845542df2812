package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/installer-orchestrator/internal/config"
	"github.com/spec-kit/installer-orchestrator/internal/events"
)

// EventPublisher forwards events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// NotificationService fans lifecycle events out to the configured sinks.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
	publisher  EventPublisher
	httpClient *http.Client
}

// NewNotificationService creates the service. publisher may be nil.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig, publisher EventPublisher, httpClient *http.Client) *NotificationService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		publisher:  publisher,
		httpClient: httpClient,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventRequestNotification, n.handleNotification)
	n.dispatcher.Subscribe(events.EventRequestStateChanged, n.handleStateChanged)
}

func (n *NotificationService) handleNotification(ctx context.Context, event events.Event) error {
	n.logger.Info("RequestNotification", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	var errs []string
	if err := n.sendWebhook(ctx, event); err != nil {
		errs = append(errs, err.Error())
	}
	if err := n.publish(ctx, event); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification sinks: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (n *NotificationService) handleStateChanged(ctx context.Context, event events.Event) error {
	n.logger.Debug("RequestStateChanged", zap.String("request_id", event.RequestID), zap.Any("payload", event.Payload))
	return n.publish(ctx, event)
}

func (n *NotificationService) publish(ctx context.Context, event events.Event) error {
	if n.publisher == nil {
		return nil
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (n *NotificationService) sendWebhook(ctx context.Context, event events.Event) error {
	url := strings.TrimSpace(n.cfg.WebhookURL)
	if url == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	n.logger.Debug("webhook delivered",
		zap.String("url", url),
		zap.String("request_id", event.RequestID),
		zap.String("event_type", string(event.Type)))
	return nil
}
