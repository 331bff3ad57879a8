package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinnewbold/pattyshack-integrations/internal/models"
)

// attempt performs one HTTP delivery attempt and persists its outcome on the
// delivery row and the webhook's health counters.
func (d *Dispatcher) attempt(ctx context.Context, wh *models.Webhook, delivery *models.WebhookDelivery) Outcome {
	attemptNo := delivery.AttemptCount + 1
	now := time.Now().UTC()

	httpStatus, responseBody, latencyMs, attemptErr := d.send(ctx, wh, delivery)

	delivery.AttemptCount = attemptNo
	delivery.LastAttemptAt = &now
	delivery.HTTPStatus = httpStatus
	delivery.LatencyMs = &latencyMs
	delivery.UpdatedAt = now

	if attemptErr == nil {
		delivery.Status = models.DeliveryStatusDelivered
		delivery.ResponseBody = &responseBody
		delivery.NextRetryAt = nil
		delivery.ErrorMessage = nil
	} else {
		delivery.Status = models.DeliveryStatusFailed
		msg := attemptErr.Error()
		delivery.ErrorMessage = &msg
		if responseBody != "" {
			delivery.ResponseBody = &responseBody
		}
		// Retry only while the policy allows it; an exhausted delivery keeps
		// next_retry_at null so the sweep skips it.
		if wh.RetryOnFailure && attemptNo < wh.MaxRetries {
			next := now.Add(time.Duration(wh.RetryDelaySecs) * time.Second)
			delivery.NextRetryAt = &next
		} else {
			delivery.NextRetryAt = nil
		}
	}

	err := d.db.WithContext(ctx).Model(&models.WebhookDelivery{}).
		Where("id = ?", delivery.ID).
		Select("status", "http_status", "response_body", "latency_ms",
			"attempt_count", "last_attempt_at", "next_retry_at", "error_message", "updated_at").
		Updates(delivery).Error
	if err != nil {
		d.logger.Error("Failed to record delivery attempt",
			zap.String("delivery_id", delivery.ID.String()),
			zap.Error(err),
		)
	}

	d.recordWebhookHealth(ctx, wh, now, attemptErr == nil)

	outcome := Outcome{
		WebhookID:    wh.ID,
		DeliveryID:   delivery.ID,
		Status:       delivery.Status,
		HTTPStatus:   delivery.HTTPStatus,
		AttemptCount: delivery.AttemptCount,
		NextRetryAt:  delivery.NextRetryAt,
	}
	if attemptErr != nil {
		outcome.Error = attemptErr.Error()
		d.logger.Warn("Webhook delivery failed",
			zap.String("webhook_id", wh.ID.String()),
			zap.String("delivery_id", delivery.ID.String()),
			zap.Int("attempt", attemptNo),
			zap.String("error", outcome.Error),
		)
	} else {
		d.logger.Debug("Webhook delivered",
			zap.String("webhook_id", wh.ID.String()),
			zap.String("delivery_id", delivery.ID.String()),
			zap.Int("attempt", attemptNo),
			zap.Int("latency_ms", latencyMs),
		)
	}
	return outcome
}

// send issues the outbound HTTP call. A non-2xx response is a failure with
// the status and truncated body still captured.
func (d *Dispatcher) send(ctx context.Context, wh *models.Webhook, delivery *models.WebhookDelivery) (httpStatus *int, responseBody string, latencyMs int, err error) {
	method := wh.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, wh.URL, strings.NewReader(delivery.Payload))
	if err != nil {
		return nil, "", 0, fmt.Errorf("failed to build request: %w", err)
	}

	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PattyShack-Event", delivery.EventType)
	req.Header.Set("X-PattyShack-Delivery", delivery.ID.String())

	if wh.AuthType == models.WebhookAuthBearer && wh.AuthCredentials != "" {
		creds, decErr := d.vault.Decrypt(wh.AuthCredentials)
		if decErr != nil {
			return nil, "", 0, fmt.Errorf("failed to decrypt webhook credentials: %w", decErr)
		}
		req.Header.Set("Authorization", "Bearer "+creds["token"])
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	latencyMs = int(time.Since(start).Milliseconds())
	if err != nil {
		return nil, "", latencyMs, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	httpStatus = &resp.StatusCode
	responseBody = d.readTruncated(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpStatus, responseBody, latencyMs, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return httpStatus, responseBody, latencyMs, nil
}

// readTruncated drains up to maxResponseChars+1 bytes and truncates.
func (d *Dispatcher) readTruncated(r io.Reader) string {
	buf, err := io.ReadAll(io.LimitReader(r, int64(d.maxResponseChars)+1))
	if err != nil {
		return ""
	}
	if len(buf) > d.maxResponseChars {
		buf = buf[:d.maxResponseChars]
	}
	return string(buf)
}

// recordWebhookHealth bumps the aggregate counters and last-delivery status.
func (d *Dispatcher) recordWebhookHealth(ctx context.Context, wh *models.Webhook, now time.Time, success bool) {
	counter := "failure_count"
	status := models.WebhookLastStatusFailed
	if success {
		counter = "success_count"
		status = models.WebhookLastStatusSuccess
	}

	err := d.db.WithContext(ctx).Model(&models.Webhook{}).
		Where("id = ?", wh.ID).
		Updates(map[string]interface{}{
			counter:             gorm.Expr(counter+" + 1"),
			"last_status":       status,
			"last_triggered_at": now,
			"updated_at":        now,
		}).Error
	if err != nil {
		d.logger.Error("Failed to update webhook health counters",
			zap.String("webhook_id", wh.ID.String()),
			zap.Error(err),
		)
	}
}
