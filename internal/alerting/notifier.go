// Package alerting posts a non-blocking Slack notification when a terminal
// upstream failure (one of the *_SERVICE_UNAVAILABLE codes) reaches the
// response layer, so an operator is paged without the request itself
// waiting on Slack.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/wisbric/corpreg/internal/apperr"
)

// Notifier posts operational alerts to a Slack channel.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. If botToken is empty, the notifier is a
// no-op — alerting degrades silently rather than blocking startup.
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// Enabled reports whether this notifier has a usable Slack client.
func (n *Notifier) Enabled() bool {
	return n.client != nil && n.channel != ""
}

// NotifyServiceUnavailable posts a best-effort alert for a terminal
// *_SERVICE_UNAVAILABLE error. It never blocks the caller, and never returns
// an error the caller is expected to act on — failures are logged, not
// propagated. The post runs against its own detached context so it survives
// the triggering request's context being cancelled the moment the handler
// returns.
func (n *Notifier) NotifyServiceUnavailable(appErr *apperr.Error, correlationID string) {
	if !n.Enabled() {
		return
	}
	if !isServiceUnavailable(appErr.Code) {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		text := fmt.Sprintf(":rotating_light: %s — %s (correlation_id=%s)", appErr.Code, appErr.Message, correlationID)
		if _, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false)); err != nil {
			n.logger.Warn("failed to post operational alert to slack", "error", err, "code", appErr.Code)
		}
	}()
}

func isServiceUnavailable(code apperr.Code) bool {
	switch code {
	case apperr.CodeGUSServiceUnavailable, apperr.CodeKRSServiceUnavailable, apperr.CodeCEIDGServiceUnavailable:
		return true
	default:
		return false
	}
}
