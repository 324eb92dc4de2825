package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"shopmirror/internal/pager"

	"go.uber.org/zap"
)

// DefaultWebhookTopics are the topics the mirror needs to stay current.
var DefaultWebhookTopics = []string{
	"products/create",
	"products/update",
	"products/delete",
	"collections/create",
	"collections/update",
	"collections/delete",
	"customers/create",
	"customers/update",
	"customers/delete",
	"orders/create",
	"orders/paid",
}

// EnsureWebhooks registers every topic not already subscribed at address and
// returns the topics it created.
func (e *Engine) EnsureWebhooks(ctx context.Context, address string, topics []string) ([]string, error) {
	if address == "" {
		return nil, validationError("webhook address is required")
	}
	if len(topics) == 0 {
		topics = DefaultWebhookTopics
	}

	existing, err := pager.All(ctx, e.remote.ListWebhooks, url.Values{"limit": {strconv.Itoa(e.pageSize)}})
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	subscribed := map[string]bool{}
	for _, w := range existing {
		if w.Address == address {
			subscribed[w.Topic] = true
		}
	}

	var created []string
	for _, topic := range topics {
		if subscribed[topic] {
			continue
		}
		if _, err := e.remote.CreateWebhook(ctx, topic, address); err != nil {
			return created, fmt.Errorf("register webhook %s: %w", topic, err)
		}
		subscribed[topic] = true
		created = append(created, topic)
		e.logger.Info("webhook registered", zap.String("topic", topic), zap.String("address", address))
	}
	return created, nil
}
