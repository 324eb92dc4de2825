// Package lock provides named mutual exclusion across worker processes.
package lock

import "context"

// WebhookProcessing guards the webhook queue so one worker claims at a time.
const WebhookProcessing = "webhook_processing"

type Locker interface {
	// Acquire tries to take the named lock without blocking.
	Acquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}
