package telemetry

import (
	"context"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

// MultiNotifier fans an event out to every sink in order. An empty
// MultiNotifier drops everything.
type MultiNotifier []domain.Notifier

func (m MultiNotifier) Notify(ctx context.Context, event domain.Event) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}
