package usecase

import (
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

// Write outcomes reported to Metrics.
const (
	outcomeOK     = "ok"
	outcomeDenied = "denied"
	outcomeError  = "error"
)

// Metrics records synchronization activity. telemetry.SyncMetrics satisfies it.
type Metrics interface {
	SubscriptionOpened(kind string)
	SubscriptionClosed(kind string)
	SnapshotDelivered(kind string)
	PermissionDenied(op string)
	WriteFinished(op, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) SubscriptionOpened(string) {}
func (noopMetrics) SubscriptionClosed(string) {}
func (noopMetrics) SnapshotDelivered(string) {}
func (noopMetrics) PermissionDenied(string) {}
func (noopMetrics) WriteFinished(string, string) {}

// Deps bundles the collaborators shared by subscriptions and writes.
type Deps struct {
	Store   port.DocumentStore
	Bus     port.ErrorChannel
	Logger  *zap.Logger
	Metrics Metrics
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	return d
}
