// Package service implements the bridge's flow logic: client registration,
// the bridged authorize/callback legs, token exchange and refresh, and
// background housekeeping. Handlers stay thin; everything interesting
// happens here.
package service

import (
	"context"
	"log/slog"
	"time"
)

// Role is an opaque role identifier owned by whatever system sits behind
// RoleLookup. The bridge only transports it.
type Role string

// RoleLookup resolves a user's role from an external system. The bridge
// consumes this interface and ships a no-op default; deployments plug in
// their own.
type RoleLookup interface {
	GetUserRole(ctx context.Context, userID string) (Role, error)
}

// NopRoleLookup returns an empty role for every user.
type NopRoleLookup struct{}

func (NopRoleLookup) GetUserRole(context.Context, string) (Role, error) { return "", nil }

// Event is a security-relevant occurrence handed to the audit sink. Fields
// carry the detail that OAuth error responses deliberately omit.
type Event struct {
	Action   string
	ClientID string
	Subject  string
	Detail   string
	At       time.Time
}

// AuditSink receives audit events. Implementations must not block the
// request path for long; the bridge calls Record inline.
type AuditSink interface {
	Record(ctx context.Context, event Event)
}

// SlogAuditSink writes audit events to a structured logger.
type SlogAuditSink struct {
	Logger *slog.Logger
}

func (s SlogAuditSink) Record(ctx context.Context, event Event) {
	s.Logger.InfoContext(ctx, "audit",
		slog.String("action", event.Action),
		slog.String("client_id", event.ClientID),
		slog.String("subject", event.Subject),
		slog.String("detail", event.Detail),
	)
}

// MetricsSink receives timing observations.
type MetricsSink interface {
	RecordDuration(metric string, d time.Duration)
}

// NopMetricsSink discards all observations.
type NopMetricsSink struct{}

func (NopMetricsSink) RecordDuration(string, time.Duration) {}

// SlogMetricsSink logs each observation, useful in development.
type SlogMetricsSink struct {
	Logger *slog.Logger
}

func (s SlogMetricsSink) RecordDuration(metric string, d time.Duration) {
	s.Logger.Debug("metric", slog.String("name", metric), slog.Duration("duration", d))
}
