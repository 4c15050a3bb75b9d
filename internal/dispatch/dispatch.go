// Package dispatch owns the authenticated send call and the retry-on-401
// policy: at most one token refresh, with the refreshed tokens persisted
// before the retried send.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/veldmed/practice-platform/internal/connections"
	"github.com/veldmed/practice-platform/internal/mail"
	"github.com/veldmed/practice-platform/internal/observability/metrics"
	"github.com/veldmed/practice-platform/pkg/logging"
)

var dispatchTracer = otel.Tracer("veldmed.internal.dispatch")

// ErrUnsupportedProvider indicates a connection row names a provider this
// build has no sender for.
var ErrUnsupportedProvider = errors.New("dispatch: unsupported provider")

// TokenWriter persists refreshed tokens back onto the connection row.
type TokenWriter interface {
	UpdateTokens(ctx context.Context, identity, accessToken, refreshToken string) error
}

// Dispatcher routes messages to the connection's provider and runs the
// single refresh-and-retry cycle on authorization failures.
type Dispatcher struct {
	senders    map[connections.Provider]mail.Sender
	refreshers map[connections.Provider]mail.TokenRefresher
	tokens     TokenWriter
	metrics    *metrics.DeliveryMetrics
	logger     *logging.Logger
}

// New builds a dispatcher. metrics may be nil.
func New(
	senders map[connections.Provider]mail.Sender,
	refreshers map[connections.Provider]mail.TokenRefresher,
	tokens TokenWriter,
	m *metrics.DeliveryMetrics,
	logger *logging.Logger,
) *Dispatcher {
	if tokens == nil {
		panic("dispatch: token writer cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		senders:    senders,
		refreshers: refreshers,
		tokens:     tokens,
		metrics:    m,
		logger:     logger,
	}
}

// Deliver sends msg through the connection's provider.
//
// The first 401 triggers exactly one refresh when the connection holds a
// refresh token; the new tokens are written to the store before the retried
// send so a crash in between cannot lose them. Any failure after the refresh
// means the user must reconnect. A retried send is a brand-new provider call
// with no idempotency key, which is accepted.
func (d *Dispatcher) Deliver(ctx context.Context, conn *connections.EmailConnection, msg mail.Message) error {
	ctx, span := dispatchTracer.Start(ctx, "dispatch.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("veldmed.provider", string(conn.Provider)),
		attribute.String("veldmed.identity", conn.Identity),
	)

	sender, ok := d.senders[conn.Provider]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedProvider, conn.Provider)
	}

	err := sender.Send(ctx, conn.AccessToken, msg)
	if err == nil {
		d.metrics.ObserveSend(string(conn.Provider), "sent", false)
		return nil
	}
	if !mail.IsAuthError(err) {
		d.metrics.ObserveSend(string(conn.Provider), "failed", false)
		return err
	}
	if conn.RefreshToken == "" {
		d.logger.Warn("provider rejected token and no refresh token stored",
			"identity", conn.Identity, "provider", conn.Provider)
		d.metrics.ObserveSend(string(conn.Provider), "auth_failed", false)
		return err
	}

	refresher, ok := d.refreshers[conn.Provider]
	if !ok {
		d.metrics.ObserveSend(string(conn.Provider), "auth_failed", false)
		return fmt.Errorf("%w: no refresher for %s", ErrUnsupportedProvider, conn.Provider)
	}

	d.logger.Info("access token rejected, refreshing",
		"identity", conn.Identity, "provider", conn.Provider)

	refreshed, refreshErr := refresher.Refresh(ctx, conn.RefreshToken)
	if refreshErr != nil {
		d.metrics.ObserveRefresh(string(conn.Provider), "failed")
		return fmt.Errorf("dispatch: reconnect required: %w", refreshErr)
	}
	d.metrics.ObserveRefresh(string(conn.Provider), "refreshed")

	// Persist before the retry; an empty rotated token keeps the stored one.
	if err := d.tokens.UpdateTokens(ctx, conn.Identity, refreshed.AccessToken, refreshed.RefreshToken); err != nil {
		return fmt.Errorf("dispatch: failed to persist refreshed tokens: %w", err)
	}

	if err := sender.Send(ctx, refreshed.AccessToken, msg); err != nil {
		d.metrics.ObserveSend(string(conn.Provider), "failed", true)
		return fmt.Errorf("dispatch: reconnect required, send failed after refresh: %w", err)
	}

	d.metrics.ObserveSend(string(conn.Provider), "sent", true)
	d.logger.Info("email delivered after token refresh",
		"identity", conn.Identity, "provider", conn.Provider)
	return nil
}
