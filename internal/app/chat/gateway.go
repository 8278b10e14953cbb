package chat

import (
	"context"

	"github.com/rs/zerolog"

	"geochat/internal/pkg/logx"
)

// Gateway bundles the services a connection dispatches to and owns the
// combined disconnect handler.
type Gateway struct {
	Hub         *Hub
	Coordinator *Coordinator
	Matchmaker  *Matchmaker
	Messenger   *Messenger

	logger zerolog.Logger
}

// NewGateway constructs a Gateway over the given services.
func NewGateway(hub *Hub, coordinator *Coordinator, matchmaker *Matchmaker, messenger *Messenger) *Gateway {
	return &Gateway{
		Hub:         hub,
		Coordinator: coordinator,
		Matchmaker:  matchmaker,
		Messenger:   messenger,
		logger:      logx.Logger().With().Str("component", "Gateway").Logger(),
	}
}

// handleDisconnect is the single combined teardown path for a dropped
// transport: video pairing cleanup, room-presence cleanup (including the
// rate-limit window), then removal from the hub.
func (g *Gateway) handleDisconnect(c *Client) {
	g.Matchmaker.Disconnect(c.connID)
	g.Coordinator.HandleDisconnect(context.Background(), c)
	g.Hub.Unregister(c)
}

// Shutdown terminates every live connection.
func (g *Gateway) Shutdown() {
	g.logger.Info().Msg("Shutting down gateway...")
	g.Hub.Shutdown()
}
