/*
Package handler provides the HTTP routing and the WebSocket upgrade handler.

This file contains the connection gateway: per-IP rate limiting, token
verification, the upgrade itself, and starting the client lifecycle. A stable
user identity is attached before any event is processed.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"geochat/internal/app/chat"
	"geochat/internal/pkg/auth/jwt"
	"geochat/internal/pkg/errs"
	"geochat/internal/pkg/limiter"
	"geochat/internal/pkg/logx"
	"geochat/internal/pkg/resp"
)

// HandleWebSocket creates the HandlerFunc for WebSocket connection requests.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrTooManyJoinAttempts))
			return
		}

		payload, err := jwt.VerifyRequest(r, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket connection rejected: Invalid or missing token.", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if payload.UserID == "" {
			logx.Warn("WebSocket connection rejected: Token carries no user identity.")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(deps.Gateway, conn, payload.UserID)

		go client.WritePump()

		deps.Gateway.Hub.Register(client)

		logx.Info("WebSocket connection established",
			"user_id", payload.UserID,
			"connection_id", client.ConnID(),
		)

		client.ReadPump()
	}
}
