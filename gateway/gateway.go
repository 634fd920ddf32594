// Package gateway owns one bidirectional websocket per connected user.
// It translates inbound events into Membership and Message service
// calls, and drains each session's sink back onto the wire. Membership
// authorization for joins, sends and history reads happens here, at
// the edge, before the services are called.
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"roomchat/contract"
	"roomchat/services"
)

type Gateway struct {
	log           *slog.Logger
	membership    services.IMembershipService
	messages      services.IMessageService
	authProvider  services.IAuthProvider
	registry      contract.IRegistry
	bufferSize    int
	sinkTimeout   time.Duration
	tokenDuration time.Duration
	upgrader      websocket.Upgrader
}

func NewGateway(log *slog.Logger, membership services.IMembershipService,
	messages services.IMessageService, authProvider services.IAuthProvider,
	registry contract.IRegistry, bufferSize int, sinkTimeout, tokenDuration time.Duration) *Gateway {
	return &Gateway{
		log:           log,
		membership:    membership,
		messages:      messages,
		authProvider:  authProvider,
		registry:      registry,
		bufferSize:    bufferSize,
		sinkTimeout:   sinkTimeout,
		tokenDuration: tokenDuration,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}
