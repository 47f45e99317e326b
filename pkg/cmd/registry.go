package cmd

import (
	"log/slog"

	"github.com/atendohq/atendo/pkg/gateway"
	"github.com/atendohq/atendo/pkg/protocol"
	"github.com/atendohq/atendo/pkg/provider/rest"
	"github.com/atendohq/atendo/pkg/provider/socket"
	"github.com/atendohq/atendo/pkg/registry"
)

// RegisterProviderFactories wires the built-in adapter backends into the
// gateway registry. dial supplies the vendor session transport for socket
// providers; without one, only rest-backend providers can activate.
func RegisterProviderFactories(gw *gateway.Gateway, dial socket.TransportDialer) {
	if dial != nil {
		gw.Registry().RegisterFactory(socket.NewFactory(dial))
	}

	gw.Registry().RegisterFactory(rest.NewFactory(nil))
}

// NewNodeRegistry builds the node factory registry with every built-in
// node kind registered.
func NewNodeRegistry(logger *slog.Logger, sender protocol.MessageSender, router protocol.QueueRouter) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes(sender, router)

	return reg
}
