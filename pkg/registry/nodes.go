package registry

import (
	"github.com/atendohq/atendo/pkg/nodes/branch"
	"github.com/atendohq/atendo/pkg/nodes/httprequest"
	"github.com/atendohq/atendo/pkg/nodes/sendmessage"
	"github.com/atendohq/atendo/pkg/nodes/setvariable"
	"github.com/atendohq/atendo/pkg/nodes/transferqueue"
	"github.com/atendohq/atendo/pkg/nodes/waitreply"
	"github.com/atendohq/atendo/pkg/protocol"
)

// RegisterDefaultNodes registers all built-in node factories. sender and
// router are the outbound capabilities nodes depend on; start and end
// markers are interpreted by the engine itself and need no factory.
func (r *Registry) RegisterDefaultNodes(sender protocol.MessageSender, router protocol.QueueRouter) {
	r.RegisterNode(sendmessage.NewFactory(sender))
	r.RegisterNode(waitreply.NewFactory())
	r.RegisterNode(branch.NewFactory())
	r.RegisterNode(setvariable.NewFactory())
	r.RegisterNode(httprequest.NewFactory())
	r.RegisterNode(transferqueue.NewFactory(router))
}
