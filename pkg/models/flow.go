package models

import "time"

// NodeKind enumerates the built-in flow node behaviors.
type NodeKind string

const (
	NodeKindStart         NodeKind = "start"
	NodeKindSendMessage   NodeKind = "send-message"
	NodeKindBranch        NodeKind = "branch"
	NodeKindWaitReply     NodeKind = "wait-for-reply"
	NodeKindHTTPRequest   NodeKind = "call-external-api"
	NodeKindSetVariable   NodeKind = "set-variable"
	NodeKindTransferQueue NodeKind = "transfer-to-queue"
	NodeKindEnd           NodeKind = "end"
)

// NodeSpec is one node of a flow graph. Config is interpreted by the node
// implementation registered for the kind (see pkg/nodes).
type NodeSpec struct {
	ID         string         `json:"id"     validate:"required"`
	Kind       NodeKind       `json:"kind"   validate:"required"`
	Name       string         `json:"name"`
	Config     map[string]any `json:"config"`
	BestEffort bool           `json:"best_effort"` // gateway errors do not fail the execution
	// WaitTimeout bounds how long a wait-for-reply node stays paused.
	// Zero means no per-node timeout.
	WaitTimeout Duration `json:"wait_timeout,omitempty"`
}

// Edge connects two nodes. Edges are evaluated in list order; the first
// edge whose condition matches is taken. An edge with Default set is the
// fallback when no conditional edge matches.
type Edge struct {
	SourceNodeID string `json:"source_node_id" validate:"required"`
	TargetNodeID string `json:"target_node_id" validate:"required"`
	Condition    string `json:"condition,omitempty"`
	Default      bool   `json:"default,omitempty"`
}

// FlowGraph is the immutable, validated automation definition of a tenant.
// Publishing a change always creates a new version; published graphs are
// never edited in place.
type FlowGraph struct {
	ID             string               `json:"id"           validate:"required"`
	CompanyID      string               `json:"company_id"   validate:"required"`
	Name           string               `json:"name"         validate:"required,min=3"`
	Version        int                  `json:"version"      validate:"gte=1"`
	Nodes          map[string]*NodeSpec `json:"nodes"`
	Edges          []Edge               `json:"edges"`
	EntryNodeID    string               `json:"entry_node_id" validate:"required"`
	TriggerKeyword string               `json:"trigger_keyword,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	PublishedAt    *time.Time           `json:"published_at,omitempty"`
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (g *FlowGraph) OutgoingEdges(nodeID string) []Edge {
	var out []Edge

	for _, e := range g.Edges {
		if e.SourceNodeID == nodeID {
			out = append(out, e)
		}
	}

	return out
}

// Node returns the node spec for id, or nil when the graph has no such node.
func (g *FlowGraph) Node(id string) *NodeSpec {
	return g.Nodes[id]
}
