package transport

import "context"

// ConnectionState reports whether the messaging session can accept sends.
type ConnectionState struct {
	Ready         bool `json:"ready"`
	Authenticated bool `json:"authenticated"`
}

// Usable reports whether a dispatch attempt may proceed.
func (s ConnectionState) Usable() bool {
	return s.Ready && s.Authenticated
}

// Transport delivers messages over the messaging network. The dispatcher
// depends only on this interface; session lifecycle (pairing,
// re-authentication) belongs to the implementation.
type Transport interface {
	// SendOne delivers content to a single normalized phone address and
	// returns the transport's delivery id.
	SendOne(ctx context.Context, address, content string) (string, error)

	// SendToGroup delivers content to a group identifier.
	SendToGroup(ctx context.Context, groupID, content string) (string, error)

	// ConnectionState returns the current session state.
	ConnectionState() ConnectionState
}
