package realtime

import "encoding/json"

// Wire message types.
const (
	MsgAuth        = "auth"
	MsgSyncRequest = "sync_request"
	MsgUpdate      = "update"
)

// SyncDomains lists which collections the client wants refreshed in the
// initial sync request.
type SyncDomains struct {
	Cart     bool `json:"cart"`
	Wishlist bool `json:"wishlist"`
	Profile  bool `json:"profile"`
}

// Message is the channel wire format, both directions. Inbound messages may
// carry arbitrary extra fields; unknown types are still broadcast and each
// subscriber filters for itself.
type Message struct {
	Type      string          `json:"type"`
	UserID    string          `json:"userId,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Action    string          `json:"action,omitempty"`
	Data      *SyncDomains    `json:"data,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
