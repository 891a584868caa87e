package models

// ConnectionType describes the transport the device is reachable over.
type ConnectionType string

const (
	ConnectionWifi     ConnectionType = "wifi"
	ConnectionCellular ConnectionType = "cellular"
	ConnectionNone     ConnectionType = "none"
	ConnectionUnknown  ConnectionType = "unknown"
)

// ConnectivityState is the monitor's view of network reachability.
// WasOnline holds the previous value so listeners can see the edge.
type ConnectivityState struct {
	IsOnline       bool           `json:"is_online"`
	ConnectionType ConnectionType `json:"connection_type"`
	WasOnline      bool           `json:"was_online"`
}

// Transition names for connectivity edges.
type Transition string

const (
	BecameOnline  Transition = "became-online"
	BecameOffline Transition = "became-offline"
)

// Transition returns the edge this state represents, or "" when the
// online flag did not flip.
func (s ConnectivityState) Transition() Transition {
	switch {
	case s.IsOnline && !s.WasOnline:
		return BecameOnline
	case !s.IsOnline && s.WasOnline:
		return BecameOffline
	default:
		return ""
	}
}
