package ws

import (
	"encoding/json"
	"strings"
)

// Frame types exchanged on the persistent channel. The client opens the
// connection, sends CONNECT with its bearer token in the header block, then
// SUBSCRIBEs to destinations. The server delivers MESSAGE frames.
const (
	FrameConnect   = "CONNECT"
	FrameConnected = "CONNECTED"
	FrameSubscribe = "SUBSCRIBE"
	FrameSend      = "SEND"
	FrameMessage   = "MESSAGE"
	FrameError     = "ERROR"
)

// Frame is one control or data frame on the channel.
type Frame struct {
	Type        string            `json:"type"`
	Headers     map[string]string `json:"headers,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// Destination families addressed by recipient username: the terminal path
// segment is the owning user and every live connection of that user
// receives the frame, subscribed or not.
var userDestinationPrefixes = []string{
	"/topic/notifications/",
	"/topic/friends/",
	"/topic/comment/",
	"/topic/update-info/",
	"/topic/update-picture/",
}

// DestinationOwner returns the owning username of a per-user destination.
// Destinations outside the per-user families (e.g. conversation topics)
// return false and are routed by explicit subscription instead.
func DestinationOwner(destination string) (string, bool) {
	for _, prefix := range userDestinationPrefixes {
		if strings.HasPrefix(destination, prefix) {
			owner := destination[len(prefix):]
			if owner != "" && !strings.Contains(owner, "/") {
				return owner, true
			}
		}
	}
	return "", false
}
