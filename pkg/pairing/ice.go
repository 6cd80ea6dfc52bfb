package pairing

import "github.com/pion/webrtc/v3"

// DefaultSTUNServers is the ICE server set shared by both sides of a
// pairing. There is no TURN fallback: NAT traversal can fail on restrictive
// networks and that is a documented limitation, not something retried.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// ICEConfiguration builds the peer connection configuration from a STUN
// server list, falling back to the defaults when none are given.
func ICEConfiguration(stun []string) webrtc.Configuration {
	if len(stun) == 0 {
		stun = DefaultSTUNServers
	}

	servers := make([]webrtc.ICEServer, len(stun))
	for i, s := range stun {
		servers[i] = webrtc.ICEServer{URLs: []string{s}}
	}

	return webrtc.Configuration{ICEServers: servers}
}
