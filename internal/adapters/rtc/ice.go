// Package rtc builds the WebRTC settings handed to browsers. Media never
// passes through the hub; peers negotiate it over the signal relay.
package rtc

import (
	"strings"

	"github.com/dkeye/Cypher/internal/config"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var iceSchemes = []string{"stun:", "stuns:", "turn:", "turns:"}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// WebRTCConfig turns the ice section of the config into a peer configuration.
// Unknown schemes are skipped; with nothing left the public STUN default is used.
func WebRTCConfig(cfg config.ICEConfig) webrtc.Configuration {
	var stun, turn []string
	for _, u := range cfg.URLs {
		u = strings.TrimSpace(u)
		switch {
		case !knownScheme(u):
			log.Warn().Str("module", "rtc").Str("url", u).Msg("skipping ice url")
		case strings.HasPrefix(u, "turn"):
			turn = append(turn, u)
		default:
			stun = append(stun, u)
		}
	}
	if len(stun) == 0 && len(turn) == 0 {
		return DefaultWebRTCConfig()
	}

	var out webrtc.Configuration
	if len(stun) > 0 {
		out.ICEServers = append(out.ICEServers, webrtc.ICEServer{URLs: stun})
	}
	if len(turn) > 0 {
		out.ICEServers = append(out.ICEServers, webrtc.ICEServer{
			URLs:           turn,
			Username:       cfg.Username,
			Credential:     cfg.Credential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return out
}

func knownScheme(u string) bool {
	for _, s := range iceSchemes {
		if strings.HasPrefix(u, s) {
			return true
		}
	}
	return false
}
