package rtc

import (
	"testing"

	"github.com/dkeye/Cypher/internal/config"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebRTCConfig(t *testing.T) {
	tests := []struct {
		name string
		in   config.ICEConfig
		want []webrtc.ICEServer
	}{
		{
			name: "empty falls back to default",
			in:   config.ICEConfig{},
			want: DefaultWebRTCConfig().ICEServers,
		},
		{
			name: "unknown schemes skipped",
			in:   config.ICEConfig{URLs: []string{"http://example.com", " "}},
			want: DefaultWebRTCConfig().ICEServers,
		},
		{
			name: "stun only",
			in:   config.ICEConfig{URLs: []string{"stun:a:3478", "stun:b:3478"}},
			want: []webrtc.ICEServer{{URLs: []string{"stun:a:3478", "stun:b:3478"}}},
		},
		{
			name: "turn carries credentials",
			in: config.ICEConfig{
				URLs:       []string{"stun:a:3478", "turns:t:5349"},
				Username:   "u",
				Credential: "p",
			},
			want: []webrtc.ICEServer{
				{URLs: []string{"stun:a:3478"}},
				{URLs: []string{"turns:t:5349"}, Username: "u", Credential: "p", CredentialType: webrtc.ICECredentialTypePassword},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WebRTCConfig(tt.in)
			require.Len(t, got.ICEServers, len(tt.want))
			assert.Equal(t, tt.want, got.ICEServers)
		})
	}
}
