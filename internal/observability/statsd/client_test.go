package statsd

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"autoapply", "submission.outcome", "autoapply.submission.outcome"},
		{"", "queue/depth", "queue_depth"},
		{"autoapply", "  ..worker busy.. ", "autoapply.worker_busy"},
		{"autoapply", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, joinName(tt.prefix, tt.name), "%q+%q", tt.prefix, tt.name)
	}
}

func TestFormatLine(t *testing.T) {
	line := formatLine("autoapply.submit", "1", "c",
		map[string]string{"env": "prod", "source": "global"},
		map[string]string{"source": "lever", " ": "dropped"})
	assert.Equal(t, "autoapply.submit:1|c|#env:prod,source:lever", line)

	assert.Equal(t, "x:2.5|g", formatLine("x", "2.5", "g", nil, nil))
}

func TestNewClientDisabledWithoutAddress(t *testing.T) {
	c, err := NewClient(Config{Enabled: true})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	c.Count("dropped", 1, nil)
	require.NoError(t, c.Close())

	var nilClient *Client
	nilClient.Timing("dropped", time.Second, nil)
	assert.False(t, nilClient.Enabled())
}

func TestClientWritesUDP(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	c, err := NewClient(Config{Enabled: true, Address: pc.LocalAddr().String(), Prefix: "autoapply.", GlobalTags: map[string]string{"env": "test"}})
	require.NoError(t, err)
	require.True(t, c.Enabled())

	c.Timing("submission.duration", 1500*time.Millisecond, map[string]string{"source": "lever"})

	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	got := string(buf[:n])
	assert.True(t, strings.HasPrefix(got, "autoapply.submission.duration:1500|ms"), got)
	assert.Contains(t, got, "env:test,source:lever")

	require.NoError(t, c.Close())
	assert.False(t, c.Enabled())
}

func TestNewClientDialError(t *testing.T) {
	_, err := NewClient(Config{Enabled: true, Address: "not-a-host-port"})
	require.Error(t, err)
}
