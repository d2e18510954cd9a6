package networkdetect

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(message string) {
	n.messages = append(n.messages, message)
}

func TestHost(t *testing.T) {
	host, err := Host("https://api.mainnet-beta.solana.com")
	require.NoError(t, err)
	assert.Equal(t, "api.mainnet-beta.solana.com", host)

	host, err = Host("http://127.0.0.1:8899")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", host)

	_, err = Host("not a url")
	assert.Error(t, err)
}

func TestDetectPeers(t *testing.T) {
	latencies := map[string]time.Duration{
		"10.0.0.1": 30 * time.Millisecond,
		"10.0.0.2": 5 * time.Millisecond,
	}
	probe := func(host string) (time.Duration, error) {
		if ttl, ok := latencies[host]; ok {
			return ttl, nil
		}
		return 0, errors.New("unreachable")
	}
	peers := []string{"http://10.0.0.1:8899", "http://10.0.0.3:8899", "http://10.0.0.2:8899"}
	index, ttl := DetectPeers(peers, probe, zerolog.Nop())
	assert.Equal(t, 2, index)
	assert.Equal(t, 5*time.Millisecond, ttl)

	index, _ = DetectPeers([]string{"http://10.0.0.9:8899"}, probe, zerolog.Nop())
	assert.Equal(t, -1, index)
}

func TestNetworkDetector_Record(t *testing.T) {
	notifier := &fakeNotifier{}
	nd, err := NewNetworkDetector("http://10.0.0.1:8899", notifier, zerolog.Nop())
	require.NoError(t, err)
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	nd.now = func() time.Time { return now }
	nd.notifyTime = start

	nd.record(50 * time.Millisecond)
	assert.Empty(t, notifier.messages)

	now = start.Add(6 * time.Minute)
	nd.record(50 * time.Millisecond)
	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], "ttl: 50 ms")

	now = now.Add(time.Minute)
	nd.record(50 * time.Millisecond)
	assert.Len(t, notifier.messages, 1)

	fast, err := NewNetworkDetector("http://10.0.0.2:8899", notifier, zerolog.Nop())
	require.NoError(t, err)
	fast.now = func() time.Time { return start.Add(time.Hour) }
	fast.notifyTime = start
	fast.record(2 * time.Millisecond)
	assert.Len(t, notifier.messages, 1)
}

func TestNetworkDetector_StopBeforePing(t *testing.T) {
	nd, err := NewNetworkDetector("http://127.0.0.1:8899", &fakeNotifier{}, zerolog.Nop())
	require.NoError(t, err)
	nd.Stop()

	done := make(chan struct{})
	go func() {
		nd.ping()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ping kept running after stop")
	}
	nd.lock.Lock()
	defer nd.lock.Unlock()
	assert.Nil(t, nd.pinger)
}
