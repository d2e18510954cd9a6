package networkdetect

import (
	"fmt"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/egaotan/solana-stateless-swap/dingsdk"
	"github.com/go-ping/ping"
	"github.com/rs/zerolog"
)

const (
	window         = 300
	latencyLimit   = 20 * time.Millisecond
	notifyInterval = 5 * time.Minute
)

// Host extracts the host name of an rpc url.
func Host(peer string) (string, error) {
	u, err := url.Parse(peer)
	if err != nil {
		return "", err
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("no host in %s", peer)
	}
	return u.Hostname(), nil
}

type Prober func(host string) (time.Duration, error)

// Ping sends three echo requests and returns the average round trip.
func Ping(host string) (time.Duration, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, err
	}
	pinger.Count = 3
	pinger.Timeout = 5 * time.Second
	if err := pinger.Run(); err != nil {
		return 0, err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("no reply from %s", host)
	}
	return stats.AvgRtt, nil
}

// DetectPeers returns the index of the peer with the lowest latency. Peers that cannot
// be probed are skipped; -1 means none could.
func DetectPeers(peers []string, probe Prober, log zerolog.Logger) (int, time.Duration) {
	best := time.Duration(math.MaxInt64)
	index := -1
	for i, peer := range peers {
		host, err := Host(peer)
		if err != nil {
			log.Warn().Err(err).Str("peer", peer).Msg("detect peer")
			continue
		}
		ttl, err := probe(host)
		if err != nil {
			log.Warn().Err(err).Str("peer", peer).Msg("detect peer")
			continue
		}
		log.Info().Str("peer", peer).Dur("ttl", ttl).Msg("detect peer")
		if ttl < best {
			best = ttl
			index = i
		}
	}
	return index, best
}

// NetworkDetector keeps pinging the active node and notifies when its latency stays high.
type NetworkDetector struct {
	peer       string
	ttl        []time.Duration
	avg        []time.Duration
	lock       sync.Mutex
	pinger     *ping.Pinger
	stopped    bool
	logger     zerolog.Logger
	notifier   dingsdk.Notifier
	notifyTime time.Time
	now        func() time.Time
}

func NewNetworkDetector(peer string, notifier dingsdk.Notifier, logger zerolog.Logger) (*NetworkDetector, error) {
	host, err := Host(peer)
	if err != nil {
		return nil, err
	}
	nd := &NetworkDetector{
		peer:     host,
		logger:   logger,
		notifier: notifier,
		now:      time.Now,
	}
	nd.notifyTime = nd.now()
	return nd, nil
}

func (nd *NetworkDetector) ping() {
	if nd.isStopped() {
		return
	}
	pinger, err := ping.NewPinger(nd.peer)
	if err != nil {
		nd.logger.Warn().Err(err).Str("peer", nd.peer).Msg("new pinger")
		return
	}
	nd.lock.Lock()
	if nd.stopped {
		nd.lock.Unlock()
		return
	}
	nd.pinger = pinger
	nd.lock.Unlock()
	pinger.OnRecv = func(pkt *ping.Packet) {
		nd.record(pkt.Rtt)
	}
	if err := pinger.Run(); err != nil {
		nd.logger.Warn().Err(err).Str("peer", nd.peer).Msg("ping")
	}
}

// record adds one round trip. When no running average in the window is below the
// limit, a notification is sent at most once every notifyInterval.
func (nd *NetworkDetector) record(rtt time.Duration) {
	nd.ttl = append(nd.ttl, rtt)
	sum := time.Duration(0)
	for _, x := range nd.ttl {
		sum += x
	}
	avg := sum / time.Duration(len(nd.ttl))
	nd.avg = append(nd.avg, avg)
	if len(nd.ttl) > window {
		nd.ttl = nd.ttl[len(nd.ttl)-window:]
	}
	if len(nd.avg) > window {
		nd.avg = nd.avg[len(nd.avg)-window:]
	}
	isLow := false
	for _, avgx := range nd.avg {
		if avgx < latencyLimit {
			isLow = true
		}
	}
	nd.logger.Debug().Dur("ttl", avg).Msg("ping")
	if isLow {
		return
	}
	nd.logger.Warn().Dur("ttl", avg).Msg("network latency is too large")
	now := nd.now()
	if now.Sub(nd.notifyTime) > notifyInterval {
		nd.notifier.Notify(fmt.Sprintf("swap server network ttl: %d ms;\ntime: %s;",
			avg.Milliseconds(), now.Format("2006-01-02 15:04:05")))
		nd.notifyTime = now
	}
}

func (nd *NetworkDetector) Start() {
	go nd.ping()
}

func (nd *NetworkDetector) isStopped() bool {
	nd.lock.Lock()
	defer nd.lock.Unlock()
	return nd.stopped
}

// Stop also prevents a pinger that has not started yet from running.
func (nd *NetworkDetector) Stop() {
	nd.lock.Lock()
	defer nd.lock.Unlock()
	nd.stopped = true
	if nd.pinger != nil {
		nd.pinger.Stop()
	}
}
