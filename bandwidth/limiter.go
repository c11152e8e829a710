// Package bandwidth implements the rate limiter collaborator the
// connection manager's wire codec calls into for egress/ingress byte
// accounting. Limiters are shared by reference and never mutated by
// the connection manager itself, only consulted on every send and
// receive.
package bandwidth

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const mbit = 1000 * 1000

// Config configures a Limiter.
type Config struct {
	EgressBitsPerSec  uint64 `yaml:"egress_bits_per_sec"`
	IngressBitsPerSec uint64 `yaml:"ingress_bits_per_sec"`

	// TokenSize defines the granularity of a token in the bucket, to
	// avoid integer overflow mapping each bit to a token.
	TokenSize uint64 `yaml:"token_size"`

	Disable bool `yaml:"disable"`
}

func (c Config) applyDefaults() Config {
	if c.EgressBitsPerSec == 0 {
		c.EgressBitsPerSec = 200 * 8 * mbit
	}
	if c.IngressBitsPerSec == 0 {
		c.IngressBitsPerSec = 300 * 8 * mbit
	}
	if c.TokenSize == 0 {
		c.TokenSize = mbit
	}
	return c
}

// Limiter is the interface the wire codec depends on for egress and
// ingress reservations.
type Limiter interface {
	ReserveEgress(nbytes int64) error
	ReserveIngress(nbytes int64) error
}

// tokenBucketLimiter limits egress and ingress bandwidth via a
// token-bucket rate limiter, grounded on
// lib/torrent/scheduler/conn/bandwidth/limiter.go.
type tokenBucketLimiter struct {
	config  Config
	egress  *rate.Limiter
	ingress *rate.Limiter
}

// NewLimiter creates a new Limiter.
func NewLimiter(config Config, logger *zap.SugaredLogger) *tokenBucketLimiter {
	config = config.applyDefaults()

	if config.Disable {
		logger.Warn("Bandwidth limits disabled")
	} else {
		logger.Infof("Setting egress bandwidth to %d bits/sec", config.EgressBitsPerSec)
		logger.Infof("Setting ingress bandwidth to %d bits/sec", config.IngressBitsPerSec)
	}

	etps := config.EgressBitsPerSec / config.TokenSize
	itps := config.IngressBitsPerSec / config.TokenSize

	return &tokenBucketLimiter{
		config:  config,
		egress:  rate.NewLimiter(rate.Limit(etps), int(etps)),
		ingress: rate.NewLimiter(rate.Limit(itps), int(itps)),
	}
}

func (l *tokenBucketLimiter) reserve(rl *rate.Limiter, nbytes int64) error {
	if l.config.Disable {
		return nil
	}
	tokens := int(uint64(nbytes*8) / l.config.TokenSize)
	if tokens == 0 {
		tokens = 1
	}
	r := rl.ReserveN(time.Now(), tokens)
	if !r.OK() {
		return fmt.Errorf(
			"cannot reserve %d bytes of bandwidth, max burst is %d tokens",
			nbytes, rl.Burst())
	}
	time.Sleep(r.Delay())
	return nil
}

// ReserveEgress blocks until egress bandwidth for nbytes is available.
func (l *tokenBucketLimiter) ReserveEgress(nbytes int64) error {
	return l.reserve(l.egress, nbytes)
}

// ReserveIngress blocks until ingress bandwidth for nbytes is
// available.
func (l *tokenBucketLimiter) ReserveIngress(nbytes int64) error {
	return l.reserve(l.ingress, nbytes)
}

// NoLimit returns a Limiter which never blocks, for tests and for
// torrents that opt out of rate limiting.
func NoLimit() Limiter {
	return noLimit{}
}

type noLimit struct{}

func (noLimit) ReserveEgress(int64) error  { return nil }
func (noLimit) ReserveIngress(int64) error { return nil }
