package connmgr

import "time"

// Config configures a Manager. Grounded on scheduler.Config's
// yaml-tagged duration fields and applyDefaults pattern.
type Config struct {
	// MaxOpen is the global cap on Connected peers across all
	// torrents.
	MaxOpen int `yaml:"max_open"`

	// MaxHalfOpen is the global cap on in-flight Pending Dials.
	MaxHalfOpen int `yaml:"max_half_open"`

	// StaleDialThreshold is the age at which a pending dial becomes
	// eligible for the stale-dial sweep. Defaults to 10 seconds;
	// exposed here only so tests can shrink it.
	StaleDialThreshold time.Duration `yaml:"stale_dial_threshold"`

	// ReuseCap is the number of cleanup cycles a peer may pass through
	// before it is dropped from Available for good.
	ReuseCap int `yaml:"reuse_cap"`

	// HandshakeTimeout bounds the connect-through-handshake sequence
	// of the outbound pipeline.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// ConnTTI is the duration a session may go without receiving any
	// message or sending a piece before the preemption sweep closes it,
	// supplementing liveness tracking the way scheduler.Config.ConnTTI
	// does upstream.
	ConnTTI time.Duration `yaml:"conn_tti"`

	// ConnTTL is the max duration a session may exist regardless of
	// liveness.
	ConnTTL time.Duration `yaml:"conn_ttl"`

	// PreemptionInterval is how often the preemption sweep runs.
	PreemptionInterval time.Duration `yaml:"preemption_interval"`

	// DisablePreemption disables the preemption sweep entirely.
	DisablePreemption bool `yaml:"disable_preemption"`

	// SendQueueSize bounds the per-session send queue depth.
	SendQueueSize int `yaml:"send_queue_size"`
}

func (c Config) applyDefaults() Config {
	if c.MaxOpen == 0 {
		c.MaxOpen = 100
	}
	if c.MaxHalfOpen == 0 {
		c.MaxHalfOpen = 25
	}
	if c.StaleDialThreshold == 0 {
		c.StaleDialThreshold = 10 * time.Second
	}
	if c.ReuseCap == 0 {
		c.ReuseCap = 5
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ConnTTI == 0 {
		c.ConnTTI = 30 * time.Second
	}
	if c.ConnTTL == 0 {
		c.ConnTTL = time.Hour
	}
	if c.PreemptionInterval == 0 {
		c.PreemptionInterval = 30 * time.Second
	}
	if c.SendQueueSize == 0 {
		c.SendQueueSize = 64
	}
	return c
}
