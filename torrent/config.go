package torrent

// Config configures a Manager.
type Config struct {
	// MaxConnections is the per-torrent cap on Connected peers,
	// independent of the connection manager's global cap.
	MaxConnections int `yaml:"max_connections"`
}

func (c Config) applyDefaults() Config {
	if c.MaxConnections == 0 {
		c.MaxConnections = 50
	}
	return c
}
