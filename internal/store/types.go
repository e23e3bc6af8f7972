package store

import "time"

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}
