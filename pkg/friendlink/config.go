package friendlink

import (
	"github.com/ZanzyTHEbar/friendlink-go/internal/database"
	"github.com/ZanzyTHEbar/friendlink-go/internal/recommend"
)

// Config exposes a stable wrapper for artifact and query configuration in
// package mode. Most fields map directly to internal/database.Config.
type Config struct {
	GraphURL       string
	ModelURL       string
	AuthToken      string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnMaxIdleSec int
	ConnMaxLifeSec int
	// Overfetch is the candidate pool size for recommendation queries; values
	// below the minimum are raised to it.
	Overfetch int
}

func (c *Config) toInternal() *database.Config {
	return &database.Config{
		GraphURL:       c.GraphURL,
		ModelURL:       c.ModelURL,
		AuthToken:      c.AuthToken,
		MaxOpenConns:   c.MaxOpenConns,
		MaxIdleConns:   c.MaxIdleConns,
		ConnMaxIdleSec: c.ConnMaxIdleSec,
		ConnMaxLifeSec: c.ConnMaxLifeSec,
	}
}

func (c *Config) recommendOptions() recommend.Options {
	return recommend.Options{Overfetch: c.Overfetch}
}
