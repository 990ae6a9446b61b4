package catalog

import (
	"errors"
	"time"
)

// Game is the catalog metadata for one external game key. The catalog is
// populated by the ingestion pipeline; this engine only reads it to validate
// keys and enrich responses.
type Game struct {
	GameKey     int64      `json:"gameKey"`
	Name        string     `json:"name"`
	CoverURL    *string    `json:"coverUrl,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

var ErrNotFound = errors.New("game not found")
