package storage

import (
	"time"

	"cine-match/preferences"
)

// Run is one served recommendation batch.
type Run struct {
	ID          string                  `json:"id"`
	Strategy    string                  `json:"strategy"`
	Preferences preferences.Preferences `json:"preferences"`
	Fingerprint string                  `json:"fingerprint"`
	Items       []RunItem               `json:"items"`
	CreatedAt   time.Time               `json:"created_at"`
}

type RunItem struct {
	Rank                int      `json:"rank"`
	Title               string   `json:"title"`
	Type                string   `json:"type"`
	Runtime             float64  `json:"runtime"`
	Genres              []string `json:"genres"`
	ProductionCountries []string `json:"production_countries"`
	IMDBScore           *float64 `json:"imdb_score,omitempty"`
	AgeCertification    string   `json:"age_certification,omitempty"`
	Score               float64  `json:"score"`
}
