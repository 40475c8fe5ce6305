// Package recommender ranks catalog titles against a preference record.
package recommender

import (
	"context"
	"strings"

	"cine-match/preferences"
)

const (
	StrategySimilarity = "similarity"
	StrategyModel      = "model"
)

// Item is one ranked recommendation. Fields not produced by a strategy are left
// at their zero value.
type Item struct {
	Rank                int
	Title               string
	Type                string
	Runtime             float64
	Genres              []string
	ProductionCountries []string
	IMDBScore           *float64
	AgeCertification    string
	Score               float64
}

// Batch is the ranked output of one strategy.
type Batch struct {
	Strategy string
	Items    []Item
}

// Ranker produces a batch for a preference record. An empty batch is not an
// error.
type Ranker interface {
	Strategy() string
	Recommend(ctx context.Context, prefs preferences.Preferences) (*Batch, error)
}

// SimilarityRecord is the wire shape of a content similarity recommendation.
type SimilarityRecord struct {
	Title               string   `json:"title"`
	Type                string   `json:"type"`
	Runtime             float64  `json:"runtime"`
	ProductionCountries []string `json:"production_countries"`
	Genres              []string `json:"genres"`
	IMDBScore           *float64 `json:"imdb_score"`
}

// ModelRecord is the wire shape of a model recommendation. List columns are
// comma-joined strings.
type ModelRecord struct {
	Title               string  `json:"title"`
	Type                string  `json:"type"`
	Genres              string  `json:"genres"`
	ProductionCountries string  `json:"production_countries"`
	Runtime             float64 `json:"runtime"`
	AgeCertification    string  `json:"age_certification"`
}

// Records returns the JSON-ready records posted back to the preference API.
func (b *Batch) Records() []any {
	out := make([]any, 0, len(b.Items))
	for _, it := range b.Items {
		if b.Strategy == StrategyModel {
			out = append(out, ModelRecord{
				Title:               it.Title,
				Type:                it.Type,
				Genres:              strings.Join(it.Genres, ","),
				ProductionCountries: strings.Join(it.ProductionCountries, ","),
				Runtime:             it.Runtime,
				AgeCertification:    it.AgeCertification,
			})
			continue
		}
		out = append(out, SimilarityRecord{
			Title:               it.Title,
			Type:                it.Type,
			Runtime:             it.Runtime,
			ProductionCountries: nonNil(it.ProductionCountries),
			Genres:              nonNil(it.Genres),
			IMDBScore:           it.IMDBScore,
		})
	}
	return out
}

// Empty reports whether the batch has no items.
func (b *Batch) Empty() bool {
	return b == nil || len(b.Items) == 0
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
