package recommender

import (
	"context"
	"fmt"
	"strings"

	"cine-match/nn"
	"cine-match/preferences"
)

// ModelRanker ranks with a trained embedding network.
type ModelRanker struct {
	model *nn.Model
	topK  int
}

// NewModelRanker returns a ranker yielding the topK most probable rows.
func NewModelRanker(model *nn.Model, topK int) *ModelRanker {
	if topK <= 0 {
		topK = 5
	}
	return &ModelRanker{model: model, topK: topK}
}

// LoadModelRanker reads a model artifact from path.
func LoadModelRanker(path string, topK int) (*ModelRanker, error) {
	m, err := nn.Load(path)
	if err != nil {
		return nil, err
	}
	return NewModelRanker(m, topK), nil
}

func (r *ModelRanker) Strategy() string { return StrategyModel }

func (r *ModelRanker) Recommend(ctx context.Context, prefs preferences.Preferences) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preds, err := r.model.Recommend(prefs, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to predict: %w", err)
	}

	batch := &Batch{Strategy: StrategyModel, Items: make([]Item, 0, len(preds))}
	for i, p := range preds {
		batch.Items = append(batch.Items, Item{
			Rank:                i + 1,
			Title:               p.Title,
			Type:                p.Type,
			Runtime:             p.Runtime,
			Genres:              splitComma(p.Genres),
			ProductionCountries: splitComma(p.ProductionCountries),
			AgeCertification:    p.AgeCertification,
			Score:               p.Probability,
		})
	}
	return batch, nil
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
