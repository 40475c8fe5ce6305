package recommender

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cine-match/catalog"
	"cine-match/logging"
	"cine-match/preferences"
	"cine-match/preprocess"
	"cine-match/textvec"
)

// ContentOptions tunes the content similarity ranking.
type ContentOptions struct {
	NumResults       int
	RuntimeWindow    float64
	SimilarityWeight float64
	PopularityWeight float64
}

// DefaultContentOptions returns ten results, a 30 minute runtime window and a
// 0.7/0.3 similarity/popularity blend.
func DefaultContentOptions() ContentOptions {
	return ContentOptions{
		NumResults:       10,
		RuntimeWindow:    30,
		SimilarityWeight: 0.7,
		PopularityWeight: 0.3,
	}
}

// ContentRanker scores titles by TF-IDF similarity of their genres and
// description to the preferred genres, blended with the IMDB score.
type ContentRanker struct {
	opts       ContentOptions
	titles     []catalog.Title
	vectors    []textvec.Vector
	vectorizer *textvec.Vectorizer
}

// NewContentRanker cleans titles and fits the TF-IDF vocabulary on them. The
// similarity and popularity weights are normalised to sum to 1.
func NewContentRanker(titles []catalog.Title, opts ContentOptions) (*ContentRanker, error) {
	if opts.SimilarityWeight < 0 || opts.PopularityWeight < 0 {
		return nil, fmt.Errorf("negative weights %.2f/%.2f", opts.SimilarityWeight, opts.PopularityWeight)
	}
	if total := opts.SimilarityWeight + opts.PopularityWeight; total > 0 {
		opts.SimilarityWeight /= total
		opts.PopularityWeight /= total
	}

	kept := catalog.ForSimilarity(titles)
	if len(kept) == 0 {
		return nil, fmt.Errorf("no usable titles among %d catalog rows", len(titles))
	}

	docs := make([]string, len(kept))
	for i, t := range kept {
		docs[i] = strings.Join(t.Genres, " ") + " " + t.Description
	}

	vectorizer := textvec.NewVectorizer()
	vectors := vectorizer.FitTransform(docs)

	logging.Info().
		Int("titles", len(kept)).
		Int("dropped", len(titles)-len(kept)).
		Int("vocabulary", vectorizer.VocabularySize()).
		Msg("Content ranker ready")

	return &ContentRanker{opts: opts, titles: kept, vectors: vectors, vectorizer: vectorizer}, nil
}

func (r *ContentRanker) Strategy() string { return StrategySimilarity }

// Size is the number of titles the ranker scores.
func (r *ContentRanker) Size() int { return len(r.titles) }

// Recommend filters by type, country and runtime window, relaxing the runtime
// window when fewer than NumResults titles remain, then ranks by blended score.
func (r *ContentRanker) Recommend(ctx context.Context, prefs preferences.Preferences) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wantType := strings.ToUpper(strings.TrimSpace(prefs.Type))
	country := strings.ToUpper(strings.TrimSpace(prefs.ProductionCountries))
	runtime := float64(prefs.Runtime)

	var base, candidates []int
	for i, t := range r.titles {
		if t.Type != wantType || !t.HasCountry(country) {
			continue
		}
		base = append(base, i)
		if *t.Runtime >= runtime-r.opts.RuntimeWindow && *t.Runtime <= runtime+r.opts.RuntimeWindow {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) < r.opts.NumResults {
		candidates = base
	}

	batch := &Batch{Strategy: StrategySimilarity}
	if len(candidates) == 0 {
		logging.Info().Str("type", wantType).Str("country", country).Msg("No titles match the preferences")
		return batch, nil
	}

	query, err := r.vectorizer.Transform([]string{strings.Join(prefs.GenreList(), " ")})
	if err != nil {
		return nil, fmt.Errorf("failed to vectorize preferences: %w", err)
	}

	sims := make([]float64, len(candidates))
	imdb := make([]float64, len(candidates))
	for j, idx := range candidates {
		sims[j] = textvec.Cosine(query[0], r.vectors[idx])
		imdb[j] = *r.titles[idx].IMDBScore
	}
	simScaled := preprocess.MinMaxScale(sims)
	imdbScaled := preprocess.MinMaxScale(imdb)

	scores := make([]float64, len(candidates))
	order := make([]int, len(candidates))
	for j := range candidates {
		scores[j] = r.opts.SimilarityWeight*simScaled[j] + r.opts.PopularityWeight*imdbScaled[j]
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	n := min(r.opts.NumResults, len(order))
	batch.Items = make([]Item, 0, n)
	for rank, j := range order[:n] {
		t := r.titles[candidates[j]]
		batch.Items = append(batch.Items, Item{
			Rank:                rank + 1,
			Title:               t.Title,
			Type:                t.Type,
			Runtime:             *t.Runtime,
			Genres:              t.Genres,
			ProductionCountries: t.ProductionCountries,
			IMDBScore:           t.IMDBScore,
			AgeCertification:    t.AgeCertification,
			Score:               scores[j],
		})
	}
	return batch, nil
}
