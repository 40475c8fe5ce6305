package recommender

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"cine-match/catalog"
	"cine-match/nn"
	"cine-match/preferences"
)

func ptr(v float64) *float64 { return &v }

func contentTitles() []catalog.Title {
	return []catalog.Title{
		{ID: "a", Title: "Bank Job", Type: "MOVIE", Runtime: ptr(120), IMDBScore: ptr(7), Genres: []string{"action", "crime"}, ProductionCountries: []string{"US"}, Description: "bank robbery crew"},
		{ID: "b", Title: "Office Pranks", Type: "MOVIE", Runtime: ptr(100), IMDBScore: ptr(9), Genres: []string{"comedy"}, ProductionCountries: []string{"US"}, Description: "office pranks"},
		{ID: "c", Title: "Star Fleet", Type: "MOVIE", Runtime: ptr(200), IMDBScore: ptr(5), Genres: []string{"action"}, ProductionCountries: []string{"US"}, Description: "space battle"},
		{ID: "d", Title: "Cop Show", Type: "SHOW", Runtime: ptr(45), IMDBScore: ptr(8), Genres: []string{"action"}, ProductionCountries: []string{"US"}, Description: "precinct"},
		{ID: "e", Title: "Mumbai Chase", Type: "MOVIE", Runtime: ptr(120), IMDBScore: ptr(8), Genres: []string{"action"}, ProductionCountries: []string{"IN"}, Description: "chase"},
		{ID: "f", Title: "No Description", Type: "MOVIE", Runtime: ptr(120), IMDBScore: ptr(10), Genres: []string{"action"}, ProductionCountries: []string{"US"}},
	}
}

func titlesOf(b *Batch) []string {
	var out []string
	for _, it := range b.Items {
		out = append(out, it.Title)
	}
	return out
}

func TestContentRanker(t *testing.T) {
	action := preferences.Preferences{Type: "movie ", Genres: "action", ProductionCountries: " us", Runtime: 120}

	tests := []struct {
		name  string
		opts  func(*ContentOptions)
		prefs preferences.Preferences
		want  []string
	}{
		{
			name:  "runtime window relaxed",
			prefs: action,
			want:  []string{"Star Fleet", "Bank Job", "Office Pranks"},
		},
		{
			name:  "runtime window kept",
			opts:  func(o *ContentOptions) { o.NumResults = 2 },
			prefs: action,
			want:  []string{"Bank Job", "Office Pranks"},
		},
		{
			name:  "popularity only",
			opts:  func(o *ContentOptions) { o.SimilarityWeight, o.PopularityWeight = 0, 1 },
			prefs: action,
			want:  []string{"Office Pranks", "Bank Job", "Star Fleet"},
		},
		{
			name:  "country filter",
			prefs: preferences.Preferences{Type: "MOVIE", Genres: "action", ProductionCountries: "IN", Runtime: 90},
			want:  []string{"Mumbai Chase"},
		},
		{
			name:  "no match",
			prefs: preferences.Preferences{Type: "SHOW", Genres: "action", ProductionCountries: "IN", Runtime: 90},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultContentOptions()
			if tt.opts != nil {
				tt.opts(&opts)
			}
			r, err := NewContentRanker(contentTitles(), opts)
			if err != nil {
				t.Fatalf("NewContentRanker() error = %v", err)
			}
			batch, err := r.Recommend(context.Background(), tt.prefs)
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if got := titlesOf(batch); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Recommend() = %v, want %v", got, tt.want)
			}
			for i, it := range batch.Items {
				if it.Rank != i+1 {
					t.Errorf("item %d has rank %d", i, it.Rank)
				}
			}
		})
	}
}

func TestContentRankerNormalisesWeights(t *testing.T) {
	action := preferences.Preferences{Type: "MOVIE", Genres: "action", ProductionCountries: "US", Runtime: 110}

	scores := func(sim, pop float64) []float64 {
		t.Helper()
		opts := DefaultContentOptions()
		opts.SimilarityWeight, opts.PopularityWeight = sim, pop
		r, err := NewContentRanker(contentTitles(), opts)
		if err != nil {
			t.Fatalf("NewContentRanker(%v, %v) error = %v", sim, pop, err)
		}
		batch, err := r.Recommend(context.Background(), action)
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		out := make([]float64, len(batch.Items))
		for i, it := range batch.Items {
			out[i] = it.Score
		}
		return out
	}

	want := scores(0.7, 0.3)
	got := scores(7, 3)
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("item %d score = %v, want %v", i, got[i], want[i])
		}
		if got[i] > 1+1e-9 {
			t.Errorf("item %d score %v exceeds 1", i, got[i])
		}
	}

	opts := DefaultContentOptions()
	opts.PopularityWeight = -1
	if _, err := NewContentRanker(contentTitles(), opts); err == nil {
		t.Error("negative weight should fail")
	}
}

func TestContentRankerDropsIncompleteRows(t *testing.T) {
	r, err := NewContentRanker(contentTitles(), DefaultContentOptions())
	if err != nil {
		t.Fatalf("NewContentRanker() error = %v", err)
	}
	if r.Size() != 5 {
		t.Errorf("Size() = %d, want 5", r.Size())
	}

	if _, err := NewContentRanker([]catalog.Title{{ID: "x", Type: "MOVIE"}}, DefaultContentOptions()); err == nil {
		t.Error("expected error when no title is usable")
	}
}

func TestContentRankerCanceled(t *testing.T) {
	r, err := NewContentRanker(contentTitles(), DefaultContentOptions())
	if err != nil {
		t.Fatalf("NewContentRanker() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Recommend(ctx, preferences.Transform(nil)); err == nil {
		t.Error("expected context error")
	}
}

func TestModelRanker(t *testing.T) {
	cfg := nn.DefaultConfig()
	cfg.EmbeddingDim, cfg.Hidden1, cfg.Hidden2, cfg.Epochs = 4, 8, 8, 3

	m, _, err := nn.Fit(context.Background(), contentTitles(), cfg)
	if err != nil {
		t.Fatalf("nn.Fit() error = %v", err)
	}

	r := NewModelRanker(m, 0)
	batch, err := r.Recommend(context.Background(), preferences.Transform(nil))
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if batch.Strategy != StrategyModel || len(batch.Items) != 5 {
		t.Fatalf("unexpected batch %+v", batch)
	}

	records := batch.Records()
	if _, ok := records[0].(ModelRecord); !ok {
		t.Errorf("record type = %T, want ModelRecord", records[0])
	}
}

func TestBatchRecords(t *testing.T) {
	b := &Batch{
		Strategy: StrategySimilarity,
		Items: []Item{
			{Title: "Bank Job", Type: "MOVIE", Runtime: 120, Genres: []string{"action", "crime"}, ProductionCountries: []string{"US"}, IMDBScore: ptr(7.5)},
			{Title: "Unrated", Type: "SHOW", Runtime: 30},
		},
	}

	data, err := json.Marshal(b.Records())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `[{"title":"Bank Job","type":"MOVIE","runtime":120,"production_countries":["US"],"genres":["action","crime"],"imdb_score":7.5},` +
		`{"title":"Unrated","type":"SHOW","runtime":30,"production_countries":[],"genres":[],"imdb_score":null}]`
	if string(data) != want {
		t.Errorf("records JSON =\n%s\nwant\n%s", data, want)
	}

	b.Strategy = StrategyModel
	rec := b.Records()[0].(ModelRecord)
	if rec.Genres != "action,crime" || rec.ProductionCountries != "US" {
		t.Errorf("model record = %+v", rec)
	}

	var empty *Batch
	if !empty.Empty() {
		t.Error("nil batch should be empty")
	}
}
