package nn

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"cine-match/catalog"
	"cine-match/preferences"
)

// Model bundles a trained network with the encoders and encoded catalog rows it
// was trained on. It is persisted as a single JSON artifact.
type Model struct {
	Network   *Network  `json:"network"`
	Encoders  *Encoders `json:"encoders"`
	Rows      []Row     `json:"rows"`
	TrainedAt time.Time `json:"trained_at"`
}

// Prediction is a decoded catalog row with its predicted probability.
type Prediction struct {
	Decoded
	Probability float64
}

// Fit encodes titles and trains a network on them.
func Fit(ctx context.Context, titles []catalog.Title, cfg Config) (*Model, *History, error) {
	if len(titles) == 0 {
		return nil, nil, errors.New("catalog is empty")
	}
	enc, rows := FitEncoders(titles)
	net, history, err := Train(ctx, rows, enc.vocab(), cfg)
	if err != nil {
		return nil, history, fmt.Errorf("failed to train network: %w", err)
	}
	return &Model{Network: net, Encoders: enc, Rows: rows, TrainedAt: time.Now().UTC()}, history, nil
}

// Recommend returns the k most probable catalog rows for p, highest first.
func (m *Model) Recommend(p preferences.Preferences, k int) ([]Prediction, error) {
	probs, err := m.Network.Predict(m.Encoders.Encode(p))
	if err != nil {
		return nil, err
	}
	if len(probs) != len(m.Rows) {
		return nil, fmt.Errorf("network has %d outputs for %d rows", len(probs), len(m.Rows))
	}

	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return probs[order[a]] > probs[order[b]] })
	if k > len(order) {
		k = len(order)
	}

	out := make([]Prediction, 0, k)
	for _, idx := range order[:k] {
		d, err := m.Encoders.Decode(m.Rows[idx])
		if err != nil {
			return nil, err
		}
		out = append(out, Prediction{Decoded: d, Probability: probs[idx]})
	}
	return out, nil
}

// Save writes the model artifact to path, creating parent directories.
func (m *Model) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}
	return nil
}

// Load reads a model artifact written by Save.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	if !m.complete() {
		return nil, fmt.Errorf("model artifact %s is incomplete", path)
	}
	return &m, nil
}

func (m *Model) complete() bool {
	if m.Network == nil || m.Encoders == nil || m.Network.Outputs() != len(m.Rows) {
		return false
	}
	if m.Network.Hidden1 == nil || m.Network.Hidden2 == nil {
		return false
	}
	for _, e := range m.Network.Embeddings {
		if e == nil {
			return false
		}
	}
	enc := m.Encoders
	return enc.Type != nil && enc.Genres != nil && enc.Countries != nil && enc.Age != nil
}
