package nn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"cine-match/logging"
	"cine-match/metrics"
)

// Config holds the architecture and training hyperparameters.
type Config struct {
	EmbeddingDim    int
	Hidden1         int
	Hidden2         int
	Dropout         float64
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Patience        int
	LearningRate    float64
	Seed            int64
}

// DefaultConfig returns the standard hyperparameters.
func DefaultConfig() Config {
	return Config{
		EmbeddingDim:    50,
		Hidden1:         128,
		Hidden2:         64,
		Dropout:         0.2,
		Epochs:          30,
		BatchSize:       32,
		ValidationSplit: 0.2,
		Patience:        5,
		LearningRate:    0.001,
		Seed:            42,
	}
}

func (c Config) validate() error {
	switch {
	case c.EmbeddingDim <= 0 || c.Hidden1 <= 0 || c.Hidden2 <= 0:
		return errors.New("layer sizes must be positive")
	case c.Dropout < 0 || c.Dropout >= 1:
		return fmt.Errorf("dropout %v out of range [0, 1)", c.Dropout)
	case c.Epochs <= 0 || c.BatchSize <= 0:
		return errors.New("epochs and batch size must be positive")
	case c.ValidationSplit < 0 || c.ValidationSplit >= 1:
		return fmt.Errorf("validation split %v out of range [0, 1)", c.ValidationSplit)
	case c.LearningRate <= 0:
		return errors.New("learning rate must be positive")
	}
	return nil
}

// EpochStats reports one training epoch. Validation figures are NaN when no
// rows were held out.
type EpochStats struct {
	Epoch       int
	Loss        float64
	Accuracy    float64
	ValLoss     float64
	ValAccuracy float64
}

// History is the per-epoch record of a training run.
type History struct {
	Epochs       []EpochStats
	StoppedEarly bool
}

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
	probEpsilon = 1e-7
)

type adam struct {
	lr   float64
	step int
	m, v [][]float64
}

func newAdam(lr float64, params []*[]float64) *adam {
	a := &adam{lr: lr, m: make([][]float64, len(params)), v: make([][]float64, len(params))}
	for i, p := range params {
		a.m[i] = make([]float64, len(*p))
		a.v[i] = make([]float64, len(*p))
	}
	return a
}

func (a *adam) update(params []*[]float64, grads [][]float64) {
	a.step++
	t := float64(a.step)
	lr := a.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	for i, p := range params {
		w, g, m, v := *p, grads[i], a.m[i], a.v[i]
		for j := range w {
			m[j] = adamBeta1*m[j] + (1-adamBeta1)*g[j]
			v[j] = adamBeta2*v[j] + (1-adamBeta2)*g[j]*g[j]
			w[j] -= lr * m[j] / (math.Sqrt(v[j]) + adamEpsilon)
		}
	}
}

// Train fits a network whose class for rows[i] is i. The last ValidationSplit
// share of rows is held out and monitored for early stopping; with no held-out
// rows the training loss is monitored instead.
func Train(ctx context.Context, rows []Row, vocab [numFields]int, cfg Config) (*Network, *History, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid training config: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil, errors.New("no rows to train on")
	}

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)>>1|1))
	net := newNetwork(vocab, len(rows), cfg, rng)

	inputs := make([]Input, len(rows))
	targets := make([]int, len(rows))
	for i, r := range rows {
		inputs[i] = r.Input
		targets[i] = i
	}

	split := len(rows) - int(float64(len(rows))*cfg.ValidationSplit)
	trainIn, trainY := inputs[:split], targets[:split]
	valIn, valY := inputs[split:], targets[split:]

	params := net.params()
	opt := newAdam(cfg.LearningRate, params)
	grads := make([][]float64, len(params))
	for i, p := range params {
		grads[i] = make([]float64, len(*p))
	}

	history := &History{}
	best := math.Inf(1)
	wait := 0
	order := make([]int, len(trainIn))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		var correct int
		for start := 0; start < len(order); start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, history, err
			}
			end := min(start+cfg.BatchSize, len(order))
			batch := make([]Input, 0, end-start)
			ys := make([]int, 0, end-start)
			for _, idx := range order[start:end] {
				batch = append(batch, trainIn[idx])
				ys = append(ys, trainY[idx])
			}

			p := net.forward(batch, rng)
			l, c := scoreBatch(p, ys)
			lossSum += l * float64(len(ys))
			correct += c

			for _, g := range grads {
				clear(g)
			}
			net.backward(batch, ys, p, grads)
			opt.update(params, grads)
		}

		stats := EpochStats{
			Epoch:       epoch,
			Loss:        lossSum / float64(len(trainIn)),
			Accuracy:    float64(correct) / float64(len(trainIn)),
			ValLoss:     math.NaN(),
			ValAccuracy: math.NaN(),
		}
		monitored := stats.Loss
		if len(valIn) > 0 {
			stats.ValLoss, stats.ValAccuracy = net.evaluate(valIn, valY, cfg.BatchSize)
			monitored = stats.ValLoss
		}
		history.Epochs = append(history.Epochs, stats)
		metrics.TrainingEpochs.Inc()

		logging.Info().
			Int("epoch", epoch).
			Float64("loss", stats.Loss).
			Float64("accuracy", stats.Accuracy).
			Float64("val_loss", nanToZero(stats.ValLoss)).
			Float64("val_accuracy", nanToZero(stats.ValAccuracy)).
			Msg("Epoch finished")

		if monitored < best {
			best = monitored
			wait = 0
			continue
		}
		wait++
		if cfg.Patience > 0 && wait >= cfg.Patience {
			logging.Info().Int("epoch", epoch).Int("patience", cfg.Patience).Msg("Early stopping")
			history.StoppedEarly = true
			break
		}
	}

	return net, history, nil
}

// evaluate returns mean loss and accuracy without dropout.
func (n *Network) evaluate(inputs []Input, targets []int, batchSize int) (float64, float64) {
	var lossSum float64
	var correct int
	for start := 0; start < len(inputs); start += batchSize {
		end := min(start+batchSize, len(inputs))
		p := n.forward(inputs[start:end], nil)
		l, c := scoreBatch(p, targets[start:end])
		lossSum += l * float64(end-start)
		correct += c
	}
	return lossSum / float64(len(inputs)), float64(correct) / float64(len(inputs))
}

// scoreBatch returns the mean cross-entropy and the number of correct argmax
// predictions.
func scoreBatch(p *pass, targets []int) (float64, int) {
	var loss float64
	var correct int
	for i, y := range targets {
		row := p.probs.RawRowView(i)
		prob := math.Min(math.Max(row[y], probEpsilon), 1-probEpsilon)
		loss -= math.Log(prob)
		if argmax(row) == y {
			correct++
		}
	}
	return loss / float64(len(targets)), correct
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
