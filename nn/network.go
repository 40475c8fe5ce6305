// Package nn implements the embedding network that ranks catalog rows: one
// embedding table per categorical field, concatenated with runtime, two ReLU
// layers with dropout and a softmax over catalog rows.
package nn

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor is a row-major matrix that survives JSON encoding.
type Tensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func newTensor(rows, cols int) *Tensor {
	return &Tensor{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Dense returns a matrix view sharing t's storage.
func (t *Tensor) Dense() *mat.Dense {
	return mat.NewDense(t.Rows, t.Cols, t.Data)
}

func (t *Tensor) row(i int) []float64 {
	return t.Data[i*t.Cols : (i+1)*t.Cols]
}

// Layer is a fully connected layer, y = xW + b.
type Layer struct {
	W *Tensor   `json:"w"`
	B []float64 `json:"b"`
}

func newLayer(in, out int, rng *rand.Rand) *Layer {
	l := &Layer{W: newTensor(in, out), B: make([]float64, out)}
	limit := math.Sqrt(6 / float64(in+out))
	for i := range l.W.Data {
		l.W.Data[i] = (rng.Float64()*2 - 1) * limit
	}
	return l
}

func (l *Layer) apply(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	out := mat.NewDense(rows, l.W.Cols, nil)
	out.Mul(x, l.W.Dense())
	addBias(out, l.B)
	return out
}

// Network holds the trainable parameters.
type Network struct {
	EmbeddingDim int                `json:"embedding_dim"`
	Dropout      float64            `json:"dropout"`
	Embeddings   [numFields]*Tensor `json:"embeddings"`
	Hidden1      *Layer             `json:"hidden1"`
	Hidden2      *Layer             `json:"hidden2"`
	Output       *Layer             `json:"output"`
}

var errEmptyNetwork = errors.New("network has no parameters")

func newNetwork(vocab [numFields]int, outputs int, cfg Config, rng *rand.Rand) *Network {
	n := &Network{EmbeddingDim: cfg.EmbeddingDim, Dropout: cfg.Dropout}
	for f := range n.Embeddings {
		e := newTensor(vocab[f], cfg.EmbeddingDim)
		for i := range e.Data {
			e.Data[i] = (rng.Float64()*2 - 1) * 0.05
		}
		n.Embeddings[f] = e
	}
	n.Hidden1 = newLayer(n.inputWidth(), cfg.Hidden1, rng)
	n.Hidden2 = newLayer(cfg.Hidden1, cfg.Hidden2, rng)
	n.Output = newLayer(cfg.Hidden2, outputs, rng)
	return n
}

func (n *Network) inputWidth() int {
	return numFields*n.EmbeddingDim + 1
}

// Outputs is the number of classes, one per catalog row.
func (n *Network) Outputs() int {
	if n.Output == nil {
		return 0
	}
	return n.Output.W.Cols
}

func (n *Network) params() []*[]float64 {
	ps := make([]*[]float64, 0, numFields+6)
	for _, e := range n.Embeddings {
		ps = append(ps, &e.Data)
	}
	for _, l := range []*Layer{n.Hidden1, n.Hidden2, n.Output} {
		ps = append(ps, &l.W.Data, &l.B)
	}
	return ps
}

// activations of one forward pass, kept for backpropagation.
type pass struct {
	x      *mat.Dense
	z1, a1 *mat.Dense
	z2, a2 *mat.Dense
	probs  *mat.Dense
	mask1  []float64
	mask2  []float64
}

// forward runs a batch. Dropout is applied only when rng is non-nil.
func (n *Network) forward(batch []Input, rng *rand.Rand) *pass {
	p := &pass{x: n.embed(batch)}

	p.z1 = n.Hidden1.apply(p.x)
	p.a1, p.mask1 = n.activate(p.z1, rng)
	p.z2 = n.Hidden2.apply(p.a1)
	p.a2, p.mask2 = n.activate(p.z2, rng)
	p.probs = n.Output.apply(p.a2)
	softmaxRows(p.probs)
	return p
}

func (n *Network) embed(batch []Input) *mat.Dense {
	width := n.inputWidth()
	x := mat.NewDense(len(batch), width, nil)
	raw := x.RawMatrix()
	for i, in := range batch {
		row := raw.Data[i*raw.Stride : i*raw.Stride+width]
		for f, id := range in.ids() {
			copy(row[f*n.EmbeddingDim:(f+1)*n.EmbeddingDim], n.Embeddings[f].row(id))
		}
		row[width-1] = in.Runtime
	}
	return x
}

// activate applies ReLU and, while training, inverted dropout.
func (n *Network) activate(z *mat.Dense, rng *rand.Rand) (*mat.Dense, []float64) {
	a := mat.DenseCopyOf(z)
	data := a.RawMatrix().Data
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	if rng == nil || n.Dropout == 0 {
		return a, nil
	}

	keep := 1 / (1 - n.Dropout)
	mask := make([]float64, len(data))
	for i := range data {
		if rng.Float64() >= n.Dropout {
			mask[i] = keep
		}
		data[i] *= mask[i]
	}
	return a, mask
}

// backward accumulates the gradients of the mean cross-entropy of p into grads,
// which is laid out like params.
func (n *Network) backward(batch []Input, targets []int, p *pass, grads [][]float64) {
	m := len(batch)
	scale := 1 / float64(m)

	dz3 := mat.DenseCopyOf(p.probs)
	for i, y := range targets {
		dz3.Set(i, y, dz3.At(i, y)-1)
	}
	dz3.Scale(scale, dz3)

	g := numFields
	accumulateLayer(n.Output, p.a2, dz3, grads[g+4], grads[g+5])

	dz2 := backThrough(dz3, n.Output, p.z2, p.mask2)
	accumulateLayer(n.Hidden2, p.a1, dz2, grads[g+2], grads[g+3])

	dz1 := backThrough(dz2, n.Hidden2, p.z1, p.mask1)
	accumulateLayer(n.Hidden1, p.x, dz1, grads[g], grads[g+1])

	_, width := p.x.Dims()
	dx := mat.NewDense(m, width, nil)
	dx.Mul(dz1, n.Hidden1.W.Dense().T())
	dim := n.EmbeddingDim
	for i, in := range batch {
		row := dx.RawRowView(i)
		for f, id := range in.ids() {
			dst := grads[f][id*dim : (id+1)*dim]
			floats.Add(dst, row[f*dim:(f+1)*dim])
		}
	}
}

func accumulateLayer(l *Layer, input, dz *mat.Dense, gw, gb []float64) {
	w := mat.NewDense(l.W.Rows, l.W.Cols, nil)
	w.Mul(input.T(), dz)
	floats.Add(gw, w.RawMatrix().Data)

	rows, _ := dz.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(gb, dz.RawRowView(i))
	}
}

// backThrough propagates dz through l and the ReLU/dropout that produced its input.
func backThrough(dz *mat.Dense, l *Layer, z *mat.Dense, mask []float64) *mat.Dense {
	rows, _ := dz.Dims()
	da := mat.NewDense(rows, l.W.Rows, nil)
	da.Mul(dz, l.W.Dense().T())

	data := da.RawMatrix().Data
	zdata := z.RawMatrix().Data
	for i := range data {
		switch {
		case zdata[i] <= 0:
			data[i] = 0
		case mask != nil:
			data[i] *= mask[i]
		}
	}
	return da
}

// Predict returns the class probabilities for a single input.
func (n *Network) Predict(in Input) ([]float64, error) {
	if n.Output == nil {
		return nil, errEmptyNetwork
	}
	for f, id := range in.ids() {
		if id < 0 || id >= n.Embeddings[f].Rows {
			in = clampInput(in, f)
		}
	}
	p := n.forward([]Input{in}, nil)
	return mat.Row(nil, 0, p.probs), nil
}

func clampInput(in Input, field int) Input {
	switch field {
	case fieldType:
		in.Type = 0
	case fieldGenres:
		in.Genres = 0
	case fieldCountries:
		in.Countries = 0
	case fieldAge:
		in.Age = 0
	}
	return in
}

func addBias(m *mat.Dense, b []float64) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(m.RawRowView(i), b)
	}
}

func softmaxRows(m *mat.Dense) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		maxV := floats.Max(row)
		var sum float64
		for j, v := range row {
			row[j] = math.Exp(v - maxV)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
}
