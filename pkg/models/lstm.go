package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LSTM runs the forward pass of a Keras-style recurrent network exported as a
// JSON weight artifact. Gates follow the Keras layout: kernels are stored as
// (input, 4*units) with gate blocks in i, f, c, o order.
type LSTM struct {
	name      string
	timeSteps int
	features  int
	layers    []layer
}

type layer interface {
	// forward maps a (steps, in) matrix to (steps', out).
	forward(x *mat.Dense) *mat.Dense
	width() int
}

// Artifact is the on-disk description of an LSTM network.
type Artifact struct {
	Name      string          `json:"name"`
	TimeSteps int             `json:"timeSteps"`
	Features  int             `json:"features"`
	Layers    []LayerArtifact `json:"layers"`
}

// LayerArtifact holds one layer's weights.
type LayerArtifact struct {
	Type                string      `json:"type"` // "lstm" or "dense"
	Units               int         `json:"units"`
	Activation          string      `json:"activation,omitempty"`
	RecurrentActivation string      `json:"recurrentActivation,omitempty"`
	ReturnSequences     bool        `json:"returnSequences,omitempty"`
	Kernel              [][]float64 `json:"kernel"`
	RecurrentKernel     [][]float64 `json:"recurrentKernel,omitempty"`
	Bias                []float64   `json:"bias"`
}

// LoadLSTM decodes and validates an artifact.
func LoadLSTM(r io.Reader) (*LSTM, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("lstm: decode artifact: %w", err)
	}
	return NewLSTM(a)
}

// NewLSTM builds a network from an in-memory artifact.
func NewLSTM(a Artifact) (*LSTM, error) {
	if a.TimeSteps <= 0 || a.Features <= 0 {
		return nil, fmt.Errorf("lstm: timeSteps and features must be > 0, got %d and %d", a.TimeSteps, a.Features)
	}
	if len(a.Layers) == 0 {
		return nil, errors.New("lstm: artifact has no layers")
	}

	name := a.Name
	if name == "" {
		name = "lstm"
	}

	in := a.Features
	sequence := true
	layers := make([]layer, 0, len(a.Layers))
	for i, la := range a.Layers {
		var (
			l   layer
			err error
		)
		switch la.Type {
		case "lstm":
			if !sequence {
				return nil, fmt.Errorf("lstm: layer %d: lstm needs a sequence input; set returnSequences on the previous layer", i)
			}
			l, err = newLSTMLayer(la, in)
			sequence = la.ReturnSequences
		case "dense":
			l, err = newDenseLayer(la, in)
		default:
			err = fmt.Errorf("unknown layer type %q", la.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("lstm: layer %d: %w", i, err)
		}
		layers = append(layers, l)
		in = l.width()
	}
	if in != 1 {
		return nil, fmt.Errorf("lstm: network must end with a single output unit, got %d", in)
	}

	return &LSTM{name: name, timeSteps: a.TimeSteps, features: a.Features, layers: layers}, nil
}

// Name returns the artifact name, "lstm" by default.
func (m *LSTM) Name() string { return m.name }

// TimeSteps returns the window length the network was trained on.
func (m *LSTM) TimeSteps() int { return m.timeSteps }

// Predict implements Model.
func (m *LSTM) Predict(ctx context.Context, input Tensor) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if input.Shape[0] < 1 || input.Shape[1] != m.timeSteps || input.Shape[2] != m.features {
		return 0, fmt.Errorf("lstm: %w: got %v, want (1, %d, %d)", ErrIncompatibleShape, input.Shape, m.timeSteps, m.features)
	}

	x := mat.NewDense(m.timeSteps, m.features, nil)
	for t := 0; t < m.timeSteps; t++ {
		for f := 0; f < m.features; f++ {
			x.Set(t, f, input.At(0, t, f))
		}
	}

	for _, l := range m.layers {
		x = l.forward(x)
	}

	r, _ := x.Dims()
	out := x.At(r-1, 0)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, errors.New("lstm: network produced a non-finite value")
	}
	return out, nil
}

type lstmLayer struct {
	units           int
	kernel          *mat.Dense // (in, 4u)
	recurrent       *mat.Dense // (u, 4u)
	bias            []float64
	activation      func(float64) float64
	recurrentAct    func(float64) float64
	returnSequences bool
}

func newLSTMLayer(la LayerArtifact, in int) (*lstmLayer, error) {
	u := la.Units
	if u <= 0 {
		return nil, fmt.Errorf("units must be > 0, got %d", u)
	}
	kernel, err := denseFrom("kernel", la.Kernel, in, 4*u)
	if err != nil {
		return nil, err
	}
	recurrent, err := denseFrom("recurrentKernel", la.RecurrentKernel, u, 4*u)
	if err != nil {
		return nil, err
	}
	bias := la.Bias
	if bias == nil {
		bias = make([]float64, 4*u)
	}
	if len(bias) != 4*u {
		return nil, fmt.Errorf("bias has %d values, want %d", len(bias), 4*u)
	}
	act, err := activation(la.Activation, "tanh")
	if err != nil {
		return nil, err
	}
	recAct, err := activation(la.RecurrentActivation, "sigmoid")
	if err != nil {
		return nil, err
	}

	return &lstmLayer{
		units:           u,
		kernel:          kernel,
		recurrent:       recurrent,
		bias:            bias,
		activation:      act,
		recurrentAct:    recAct,
		returnSequences: la.ReturnSequences,
	}, nil
}

func (l *lstmLayer) width() int { return l.units }

func (l *lstmLayer) forward(x *mat.Dense) *mat.Dense {
	steps, in := x.Dims()
	u := l.units

	h := mat.NewDense(1, u, nil)
	c := make([]float64, u)
	z := mat.NewDense(1, 4*u, nil)
	rec := mat.NewDense(1, 4*u, nil)

	var seq *mat.Dense
	if l.returnSequences {
		seq = mat.NewDense(steps, u, nil)
	}

	for t := 0; t < steps; t++ {
		z.Mul(x.Slice(t, t+1, 0, in), l.kernel)
		rec.Mul(h, l.recurrent)
		z.Add(z, rec)

		for j := 0; j < u; j++ {
			ig := l.recurrentAct(z.At(0, j) + l.bias[j])
			fg := l.recurrentAct(z.At(0, u+j) + l.bias[u+j])
			cc := l.activation(z.At(0, 2*u+j) + l.bias[2*u+j])
			og := l.recurrentAct(z.At(0, 3*u+j) + l.bias[3*u+j])

			c[j] = fg*c[j] + ig*cc
			h.Set(0, j, og*l.activation(c[j]))
		}
		if seq != nil {
			seq.SetRow(t, h.RawRowView(0))
		}
	}

	if seq != nil {
		return seq
	}
	return h
}

type denseLayer struct {
	kernel     *mat.Dense // (in, units)
	bias       []float64
	activation func(float64) float64
}

func newDenseLayer(la LayerArtifact, in int) (*denseLayer, error) {
	if la.Units <= 0 {
		return nil, fmt.Errorf("units must be > 0, got %d", la.Units)
	}
	kernel, err := denseFrom("kernel", la.Kernel, in, la.Units)
	if err != nil {
		return nil, err
	}
	bias := la.Bias
	if bias == nil {
		bias = make([]float64, la.Units)
	}
	if len(bias) != la.Units {
		return nil, fmt.Errorf("bias has %d values, want %d", len(bias), la.Units)
	}
	act, err := activation(la.Activation, "linear")
	if err != nil {
		return nil, err
	}
	return &denseLayer{kernel: kernel, bias: bias, activation: act}, nil
}

func (l *denseLayer) width() int { return len(l.bias) }

func (l *denseLayer) forward(x *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(x, l.kernel)
	out.Apply(func(_, j int, v float64) float64 {
		return l.activation(v + l.bias[j])
	}, &out)
	return &out
}

// denseFrom copies a row-major weight matrix after checking its dimensions.
func denseFrom(field string, rows [][]float64, r, c int) (*mat.Dense, error) {
	if len(rows) != r {
		return nil, fmt.Errorf("%s has %d rows, want %d", field, len(rows), r)
	}
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%s row %d has %d columns, want %d", field, i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data), nil
}

func activation(name, def string) (func(float64) float64, error) {
	if name == "" {
		name = def
	}
	switch name {
	case "linear":
		return func(v float64) float64 { return v }, nil
	case "tanh":
		return math.Tanh, nil
	case "sigmoid":
		return sigmoid, nil
	case "hard_sigmoid":
		// Keras 2 definition.
		return func(v float64) float64 { return math.Max(0, math.Min(1, 0.2*v+0.5)) }, nil
	case "relu":
		return func(v float64) float64 { return math.Max(0, v) }, nil
	default:
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }
