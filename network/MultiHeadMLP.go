package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// MultiHeadMLP implements a multi-layered perceptron with multiple
// output heads, one for each value that should be predicted. For
// example, a MultiHeadMLP can predict the action values of each
// discrete action in a single forward pass.
type MultiHeadMLP struct {
	g          *G.ExprGraph
	layers     []*fcLayer
	input      *G.Node
	numOutputs int
	numInputs  int
	batchSize  int

	// Data needed for cloning and gobbing
	hiddenSizes []int
	biases      []bool
	activations []*Activation

	learnables G.Nodes
	model      []G.ValueGrad

	prediction *G.Node
	predVal    *G.Value
}

// NewMultiHeadMLP creates and returns a new multi-layered perceptron
// that has multiple output nodes, The number of outputs nodes is equal
// to outputs. The graph parameter g is populated with the MLP.
//
// The MLP has number of layers equal to len(hiddenSizes) + 1. A final
// layer is always added such that given any input, the output will
// be outputs. The final layer also contains a bias unit, and bias units
// for each additional hidden layer is specified by biases. The final
// layer will contain no activations, and the activations of additional
// hidden layers is specified by activations. The parameter init
// determines the weight initialization scheme.
//
// The function works such that for index i, hiddenSizes[i] is the
// number of nodes in hidden layer i; biases[i] is true if the
// hidden layer will contain a bias unit and false otherwise; and
// activations[i] is the activation function for hidden layer i.
func NewMultiHeadMLP(features, batch, outputs int, g *G.ExprGraph,
	hiddenSizes []int, biases []bool, init G.InitWFn,
	activations []*Activation) (*MultiHeadMLP, error) {
	if len(hiddenSizes) != len(activations) {
		msg := "newmultiheadmlp: invalid number of activations" +
			"\n\twant(%d)\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(activations))
	}
	if len(hiddenSizes) != len(biases) {
		msg := "newmultiheadmlp: invalid number of biases\n\twant(%d)" +
			"\n\thave(%d)"
		return nil, fmt.Errorf(msg, len(hiddenSizes), len(biases))
	}
	if features <= 0 || batch <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("newmultiheadmlp: features, batch, and "+
			"outputs must be positive, have(%d, %d, %d)", features, batch,
			outputs)
	}

	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	// Add a final linear layer with no activation so that the output
	// heads are predicted by the network
	sizes := append(append([]int{}, hiddenSizes...), outputs)
	layerBiases := append(append([]bool{}, biases...), true)
	acts := append(append([]*Activation{}, activations...), Identity())

	network := &MultiHeadMLP{
		g:           g,
		layers:      addfcLayers(g, sizes, layerBiases, acts, init, features),
		input:       input,
		numOutputs:  outputs,
		numInputs:   features,
		batchSize:   batch,
		hiddenSizes: append([]int{}, hiddenSizes...),
		biases:      append([]bool{}, biases...),
		activations: append([]*Activation{}, activations...),
	}

	if _, err := network.fwd(input); err != nil {
		msg := "newmultiheadmlp: could not compute forward pass: %v"
		return nil, fmt.Errorf(msg, err)
	}

	return network, nil
}

// Graph returns the computational graph of the MultiHeadMLP.
func (e *MultiHeadMLP) Graph() *G.ExprGraph {
	return e.g
}

// Clone clones a MultiHeadMLP to a new computational graph
func (e *MultiHeadMLP) Clone() (NeuralNet, error) {
	return e.CloneWithBatch(e.batchSize)
}

// CloneWithBatch clones a MultiHeadMLP to a new computational graph
// with a new input batch size. The clone has the same weights as e.
func (e *MultiHeadMLP) CloneWithBatch(batchSize int) (NeuralNet, error) {
	return e.cloneWithBatch(batchSize)
}

func (e *MultiHeadMLP) cloneWithBatch(batchSize int) (*MultiHeadMLP, error) {
	clone, err := NewMultiHeadMLP(e.numInputs, batchSize, e.numOutputs,
		G.NewGraph(), e.hiddenSizes, e.biases, G.Zeroes(), e.activations)
	if err != nil {
		return nil, fmt.Errorf("clonewithbatch: %v", err)
	}

	if err := clone.Set(e); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not set weights: %v",
			err)
	}
	return clone, nil
}

// BatchSize returns the batch size of inputs to the network
func (e *MultiHeadMLP) BatchSize() int {
	return e.batchSize
}

// Features returns the number of features in a single observation
// vector that the network takes as input.
func (e *MultiHeadMLP) Features() int {
	return e.numInputs
}

// Outputs returns the number of outputs from the network
func (e *MultiHeadMLP) Outputs() int {
	return e.numOutputs
}

// SetInput sets the value of the input node before running the forward
// pass. The input is a row-major batch of observations.
func (e *MultiHeadMLP) SetInput(input []float64) error {
	if len(input) != e.numInputs*e.batchSize {
		msg := fmt.Sprintf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", e.numInputs*e.batchSize, len(input))
		panic(msg)
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(e.input.Shape()...),
	)
	return G.Let(e.input, inputTensor)
}

// Set sets the weights of a MultiHeadMLP to be equal to the
// weights of another network. Weights are copied.
func (dest *MultiHeadMLP) Set(source NeuralNet) error {
	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: incompatible networks with %d and %d "+
			"learnables", len(sourceNodes), len(nodes))
	}

	for i := range nodes {
		weights, sourceWeights, err := backings(nodes[i], sourceNodes[i])
		if err != nil {
			return fmt.Errorf("set: %v", err)
		}
		copy(weights, sourceWeights)
	}
	return nil
}

// Polyak sets the weights of a MultiHeadMLP to be a polyak
// average between its existing weights and the weights of another
// network:
//
//	dest ← tau * source + (1 - tau) * dest
//
// The update happens in place, so networks bound to a VM see the new
// weights on their next run.
func (dest *MultiHeadMLP) Polyak(source NeuralNet, tau float64) error {
	if tau < 0 || tau > 1 {
		return fmt.Errorf("polyak: tau must be in [0, 1], have(%v)", tau)
	}

	sourceNodes := source.Learnables()
	nodes := dest.Learnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("polyak: incompatible networks with %d and %d "+
			"learnables", len(sourceNodes), len(nodes))
	}

	for i := range nodes {
		weights, sourceWeights, err := backings(nodes[i], sourceNodes[i])
		if err != nil {
			return fmt.Errorf("polyak: %v", err)
		}
		for j := range weights {
			weights[j] = tau*sourceWeights[j] + (1-tau)*weights[j]
		}
	}
	return nil
}

// backings returns the backing data of the values of two nodes of the
// same shape
func backings(dest, source *G.Node) ([]float64, []float64, error) {
	if !dest.Shape().Eq(source.Shape()) {
		return nil, nil, fmt.Errorf("node %v has shape %v but source "+
			"has shape %v", dest.Name(), dest.Shape(), source.Shape())
	}

	weights, ok := dest.Value().Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("node %v is not float64", dest.Name())
	}
	sourceWeights, ok := source.Value().Data().([]float64)
	if !ok {
		return nil, nil, fmt.Errorf("node %v is not float64", source.Name())
	}
	return weights, sourceWeights, nil
}

// Learnables returns the learnable nodes in a MultiHeadMLP
func (m *MultiHeadMLP) Learnables() G.Nodes {
	// Lazy instantiation
	if m.learnables == nil {
		m.learnables = m.computeLearnables()
	}
	return m.learnables
}

// computeLearnables computes all the learnables for the network
func (e *MultiHeadMLP) computeLearnables() G.Nodes {
	learnables := make([]*G.Node, 0, 2*len(e.layers))

	for i := range e.layers {
		learnables = append(learnables, e.layers[i].Weights())
		if bias := e.layers[i].Bias(); bias != nil {
			learnables = append(learnables, bias)
		}
	}
	return G.Nodes(learnables)
}

// Model returns the learnables nodes with their gradients.
func (m *MultiHeadMLP) Model() []G.ValueGrad {
	// Lazy instantiation
	if m.model == nil {
		m.model = G.NodesToValueGrads(m.Learnables())
	}
	return m.model
}

// fwd performs the forward pass of the MultiHeadMLP on the input
// node
func (e *MultiHeadMLP) fwd(input *G.Node) (*G.Node, error) {
	if features := input.Shape()[1]; features != e.numInputs {
		return nil, fmt.Errorf("fwd: invalid shape for input to neural net:"+
			" \n\twant(%v) \n\thave(%v)", e.numInputs, features)
	}

	pred := input
	var err error
	for i, l := range e.layers {
		if pred, err = l.fwd(pred); err != nil {
			msg := "fwd: could not compute forward pass of layer %v: %v"
			return nil, fmt.Errorf(msg, i, err)
		}
	}

	e.prediction = pred
	e.predVal = new(G.Value)
	G.Read(e.prediction, e.predVal)

	return pred, nil
}

// Output returns the output of the MultiHeadMLP as a row-major
// batch of predictions, one row per input. Output is populated by
// running a VM on the network's graph and must not be modified.
func (e *MultiHeadMLP) Output() []float64 {
	if e.predVal == nil || *e.predVal == nil {
		return nil
	}
	return (*e.predVal).Data().([]float64)
}

// Prediction returns the node of the computational graph the stores
// the output of the MultiHeadMLP
func (e *MultiHeadMLP) Prediction() *G.Node {
	return e.prediction
}

// snapshot is the gob serialized form of a MultiHeadMLP
type snapshot struct {
	Features    int
	Outputs     int
	BatchSize   int
	HiddenSizes []int
	Biases      []bool
	Activations []*Activation
	Weights     [][]float64
}

// GobEncode implements the gob.GobEncoder interface
func (e *MultiHeadMLP) GobEncode() ([]byte, error) {
	s := snapshot{
		Features:    e.numInputs,
		Outputs:     e.numOutputs,
		BatchSize:   e.batchSize,
		HiddenSizes: e.hiddenSizes,
		Biases:      e.biases,
		Activations: e.activations,
	}
	for _, node := range e.Learnables() {
		weights := node.Value().Data().([]float64)
		s.Weights = append(s.Weights, append([]float64{}, weights...))
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("gobencode: %v", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface. The decoded
// network is constructed on a new computational graph.
func (e *MultiHeadMLP) GobDecode(in []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&s); err != nil {
		return fmt.Errorf("gobdecode: %v", err)
	}

	net, err := NewMultiHeadMLP(s.Features, s.BatchSize, s.Outputs,
		G.NewGraph(), s.HiddenSizes, s.Biases, G.Zeroes(), s.Activations)
	if err != nil {
		return fmt.Errorf("gobdecode: could not construct new MLP: %v", err)
	}

	nodes := net.Learnables()
	if len(nodes) != len(s.Weights) {
		return fmt.Errorf("gobdecode: want %d weight tensors, have %d",
			len(nodes), len(s.Weights))
	}
	for i, node := range nodes {
		weights := node.Value().Data().([]float64)
		if len(weights) != len(s.Weights[i]) {
			return fmt.Errorf("gobdecode: layer weights %d: want %d values, "+
				"have %d", i, len(weights), len(s.Weights[i]))
		}
		copy(weights, s.Weights[i])
	}

	*e = *net
	return nil
}
