// Package deepq implements the Double DQN algorithm with a softly
// updated target network.
package deepq

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goirrigate/agent/policy"
	env "github.com/samuelfneumann/goirrigate/environment"
	"github.com/samuelfneumann/goirrigate/expreplay"
	"github.com/samuelfneumann/goirrigate/network"
	ts "github.com/samuelfneumann/goirrigate/timestep"
	"github.com/samuelfneumann/goirrigate/utils/floatutils"
)

// DoubleDQN implements the Double DQN algorithm. The next action of
// the update target is selected by the learned network and evaluated
// by a target network, which tracks the learned network using Polyak
// averaging after every gradient step:
//
//	a' = argmax_b Q(s', b)
//	y  = r + γ * Q_target(s', a') * (1 - done)
//
// Q(s, a) is regressed toward y using the Huber loss, and the global
// gradient norm is clipped before each solver step.
type DoubleDQN struct {
	// Behaviour ε-greedy policy, which selects a single action
	behaviourPolicy *policy.MultiHeadEGreedyMLP

	// Network whose weights are adapted, with its loss graph
	trainNet   network.NeuralNet
	trainNetVM G.VM
	solver     G.Solver

	// Copy of trainNet that predicts action values for a batch of
	// inputs without computing gradients
	evalNet   network.NeuralNet
	evalNetVM G.VM

	// Network that provides the update target for a batch of inputs
	targetNet   network.NeuralNet
	targetNetVM G.VM

	// Input nodes of the loss graph. The Huber loss is computed as
	//
	//	quadWeight * δ² + linWeight * |δ| - linOffset
	//
	// where the weights select the quadratic or linear branch of each
	// sample, and δ = Q(s, a) - y
	selectedActions *G.Node
	updateTargets   *G.Node
	quadWeight      *G.Node
	linWeight       *G.Node
	linOffset       *G.Node
	lossVal         *G.Value

	replay *expreplay.FifoBuffer

	gamma         float64
	tau           float64
	maxGradNorm   float64
	epsilonMin    float64
	epsilonDecay  float64
	batchSize     int
	numActions    int
	gradientSteps int

	// Loss of the most recent Step and whether that Step updated
	loss    float64
	updated bool
}

// New creates and returns a new DoubleDQN agent. All randomness of the
// agent, including weight initialization, exploration, and experience
// replay sampling, is drawn from rng.
func New(e env.Environment, c Config, rng *rand.Rand) (*DoubleDQN, error) {
	if rng == nil {
		return nil, fmt.Errorf("new: nil random number generator")
	}

	// Ensure environment has discrete actions enumerated from 0
	actionSpec := e.ActionSpec()
	if actionSpec.Cardinality != env.Discrete {
		return nil, fmt.Errorf("new: cannot use non-discrete actions")
	}
	if actionSpec.LowerBound.Len() > 1 {
		return nil, fmt.Errorf("new: actions must be 1-dimensional")
	}
	if actionSpec.LowerBound.AtVec(0) != 0.0 {
		return nil, fmt.Errorf("new: actions must be enumerated starting " +
			"from 0")
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	batchSize := c.BatchSize
	numActions := actionSpec.NumActions()
	features := e.ObservationSpec().Shape.Len()

	// Behaviour network for selecting actions
	behaviourNet, err := network.NewMultiHeadMLP(features, 1, numActions,
		G.NewGraph(), c.HiddenLayers, c.Biases, c.InitWFn.InitWFn(rng),
		c.Activations)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour network: %v",
			err)
	}
	behaviourPolicy, err := policy.NewMultiHeadEGreedyMLP(c.EpsilonStart,
		behaviourNet, rng)
	if err != nil {
		return nil, fmt.Errorf("new: could not create behaviour policy: %v",
			err)
	}

	// The target network starts as a hard copy of the learned network
	targetNet, err := behaviourNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create target network: %v",
			err)
	}
	evalNet, err := behaviourNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create evaluation network: %v",
			err)
	}
	trainNet, err := behaviourNet.CloneWithBatch(batchSize)
	if err != nil {
		return nil, fmt.Errorf("new: could not create learning network: %v",
			err)
	}
	gTrain := trainNet.Graph()

	vector := func(name string) *G.Node {
		return G.NewVector(gTrain, tensor.Float64, G.WithShape(batchSize),
			G.WithName(name), G.WithInit(G.Zeroes()))
	}
	updateTargets := vector("updateTarget")
	quadWeight := vector("quadWeight")
	linWeight := vector("linWeight")
	linOffset := vector("linOffset")

	// Action selected in the previous state as a one-hot matrix. This
	// is needed to compute the loss using the correct action value
	// since the network outputs N action values, one for each
	// environmental action
	selectedActions := G.NewMatrix(
		gTrain,
		tensor.Float64,
		G.WithName("actionSelected"),
		G.WithShape(batchSize, numActions),
		G.WithInit(G.Zeroes()),
	)
	selectedActionsValue := G.Must(G.HadamardProd(trainNet.Prediction(),
		selectedActions))
	selectedActionsValue = G.Must(G.Sum(selectedActionsValue, 1))

	// Compute the mean Huber loss
	tdError := G.Must(G.Sub(selectedActionsValue, updateTargets))
	quadratic := G.Must(G.HadamardProd(quadWeight, G.Must(G.Square(tdError))))
	linear := G.Must(G.HadamardProd(linWeight, G.Must(G.Abs(tdError))))
	losses := G.Must(G.Sub(G.Must(G.Add(quadratic, linear)), linOffset))
	cost := G.Must(G.Mean(losses))

	lossVal := new(G.Value)
	G.Read(cost, lossVal)

	if _, err := G.Grad(cost, trainNet.Learnables()...); err != nil {
		return nil, fmt.Errorf("new: could not compute gradient: %v", err)
	}

	replay, err := expreplay.New(c.ReplayCapacity, features, rng)
	if err != nil {
		return nil, fmt.Errorf("new: could not create experience replay "+
			"buffer: %v", err)
	}

	return &DoubleDQN{
		behaviourPolicy: behaviourPolicy,

		trainNet: trainNet,
		trainNetVM: G.NewTapeMachine(
			gTrain,
			G.BindDualValues(trainNet.Learnables()...),
		),
		solver: c.Solver.Create(),

		evalNet:   evalNet,
		evalNetVM: G.NewTapeMachine(evalNet.Graph()),

		targetNet:   targetNet,
		targetNetVM: G.NewTapeMachine(targetNet.Graph()),

		selectedActions: selectedActions,
		updateTargets:   updateTargets,
		quadWeight:      quadWeight,
		linWeight:       linWeight,
		linOffset:       linOffset,
		lossVal:         lossVal,

		replay: replay,

		gamma:        c.Gamma,
		tau:          c.Tau,
		maxGradNorm:  c.MaxGradNorm,
		epsilonMin:   c.EpsilonMin,
		epsilonDecay: c.EpsilonDecay,
		batchSize:    batchSize,
		numActions:   numActions,
	}, nil
}

// Observe adds a transition to the experience replay buffer
func (d *DoubleDQN) Observe(t ts.Transition) error {
	if t.Action < 0 || t.Action >= d.numActions {
		return fmt.Errorf("observe: action must be in [0, %d], have(%d)",
			d.numActions-1, t.Action)
	}
	if err := d.replay.Add(t); err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	return nil
}

// Step performs a single gradient step if the replay buffer holds at
// least a full batch of transitions and does nothing otherwise.
//
// Step panics if a VM or the solver fails, since the learning
// pipeline cannot recover from a partially applied update.
func (d *DoubleDQN) Step() error {
	d.updated = false
	if d.replay.Len() < d.batchSize {
		return nil
	}

	batch, err := d.replay.Sample(d.batchSize)
	if err != nil {
		panic(fmt.Sprintf("step: could not sample gated batch: %v", err))
	}

	// The learned network selects the next actions and the target
	// network evaluates them
	nextValues := run(d.evalNet, d.evalNetVM, batch.NextStates)
	nextTargetValues := run(d.targetNet, d.targetNetVM, batch.NextStates)
	targets := doubleQTargets(batch.Rewards, batch.Dones, nextValues,
		nextTargetValues, d.numActions, d.gamma)

	// Current action values choose the Huber branch of each sample
	values := run(d.evalNet, d.evalNetVM, batch.States)
	oneHot := make([]float64, d.batchSize*d.numActions)
	current := make([]float64, d.batchSize)
	for i, a := range batch.Actions {
		oneHot[i*d.numActions+a] = 1
		current[i] = values[i*d.numActions+a]
	}
	quad, lin, offset := huberWeights(current, targets)

	if err := d.trainNet.SetInput(batch.States); err != nil {
		panic(fmt.Sprintf("step: could not set train net input: %v", err))
	}
	d.let(d.selectedActions, oneHot, d.batchSize, d.numActions)
	d.let(d.updateTargets, targets, d.batchSize)
	d.let(d.quadWeight, quad, d.batchSize)
	d.let(d.linWeight, lin, d.batchSize)
	d.let(d.linOffset, offset, d.batchSize)

	// Run the learning step
	if err := d.trainNetVM.RunAll(); err != nil {
		panic(fmt.Sprintf("step: could not run train net: %v", err))
	}
	if _, err := clipGradNorm(d.trainNet.Learnables(), d.maxGradNorm); err != nil {
		panic(fmt.Sprintf("step: could not clip gradients: %v", err))
	}
	if err := d.solver.Step(d.trainNet.Model()); err != nil {
		panic(fmt.Sprintf("step: could not step solver: %v", err))
	}
	d.loss = (*d.lossVal).Data().(float64)
	d.trainNetVM.Reset()
	d.gradientSteps++
	d.updated = true

	if err := d.targetNet.Polyak(d.trainNet, d.tau); err != nil {
		panic(fmt.Sprintf("step: could not update target net: %v", err))
	}
	if err := d.evalNet.Set(d.trainNet); err != nil {
		panic(fmt.Sprintf("step: could not update eval net: %v", err))
	}
	if err := d.behaviourPolicy.Network().Set(d.trainNet); err != nil {
		panic(fmt.Sprintf("step: could not update behaviour policy: %v", err))
	}

	return nil
}

// let sets the value of an input node of the loss graph
func (d *DoubleDQN) let(node *G.Node, backing []float64, shape ...int) {
	value := tensor.New(tensor.WithBacking(backing), tensor.WithShape(shape...))
	if err := G.Let(node, value); err != nil {
		panic(fmt.Sprintf("let: could not set %v: %v", node.Name(), err))
	}
}

// run runs a network on an input and returns a copy of its output
func run(net network.NeuralNet, vm G.VM, input []float64) []float64 {
	if err := net.SetInput(input); err != nil {
		panic(fmt.Sprintf("run: could not set input: %v", err))
	}
	if err := vm.RunAll(); err != nil {
		panic(fmt.Sprintf("run: could not run network: %v", err))
	}
	defer vm.Reset()

	return append([]float64{}, net.Output()...)
}

// doubleQTargets computes the Double DQN update targets of a batch.
// Both nextValues, predicted by the learned network, and
// nextTargetValues, predicted by the target network, are row-major
// with numActions values per row.
func doubleQTargets(rewards, dones, nextValues, nextTargetValues []float64,
	numActions int, gamma float64) []float64 {
	targets := make([]float64, len(rewards))
	for i := range targets {
		row := i * numActions
		nextAction := floatutils.ArgMax(nextValues[row : row+numActions])
		bootstrap := nextTargetValues[row+nextAction] * (1 - dones[i])
		targets[i] = rewards[i] + gamma*bootstrap
	}
	return targets
}

// huberWeights returns the per sample weights of the quadratic and
// linear branches of the Huber loss with threshold 1, as well as the
// offset of the linear branch
func huberWeights(current, targets []float64) ([]float64, []float64,
	[]float64) {
	quad := make([]float64, len(current))
	lin := make([]float64, len(current))
	offset := make([]float64, len(current))

	for i := range current {
		if math.Abs(current[i]-targets[i]) < 1 {
			quad[i] = 0.5
		} else {
			lin[i] = 1
			offset[i] = 0.5
		}
	}
	return quad, lin, offset
}

// clipGradNorm scales the gradients of nodes in place so that their
// global L2 norm is at most maxNorm, returning the norm before
// clipping. If maxNorm <= 0, gradients are not clipped.
func clipGradNorm(nodes G.Nodes, maxNorm float64) (float64, error) {
	grads := make([][]float64, len(nodes))
	sumSquares := 0.0
	for i, node := range nodes {
		grad, err := node.Grad()
		if err != nil {
			return 0, fmt.Errorf("clipgradnorm: %v: %v", node.Name(), err)
		}
		data, ok := grad.Data().([]float64)
		if !ok {
			return 0, fmt.Errorf("clipgradnorm: %v: gradient is not float64",
				node.Name())
		}
		grads[i] = data
		sumSquares += floats.Dot(data, data)
	}

	norm := math.Sqrt(sumSquares)
	if maxNorm > 0 && norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for _, data := range grads {
			floats.Scale(scale, data)
		}
	}
	return norm, nil
}

// SelectAction selects an action using the ε-greedy behaviour policy,
// or greedily when in evaluation mode
func (d *DoubleDQN) SelectAction(t ts.TimeStep) int {
	return d.behaviourPolicy.SelectAction(t)
}

// EndEpisode decays epsilon toward its floor
func (d *DoubleDQN) EndEpisode() {
	ε := math.Max(d.epsilonMin, d.behaviourPolicy.Epsilon()*d.epsilonDecay)
	d.behaviourPolicy.SetEpsilon(ε)
}

// Epsilon returns the current exploration rate of the behaviour policy
func (d *DoubleDQN) Epsilon() float64 {
	return d.behaviourPolicy.Epsilon()
}

// Loss returns the loss of the most recent call to Step and whether
// or not that call performed a gradient step
func (d *DoubleDQN) Loss() (float64, bool) {
	return d.loss, d.updated
}

// GradientSteps returns the number of gradient steps performed
func (d *DoubleDQN) GradientSteps() int {
	return d.gradientSteps
}

// BufferLen returns the number of transitions in the replay buffer
func (d *DoubleDQN) BufferLen() int {
	return d.replay.Len()
}

// Network returns the learned network
func (d *DoubleDQN) Network() network.NeuralNet {
	return d.trainNet
}

// Target returns the target network
func (d *DoubleDQN) Target() network.NeuralNet {
	return d.targetNet
}

// Policy returns a greedy policy over a copy of the learned network
func (d *DoubleDQN) Policy() (*policy.MultiHeadEGreedyMLP, error) {
	net, err := d.trainNet.CloneWithBatch(1)
	if err != nil {
		return nil, fmt.Errorf("policy: %v", err)
	}
	return policy.NewGreedyMLP(net)
}

// Eval sets the agent into evaluation mode
func (d *DoubleDQN) Eval() {
	d.behaviourPolicy.Eval()
}

// Train sets the agent into training mode
func (d *DoubleDQN) Train() {
	d.behaviourPolicy.Train()
}

// IsEval returns whether the agent is in evaluation mode
func (d *DoubleDQN) IsEval() bool {
	return d.behaviourPolicy.IsEval()
}

// Close closes the agent's VMs
func (d *DoubleDQN) Close() error {
	for _, closer := range []interface{ Close() error }{d.behaviourPolicy,
		d.trainNetVM, d.evalNetVM, d.targetNetVM} {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close: %v", err)
		}
	}
	return nil
}
