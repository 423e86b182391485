package neural

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// BrainOutputs is the number of controller outputs: speed and turn.
const BrainOutputs = 2

// ErrEmptyGenome is returned when a genome has no nodes to build from.
var ErrEmptyGenome = errors.New("genome has no nodes")

// Controller maps an input vector to a fixed-length output vector.
type Controller interface {
	Activate(inputs []float64) ([]float64, error)
}

// ControllerFunc adapts an ordinary function to the Controller interface.
type ControllerFunc func(inputs []float64) ([]float64, error)

// Activate calls f(inputs).
func (f ControllerFunc) Activate(inputs []float64) ([]float64, error) {
	return f(inputs)
}

// BrainController wraps a goNEAT network for runtime evaluation.
type BrainController struct {
	Genome  *genetics.Genome
	network *network.Network
	inputs  int
	outputs []float64
}

// NewBrainController creates a controller from a genome.
func NewBrainController(genome *genetics.Genome) (*BrainController, error) {
	if genome == nil || len(genome.Nodes) == 0 {
		return nil, ErrEmptyGenome
	}
	b := &BrainController{
		Genome:  genome,
		inputs:  InputCount(genome),
		outputs: make([]float64, BrainOutputs),
	}
	if err := b.RebuildNetwork(); err != nil {
		return nil, err
	}
	return b, nil
}

// Activate processes sensory inputs and returns the two behavior outputs.
// The returned slice is reused by the next call.
func (b *BrainController) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != b.inputs {
		return nil, fmt.Errorf("expected %d inputs, got %d", b.inputs, len(inputs))
	}

	if err := b.network.LoadSensors(inputs); err != nil {
		return nil, fmt.Errorf("failed to load sensors: %w", err)
	}

	// Activate with depth-based steps for proper signal propagation
	depth, err := b.network.MaxActivationDepth()
	if err != nil || depth < 1 {
		depth = 5
	}

	for i := 0; i < depth; i++ {
		if _, err := b.network.Activate(); err != nil {
			return nil, fmt.Errorf("activation failed: %w", err)
		}
	}

	out := b.network.ReadOutputs()
	for i := range b.outputs {
		if i < len(out) {
			b.outputs[i] = out[i]
		} else {
			b.outputs[i] = 0
		}
	}

	// Flush network state for next tick
	if _, err := b.network.Flush(); err != nil {
		return nil, fmt.Errorf("flush failed: %w", err)
	}

	return b.outputs, nil
}

// RebuildNetwork recreates the phenotype network from the genome.
// Call this after the genome's weights or topology change.
func (b *BrainController) RebuildNetwork() error {
	phenotype, err := b.Genome.Genesis(b.Genome.Id)
	if err != nil {
		return fmt.Errorf("failed to build network from genome %d: %w", b.Genome.Id, err)
	}
	b.network = phenotype
	return nil
}

// NodeCount returns the number of nodes in the network.
func (b *BrainController) NodeCount() int {
	return b.network.NodeCount()
}

// LinkCount returns the number of links (connections) in the network.
func (b *BrainController) LinkCount() int {
	return b.network.LinkCount()
}

// InputCount returns the number of sensor nodes in a genome.
func InputCount(genome *genetics.Genome) int {
	n := 0
	for _, node := range genome.Nodes {
		if node.IsSensor() {
			n++
		}
	}
	return n
}

// CreateBrainGenome creates a genome with the given input arity and sparse
// random input-to-output connections.
func CreateBrainGenome(id, inputs int, connectionProb float64, rng *rand.Rand) *genetics.Genome {
	nodes := brainNodes(inputs)

	genes := make([]*genetics.Gene, 0, inputs*BrainOutputs)
	innovNum := int64(1)

	for i := 0; i < inputs; i++ {
		for j := 0; j < BrainOutputs; j++ {
			// Always increment innovation for consistent tracking
			currentInnov := innovNum
			innovNum++

			if rng.Float64() < connectionProb {
				weight := rng.Float64()*4 - 2 // [-2, 2]
				genes = append(genes, genetics.NewGeneWithTrait(
					nil, weight, nodes[i], nodes[inputs+j], false, currentInnov, 0,
				))
			}
		}
	}

	// Every output gets at least one incoming connection
	for j := 0; j < BrainOutputs; j++ {
		connected := false
		for _, g := range genes {
			if g.Link.OutNode.Id == nodes[inputs+j].Id {
				connected = true
				break
			}
		}
		if !connected {
			i := rng.Intn(inputs)
			genes = append(genes, genetics.NewGeneWithTrait(
				nil, rng.Float64()*2-1, nodes[i], nodes[inputs+j], false,
				int64(i*BrainOutputs+j+1), 0,
			))
		}
	}

	return genetics.NewGenome(id, nil, nodes, genes)
}

// CreateMinimalBrainGenome creates a fully connected input-to-output genome.
// Useful for testing and as a baseline.
func CreateMinimalBrainGenome(id, inputs int, rng *rand.Rand) *genetics.Genome {
	nodes := brainNodes(inputs)

	genes := make([]*genetics.Gene, 0, inputs*BrainOutputs)
	innovNum := int64(1)

	for i := 0; i < inputs; i++ {
		for j := 0; j < BrainOutputs; j++ {
			weight := rng.Float64()*2 - 1 // [-1, 1]
			genes = append(genes, genetics.NewGeneWithTrait(
				nil, weight, nodes[i], nodes[inputs+j], false, innovNum, 0,
			))
			innovNum++
		}
	}

	return genetics.NewGenome(id, nil, nodes, genes)
}

// brainNodes lays out input nodes (IDs 1..inputs) then output nodes.
func brainNodes(inputs int) []*network.NNode {
	nodes := make([]*network.NNode, 0, inputs+BrainOutputs)
	for i := 1; i <= inputs; i++ {
		node := network.NewNNode(i, network.InputNeuron)
		node.ActivationType = neatmath.LinearActivation
		nodes = append(nodes, node)
	}
	for i := 1; i <= BrainOutputs; i++ {
		node := network.NewNNode(inputs+i, network.OutputNeuron)
		node.ActivationType = neatmath.TanhActivation
		nodes = append(nodes, node)
	}
	return nodes
}
