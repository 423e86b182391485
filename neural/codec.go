package neural

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yaricom/goNEAT/v4/neat/genetics"
	neatmath "github.com/yaricom/goNEAT/v4/neat/math"
	"github.com/yaricom/goNEAT/v4/neat/network"
)

// GenomeVersion is incremented when the record format changes.
const GenomeVersion = 1

// GenomeRecord is the JSON form of a genome.
type GenomeRecord struct {
	Version int          `json:"version"`
	ID      int          `json:"id"`
	Nodes   []NodeRecord `json:"nodes"`
	Genes   []GeneRecord `json:"genes"`
}

// NodeRecord is the JSON form of a network node.
type NodeRecord struct {
	ID         int `json:"id"`
	Type       int `json:"type"`
	Activation int `json:"activation"`
}

// GeneRecord is the JSON form of a connection gene.
type GeneRecord struct {
	In         int     `json:"in"`
	Out        int     `json:"out"`
	Weight     float64 `json:"weight"`
	Enabled    bool    `json:"enabled"`
	Recurrent  bool    `json:"recurrent,omitempty"`
	Innovation int64   `json:"innovation"`
	Mutation   float64 `json:"mutation,omitempty"`
}

// EncodeGenome serializes a genome to JSON.
func EncodeGenome(genome *genetics.Genome) ([]byte, error) {
	if genome == nil {
		return nil, ErrEmptyGenome
	}
	rec := GenomeRecord{
		Version: GenomeVersion,
		ID:      genome.Id,
		Nodes:   make([]NodeRecord, 0, len(genome.Nodes)),
		Genes:   make([]GeneRecord, 0, len(genome.Genes)),
	}
	for _, n := range genome.Nodes {
		rec.Nodes = append(rec.Nodes, NodeRecord{
			ID:         n.Id,
			Type:       int(n.NeuronType),
			Activation: int(n.ActivationType),
		})
	}
	for _, g := range genome.Genes {
		rec.Genes = append(rec.Genes, GeneRecord{
			In:         g.Link.InNode.Id,
			Out:        g.Link.OutNode.Id,
			Weight:     g.Link.ConnectionWeight,
			Enabled:    g.IsEnabled,
			Recurrent:  g.Link.IsRecurrent,
			Innovation: g.InnovationNum,
			Mutation:   g.MutationNum,
		})
	}
	return json.Marshal(rec)
}

// DecodeGenome rebuilds a genome from EncodeGenome output. Nodes come back
// sorted by ID so sensor order is stable.
func DecodeGenome(data []byte) (*genetics.Genome, error) {
	var rec GenomeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal genome: %w", err)
	}
	if rec.Version != GenomeVersion {
		return nil, fmt.Errorf("unsupported genome version %d", rec.Version)
	}
	if len(rec.Nodes) == 0 {
		return nil, ErrEmptyGenome
	}

	nodes := make(map[int]*network.NNode, len(rec.Nodes))
	for _, nr := range rec.Nodes {
		if _, dup := nodes[nr.ID]; dup {
			return nil, fmt.Errorf("duplicate node %d", nr.ID)
		}
		node := network.NewNNode(nr.ID, network.NodeNeuronType(nr.Type))
		node.ActivationType = neatmath.NodeActivationType(nr.Activation)
		nodes[nr.ID] = node
	}

	genes := make([]*genetics.Gene, 0, len(rec.Genes))
	for _, gr := range rec.Genes {
		in, out := nodes[gr.In], nodes[gr.Out]
		if in == nil || out == nil {
			return nil, fmt.Errorf("gene %d references missing node %d -> %d", gr.Innovation, gr.In, gr.Out)
		}
		gene := genetics.NewGeneWithTrait(nil, gr.Weight, in, out, gr.Recurrent, gr.Innovation, gr.Mutation)
		gene.IsEnabled = gr.Enabled
		genes = append(genes, gene)
	}

	return genetics.NewGenome(rec.ID, nil, sortedNodes(nodes), genes), nil
}

// SaveGenome writes a genome to path, replacing any previous file.
func SaveGenome(genome *genetics.Genome, path string) error {
	data, err := EncodeGenome(genome)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create genome dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write genome: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace genome: %w", err)
	}
	return nil
}

// LoadGenome reads a genome written by SaveGenome.
func LoadGenome(path string) (*genetics.Genome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genome: %w", err)
	}
	return DecodeGenome(data)
}
