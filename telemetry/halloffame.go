package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// HallEntry is a champion genome recorded at the end of a generation.
type HallEntry struct {
	Stage      string          `json:"stage"`
	Generation int             `json:"generation"`
	GenomeID   int             `json:"genome_id"`
	Fitness    float64         `json:"fitness"`
	Genome     json.RawMessage `json:"genome"`
}

// HallOfFame keeps the best genomes seen per stage, sorted by fitness.
type HallOfFame struct {
	halls   map[string][]HallEntry
	maxSize int
}

// NewHallOfFame creates a hall of fame holding up to maxSize entries per stage.
func NewHallOfFame(maxSize int) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		halls:   make(map[string][]HallEntry),
		maxSize: maxSize,
	}
}

// Consider offers a genome for entry. Returns true if it was added.
// A genome already present for the stage only updates when it scores higher.
func (hof *HallOfFame) Consider(entry HallEntry) bool {
	if hof == nil {
		return false
	}
	hall := hof.halls[entry.Stage]
	for i, e := range hall {
		if e.GenomeID != entry.GenomeID {
			continue
		}
		if entry.Fitness <= e.Fitness {
			return false
		}
		hall = append(hall[:i], hall[i+1:]...)
		break
	}

	hall = hof.insertEntry(hall, entry)
	hof.halls[entry.Stage] = hall
	return contains(hall, entry.GenomeID)
}

func contains(hall []HallEntry, genomeID int) bool {
	for _, e := range hall {
		if e.GenomeID == genomeID {
			return true
		}
	}
	return false
}

// insertEntry adds an entry, maintaining descending fitness order.
// If the hall is full, the lowest-fitness entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) []HallEntry {
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})

	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}
	return hall
}

// Best returns the top entry for a stage.
func (hof *HallOfFame) Best(stage string) (HallEntry, bool) {
	if hof == nil || len(hof.halls[stage]) == 0 {
		return HallEntry{}, false
	}
	return hof.halls[stage][0], true
}

// Entries returns the entries for a stage, best first.
func (hof *HallOfFame) Entries(stage string) []HallEntry {
	if hof == nil {
		return nil
	}
	return append([]HallEntry(nil), hof.halls[stage]...)
}

// Size returns the number of entries for a stage.
func (hof *HallOfFame) Size(stage string) int {
	if hof == nil {
		return 0
	}
	return len(hof.halls[stage])
}

// MarshalJSON serializes the hall of fame keyed by stage name.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.halls, "", "  ")
}

// LoadHallOfFameFromFile reads a file written from MarshalJSON.
func LoadHallOfFameFromFile(path string, maxSize int) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var raw map[string][]HallEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	for _, entries := range raw {
		if len(entries) > maxSize {
			maxSize = len(entries)
		}
	}

	hof := NewHallOfFame(maxSize)
	for stage, entries := range raw {
		for _, e := range entries {
			e.Stage = stage
			hof.Consider(e)
		}
	}
	return hof, nil
}
