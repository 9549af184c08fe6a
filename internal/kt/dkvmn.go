// SPDX-License-Identifier: MIT

package kt

// DKVMN is a simplified key-value concept memory for one student. The
// value memory holds per-concept mastery; the key memory holds pairwise
// concept correlations. Reading a concept blends its own mastery with a
// weighted contribution from related concepts.
type DKVMN struct {
	valueMemory map[string]float64
	keyMemory   map[string]float64
}

const (
	dkvmnInitialMastery     = 30.0
	dkvmnDirectWeight       = 0.7
	dkvmnRelatedWeight      = 0.3
	dkvmnSeedCorrelation    = 0.5
	dkvmnUnknownCorrelation = 0.3
)

// NewDKVMN creates an empty concept memory.
func NewDKVMN() *DKVMN {
	return &DKVMN{
		valueMemory: make(map[string]float64),
		keyMemory:   make(map[string]float64),
	}
}

// Seed preloads the value memory, typically from persisted mastery
// records.
func (m *DKVMN) Seed(conceptID string, mastery float64) {
	m.valueMemory[conceptID] = mastery
}

// Read returns the memory-aware mastery estimate for a concept.
func (m *DKVMN) Read(conceptID string, relatedConcepts []string) float64 {
	direct, ok := m.valueMemory[conceptID]
	if !ok {
		return dkvmnInitialMastery
	}

	var relatedSum float64
	var relatedCount int
	for _, rel := range relatedConcepts {
		if mastery, ok := m.valueMemory[rel]; ok {
			relatedSum += mastery * m.correlation(conceptID, rel)
			relatedCount++
		}
	}
	if relatedCount == 0 {
		return direct
	}

	relatedMean := relatedSum / float64(relatedCount)
	return dkvmnDirectWeight*direct + dkvmnRelatedWeight*relatedMean
}

// Write stores the updated mastery and seeds correlations to related
// concepts.
func (m *DKVMN) Write(conceptID string, mastery float64, relatedConcepts []string) {
	m.valueMemory[conceptID] = mastery

	for _, rel := range relatedConcepts {
		key := conceptID + "_" + rel
		if _, ok := m.keyMemory[key]; !ok {
			m.keyMemory[key] = dkvmnSeedCorrelation
		}
	}
}

// MasteredConcepts lists concepts at or above the threshold.
func (m *DKVMN) MasteredConcepts(threshold float64) []string {
	var out []string
	for concept, mastery := range m.valueMemory {
		if mastery >= threshold {
			out = append(out, concept)
		}
	}
	return out
}

// WeakConcepts lists concepts below the threshold.
func (m *DKVMN) WeakConcepts(threshold float64) []string {
	var out []string
	for concept, mastery := range m.valueMemory {
		if mastery < threshold {
			out = append(out, concept)
		}
	}
	return out
}

func (m *DKVMN) correlation(a, b string) float64 {
	if w, ok := m.keyMemory[a+"_"+b]; ok {
		return w
	}
	return dkvmnUnknownCorrelation
}
