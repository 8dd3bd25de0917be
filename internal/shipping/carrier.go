package shipping

import "math/rand"

// CarrierSelector picks a carrier for a shipping method from the candidates
// configured for that method. Candidates are always non-empty.
type CarrierSelector interface {
	Select(method string, candidates []string) string
}

// FirstCarrierSelector always returns the first candidate. It is the default
// selector so that repeated quotes for the same cart are stable.
type FirstCarrierSelector struct{}

func (FirstCarrierSelector) Select(_ string, candidates []string) string {
	return candidates[0]
}

// RandomCarrierSelector distributes load across candidates using a seeded
// source, so tests can fix the seed and assert the outcome.
type RandomCarrierSelector struct {
	rng *rand.Rand
}

func NewRandomCarrierSelector(seed int64) *RandomCarrierSelector {
	return &RandomCarrierSelector{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomCarrierSelector) Select(_ string, candidates []string) string {
	return candidates[s.rng.Intn(len(candidates))]
}
