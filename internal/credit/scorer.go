// Package credit computes advisory credit decisions. Scores never gate the
// loan engine; they are attached to accounts for operator review only.
package credit

import (
	"math/rand"
	"sync"
	"time"
)

// Score bounds and the decision cutoffs used for the advisory grade.
const (
	MinScore = 300
	MaxScore = 850

	gradeGoodCutoff = 670
	gradeFairCutoff = 580
)

// Decision is the advisory outcome of a credit check.
type Decision string

const (
	DecisionFavorable   Decision = "favorable"
	DecisionConditional Decision = "conditional"
	DecisionUnfavorable Decision = "unfavorable"
)

// Report is the advisory credit report returned to callers.
type Report struct {
	Score      int32     `json:"score"`
	Decision   Decision  `json:"decision"`
	IDVerified bool      `json:"idVerified"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// Scorer produces a credit score for an account. Implementations must be
// safe for concurrent use. Tests inject a deterministic scorer.
type Scorer interface {
	Score(idVerified bool) int32
}

// RandomScorer mixes a verified-identity baseline with a bounded random
// component, mirroring the advisory-only scoring model.
type RandomScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomScorer seeds the scorer; pass 0 to seed from the clock.
func NewRandomScorer(seed int64) *RandomScorer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomScorer{rng: rand.New(rand.NewSource(seed))}
}

// Score returns a score in [MinScore, MaxScore]. Verified identities start
// from a higher baseline.
func (s *RandomScorer) Score(idVerified bool) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := 450
	if idVerified {
		base = 580
	}
	span := MaxScore - base
	return int32(base + s.rng.Intn(span+1))
}

// Grade maps a score to an advisory decision.
func Grade(score int32) Decision {
	switch {
	case score >= gradeGoodCutoff:
		return DecisionFavorable
	case score >= gradeFairCutoff:
		return DecisionConditional
	default:
		return DecisionUnfavorable
	}
}
