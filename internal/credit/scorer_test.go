package credit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRandomScorer_Bounds(t *testing.T) {
	s := NewRandomScorer(1)
	for i := 0; i < 500; i++ {
		score := s.Score(false)
		assert.GreaterOrEqual(t, score, int32(MinScore))
		assert.LessOrEqual(t, score, int32(MaxScore))
	}
}

func TestRandomScorer_VerifiedBaseline(t *testing.T) {
	s := NewRandomScorer(7)
	for i := 0; i < 500; i++ {
		assert.GreaterOrEqual(t, s.Score(true), int32(580))
	}
}

func TestGrade(t *testing.T) {
	assert.Equal(t, DecisionFavorable, Grade(700))
	assert.Equal(t, DecisionConditional, Grade(600))
	assert.Equal(t, DecisionUnfavorable, Grade(500))
}
