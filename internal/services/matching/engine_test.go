package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSemantic struct {
	best *SemanticBest
	err  error
}

func (s *stubSemantic) Match(ctx context.Context, req Request) (*SemanticBest, error) {
	return s.best, s.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestResolveExactMatchAfterNormalization(t *testing.T) {
	engine := NewEngine(nil, testLogger())
	candidates := []Candidate{{ID: "1", Name: "ABC Water Co."}}

	got := engine.Resolve(context.Background(), Request{Target: "ABC Water Co", Candidates: candidates})

	assert.Equal(t, "1", got.ID)
	assert.Equal(t, 1.0, got.Score)
	assert.Equal(t, TierExact, got.Tier)
}

func TestResolveExactMatchPrecedence(t *testing.T) {
	engine := NewEngine(&stubSemantic{best: &SemanticBest{ID: "2", Name: "Other Vendor", Score: 0.9}}, testLogger())
	candidates := []Candidate{
		{ID: "2", Name: "Other Vendor"},
		{ID: "1", Name: "Acme & Sons"},
	}

	got := engine.Resolve(context.Background(), Request{Target: "acme and sons", Candidates: candidates})

	assert.Equal(t, "1", got.ID)
	assert.Equal(t, 1.0, got.Score)
}

func TestResolveEmptyCandidates(t *testing.T) {
	engine := NewEngine(nil, testLogger())
	got := engine.Resolve(context.Background(), Request{Target: "anything"})
	assert.True(t, got.Empty())
	assert.Equal(t, 0.0, got.Score)
}

func TestResolveAlwaysReturnsACandidate(t *testing.T) {
	engine := NewEngine(&stubSemantic{err: errors.New("timeout")}, testLogger())
	candidates := []Candidate{
		{ID: "1", Name: "Riverbend Apartments"},
		{ID: "2", Name: "Lakeside Commons"},
	}

	got := engine.Resolve(context.Background(), Request{Target: "completely unrelated text", Candidates: candidates})

	require.False(t, got.Empty())
	assert.Equal(t, TierFuzzy, got.Tier)
}

func TestResolveSemanticBestAccepted(t *testing.T) {
	engine := NewEngine(&stubSemantic{best: &SemanticBest{ID: "2", Name: "Lakeside Commons", Score: 0.87}}, testLogger())
	candidates := []Candidate{
		{ID: "1", Name: "Riverbend Apartments"},
		{ID: "2", Name: "Lakeside Commons"},
	}

	got := engine.Resolve(context.Background(), Request{Target: "lake side commons llc", Candidates: candidates})

	assert.Equal(t, "2", got.ID)
	assert.Equal(t, 0.87, got.Score)
	assert.Equal(t, TierSemantic, got.Tier)
}

func TestResolveSemanticInventedCandidateIgnored(t *testing.T) {
	// The service claims a best that is not in the supplied list; the engine
	// must fall through to the deterministic tier instead of trusting it.
	engine := NewEngine(&stubSemantic{best: &SemanticBest{ID: "999", Name: "NOT_A_REAL_CANDIDATE", Score: 0.99}}, testLogger())
	candidates := []Candidate{
		{ID: "1", Name: "Riverbend Apartments"},
		{ID: "2", Name: "Lakeside Commons"},
	}

	got := engine.Resolve(context.Background(), Request{Target: "lakeside commons llc", Candidates: candidates})

	assert.Equal(t, "2", got.ID)
	assert.Equal(t, TierFuzzy, got.Tier)
}

func TestResolveSemanticBestByNameOnly(t *testing.T) {
	engine := NewEngine(&stubSemantic{best: &SemanticBest{Name: "Riverbend Apartments", Score: 0.8}}, testLogger())
	candidates := []Candidate{{ID: "1", Name: "Riverbend Apartments"}}

	got := engine.Resolve(context.Background(), Request{Target: "riverbend apts llc", Candidates: candidates})

	assert.Equal(t, "1", got.ID)
	assert.Equal(t, TierSemantic, got.Tier)
}

func TestDeterministicBestPicksHighestScore(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", Name: "Gas South LLC"},
		{ID: "2", Name: "Georgia Power Company"},
	}
	got := DeterministicBest("georgia power co", candidates)
	assert.Equal(t, "2", got.ID)
	assert.Greater(t, got.Score, 0.5)
}
