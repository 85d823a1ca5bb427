package matching

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Candidate is a reference-catalog entry eligible for matching. Number is only
// populated for GL accounts.
type Candidate struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}

// Match tiers, recorded on every result for auditing.
const (
	TierExact    = "exact"
	TierRule     = "rule"
	TierSemantic = "semantic"
	TierFuzzy    = "fuzzy"
)

// Result is the uniform output of the engine regardless of which tier produced
// it. An empty ID with score 0 means the candidate list itself was empty.
type Result struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Number string  `json:"number,omitempty"`
	Score  float64 `json:"score"`
	Tier   string  `json:"tier,omitempty"`
}

func (r Result) Empty() bool { return r.ID == "" && r.Name == "" }

// Request carries one resolution call. Context holds free-form hints forwarded
// to the semantic tier; RotationKey spreads semantic calls across API keys.
type Request struct {
	Target      string
	Candidates  []Candidate
	Context     map[string]string
	RotationKey string
}

// SemanticBest is the raw, unvalidated best from the semantic service.
type SemanticBest struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// SemanticMatcher delegates a match to the external semantic service. A nil
// best or an error both mean "no result"; the engine never trusts the service
// to invent an identity.
type SemanticMatcher interface {
	Match(ctx context.Context, req Request) (*SemanticBest, error)
}

// Engine resolves a free-text target against a candidate list:
// exact-normalized match, then the semantic service, then a deterministic
// fuzzy best. With a non-empty candidate list it always returns a result.
type Engine struct {
	semantic SemanticMatcher
	log      *logrus.Logger
}

func NewEngine(semantic SemanticMatcher, log *logrus.Logger) *Engine {
	return &Engine{semantic: semantic, log: log}
}

// maxFuzzyCandidates bounds the deterministic scan for cost control.
const maxFuzzyCandidates = 2000

func (e *Engine) Resolve(ctx context.Context, req Request) Result {
	if len(req.Candidates) == 0 {
		return Result{}
	}

	target := Normalize(req.Target)
	for _, c := range req.Candidates {
		if Normalize(c.Name) == target {
			return Result{ID: c.ID, Name: c.Name, Number: c.Number, Score: 1.0, Tier: TierExact}
		}
	}

	if e.semantic != nil {
		best, err := e.semantic.Match(ctx, req)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"module": "matching",
				"target": req.Target,
			}).Warn("semantic match failed, falling back: ", err)
		} else if best != nil {
			if r, ok := resolveSemanticBest(best, req.Candidates); ok {
				return r
			}
			e.log.WithFields(logrus.Fields{
				"module": "matching",
				"target": req.Target,
				"best":   best.Name,
			}).Warn("semantic best not in candidate list, falling back")
		}
	}

	return DeterministicBest(req.Target, req.Candidates)
}

// resolveSemanticBest accepts the service's best only if it references a
// supplied candidate, by id first, then by exact name.
func resolveSemanticBest(best *SemanticBest, candidates []Candidate) (Result, bool) {
	if best.ID != "" {
		for _, c := range candidates {
			if c.ID == best.ID {
				return Result{ID: c.ID, Name: c.Name, Number: c.Number, Score: best.Score, Tier: TierSemantic}, true
			}
		}
	}
	if best.Name != "" {
		for _, c := range candidates {
			if c.Name == best.Name {
				return Result{ID: c.ID, Name: c.Name, Number: c.Number, Score: best.Score, Tier: TierSemantic}, true
			}
		}
	}
	return Result{}, false
}

// DeterministicBest picks the highest normalized-similarity candidate. It is
// the guaranteed last tier: for a non-empty list it always returns something.
func DeterministicBest(target string, candidates []Candidate) Result {
	if len(candidates) == 0 {
		return Result{}
	}
	scan := candidates
	if len(scan) > maxFuzzyCandidates {
		scan = scan[:maxFuzzyCandidates]
	}
	t := Normalize(target)
	best := candidates[0]
	bestScore := -1.0
	for _, c := range scan {
		score := Similarity(t, Normalize(c.Name))
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore < 0 {
		bestScore = 0
	}
	return Result{ID: best.ID, Name: best.Name, Number: best.Number, Score: bestScore, Tier: TierFuzzy}
}
