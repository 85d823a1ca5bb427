package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"
)

const (
	maxSemanticCandidates = 1000
	maxAlternates         = 2
	semanticTimeout       = 60 * time.Second
)

const matcherInstructions = "You are an entity matcher. Use semantics, normalization, and geographic hints to select the closest candidate from the provided candidates list. " +
	"Return ONLY valid JSON with keys: best {id: string, name: string, score: float} and alternates (array up to max_alternates). " +
	"The 'best' MUST be one of the provided candidates (use the candidate's exact id and name). Do NOT return the target string as the best if it is not in candidates. " +
	"Use context.city/state/zip/utility_type when provided to disambiguate. Always include a best guess."

// GeminiMatcher calls the generative-language fuzzy_match task. Requests are
// spread over up to three API keys by hashing the request's rotation key.
type GeminiMatcher struct {
	keys    []string
	model   string
	baseURL string
	client  *http.Client
}

func NewGeminiMatcher(keys []string, model, baseURL string) *GeminiMatcher {
	if len(keys) > 3 {
		keys = keys[:3]
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	return &GeminiMatcher{
		keys:    keys,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: semanticTimeout},
	}
}

func (m *GeminiMatcher) pickKey(rotationKey string) string {
	if len(m.keys) == 0 {
		return ""
	}
	h := fnv.New32a()
	h.Write([]byte(rotationKey))
	return m.keys[int(h.Sum32())%len(m.keys)]
}

type matchPayload struct {
	Task          string            `json:"task"`
	Threshold     float64           `json:"threshold"`
	MaxAlternates int               `json:"max_alternates"`
	Target        string            `json:"target"`
	Candidates    []Candidate       `json:"candidates"`
	Context       map[string]string `json:"context"`
	Instructions  string            `json:"instructions"`
}

type genPart struct {
	Text string `json:"text"`
}

type genContent struct {
	Role  string    `json:"role"`
	Parts []genPart `json:"parts"`
}

type generateRequest struct {
	Contents []genContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []genPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type matchResponse struct {
	Best       *SemanticBest  `json:"best"`
	Alternates []SemanticBest `json:"alternates"`
}

// Match sends one fuzzy_match task. Any transport failure, non-200 status or
// non-conforming response body yields (nil, err) so the caller falls through
// to the deterministic tier.
func (m *GeminiMatcher) Match(ctx context.Context, req Request) (*SemanticBest, error) {
	if req.Target == "" || len(req.Candidates) == 0 {
		return nil, nil
	}
	apiKey := m.pickKey(req.RotationKey)
	if apiKey == "" {
		return nil, fmt.Errorf("no matcher keys configured")
	}

	capped := req.Candidates
	if len(capped) > maxSemanticCandidates {
		capped = capped[:maxSemanticCandidates]
	}
	hints := req.Context
	if hints == nil {
		hints = map[string]string{}
	}
	payload := matchPayload{
		Task:          "fuzzy_match",
		Threshold:     0.0,
		MaxAlternates: maxAlternates,
		Target:        req.Target,
		Candidates:    capped,
		Context:       hints,
		Instructions:  matcherInstructions,
	}
	prompt, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	body := generateRequest{Contents: []genContent{
		{Role: "user", Parts: []genPart{{Text: string(prompt)}}},
	}}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", m.baseURL, m.model, apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("matcher returned status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, err
	}
	if len(gr.Candidates) == 0 {
		return nil, fmt.Errorf("matcher returned no content")
	}
	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	var mr matchResponse
	if err := json.Unmarshal([]byte(stripCodeFence(text.String())), &mr); err != nil {
		return nil, fmt.Errorf("unparsable matcher response: %w", err)
	}
	if mr.Best == nil {
		return nil, fmt.Errorf("matcher response missing best")
	}
	return mr.Best, nil
}

// stripCodeFence tolerates ```json fenced bodies some model versions emit.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
