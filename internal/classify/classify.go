// Package classify assigns a document category from recognized text.
//
// The required stage is a weighted keyword scorer over the category
// registry. An optional zero-shot ML backend refines low-confidence keyword
// results; every backend failure degrades to the keyword result, so
// classification never fails outright.
package classify

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/docuflat/docuflat/internal/category"
	"github.com/docuflat/docuflat/internal/extract"
)

// Method values reported in Result.Method.
const (
	// MethodKeyword means the keyword stage's result stands.
	MethodKeyword = "keyword"

	// MethodML means the zero-shot backend's result was adopted.
	MethodML = "ml"

	// MethodMLUnavailable means refinement was wanted but no backend
	// could be reached; the keyword result stands.
	MethodMLUnavailable = "ml-unavailable"

	// MethodMLError means the backend failed at runtime; the keyword
	// result stands.
	MethodMLError = "ml-error"
)

// Result is the outcome of one classification pass.
type Result struct {
	// Category is the winning category id.
	Category string `json:"category"`

	// Confidence is the winner's normalized confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Scores holds the raw keyword-stage score per category id.
	Scores map[string]float64 `json:"scores"`

	// Method records which stage produced the final category.
	Method string `json:"method"`
}

// Alternative is a non-winning category with its relative strength.
type Alternative struct {
	// Category is the category id.
	Category string `json:"category"`

	// Score is the raw score divided by the maximum score over all
	// categories, a relative-strength hint for manual override UIs.
	Score float64 `json:"score"`
}

// Config holds the scoring constants of the keyword stage.
type Config struct {
	// CatchAllBase seeds the catch-all category so the arg-max is never
	// empty, and doubles as the confidence reported on zero total signal.
	CatchAllBase float64

	// StrongWeight is the score per strong-keyword occurrence.
	StrongWeight float64

	// MediumWeight is the score per medium-keyword occurrence.
	MediumWeight float64

	// AmountBonus is added to invoice-like categories when at least one
	// currency amount was extracted.
	AmountBonus float64

	// ExtractedHitWeight multiplies the extractor's per-category keyword
	// hit counts. Extracted hits intentionally double-count keywords
	// already scored above; they passed a stricter match and carry more
	// signal.
	ExtractedHitWeight float64

	// TotalWeight scales the total score in the confidence denominator.
	TotalWeight float64

	// ConfidenceFloor is the minimum confidence denominator, suppressing
	// overconfidence on tiny absolute scores.
	ConfidenceFloor float64

	// MLThreshold is the keyword confidence below which zero-shot
	// refinement is attempted.
	MLThreshold float64

	// MLMaxChars bounds the text submitted to the zero-shot backend.
	MLMaxChars int
}

// DefaultConfig returns the scoring constants tuned for German documents.
func DefaultConfig() Config {
	return Config{
		CatchAllBase:       0.1,
		StrongWeight:       3,
		MediumWeight:       1,
		AmountBonus:        3,
		ExtractedHitWeight: 2,
		TotalWeight:        0.5,
		ConfidenceFloor:    5,
		MLThreshold:        0.6,
		MLMaxChars:         2000,
	}
}

// Classifier scores text against a category registry.
//
// A Classifier holds no per-call state and is safe for concurrent use; the
// optional backend handle is shared read-only.
type Classifier struct {
	cfg      Config
	registry *category.Registry
	backend  ZeroShot
	log      *logrus.Logger
}

// NewClassifier creates a Classifier. backend may be nil to disable ML
// refinement; a nil logger disables logging.
func NewClassifier(cfg Config, registry *category.Registry, backend ZeroShot, log *logrus.Logger) *Classifier {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Classifier{cfg: cfg, registry: registry, backend: backend, log: log}
}

// Warmup probes the zero-shot backend when it supports one-time
// initialization. Classification works without the backend either way, so
// callers may treat a failed warmup as a cue to DropBackend rather than an
// error to propagate.
func (c *Classifier) Warmup(ctx context.Context) error {
	type warmable interface {
		Warmup(ctx context.Context) error
	}
	if w, ok := c.backend.(warmable); ok {
		return w.Warmup(ctx)
	}
	return nil
}

// DropBackend removes the zero-shot backend; classification continues in
// keyword-only mode.
func (c *Classifier) DropBackend() {
	c.backend = nil
}

// Classify scores text plus extracted structured data and returns the
// winning category.
//
// # Algorithm
//
// The keyword stage scores every registry category: StrongWeight per strong
// keyword occurrence in the lowercased text, MediumWeight per medium
// occurrence, AmountBonus for invoice-like categories when an amount was
// extracted, and ExtractedHitWeight times the extractor's per-category hit
// counts. The winner is the arg-max; exact ties keep the earliest category
// in registry order. Confidence is
//
//	min(best / max(total*TotalWeight, ConfidenceFloor), 1)
//
// so a category that dominates the total approaches 1 while a flat score
// distribution stays low even when the winning score is numerically high.
//
// When the keyword confidence is below MLThreshold and a backend is
// configured, the text is truncated to MLMaxChars and submitted for
// zero-shot classification; the ML result is adopted only if its confidence
// beats the keyword stage's.
func (c *Classifier) Classify(ctx context.Context, text string, data *extract.StructuredData) *Result {
	result := c.keywordStage(text, data)

	if c.backend == nil || result.Confidence >= c.cfg.MLThreshold {
		return result
	}
	return c.refine(ctx, text, result)
}

func (c *Classifier) keywordStage(text string, data *extract.StructuredData) *Result {
	lower := strings.ToLower(text)
	hasAmount := data != nil && len(data.Amounts) > 0

	scores := make(map[string]float64)
	for _, cat := range c.registry.All() {
		score := 0.0
		if cat.ID == category.CatchAllID {
			score = c.cfg.CatchAllBase
		}
		for _, keyword := range cat.Strong {
			score += float64(strings.Count(lower, strings.ToLower(keyword))) * c.cfg.StrongWeight
		}
		for _, keyword := range cat.Medium {
			score += float64(strings.Count(lower, strings.ToLower(keyword))) * c.cfg.MediumWeight
		}
		if hasAmount && cat.AmountBonus {
			score += c.cfg.AmountBonus
		}
		scores[cat.ID] = score
	}

	if data != nil {
		for _, hit := range data.Keywords {
			if _, ok := scores[hit.Category]; ok {
				scores[hit.Category] += float64(hit.Count) * c.cfg.ExtractedHitWeight
			}
		}
	}

	// Arg-max in registry order; a strictly-greater comparison keeps the
	// first-seen category on exact ties.
	winner := category.CatchAllID
	best, total := 0.0, 0.0
	first := true
	for _, cat := range c.registry.All() {
		score := scores[cat.ID]
		total += score
		if first || score > best {
			winner, best, first = cat.ID, score, false
		}
	}

	confidence := c.cfg.CatchAllBase
	if total > 0 {
		denominator := total * c.cfg.TotalWeight
		if denominator < c.cfg.ConfidenceFloor {
			denominator = c.cfg.ConfidenceFloor
		}
		confidence = best / denominator
		if confidence > 1 {
			confidence = 1
		}
	}

	return &Result{
		Category:   winner,
		Confidence: confidence,
		Scores:     scores,
		Method:     MethodKeyword,
	}
}

// refine submits truncated text to the zero-shot backend and adopts its
// answer only when it is more confident than the keyword stage.
func (c *Classifier) refine(ctx context.Context, text string, keyword *Result) *Result {
	labels := make([]string, 0, len(c.registry.All()))
	for _, cat := range c.registry.All() {
		if cat.MLLabel != "" {
			labels = append(labels, cat.MLLabel)
		}
	}
	if len(labels) == 0 {
		return keyword
	}

	ranked, err := c.backend.Classify(ctx, truncate(text, c.cfg.MLMaxChars), labels)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			c.log.WithError(err).Debug("zero-shot backend unavailable, keeping keyword result")
			keyword.Method = MethodMLUnavailable
		} else {
			c.log.WithError(err).Warn("zero-shot classification failed, keeping keyword result")
			keyword.Method = MethodMLError
		}
		return keyword
	}
	if len(ranked) == 0 {
		keyword.Method = MethodMLError
		return keyword
	}

	top := ranked[0]
	for _, ls := range ranked[1:] {
		if ls.Score > top.Score {
			top = ls
		}
	}

	id, ok := c.registry.MLLabels()[top.Label]
	if !ok {
		c.log.WithField("label", top.Label).Warn("zero-shot backend returned unknown label")
		keyword.Method = MethodMLError
		return keyword
	}
	if top.Score <= keyword.Confidence {
		return keyword
	}

	confidence := top.Score
	if confidence > 1 {
		confidence = 1
	}
	return &Result{
		Category:   id,
		Confidence: confidence,
		Scores:     keyword.Scores,
		Method:     MethodML,
	}
}

// Alternatives returns the top-3 non-winning categories by raw score, each
// normalized by the maximum score over all categories. Zero-score
// categories rank last but are not excluded.
func Alternatives(r *Result) []Alternative {
	maxScore := 0.0
	for _, score := range r.Scores {
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore == 0 {
		return nil
	}

	alternatives := make([]Alternative, 0, len(r.Scores))
	for id, score := range r.Scores {
		if id == r.Category {
			continue
		}
		alternatives = append(alternatives, Alternative{Category: id, Score: score / maxScore})
	}

	sort.Slice(alternatives, func(i, j int) bool {
		if alternatives[i].Score != alternatives[j].Score {
			return alternatives[i].Score > alternatives[j].Score
		}
		return alternatives[i].Category < alternatives[j].Category
	})
	if len(alternatives) > 3 {
		alternatives = alternatives[:3]
	}
	return alternatives
}

// truncate cuts s to at most limit runes without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
