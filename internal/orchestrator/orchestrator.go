// Package orchestrator drives the per-request pipeline: classify the
// action, probe the response cache, dispatch to the right generation
// profile, issue the XP reward where due, and write back to the cache.
//
// Each invocation is an independent, stateless unit of work; the four
// I/O steps run strictly sequentially. Two concurrent misses on the same
// fingerprint may both generate and both upsert (last-write-wins) — an
// accepted inefficiency since equal inputs produce equivalent content.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"nkelo-gateway/internal/cache"
	"nkelo-gateway/internal/genai"
	"nkelo-gateway/internal/metrics"
	"nkelo-gateway/internal/progress"
	"nkelo-gateway/pkg/logging"
)

// Config tunes the pipeline. Zero values fall back to defaults.
type Config struct {
	FlashModel string // transmute, recommend and default chat
	ProModel   string // explore (grounded)
	ExploreXP  int    // XP granted per explore
}

const (
	defaultFlashModel = "gemini-3-flash-preview"
	defaultProModel   = "gemini-3-pro-preview"
	defaultExploreXP  = 10
)

func (c Config) withDefaults() Config {
	if c.FlashModel == "" {
		c.FlashModel = defaultFlashModel
	}
	if c.ProModel == "" {
		c.ProModel = defaultProModel
	}
	if c.ExploreXP <= 0 {
		c.ExploreXP = defaultExploreXP
	}
	return c
}

// Link is one attributable source extracted from grounding metadata.
type Link struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
	Type  string `json:"type"` // "map" or "web"
}

// Recommendation is the schema-constrained recommend result.
type Recommendation struct {
	RecommendedModule string `json:"recommendedModule"`
	Justification     string `json:"justification"`
}

// Result is assembled once per request. Exactly one of the normal-text
// shape (Text plus flags) or Recommendation is populated; Links is
// non-nil only for explore.
type Result struct {
	Text           string
	Cached         bool
	Rewarded       bool
	Links          []Link
	Recommendation *Recommendation
}

// Orchestrator composes the three adapters. All dependencies are
// injected so tests can substitute in-memory fakes.
type Orchestrator struct {
	cache   cache.ResponseCache
	gen     genai.Generator
	rewards progress.XPStore
	cfg     Config
}

// New creates an orchestrator.
func New(c cache.ResponseCache, g genai.Generator, r progress.XPStore, cfg Config) *Orchestrator {
	return &Orchestrator{
		cache:   c,
		gen:     g,
		rewards: r,
		cfg:     cfg.withDefaults(),
	}
}

// Handle runs one request through the pipeline. Any returned error is
// converted to the uniform error response by the HTTP handler — the
// single recovery boundary. Cache failures never surface here: reads
// degrade to a miss, writes are best-effort.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Result, error) {
	logger := logging.L(ctx)

	act, err := Classify(req)
	if err != nil {
		return nil, err
	}

	shouldCache := cacheableAction(req.Action)

	// Cache probe. Gated on user identity: anonymous requests are never
	// cached (and never rewarded).
	var fingerprint string
	if shouldCache && req.UserID != "" {
		fingerprint = cache.Fingerprint(cacheMaterial(req.UserID, act))

		value, hit, err := o.cache.Get(ctx, fingerprint)
		if err != nil {
			logger.Warn("cache lookup failed, treating as miss", zap.Error(err))
		} else if hit {
			// No generation, no reward evaluation, no cache write.
			return &Result{Text: value, Cached: true}, nil
		}
	}

	var res *Result
	switch a := act.(type) {
	case RecommendAction:
		// Side branch: schema profile, immediate return, no cache write.
		return o.recommend(ctx, a)

	case TransmuteAction:
		gr, err := o.generate(ctx, ActionTransmute, genai.Request{
			Model:             o.cfg.FlashModel,
			Contents:          "Conteúdo: " + a.Content,
			SystemInstruction: transmuteSystemPrompt(a.Mode),
		})
		if err != nil {
			return nil, err
		}
		res = &Result{Text: gr.Text}

	case ExploreAction:
		res, err = o.explore(ctx, a, req.UserID)
		if err != nil {
			return nil, err
		}

	case ChatAction:
		model := a.Model
		if model == "" {
			model = o.cfg.FlashModel
		}
		systemInstruction := a.SystemInstruction
		if systemInstruction == "" {
			systemInstruction = defaultChatSystemPrompt
		}
		gr, err := o.generate(ctx, ActionChat, genai.Request{
			Model:             model,
			Contents:          a.Prompt,
			SystemInstruction: systemInstruction,
		})
		if err != nil {
			return nil, err
		}
		res = &Result{Text: gr.Text}

	default:
		return nil, fmt.Errorf("unhandled action %T", act)
	}

	// Best-effort cache write. Only reached by the transmute/chat/default
	// paths, and only when a fingerprint was computed above.
	if shouldCache && fingerprint != "" && res.Text != "" {
		meta := cache.Entry{
			UserID:     req.UserID,
			ActionType: actionType(req.Action),
		}
		if err := o.cache.Put(ctx, fingerprint, res.Text, meta); err != nil {
			logger.Warn("cache write failed", zap.Error(err))
		}
	}

	return res, nil
}

// cacheMaterial builds the fingerprint input for a cacheable action.
func cacheMaterial(userID string, act Action) string {
	switch a := act.(type) {
	case TransmuteAction:
		return cache.TransmuteMaterial(userID, a.Content, a.Mode)
	case ChatAction:
		return cache.ChatMaterial(userID, a.Prompt)
	default:
		return ""
	}
}

func (o *Orchestrator) explore(ctx context.Context, a ExploreAction, userID string) (*Result, error) {
	gr, err := o.generate(ctx, ActionExplore, genai.Request{
		Model:             o.cfg.ProModel,
		Contents:          "Explora: " + a.Query,
		SystemInstruction: exploreSystemPrompt,
		Tools:             []genai.Tool{genai.ToolGoogleMaps, genai.ToolGoogleSearch},
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		Text:  gr.Text,
		Links: extractLinks(gr.GroundingChunks),
	}

	// Reward is best-effort: a failed increment keeps the text result but
	// reports rewarded=false.
	if userID != "" {
		if err := o.rewards.IncrementXP(ctx, userID, o.cfg.ExploreXP); err != nil {
			metrics.XPRewardsTotal.WithLabelValues("error").Inc()
			logging.L(ctx).Warn("xp increment failed",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		} else {
			metrics.XPRewardsTotal.WithLabelValues("ok").Inc()
			res.Rewarded = true
		}
	}

	return res, nil
}

func (o *Orchestrator) recommend(ctx context.Context, a RecommendAction) (*Result, error) {
	gr, err := o.generate(ctx, ActionRecommend, genai.Request{
		Model:            o.cfg.FlashModel,
		Contents:         "Progresso: " + strings.Join(a.CompletedLessons, ","),
		ResponseMIMEType: "application/json",
		ResponseSchema:   recommendationSchema,
	})
	if err != nil {
		return nil, err
	}

	var rec Recommendation
	if err := json.Unmarshal([]byte(gr.Text), &rec); err != nil {
		// Malformed structured output is a generation-class failure.
		return nil, fmt.Errorf("parsing recommendation: %w", err)
	}

	return &Result{Recommendation: &rec}, nil
}

// extractLinks maps grounding chunks onto typed links, preserving order.
// Map sources win over web sources; chunks carrying neither are dropped.
func extractLinks(chunks []genai.GroundingChunk) []Link {
	links := make([]Link, 0, len(chunks))
	for _, c := range chunks {
		switch {
		case c.Maps != nil:
			links = append(links, Link{URI: c.Maps.URI, Title: c.Maps.Title, Type: "map"})
		case c.Web != nil:
			links = append(links, Link{URI: c.Web.URI, Title: c.Web.Title, Type: "web"})
		}
	}
	return links
}

func (o *Orchestrator) generate(ctx context.Context, action string, req genai.Request) (*genai.Result, error) {
	start := time.Now()
	res, err := o.gen.GenerateContent(ctx, req)
	metrics.GenerationLatencySeconds.
		WithLabelValues(action).
		Observe(time.Since(start).Seconds())
	return res, err
}
