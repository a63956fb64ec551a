package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"nkelo-gateway/internal/cache"
	"nkelo-gateway/internal/genai"
	"nkelo-gateway/pkg/logging"
)

type fakeCache struct {
	entries map[string]string
	touched bool
	gets    int
	puts    int
	getErr  error
	putErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	f.touched = true
	f.gets++
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeCache) Put(_ context.Context, key, value string, _ cache.Entry) error {
	f.touched = true
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[key] = value
	return nil
}

type fakeGenerator struct {
	calls  int
	last   genai.Request
	result *genai.Result
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, req genai.Request) (*genai.Result, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeXPStore struct {
	calls      int
	lastUser   string
	lastAmount int
	err        error
}

func (f *fakeXPStore) IncrementXP(_ context.Context, userID string, amount int) error {
	f.calls++
	f.lastUser = userID
	f.lastAmount = amount
	return f.err
}

func testCtx(t *testing.T) context.Context {
	return logging.WithLogger(context.Background(), zaptest.NewLogger(t))
}

func transmuteRequest(userID string) Request {
	return Request{
		Action:  ActionTransmute,
		Payload: json.RawMessage(`{"content":"X","mode":"PRACTICE","title":"Energia"}`),
		UserID:  userID,
	}
}

func TestTransmuteCacheIdempotence(t *testing.T) {
	c := newFakeCache()
	gen := &fakeGenerator{result: &genai.Result{Text: "texto T"}}
	xp := &fakeXPStore{}
	o := New(c, gen, xp, Config{})

	res, err := o.Handle(testCtx(t), transmuteRequest("u1"))
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if res.Text != "texto T" || res.Cached {
		t.Fatalf("unexpected first result: %+v", res)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generation call, got %d", gen.calls)
	}
	if c.puts != 1 {
		t.Fatalf("expected one cache write, got %d", c.puts)
	}

	res2, err := o.Handle(testCtx(t), transmuteRequest("u1"))
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if res2.Text != "texto T" || !res2.Cached {
		t.Fatalf("expected cached hit, got %+v", res2)
	}
	if gen.calls != 1 {
		t.Fatalf("cache hit should not re-generate, got %d calls", gen.calls)
	}
	if c.puts != 1 {
		t.Fatalf("cache hit should not re-write, got %d puts", c.puts)
	}
}

func TestTransmuteGenerationRequest(t *testing.T) {
	gen := &fakeGenerator{result: &genai.Result{Text: "ok"}}
	o := New(newFakeCache(), gen, &fakeXPStore{}, Config{})

	if _, err := o.Handle(testCtx(t), transmuteRequest("u1")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if gen.last.Model != defaultFlashModel {
		t.Errorf("expected flash model, got %q", gen.last.Model)
	}
	if gen.last.Contents != "Conteúdo: X" {
		t.Errorf("unexpected contents: %q", gen.last.Contents)
	}
	if !strings.Contains(gen.last.SystemInstruction, "MODO OFICINA") {
		t.Errorf("expected practice mode instruction, got %q", gen.last.SystemInstruction)
	}
	if !strings.Contains(gen.last.SystemInstruction, "Mentor Nkelo") {
		t.Errorf("expected persona preamble, got %q", gen.last.SystemInstruction)
	}
}

func TestTransmuteUnknownModeFallsBackToTactical(t *testing.T) {
	gen := &fakeGenerator{result: &genai.Result{Text: "ok"}}
	o := New(newFakeCache(), gen, &fakeXPStore{}, Config{})

	req := Request{
		Action:  ActionTransmute,
		Payload: json.RawMessage(`{"content":"X","mode":"WEIRD"}`),
		UserID:  "u1",
	}
	if _, err := o.Handle(testCtx(t), req); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !strings.Contains(gen.last.SystemInstruction, "MODO SINCRONIA") {
		t.Errorf("expected tactical fallback, got %q", gen.last.SystemInstruction)
	}
}

func TestNoCachingWithoutIdentity(t *testing.T) {
	c := newFakeCache()
	gen := &fakeGenerator{result: &genai.Result{Text: "ok"}}
	o := New(c, gen, &fakeXPStore{}, Config{})

	res, err := o.Handle(testCtx(t), transmuteRequest(""))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if c.touched {
		t.Fatalf("cache must not be touched without a user id")
	}
	if gen.calls != 1 {
		t.Fatalf("expected generation, got %d calls", gen.calls)
	}
}

func TestCacheReadErrorDegradesToMiss(t *testing.T) {
	c := newFakeCache()
	c.getErr = errors.New("store down")
	gen := &fakeGenerator{result: &genai.Result{Text: "fresh"}}
	o := New(c, gen, &fakeXPStore{}, Config{})

	res, err := o.Handle(testCtx(t), transmuteRequest("u1"))
	if err != nil {
		t.Fatalf("lookup error must not fail the request: %v", err)
	}
	if res.Text != "fresh" || res.Cached {
		t.Fatalf("expected fresh generation, got %+v", res)
	}
}

func TestCacheWriteErrorIsSwallowed(t *testing.T) {
	c := newFakeCache()
	c.putErr = errors.New("store down")
	gen := &fakeGenerator{result: &genai.Result{Text: "fresh"}}
	o := New(c, gen, &fakeXPStore{}, Config{})

	res, err := o.Handle(testCtx(t), transmuteRequest("u1"))
	if err != nil {
		t.Fatalf("write error must not fail the request: %v", err)
	}
	if res.Text != "fresh" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestChatUsesDefaultsAndOverrides(t *testing.T) {
	gen := &fakeGenerator{result: &genai.Result{Text: "oi"}}
	o := New(newFakeCache(), gen, &fakeXPStore{}, Config{})

	if _, err := o.Handle(testCtx(t), Request{Prompt: "olá"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gen.last.Model != defaultFlashModel {
		t.Errorf("expected default model, got %q", gen.last.Model)
	}
	if gen.last.SystemInstruction != defaultChatSystemPrompt {
		t.Errorf("expected default system instruction, got %q", gen.last.SystemInstruction)
	}

	req := Request{
		Prompt:            "olá",
		Model:             "custom-model",
		SystemInstruction: "Sê breve.",
	}
	if _, err := o.Handle(testCtx(t), req); err != nil {
		t.Fatalf("Handle with overrides: %v", err)
	}
	if gen.last.Model != "custom-model" || gen.last.SystemInstruction != "Sê breve." {
		t.Errorf("overrides not applied: %+v", gen.last)
	}
}

func TestUnrecognizedActionDispatchesAsChatUncached(t *testing.T) {
	c := newFakeCache()
	gen := &fakeGenerator{result: &genai.Result{Text: "oi"}}
	o := New(c, gen, &fakeXPStore{}, Config{})

	req := Request{Action: "bogus", Prompt: "olá", UserID: "u1"}
	res, err := o.Handle(testCtx(t), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Text != "oi" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if c.touched {
		t.Fatalf("unrecognized actions must not be cached")
	}
}

func TestExploreNeverCachedAndRewards(t *testing.T) {
	c := newFakeCache()
	gen := &fakeGenerator{result: &genai.Result{Text: "Serra da Leba é..."}}
	xp := &fakeXPStore{}
	o := New(c, gen, xp, Config{})

	req := Request{Action: ActionExplore, Query: "Serra da Leba", UserID: "u1"}

	for i := 0; i < 2; i++ {
		res, err := o.Handle(testCtx(t), req)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if !res.Rewarded {
			t.Fatalf("call %d: expected rewarded=true", i+1)
		}
		if res.Cached {
			t.Fatalf("call %d: explore must never be served from cache", i+1)
		}
	}

	if gen.calls != 2 {
		t.Fatalf("expected two independent generations, got %d", gen.calls)
	}
	if xp.calls != 2 {
		t.Fatalf("expected two reward calls, got %d", xp.calls)
	}
	if xp.lastUser != "u1" || xp.lastAmount != defaultExploreXP {
		t.Fatalf("unexpected reward args: user=%q amount=%d", xp.lastUser, xp.lastAmount)
	}
	if c.touched {
		t.Fatalf("explore must not touch the cache")
	}
	if gen.last.Model != defaultProModel {
		t.Errorf("expected pro model for explore, got %q", gen.last.Model)
	}
	if gen.last.Contents != "Explora: Serra da Leba" {
		t.Errorf("unexpected contents: %q", gen.last.Contents)
	}
	if len(gen.last.Tools) != 2 {
		t.Errorf("expected maps+search tools, got %v", gen.last.Tools)
	}
}

func TestExploreAnonymousSkipsReward(t *testing.T) {
	xp := &fakeXPStore{}
	gen := &fakeGenerator{result: &genai.Result{Text: "ok"}}
	o := New(newFakeCache(), gen, xp, Config{})

	res, err := o.Handle(testCtx(t), Request{Action: ActionExplore, Query: "Luanda"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Rewarded {
		t.Fatalf("anonymous explore must not report rewarded")
	}
	if xp.calls != 0 {
		t.Fatalf("anonymous explore must not call the reward adapter")
	}
}

func TestExploreRewardFailureKeepsText(t *testing.T) {
	xp := &fakeXPStore{err: errors.New("rpc down")}
	gen := &fakeGenerator{result: &genai.Result{Text: "ainda útil"}}
	o := New(newFakeCache(), gen, xp, Config{})

	res, err := o.Handle(testCtx(t), Request{Action: ActionExplore, Query: "Luanda", UserID: "u1"})
	if err != nil {
		t.Fatalf("reward failure must not fail the request: %v", err)
	}
	if res.Text != "ainda útil" {
		t.Fatalf("text lost: %+v", res)
	}
	if res.Rewarded {
		t.Fatalf("observably failed increment must report rewarded=false")
	}
}

func TestExploreQueryFallbacks(t *testing.T) {
	gen := &fakeGenerator{result: &genai.Result{Text: "ok"}}
	o := New(newFakeCache(), gen, &fakeXPStore{}, Config{})

	if _, err := o.Handle(testCtx(t), Request{Action: ActionExplore, Prompt: "do prompt"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gen.last.Contents != "Explora: do prompt" {
		t.Errorf("expected prompt fallback, got %q", gen.last.Contents)
	}

	if _, err := o.Handle(testCtx(t), Request{Action: ActionExplore}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gen.last.Contents != "Explora: Angola" {
		t.Errorf("expected generic fallback, got %q", gen.last.Contents)
	}
}

func TestGroundingLinkExtraction(t *testing.T) {
	gen := &fakeGenerator{result: &genai.Result{
		Text: "ok",
		GroundingChunks: []genai.GroundingChunk{
			{Maps: &genai.GroundingSource{URI: "maps://1", Title: "Serra da Leba"}},
			{Web: &genai.GroundingSource{URI: "https://2", Title: "Wiki"}},
			{}, // neither map nor web: dropped
			{Web: &genai.GroundingSource{URI: "https://3", Title: "News"}},
		},
	}}
	o := New(newFakeCache(), gen, &fakeXPStore{}, Config{})

	res, err := o.Handle(testCtx(t), Request{Action: ActionExplore, Query: "Serra da Leba"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	want := []Link{
		{URI: "maps://1", Title: "Serra da Leba", Type: "map"},
		{URI: "https://2", Title: "Wiki", Type: "web"},
		{URI: "https://3", Title: "News", Type: "web"},
	}
	if len(res.Links) != len(want) {
		t.Fatalf("expected %d links, got %d: %+v", len(want), len(res.Links), res.Links)
	}
	for i, l := range want {
		if res.Links[i] != l {
			t.Errorf("link %d: expected %+v, got %+v", i, l, res.Links[i])
		}
	}
}

func TestRecommendBypassesCacheAndReward(t *testing.T) {
	c := newFakeCache()
	xp := &fakeXPStore{}
	gen := &fakeGenerator{result: &genai.Result{
		Text: `{"recommendedModule":"civ-l2","justification":"próximo passo natural"}`,
	}}
	o := New(c, gen, xp, Config{})

	req := Request{
		Action:  ActionRecommend,
		Payload: json.RawMessage(`{"completedLessons":["civ-l1"]}`),
		UserID:  "u1",
	}
	res, err := o.Handle(testCtx(t), req)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if res.Recommendation == nil {
		t.Fatalf("expected recommendation, got %+v", res)
	}
	if res.Recommendation.RecommendedModule != "civ-l2" {
		t.Errorf("unexpected module: %q", res.Recommendation.RecommendedModule)
	}
	if res.Text != "" {
		t.Errorf("recommend must not carry top-level text, got %q", res.Text)
	}
	if c.touched {
		t.Fatalf("recommend must never touch the cache")
	}
	if xp.calls != 0 {
		t.Fatalf("recommend must never reward")
	}

	if gen.last.ResponseMIMEType != "application/json" {
		t.Errorf("expected JSON mime type, got %q", gen.last.ResponseMIMEType)
	}
	if gen.last.ResponseSchema == nil {
		t.Errorf("expected response schema to be set")
	}
	if gen.last.Contents != "Progresso: civ-l1" {
		t.Errorf("unexpected contents: %q", gen.last.Contents)
	}
}

func TestRecommendMalformedOutputIsError(t *testing.T) {
	gen := &fakeGenerator{result: &genai.Result{Text: "not json at all"}}
	o := New(newFakeCache(), gen, &fakeXPStore{}, Config{})

	req := Request{
		Action:  ActionRecommend,
		Payload: json.RawMessage(`{"completedLessons":["civ-l1"]}`),
	}
	if _, err := o.Handle(testCtx(t), req); err == nil {
		t.Fatalf("expected parse failure to surface as error")
	}
}

func TestGenerationFailureLeavesNoPartialWrite(t *testing.T) {
	c := newFakeCache()
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	o := New(c, gen, &fakeXPStore{}, Config{})

	_, err := o.Handle(testCtx(t), transmuteRequest("u1"))
	if err == nil {
		t.Fatalf("expected generation failure to propagate")
	}
	if c.puts != 0 {
		t.Fatalf("no cache write may happen after a failed generation, got %d", c.puts)
	}
}

func TestClassifyRejectsMalformedPayload(t *testing.T) {
	o := New(newFakeCache(), &fakeGenerator{}, &fakeXPStore{}, Config{})

	for _, req := range []Request{
		{Action: ActionTransmute},
		{Action: ActionTransmute, Payload: json.RawMessage(`"nope"`)},
		{Action: ActionRecommend},
	} {
		if _, err := o.Handle(testCtx(t), req); err == nil {
			t.Errorf("expected error for request %+v", req)
		}
	}
}
