package transform

import (
	"context"
	"fmt"
	"strings"
	"sync"

	appcfg "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/models"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/money"
	"go.uber.org/zap"
)

// fakeGenerator is a scripted Generator. When block is non-nil, GenerateText
// signals started once and then waits until block is closed, which lets
// coalescing tests hold a generation in flight.
type fakeGenerator struct {
	mu              sync.Mutex
	textCalls       int
	structuredCalls int
	speechCalls     int

	textOut       string
	textErr       error
	structuredOut map[string]interface{}
	structuredErr error
	speechOut     *SpeechArtifact
	speechErr     error

	started     chan struct{}
	startedOnce sync.Once
	block       chan struct{}
}

func (g *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.textCalls++
	g.mu.Unlock()

	if g.block != nil {
		g.startedOnce.Do(func() { close(g.started) })
		select {
		case <-g.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.textOut, g.textErr
}

func (g *fakeGenerator) GenerateStructured(ctx context.Context, prompt string) (map[string]interface{}, error) {
	g.mu.Lock()
	g.structuredCalls++
	g.mu.Unlock()
	return g.structuredOut, g.structuredErr
}

func (g *fakeGenerator) GenerateSpeech(ctx context.Context, script string, req SpeechRequest) (*SpeechArtifact, error) {
	g.mu.Lock()
	g.speechCalls++
	g.mu.Unlock()
	return g.speechOut, g.speechErr
}

func (g *fakeGenerator) counts() (text, structured, speech int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.textCalls, g.structuredCalls, g.speechCalls
}

// fakeCache is an in-memory cacheStore with the same miss/unavailable
// classification as the MySQL implementation.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]*models.TransformationModel
	unavailable bool
	insertErr   error
	lookups     int
	inserts     int
	nextID      int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]*models.TransformationModel{}}
}

func (c *fakeCache) Lookup(ctx context.Context, fingerprint string) (*models.TransformationModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	if c.unavailable {
		return nil, errCacheUnavailable
	}
	rec, ok := c.entries[fingerprint]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (c *fakeCache) Insert(ctx context.Context, rec *models.TransformationModel) (*models.TransformationModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserts++
	if c.unavailable {
		return nil, errCacheUnavailable
	}
	if c.insertErr != nil {
		return nil, c.insertErr
	}
	if existing, ok := c.entries[rec.Fingerprint]; ok {
		cp := *existing
		return &cp, nil
	}
	c.nextID++
	cp := *rec
	cp.ID = fmt.Sprintf("rec-%d", c.nextID)
	c.entries[rec.Fingerprint] = &cp
	out := cp
	return &out, nil
}

// fakeHistory collapses entries onto their identity key, mirroring the
// upsert semantics of the MySQL recorder.
type fakeHistory struct {
	mu        sync.Mutex
	rows      map[string]int
	recordErr error
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{rows: map[string]int{}}
}

func (h *fakeHistory) Record(ctx context.Context, entry *models.TransformHistoryModel) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.recordErr != nil {
		return h.recordErr
	}
	key := strings.Join([]string{entry.UserID, entry.CourseID, entry.LessonID, entry.TransformationID}, "|")
	h.rows[key]++
	return nil
}

func (h *fakeHistory) rowCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rows)
}

func (h *fakeHistory) upserts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := 0
	for _, n := range h.rows {
		total += n
	}
	return total
}

// fakeSink prices with fixed amounts and records every emitted event.
type fakeSink struct {
	mu        sync.Mutex
	base      money.Amount
	surcharge money.Amount
	events    []*models.UsageEventModel
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		base:      money.MustParse("0.004"),
		surcharge: money.MustParse("0.015"),
	}
}

func (s *fakeSink) Cost(action Action, speech bool) money.Amount {
	if speech {
		return s.base.Add(s.surcharge)
	}
	return s.base
}

func (s *fakeSink) Emit(ctx context.Context, ev *models.UsageEventModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *fakeSink) all() []*models.UsageEventModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.UsageEventModel, len(s.events))
	copy(out, s.events)
	return out
}

type testPipeline struct {
	svc     *Service
	gen     *fakeGenerator
	cache   *fakeCache
	history *fakeHistory
	sink    *fakeSink
}

func newTestPipeline(gen *fakeGenerator) *testPipeline {
	cache := newFakeCache()
	history := newFakeHistory()
	sink := newFakeSink()
	aiCfg := appcfg.AIConfig{GenerationTimeoutSeconds: 5, SpeechTimeoutSeconds: 5}

	svc := &Service{
		cache:         cache,
		exec:          newExecutor(gen, aiCfg, zap.NewNop()),
		history:       history,
		meter:         sink,
		logger:        zap.NewNop(),
		limits:        appcfg.LimitsConfig{MinTextLength: 5, ExcerptMaxLength: 40},
		providerID:    "openai-main",
		providerModel: "gpt-4o-mini",
	}
	return &testPipeline{svc: svc, gen: gen, cache: cache, history: history, sink: sink}
}
