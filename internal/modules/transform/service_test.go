package transform

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func translateReq() Request {
	return Request{
		UserID:  "user-1",
		Action:  "translate",
		Text:    "Bonjour le monde",
		Options: map[string]interface{}{"targetLanguage": "anglais"},
	}
}

func TestRunCacheIdempotence(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "Hello world"})
	ctx := context.Background()

	first, err := p.svc.Run(ctx, translateReq())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.Cached {
		t.Error("first invocation reported cached")
	}
	if first.Result != "Hello world" {
		t.Errorf("Result = %v", first.Result)
	}
	if first.Ref == "" {
		t.Error("persisted result should carry a ref")
	}

	second, err := p.svc.Run(ctx, translateReq())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Cached {
		t.Error("second invocation should be served from cache")
	}
	if second.Result != first.Result || second.Ref != first.Ref || second.Fingerprint != first.Fingerprint {
		t.Error("cache hit returned a different result")
	}

	if text, _, _ := p.gen.counts(); text != 1 {
		t.Errorf("generator called %d times, want 1", text)
	}

	events := p.sink.all()
	if len(events) != 2 {
		t.Fatalf("usage events = %d, want 2 (one per invocation)", len(events))
	}
	if events[0].Cached || events[0].Cost == "0" {
		t.Errorf("first event: cached=%v cost=%s, want fresh billed", events[0].Cached, events[0].Cost)
	}
	if !events[1].Cached || events[1].Cost != "0" {
		t.Errorf("second event: cached=%v cost=%s, want cached free", events[1].Cached, events[1].Cost)
	}
}

func TestRunOptionEquivalenceHitsCache(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "Hello world"})
	ctx := context.Background()

	if _, err := p.svc.Run(ctx, translateReq()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Same request with noise keys and surrounding whitespace.
	req := translateReq()
	req.Text = "  Bonjour le monde \n"
	req.Options["requestId"] = "xyz"
	resp, err := p.svc.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Cached {
		t.Error("equivalent request missed the cache")
	}
}

func TestRunStoreUnavailableDegrades(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "Hello world"})
	p.cache.unavailable = true
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := p.svc.Run(ctx, translateReq())
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if resp.Cached {
			t.Errorf("Run %d: cached without a cache", i)
		}
		if resp.Result != "Hello world" {
			t.Errorf("Run %d: Result = %v", i, resp.Result)
		}
		if resp.Ref != "" {
			t.Errorf("Run %d: unpersisted result carries ref %q", i, resp.Ref)
		}
	}

	if text, _, _ := p.gen.counts(); text != 2 {
		t.Errorf("generator called %d times, want 2 (no caching)", text)
	}
	if p.cache.inserts != 0 {
		t.Errorf("inserts = %d, want 0 when lookup already reported unavailable", p.cache.inserts)
	}
	if p.history.rowCount() != 0 {
		t.Error("history recorded without a persisted reference")
	}
	for _, ev := range p.sink.all() {
		if ev.Cost == "0" {
			t.Error("uncached generation should still be billed")
		}
	}
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "Hello world"})
	p.cache.insertErr = errors.New("disk full")

	_, err := p.svc.Run(context.Background(), translateReq())
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("err = %v, want ErrStoreFailure", err)
	}
}

func TestRunGenerationFailure(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textErr: errors.New("provider 500")})

	_, err := p.svc.Run(context.Background(), translateReq())
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if p.cache.inserts != 0 {
		t.Error("failed generation must not be cached")
	}
	if p.history.rowCount() != 0 {
		t.Error("failed generation must not be recorded")
	}
	if len(p.sink.all()) != 0 {
		t.Error("failed generation must not produce a usage event")
	}
}

func TestRunValidation(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "x"})

	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing user", req: Request{Action: "rephrase", Text: "long enough text"}},
		{name: "unknown action", req: Request{UserID: "u", Action: "summarize", Text: "long enough text"}},
		{name: "short text", req: Request{UserID: "u", Action: "rephrase", Text: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.svc.Run(context.Background(), tt.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	if len(p.sink.all()) != 0 {
		t.Error("rejected requests must not produce usage events")
	}
}

func TestRunAudioFullIsCachedWithSurcharge(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{
		structuredOut: map[string]interface{}{"script": "A short narration."},
		speechOut:     &SpeechArtifact{Data: []byte{1, 2, 3, 4}, MimeType: "audio/mpeg", Voice: "alloy"},
	})
	ctx := context.Background()
	req := Request{UserID: "user-1", Action: "audio", Text: "lesson source text"}

	first, err := p.svc.Run(ctx, req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if first.Audio == nil {
		t.Fatal("Audio info missing")
	}
	if first.Audio.Size != 4 || first.Audio.MimeType != "audio/mpeg" {
		t.Errorf("Audio = %+v", first.Audio)
	}

	second, err := p.svc.Run(ctx, req)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !second.Cached || second.Audio == nil {
		t.Error("full audio result should be served from cache with its artifact metadata")
	}
	if _, _, speech := p.gen.counts(); speech != 1 {
		t.Errorf("synthesis called %d times, want 1", speech)
	}

	events := p.sink.all()
	if !events[0].Speech {
		t.Error("first event should mark speech")
	}
	want := p.sink.Cost(ActionAudio, true).String()
	if events[0].Cost != want {
		t.Errorf("first event cost = %s, want %s (base plus surcharge)", events[0].Cost, want)
	}
	if events[1].Cost != "0" {
		t.Errorf("cached event cost = %s, want 0", events[1].Cost)
	}
}

func TestRunAudioScriptOnlyIsNotCached(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{
		structuredOut: map[string]interface{}{"script": "A short narration."},
		speechErr:     errors.New("tts backend down"),
	})
	ctx := context.Background()
	req := Request{UserID: "user-1", Action: "audio", Text: "lesson source text"}

	for i := 0; i < 2; i++ {
		resp, err := p.svc.Run(ctx, req)
		if err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
		if resp.Audio != nil {
			t.Errorf("Run %d: degraded result carries audio", i)
		}
		if resp.Cached {
			t.Errorf("Run %d: degraded result served from cache", i)
		}
		doc, ok := resp.Result.(map[string]interface{})
		if !ok || doc["script"] != "A short narration." {
			t.Errorf("Run %d: Result = %v, want script document", i, resp.Result)
		}
	}

	if p.cache.inserts != 0 {
		t.Error("script-only results must never be inserted")
	}
	if _, structured, _ := p.gen.counts(); structured != 2 {
		t.Errorf("narration generated %d times, want 2 (retry gets a fresh attempt)", structured)
	}
	for _, ev := range p.sink.all() {
		if !ev.Degraded {
			t.Error("degraded run should be flagged on the usage event")
		}
		if ev.Speech {
			t.Error("no artifact was produced, event must not mark speech")
		}
		if ev.Cost != p.sink.Cost(ActionAudio, false).String() {
			t.Errorf("degraded cost = %s, want base without surcharge", ev.Cost)
		}
	}
}

func TestRunHistoryIdempotent(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "Hello world"})
	ctx := context.Background()

	req := translateReq()
	req.CourseID = "3b8f4f1c-9a51-4a9e-b2da-0f6e5b9f1a11"
	req.LessonID = "6c1d2e3f-4a5b-6c7d-8e9f-0a1b2c3d4e5f"

	for i := 0; i < 3; i++ {
		if _, err := p.svc.Run(ctx, req); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	if got := p.history.rowCount(); got != 1 {
		t.Errorf("history rows = %d, want 1", got)
	}
	if got := p.history.upserts(); got != 3 {
		t.Errorf("history upserts = %d, want 3", got)
	}

	// A different context is a different row.
	req.LessonID = ""
	if _, err := p.svc.Run(ctx, req); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := p.history.rowCount(); got != 2 {
		t.Errorf("history rows = %d, want 2", got)
	}
}

func TestRunDiscardsMalformedContextIDs(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "Hello world"})

	req := translateReq()
	req.CourseID = "not-a-uuid"
	if _, err := p.svc.Run(context.Background(), req); err != nil {
		t.Fatalf("Run: %v", err)
	}

	base := translateReq()
	if _, err := p.svc.Run(context.Background(), base); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Both land on the same (empty course, empty lesson) identity.
	if got := p.history.rowCount(); got != 1 {
		t.Errorf("history rows = %d, want 1 (malformed id discarded)", got)
	}
}

func TestRunHistoryFailureSurfacesStoreFailure(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{textOut: "Hello world"})
	p.history.recordErr = errors.New("deadlock")

	_, err := p.svc.Run(context.Background(), translateReq())
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("err = %v, want ErrStoreFailure", err)
	}
}

func TestRunCoalescesConcurrentRequests(t *testing.T) {
	gen := &fakeGenerator{
		textOut: "Hello world",
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	p := newTestPipeline(gen)
	ctx := context.Background()

	const followers = 4
	results := make(chan *Response, followers+1)
	errs := make(chan error, followers+1)
	var wg sync.WaitGroup

	run := func() {
		defer wg.Done()
		resp, err := p.svc.Run(ctx, translateReq())
		if err != nil {
			errs <- err
			return
		}
		results <- resp
	}

	wg.Add(1)
	go run()
	<-gen.started

	wg.Add(followers)
	for i := 0; i < followers; i++ {
		go run()
	}
	// Give the followers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(gen.block)
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("Run: %v", err)
	}
	for resp := range results {
		if resp.Result != "Hello world" {
			t.Errorf("Result = %v", resp.Result)
		}
	}

	if text, _, _ := p.gen.counts(); text != 1 {
		t.Fatalf("generator called %d times, want 1", text)
	}

	billed, coalesced := 0, 0
	for _, ev := range p.sink.all() {
		switch {
		case ev.Coalesced:
			coalesced++
			if ev.Cost != "0" {
				t.Errorf("coalesced follower billed %s", ev.Cost)
			}
		case !ev.Cached:
			billed++
			if ev.Cost == "0" {
				t.Error("leader was not billed")
			}
		}
	}
	if billed != 1 {
		t.Errorf("billed events = %d, want exactly 1", billed)
	}
	if coalesced != followers {
		t.Errorf("coalesced events = %d, want %d", coalesced, followers)
	}
}

func TestRunAbandonsOwnWaitOnCancel(t *testing.T) {
	gen := &fakeGenerator{
		textOut: "Hello world",
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	p := newTestPipeline(gen)

	leaderErr := make(chan error, 1)
	go func() {
		_, err := p.svc.Run(context.Background(), translateReq())
		leaderErr <- err
	}()
	<-gen.started

	ctx, cancel := context.WithCancel(context.Background())
	followerErr := make(chan error, 1)
	go func() {
		_, err := p.svc.Run(ctx, translateReq())
		followerErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-followerErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("follower err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("canceled follower did not return")
	}

	// The shared stage keeps running for the leader.
	close(gen.block)
	if err := <-leaderErr; err != nil {
		t.Fatalf("leader err = %v", err)
	}
}
