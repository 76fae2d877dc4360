package transform

import (
	"context"
	"fmt"
	"strings"

	appcfg "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	"go.uber.org/zap"
)

// ResultFormat distinguishes the two result payload shapes.
type ResultFormat string

const (
	FormatText       ResultFormat = "text"
	FormatStructured ResultFormat = "structured"
)

// audioOutcome is the explicit three-state result of the audio strategy.
// The no-cache signal (scriptOnly) is a type-level fact, not a side-channel
// boolean: only a full result may enter the content-addressed cache, because
// a user retrying a degraded result deserves a chance at audio succeeding.
type audioOutcome int

const (
	audioNone       audioOutcome = iota // not an audio action
	audioFull                           // script + synthesized artifact
	audioScriptOnly                     // synthesis degraded, script survives
)

// ExecResult is the outcome of one generation strategy.
type ExecResult struct {
	Format   ResultFormat
	Text     string
	Document map[string]interface{}
	Audio    *SpeechArtifact
	Outcome  audioOutcome
}

// Cacheable reports whether this result may enter the persistent cache.
func (r *ExecResult) Cacheable() bool {
	return r.Outcome != audioScriptOnly
}

// Degraded reports whether the audio strategy lost its synthesis phase.
func (r *ExecResult) Degraded() bool {
	return r.Outcome == audioScriptOnly
}

// executor dispatches an action to its generation strategy and normalizes
// each strategy's partial-failure behavior. It never touches the store.
type executor struct {
	gen    Generator
	cfg    appcfg.AIConfig
	logger *zap.Logger
}

func newExecutor(gen Generator, cfg appcfg.AIConfig, logger *zap.Logger) *executor {
	return &executor{gen: gen, cfg: cfg, logger: logger}
}

// Execute runs the strategy for action. Text and structured failures are
// fatal (ErrGenerationFailed); the audio strategy degrades instead, see
// executeAudio.
func (e *executor) Execute(ctx context.Context, action Action, text string, opts NormalizedOptions) (*ExecResult, error) {
	switch action {
	case ActionRephrase:
		return e.executeText(ctx, rephrasePrompt(text, opts.(RephraseOptions)))
	case ActionTranslate:
		return e.executeText(ctx, translatePrompt(text, opts.(TranslateOptions)))
	case ActionMindmap:
		return e.executeStructured(ctx, mindmapPrompt(text, opts.(MindmapOptions)))
	case ActionSchema:
		return e.executeStructured(ctx, schemaPrompt(text, opts.(SchemaOptions)))
	case ActionInsights:
		return e.executeStructured(ctx, insightsPrompt(text, opts.(InsightsOptions)))
	case ActionAudio:
		return e.executeAudio(ctx, text, opts.(AudioOptions))
	}
	return nil, fmt.Errorf("%w: unsupported action %q", ErrGenerationFailed, action)
}

func (e *executor) executeText(ctx context.Context, prompt string) (*ExecResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout())
	defer cancel()

	out, err := e.gen.GenerateText(genCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return &ExecResult{Format: FormatText, Text: strings.TrimSpace(out)}, nil
}

func (e *executor) executeStructured(ctx context.Context, prompt string) (*ExecResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout())
	defer cancel()

	doc, err := e.gen.GenerateStructured(genCtx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return &ExecResult{Format: FormatStructured, Document: doc}, nil
}

// executeAudio is the two-phase strategy. Phase 1 asks for a narration
// script; an unusable response falls back to the raw input text. Phase 2
// synthesizes speech; any failure (or an unconfigured backend) degrades to
// a script-only result that must not be cached.
func (e *executor) executeAudio(ctx context.Context, text string, opts AudioOptions) (*ExecResult, error) {
	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout())
	doc, err := e.gen.GenerateStructured(genCtx, narrationPrompt(text))
	cancel()

	script := ""
	if err == nil {
		script, _ = doc["script"].(string)
		script = strings.TrimSpace(script)
	}
	if script == "" {
		if err != nil {
			e.logger.Warn("narration script generation failed, using raw text", zap.Error(err))
		}
		script = strings.TrimSpace(text)
		doc = map[string]interface{}{"script": script}
	}

	speechCtx, cancel := context.WithTimeout(ctx, e.cfg.SpeechTimeout())
	artifact, err := e.gen.GenerateSpeech(speechCtx, script, SpeechRequest{Voice: opts.Voice, Format: opts.Format})
	cancel()

	if err != nil || artifact == nil {
		if err != nil {
			e.logger.Warn("speech synthesis failed, returning script only", zap.Error(err))
		}
		return &ExecResult{Format: FormatStructured, Document: doc, Outcome: audioScriptOnly}, nil
	}

	return &ExecResult{Format: FormatStructured, Document: doc, Audio: artifact, Outcome: audioFull}, nil
}
