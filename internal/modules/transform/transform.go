package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	appcfg "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/models"
	"github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/money"
	redisc "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/pkg/redis"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Service is the transformation pipeline orchestrator:
// canonicalize → fingerprint → lookup → (execute → insert) → record → meter.
type Service struct {
	db      *gorm.DB
	cache   cacheStore
	exec    *executor
	history historyRecorder
	meter   usageSink
	flight  singleflight.Group
	logger  *zap.Logger
	limits  appcfg.LimitsConfig

	providerID    string
	providerModel string
}

// NewService wires the production pipeline. rc may be nil (no hot layer).
func NewService(db *gorm.DB, rc *redisc.Client, cfg *appcfg.AppConfig, logger *zap.Logger) (*Service, error) {
	gen := NewGenerator(cfg.AI, logger)
	meter, err := newUsageMeter(db, cfg.Pricing, logger)
	if err != nil {
		return nil, err
	}
	providerID, providerModel := ProviderInfo(cfg.AI)

	return &Service{
		db:            db,
		cache:         newDBCache(db, rc, logger),
		exec:          newExecutor(gen, cfg.AI, logger),
		history:       newDBHistory(db, logger),
		meter:         meter,
		logger:        logger,
		limits:        cfg.Limits,
		providerID:    providerID,
		providerModel: providerModel,
	}, nil
}

// pipelineOutcome is the result shared among coalesced callers for one
// fingerprint: the lookup/execute/insert stages run once, while history and
// metering stay per caller.
type pipelineOutcome struct {
	rec      *models.TransformationModel // ID == "" when not persisted
	cached   bool
	stored   bool
	speech   bool
	degraded bool
}

// Run executes the full pipeline for one request.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	action, text, courseID, lessonID, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	opts := Normalize(action, req.Options)
	fp, err := Fingerprint(action, text, opts)
	if err != nil {
		return nil, err
	}

	// Coalesce concurrent identical requests: at most one generation per
	// fingerprint is in flight. The shared stage runs detached from the
	// caller's cancellation so one client disconnect cannot starve the
	// other waiters; each caller only abandons its own wait. singleflight
	// drops the in-flight entry when the call completes, so the next
	// truly-new request proceeds independently.
	ran := false
	ch := s.flight.DoChan(fp, func() (interface{}, error) {
		ran = true
		return s.runShared(context.WithoutCancel(ctx), action, text, opts, fp)
	})

	var out *pipelineOutcome
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		out = res.Val.(*pipelineOutcome)
	}

	// History needs a persisted reference to attach to; a result that was
	// not cached has none, so recording is skipped, not attempted.
	if out.stored && out.rec.ID != "" {
		entry := &models.TransformHistoryModel{
			UserID:           req.UserID,
			CourseID:         courseID,
			LessonID:         lessonID,
			TransformationID: out.rec.ID,
			Action:           string(action),
			Excerpt:          truncateExcerpt(text, s.limits.ExcerptMaxLength),
			OptionsUsed:      models.JSONMap(OptionsMap(opts)),
		}
		if err := s.history.Record(ctx, entry); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
	}

	// One usage event per request, cache hits and coalesced followers
	// included. Only the caller whose request actually drove the provider
	// is billed.
	cost := money.Zero()
	if !out.cached && ran {
		cost = s.meter.Cost(action, out.speech)
	}
	s.meter.Emit(ctx, &models.UsageEventModel{
		UserID:     req.UserID,
		Action:     string(action),
		ProviderID: s.providerID,
		Model:      s.providerModel,
		Cost:       cost.String(),
		Cached:     out.cached,
		Coalesced:  !out.cached && !ran,
		Speech:     out.speech,
		Degraded:   out.degraded,
		Metadata: models.JSONMap{
			"fingerprint": fp,
			"stored":      out.stored,
		},
	})

	return buildResponse(action, opts, fp, out), nil
}

// runShared is the coalesced stage: lookup, then on a miss execute and
// attempt exactly one insert.
func (s *Service) runShared(ctx context.Context, action Action, text string, opts NormalizedOptions, fp string) (*pipelineOutcome, error) {
	storeDown := false
	rec, err := s.cache.Lookup(ctx, fp)
	if err != nil {
		if !errors.Is(err, errCacheUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		}
		// Caching is disabled for this call; the pipeline continues and
		// no insert will be attempted.
		storeDown = true
		s.logger.Warn("transformation cache unavailable, continuing uncached",
			zap.String("action", string(action)))
	}
	if rec != nil {
		return &pipelineOutcome{rec: rec, cached: true, stored: true, speech: rec.HasAudio()}, nil
	}

	res, err := s.exec.Execute(ctx, action, text, opts)
	if err != nil {
		return nil, err
	}

	rec = buildRecord(fp, action, res)
	stored := false
	if res.Cacheable() && !storeDown {
		inserted, err := s.cache.Insert(ctx, rec)
		switch {
		case errors.Is(err, errCacheUnavailable):
			s.logger.Warn("transformation cache unavailable on insert",
				zap.String("action", string(action)))
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrStoreFailure, err)
		default:
			rec = inserted
			stored = true
		}
	}

	return &pipelineOutcome{
		rec:      rec,
		stored:   stored,
		speech:   res.Audio != nil,
		degraded: res.Degraded(),
	}, nil
}

func buildRecord(fp string, action Action, res *ExecResult) *models.TransformationModel {
	rec := &models.TransformationModel{
		Fingerprint: fp,
		Action:      string(action),
		Format:      string(res.Format),
		ResultText:  res.Text,
		ResultDoc:   models.JSONMap(res.Document),
	}
	if res.Audio != nil {
		rec.AudioData = res.Audio.Data
		rec.AudioMime = res.Audio.MimeType
		rec.AudioVoice = res.Audio.Voice
	}
	return rec
}

func buildResponse(action Action, opts NormalizedOptions, fp string, out *pipelineOutcome) *Response {
	resp := &Response{
		Format:      ResultFormat(out.rec.Format),
		Action:      action,
		Cached:      out.cached,
		Ref:         out.rec.ID,
		Fingerprint: fp,
		OptionsUsed: OptionsMap(opts),
	}
	if resp.Format == FormatText {
		resp.Result = out.rec.ResultText
	} else {
		resp.Result = map[string]interface{}(out.rec.ResultDoc)
	}
	if out.rec.HasAudio() {
		resp.Audio = &AudioInfo{
			MimeType: out.rec.AudioMime,
			Voice:    out.rec.AudioVoice,
			Size:     len(out.rec.AudioData),
		}
	}
	return resp
}

func (s *Service) validate(req Request) (Action, string, string, string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", "", "", "", &ValidationError{Field: "user", Reason: "missing user id"}
	}
	action, ok := ParseAction(req.Action)
	if !ok {
		return "", "", "", "", &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", req.Action)}
	}
	text := strings.TrimSpace(req.Text)
	if utf8.RuneCountInString(text) < s.limits.MinTextLength {
		return "", "", "", "", &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("minimum length is %d characters", s.limits.MinTextLength),
		}
	}
	return action, text, normalizeContextID(req.CourseID), normalizeContextID(req.LessonID), nil
}

// normalizeContextID accepts a well-formed UUID or discards the value.
// Invalid identifiers must never flow into persistence.
func normalizeContextID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ""
	}
	return id.String()
}
