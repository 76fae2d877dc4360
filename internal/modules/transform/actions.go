package transform

import (
	"encoding/json"
	"strings"
)

// Action identifies one supported transformation.
type Action string

const (
	ActionRephrase  Action = "rephrase"
	ActionMindmap   Action = "mindmap"
	ActionSchema    Action = "schema"
	ActionTranslate Action = "translate"
	ActionAudio     Action = "audio"
	ActionInsights  Action = "insights"
)

// ParseAction validates a raw action string against the closed enum.
func ParseAction(raw string) (Action, bool) {
	switch Action(strings.TrimSpace(strings.ToLower(raw))) {
	case ActionRephrase:
		return ActionRephrase, true
	case ActionMindmap:
		return ActionMindmap, true
	case ActionSchema:
		return ActionSchema, true
	case ActionTranslate:
		return ActionTranslate, true
	case ActionAudio:
		return ActionAudio, true
	case ActionInsights:
		return ActionInsights, true
	}
	return "", false
}

// caseVersions are the per-action version markers baked into normalized
// options. Bump a version whenever the prompt or post-processing for that
// action changes, so stale cached output is not silently reused.
var caseVersions = map[Action]int{
	ActionRephrase:  1,
	ActionMindmap:   1,
	ActionSchema:    1,
	ActionTranslate: 1,
	ActionAudio:     1,
	ActionInsights:  1,
}

// NormalizedOptions is the canonical, closed option set for one action.
// Exactly one concrete type exists per action; unrecognized client keys
// never survive normalization, so they cannot pollute the fingerprint.
type NormalizedOptions interface {
	ForAction() Action
}

// RephraseOptions tunes the rephrase action.
type RephraseOptions struct {
	Tone        string `json:"tone"`
	CaseVersion int    `json:"caseVersion"`
}

func (RephraseOptions) ForAction() Action { return ActionRephrase }

// TranslateOptions tunes the translate action.
type TranslateOptions struct {
	TargetLanguage string `json:"targetLanguage"`
	CaseVersion    int    `json:"caseVersion"`
}

func (TranslateOptions) ForAction() Action { return ActionTranslate }

// MindmapOptions tunes the mindmap action.
type MindmapOptions struct {
	MaxDepth    int `json:"maxDepth"`
	CaseVersion int `json:"caseVersion"`
}

func (MindmapOptions) ForAction() Action { return ActionMindmap }

// SchemaOptions tunes the schema action.
type SchemaOptions struct {
	Style       string `json:"style"`
	CaseVersion int    `json:"caseVersion"`
}

func (SchemaOptions) ForAction() Action { return ActionSchema }

// InsightsOptions tunes the insights action.
type InsightsOptions struct {
	MaxInsights int `json:"maxInsights"`
	CaseVersion int `json:"caseVersion"`
}

func (InsightsOptions) ForAction() Action { return ActionInsights }

// AudioOptions tunes the narrated-audio action.
type AudioOptions struct {
	Voice       string `json:"voice"`
	Format      string `json:"format"`
	CaseVersion int    `json:"caseVersion"`
}

func (AudioOptions) ForAction() Action { return ActionAudio }

// Normalize maps a free-form client option bag to the closed option set for
// the action. It is total: malformed or missing values fall back to
// defaults, and it depends on nothing but its arguments.
func Normalize(action Action, raw map[string]interface{}) NormalizedOptions {
	v := caseVersions[action]
	switch action {
	case ActionRephrase:
		return RephraseOptions{
			Tone:        stringOption(raw, "tone", "neutral"),
			CaseVersion: v,
		}
	case ActionTranslate:
		return TranslateOptions{
			TargetLanguage: stringOption(raw, "targetLanguage", "english"),
			CaseVersion:    v,
		}
	case ActionMindmap:
		return MindmapOptions{
			MaxDepth:    intOption(raw, "maxDepth", 3, 1, 6),
			CaseVersion: v,
		}
	case ActionSchema:
		return SchemaOptions{
			Style:       stringOption(raw, "style", "table"),
			CaseVersion: v,
		}
	case ActionInsights:
		return InsightsOptions{
			MaxInsights: intOption(raw, "maxInsights", 5, 1, 10),
			CaseVersion: v,
		}
	case ActionAudio:
		return AudioOptions{
			Voice:       stringOption(raw, "voice", "alloy"),
			Format:      audioFormatOption(raw),
			CaseVersion: v,
		}
	}
	return nil
}

// OptionsMap renders normalized options as a generic map, for persistence
// and for echoing back to the caller.
func OptionsMap(opts NormalizedOptions) map[string]interface{} {
	data, err := json.Marshal(opts)
	if err != nil {
		return map[string]interface{}{}
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}

func stringOption(raw map[string]interface{}, key, def string) string {
	if raw == nil {
		return def
	}
	s, ok := raw[key].(string)
	if !ok {
		return def
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return strings.ToLower(s)
}

func intOption(raw map[string]interface{}, key string, def, min, max int) int {
	if raw == nil {
		return def
	}
	n := def
	switch v := raw[key].(type) {
	case int:
		n = v
	case float64:
		n = int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			n = int(i)
		}
	default:
		return def
	}
	if n < min || n > max {
		return def
	}
	return n
}

var supportedAudioFormats = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"opus": "audio/ogg",
}

func audioFormatOption(raw map[string]interface{}) string {
	format := stringOption(raw, "format", "mp3")
	if _, ok := supportedAudioFormats[format]; !ok {
		return "mp3"
	}
	return format
}
