package transform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	appcfg "github.com/timmydarcy44/lms-beyond-v3-sub006/internal/config"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
	"go.uber.org/zap"
)

// SpeechRequest selects voice and container format for synthesis.
type SpeechRequest struct {
	Voice  string
	Format string
}

// SpeechArtifact is a synthesized narration.
type SpeechArtifact struct {
	Data     []byte
	MimeType string
	Voice    string
}

// Generator is the external generation collaborator. GenerateSpeech may
// return (nil, nil): synthesis is unavailable (not configured), which is a
// first-class outcome distinct from a synthesis failure.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt string) (map[string]interface{}, error)
	GenerateSpeech(ctx context.Context, script string, req SpeechRequest) (*SpeechArtifact, error)
}

const generationMaxOutputTokens = 2048

// providerGenerator implements Generator over the configured AI providers.
type providerGenerator struct {
	cfg    appcfg.AIConfig
	logger *zap.Logger
}

// NewGenerator builds the production Generator from config.
func NewGenerator(cfg appcfg.AIConfig, logger *zap.Logger) Generator {
	return &providerGenerator{cfg: cfg, logger: logger}
}

// ProviderInfo returns the (id, model) of the active provider for usage
// event attribution.
func ProviderInfo(cfg appcfg.AIConfig) (string, string) {
	p := selectProvider(cfg)
	if p == nil {
		return "", ""
	}
	return p.ID, p.DefaultModel
}

func (g *providerGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	provider := selectProvider(g.cfg)
	if provider == nil {
		return "", errors.New("no enabled AI provider")
	}

	if isOpenAICompatibleProviderType(provider.Type) {
		return g.callOpenAICompatible(ctx, provider, prompt)
	}

	model, err := buildLanguageModel(provider)
	if err != nil {
		return "", err
	}
	resp, err := jetai.GenerateText(
		ctx,
		[]jetapi.Message{&jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)}},
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(generationMaxOutputTokens),
	)
	if err != nil {
		return "", err
	}
	return extractTextFromAIResponse(resp)
}

func (g *providerGenerator) GenerateStructured(ctx context.Context, prompt string) (map[string]interface{}, error) {
	raw, err := g.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	doc := map[string]interface{}{}
	if err := unmarshalAIJSON(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc) == 0 {
		return nil, errors.New("structured response is empty")
	}
	return doc, nil
}

func (g *providerGenerator) GenerateSpeech(ctx context.Context, script string, req SpeechRequest) (*SpeechArtifact, error) {
	speech := g.cfg.Speech
	if strings.TrimSpace(speech.APIKey) == "" {
		// Synthesis not configured: a non-error null outcome.
		return nil, nil
	}

	format := req.Format
	mime, ok := supportedAudioFormats[format]
	if !ok {
		format = "mp3"
		mime = supportedAudioFormats[format]
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model":           speech.Model,
		"voice":           req.Voice,
		"input":           script,
		"response_format": format,
	})

	endpoint := normalizeOpenAICompatibleEndpoint(speech.Endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(speech.APIKey))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("speech synthesis error: %s", strings.TrimSpace(string(data)))
	}
	if len(data) == 0 {
		return nil, errors.New("speech synthesis returned no audio")
	}

	return &SpeechArtifact{Data: data, MimeType: mime, Voice: req.Voice}, nil
}

func (g *providerGenerator) callOpenAICompatible(ctx context.Context, provider *appcfg.AIProvider, prompt string) (string, error) {
	if strings.TrimSpace(provider.APIKey) == "" {
		return "", errors.New("AI provider api key is empty")
	}

	endpoint := normalizeOpenAICompatibleEndpoint(provider.Endpoint)
	model := strings.TrimSpace(provider.DefaultModel)
	if model == "" {
		model = "gpt-4o-mini"
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": generationMaxOutputTokens,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(provider.APIKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("openai-compatible error: %s", strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return "", fmt.Errorf("openai-compatible error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("empty response from AI")
	}
	return result.Choices[0].Message.Content, nil
}

func selectProvider(cfg appcfg.AIConfig) *appcfg.AIProvider {
	for _, provider := range cfg.Providers {
		if !provider.Enabled {
			continue
		}
		selected := provider
		return &selected
	}
	return nil
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}

func isOpenAICompatibleProviderType(raw string) bool {
	t := normalizeProviderType(raw)
	return t == "openai-compatible" || t == "openaicompatible"
}

func isAnthropicProviderType(raw string) bool {
	return normalizeProviderType(raw) == "anthropic"
}

func buildLanguageModel(provider *appcfg.AIProvider) (jetapi.LanguageModel, error) {
	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, errors.New("AI provider api key is empty")
	}

	modelID := strings.TrimSpace(provider.DefaultModel)
	endpoint := strings.TrimSpace(provider.Endpoint)

	if isAnthropicProviderType(provider.Type) {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}

		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}

		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil
	}

	if modelID == "" {
		modelID = "gpt-4o-mini"
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}

	client := openaiclient.NewClient(opts...)
	return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil
}

func extractTextFromAIResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from AI")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from AI")
	}
	return text, nil
}

// unmarshalAIJSON tolerates the usual LLM JSON sins: markdown fences around
// the payload and prose before or after the object.
func unmarshalAIJSON(raw string, out interface{}) error {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), out); err == nil {
			return nil
		}
	}

	return errors.New("invalid JSON response from AI")
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

func normalizeOpenAICompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		cleaned := strings.TrimRight(base, "/")
		return strings.TrimSuffix(cleaned, "/v1")
	}

	path := strings.TrimRight(parsed.Path, "/")
	path = strings.TrimSuffix(path, "/v1")
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
