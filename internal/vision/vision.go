// Package vision wraps calls to the external multimodal model. Both
// operations are treated as unreliable network calls: validation degrades to
// a deterministic negative result, analysis surfaces typed upstream failures,
// and every model response is shape-checked before it is trusted.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"palmlens-backend/internal/apperr"
	"palmlens-backend/internal/config"
	"palmlens-backend/internal/models"
)

const validationPrompt = `You are a palm reading expert. Analyze this image and determine if it's suitable for palm reading.

Check for:
1. Is this a human palm (not back of hand)?
2. Is the palm facing the camera?
3. Is the image clear enough to see palm lines?
4. Is this a real hand (not a drawing, not a photo of a screen)?

Return ONLY valid JSON with this exact structure:
{
  "is_valid": true/false,
  "reason": "explanation if invalid"
}`

const analysisPrompt = `You are an expert palmist with 30 years of experience.
Carefully analyze the palm lines, mounts, finger shape, and hand structure in the image.
Return ONLY valid JSON with this exact structure - no text outside the JSON:
{
  "personality": { "summary": "string", "traits": ["string"] },
  "life_path": { "summary": "string", "lines": { "life": "string", "head": "string", "heart": "string" } },
  "career": { "summary": "string", "fields": ["string"], "strengths": ["string"] },
  "relationships": { "summary": "string" },
  "health": { "summary": "string" },
  "lucky": { "numbers": [1, 2, 3], "symbol": "string" }
}`

const validationTimeout = 20 * time.Second

// Validation is the outcome of a palm-presence check. Reason is always
// non-empty when Valid is false.
type Validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client is the vision analysis gateway.
type Client struct {
	chat            chatClient
	validationModel string
	analysisModel   string
}

// NewClient creates a vision gateway from configuration.
func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		chat:            openai.NewClient(cfg.APIKey),
		validationModel: cfg.ValidationModel,
		analysisModel:   cfg.AnalysisModel,
	}
}

// ValidatePalm runs the low-detail palm-presence check. It never returns an
// error: transport and provider failures become a negative result with a
// human-readable reason, since the caller faces an anonymous user.
func (c *Client) ValidatePalm(ctx context.Context, imageURL string) Validation {
	ctx, cancel := context.WithTimeout(ctx, validationTimeout)
	defer cancel()

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.validationModel,
		Temperature: 0.1,
		MaxTokens:   150,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
					{Type: openai.ChatMessagePartTypeText, Text: validationPrompt},
				},
			},
		},
	})
	if err != nil {
		log.Error().Err(err).Msg("Palm validation call failed")
		return Validation{Valid: false, Reason: "Palm validation service temporarily unavailable. Please try again."}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Error().Msg("Palm validation returned empty response")
		return Validation{Valid: false, Reason: "Palm validation service returned an invalid response. Please try again."}
	}

	var raw struct {
		IsValid bool   `json:"is_valid"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &raw); err != nil {
		log.Error().Err(err).Msg("Palm validation returned malformed JSON")
		return Validation{Valid: false, Reason: "Palm validation failed. Please try again."}
	}

	if !raw.IsValid && raw.Reason == "" {
		raw.Reason = "The image does not appear to contain a readable palm."
	}
	return Validation{Valid: raw.IsValid, Reason: raw.Reason}
}

// AnalyzePalm runs the high-detail structured reading. The response must
// match the fixed six-section shape or the call fails as an upstream error.
func (c *Client) AnalyzePalm(ctx context.Context, imageURL string) (*models.PalmAnalysis, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.analysisModel,
		Temperature: 0.3,
		MaxTokens:   1500,
		Seed:        seedPtr(42),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{Type: openai.ChatMessagePartTypeText, Text: analysisPrompt},
				},
			},
		},
	})
	if err != nil {
		return nil, apperr.Upstream("Palm analysis failed. Please try again later.", err)
	}

	if len(resp.Choices) == 0 {
		return nil, apperr.Upstream("Palm analysis failed. Please try again later.",
			fmt.Errorf("empty completion response"))
	}

	analysis, err := decodeAnalysis([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, apperr.Upstream("Palm analysis returned an unusable result.", err)
	}
	return analysis, nil
}

// GenerateCompatibility sends a prepared compatibility prompt and validates
// the response shape before returning it. Partial or malformed responses are
// rejected rather than passed through.
func (c *Client) GenerateCompatibility(ctx context.Context, prompt string, wantZodiac bool) (*models.CompatibilityReport, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.analysisModel,
		Temperature: 0.4,
		MaxTokens:   1200,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, apperr.Upstream("Compatibility analysis failed. Please try again later.", err)
	}

	if len(resp.Choices) == 0 {
		return nil, apperr.Upstream("Compatibility analysis failed. Please try again later.",
			fmt.Errorf("empty completion response"))
	}

	report, err := decodeCompatibility([]byte(resp.Choices[0].Message.Content), wantZodiac)
	if err != nil {
		return nil, apperr.Upstream("Compatibility analysis returned an unusable result.", err)
	}
	return report, nil
}

// GenerateText runs a plain text-prompt completion expecting a JSON object,
// used by the horoscope service.
func (c *Client) GenerateText(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.validationModel,
		Temperature: 0.7,
		MaxTokens:   600,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, apperr.Upstream("Horoscope generation failed. Please try again later.", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, apperr.Upstream("Horoscope generation failed. Please try again later.",
			fmt.Errorf("empty completion response"))
	}
	content := []byte(resp.Choices[0].Message.Content)
	if !json.Valid(content) {
		return nil, apperr.Upstream("Horoscope generation returned an unusable result.",
			fmt.Errorf("invalid JSON in completion"))
	}
	return content, nil
}

func decodeAnalysis(data []byte) (*models.PalmAnalysis, error) {
	var analysis models.PalmAnalysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if err := validateAnalysis(&analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func validateAnalysis(a *models.PalmAnalysis) error {
	switch {
	case a.Personality.Summary == "":
		return fmt.Errorf("analysis missing personality summary")
	case len(a.Personality.Traits) == 0:
		return fmt.Errorf("analysis missing personality traits")
	case a.LifePath.Summary == "":
		return fmt.Errorf("analysis missing life path summary")
	case a.LifePath.Lines.Life == "" || a.LifePath.Lines.Head == "" || a.LifePath.Lines.Heart == "":
		return fmt.Errorf("analysis missing palm line interpretations")
	case a.Career.Summary == "":
		return fmt.Errorf("analysis missing career summary")
	case a.Relationships.Summary == "":
		return fmt.Errorf("analysis missing relationships summary")
	case a.Health.Summary == "":
		return fmt.Errorf("analysis missing health summary")
	case len(a.Lucky.Numbers) == 0:
		return fmt.Errorf("analysis missing lucky numbers")
	}
	return nil
}

func decodeCompatibility(data []byte, wantZodiac bool) (*models.CompatibilityReport, error) {
	var report models.CompatibilityReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode compatibility report: %w", err)
	}
	if err := validateCompatibility(&report, wantZodiac); err != nil {
		return nil, err
	}
	if !wantZodiac {
		// The zodiac block is absent, not null-valued, when a DOB is missing.
		report.ZodiacCompatibility = nil
	}
	return &report, nil
}

func validateCompatibility(r *models.CompatibilityReport, wantZodiac bool) error {
	if r.OverallScore < 0 || r.OverallScore > 100 {
		return fmt.Errorf("overall score %d out of range", r.OverallScore)
	}
	if r.Summary == "" {
		return fmt.Errorf("compatibility report missing summary")
	}
	if len(r.Strengths) == 0 || len(r.Challenges) == 0 {
		return fmt.Errorf("compatibility report missing strengths or challenges")
	}
	if r.Advice == "" {
		return fmt.Errorf("compatibility report missing advice")
	}

	categories := map[string]models.CategoryScore{
		"communication": r.Categories.Communication,
		"emotional":     r.Categories.Emotional,
		"lifestyle":     r.Categories.Lifestyle,
		"goals":         r.Categories.Goals,
	}
	for name, cat := range categories {
		if cat.Score < 0 || cat.Score > 100 {
			return fmt.Errorf("category %s score %d out of range", name, cat.Score)
		}
		if cat.Description == "" {
			return fmt.Errorf("category %s missing description", name)
		}
	}

	if wantZodiac {
		z := r.ZodiacCompatibility
		if z == nil || z.SignA == "" || z.SignB == "" || z.Description == "" {
			return fmt.Errorf("compatibility report missing zodiac block")
		}
	}
	return nil
}

func seedPtr(v int) *int { return &v }
