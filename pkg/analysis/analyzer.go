// Package analysis enriches completed calls with AI-derived sentiment,
// summary, topics, and a quality score, and drafts agent configurations
// for the builder endpoint. Both paths call the Anthropic Messages API
// and expect strict JSON back from the model.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/paradyne-ai/callcore/pkg/models"
)

// DefaultModel is used when no model identifier is configured.
const DefaultModel = string(sdk.ModelClaudeSonnet4_5_20250929)

const (
	analysisMaxTokens = 1024
	builderMaxTokens  = 2048

	// transcriptPromptCap bounds how much transcript is sent to the model.
	// Stored transcripts can reach 500k characters; the head of the call
	// carries the intent, so we keep the front and cut the tail.
	transcriptPromptCap = 100_000
)

// MessagesClient captures the subset of the Anthropic SDK client used by the
// analyzer. It is satisfied by *sdk.MessageService so callers can pass either
// a real client or a mock in tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Analyzer runs model-backed enrichment for calls and agent drafts.
type Analyzer struct {
	msg   MessagesClient
	model string
}

// New builds an Analyzer from an existing Messages client.
func New(msg MessagesClient, model string) (*Analyzer, error) {
	if msg == nil {
		return nil, errors.New("messages client is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &Analyzer{msg: msg, model: model}, nil
}

// NewFromAPIKey constructs an Analyzer with the default Anthropic HTTP client.
func NewFromAPIKey(apiKey, model string) (*Analyzer, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, model)
}

const analysisSystemPrompt = `You analyze transcripts of phone calls made by AI voice agents.
Respond with a single JSON object and nothing else. No markdown, no prose.
The object has exactly these fields:
  "sentiment": one of "positive", "neutral", "negative" (the customer's overall sentiment)
  "summary": 2-4 sentences summarizing the call outcome
  "topics": array of 1-8 short topic strings discussed on the call
  "score": integer 1-10 rating how well the agent handled the call`

// AnalyzeCall derives sentiment, summary, topics, and a quality score from a
// call transcript. Callers are responsible for skipping voicemail calls and
// calls without transcripts.
func (a *Analyzer) AnalyzeCall(ctx context.Context, call *models.Call) (*models.AnalysisResult, error) {
	transcript := ""
	if call.Transcript != nil {
		transcript = strings.TrimSpace(*call.Transcript)
	}
	if transcript == "" {
		return nil, errors.New("call has no transcript to analyze")
	}
	if len(transcript) > transcriptPromptCap {
		transcript = transcript[:transcriptPromptCap] + "\n[transcript truncated]"
	}

	params := sdk.MessageNewParams{
		MaxTokens: analysisMaxTokens,
		Model:     sdk.Model(a.model),
		System:    []sdk.TextBlockParam{{Text: analysisSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(buildAnalysisPrompt(call, transcript))),
		},
		Temperature: sdk.Float(0.2),
	}

	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze call: %w", err)
	}
	text := textContent(msg)
	if text == "" {
		return nil, errors.New("model returned no text content")
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	normalizeResult(&result)
	return &result, nil
}

func buildAnalysisPrompt(call *models.Call, transcript string) string {
	var sb strings.Builder
	sb.WriteString("Analyze this call.\n\n")
	sb.WriteString(fmt.Sprintf("Direction: %s\n", call.Direction))
	sb.WriteString(fmt.Sprintf("Duration: %d seconds\n", call.DurationSeconds))
	if call.EndedReason != nil && *call.EndedReason != "" {
		sb.WriteString(fmt.Sprintf("Ended reason: %s\n", *call.EndedReason))
	}
	sb.WriteString("\nTranscript:\n")
	sb.WriteString(transcript)
	return sb.String()
}

// normalizeResult coerces model output into the ranges the store expects.
// Models occasionally return "Positive" or scores outside 1-10 despite the
// instructions; we clamp rather than reject.
func normalizeResult(r *models.AnalysisResult) {
	r.Sentiment = strings.ToLower(strings.TrimSpace(r.Sentiment))
	switch r.Sentiment {
	case "positive", "neutral", "negative":
	default:
		r.Sentiment = "neutral"
	}
	if r.Score < 1 {
		r.Score = 1
	}
	if r.Score > 10 {
		r.Score = 10
	}
	r.Summary = strings.TrimSpace(r.Summary)
	topics := r.Topics[:0]
	for _, t := range r.Topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		topics = append(topics, t)
		if len(topics) == 8 {
			break
		}
	}
	r.Topics = topics
}

// AgentDraft is the builder endpoint's response: a starting configuration a
// tenant can edit before creating a real agent.
type AgentDraft struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	FirstMessage string `json:"first_message"`
	Voicemail    string `json:"voicemail_message"`
}

const builderSystemPrompt = `You design configurations for outbound AI voice agents.
Respond with a single JSON object and nothing else. No markdown, no prose.
The object has exactly these fields:
  "name": a short display name for the agent (2-4 words)
  "system_prompt": the full system prompt the voice agent will run with,
    covering persona, goal, objection handling, and compliance basics
  "first_message": the agent's opening line on a connected call
  "voicemail_message": a short message to leave when voicemail is detected`

// BuildAgentDraft generates a draft agent configuration from a free-form
// description of what the agent should do.
func (a *Analyzer) BuildAgentDraft(ctx context.Context, description string) (*AgentDraft, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, errors.New("description is required")
	}

	params := sdk.MessageNewParams{
		MaxTokens: builderMaxTokens,
		Model:     sdk.Model(a.model),
		System:    []sdk.TextBlockParam{{Text: builderSystemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock("Design a voice agent for the following:\n\n" + description)),
		},
		Temperature: sdk.Float(0.7),
	}

	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate agent draft: %w", err)
	}
	text := textContent(msg)
	if text == "" {
		return nil, errors.New("model returned no text content")
	}

	var draft AgentDraft
	if err := json.Unmarshal([]byte(extractJSON(text)), &draft); err != nil {
		return nil, fmt.Errorf("failed to parse agent draft response: %w", err)
	}
	if strings.TrimSpace(draft.SystemPrompt) == "" {
		return nil, errors.New("agent draft is missing a system prompt")
	}
	return &draft, nil
}

// textContent concatenates the text blocks of a response message.
func textContent(msg *sdk.Message) string {
	if msg == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// extractJSON strips markdown code fences so that a fenced response still
// parses. Models wrap JSON in fences often enough that rejecting it would
// fail a meaningful fraction of analyses.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		return strings.TrimSpace(text)
	}
	// Fall back to the outermost object when the model added prose around it.
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	return text
}
