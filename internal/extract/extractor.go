package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// aiConfidence marks results that came back from the model.
const aiConfidence = 0.9

// Extractor adapts the AI backend into slot extraction. Every Analyze method
// degrades to the keyword classifier on any backend failure; none of them
// ever returns an error to the state machine. Deadlines are the caller's
// responsibility and arrive through ctx.
type Extractor struct {
	client     AIClient
	classifier *Classifier
	logger     *slog.Logger
}

// NewExtractor wires the AI client and the deterministic fallback.
func NewExtractor(log *slog.Logger, client AIClient, classifier *Classifier) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{
		client:     client,
		classifier: classifier,
		logger:     log.With(slog.String("service", "extractor")),
	}
}

// AnalyzeText extracts fields from a text message.
func (e *Extractor) AnalyzeText(ctx context.Context, text, contextSummary string) Result {
	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt(text, contextSummary)},
	}
	return e.complete(ctx, messages, text)
}

// AnalyzeImage extracts fields from an image, with an optional caption.
func (e *Extractor) AnalyzeImage(ctx context.Context, media []byte, mime, caption, contextSummary string) Result {
	prompt := imageInstruction
	if strings.TrimSpace(caption) != "" {
		prompt += "\nLegenda enviada: " + caption
	}
	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: []any{
			TextPart{Type: "text", Text: userPrompt(prompt, contextSummary)},
			ImagePart{Type: "image_url", ImageURL: imageURL{URL: DataURL(media, mime)}},
		}},
	}
	return e.complete(ctx, messages, caption)
}

// AnalyzeAudio extracts fields from an audio message, including a transcript.
func (e *Extractor) AnalyzeAudio(ctx context.Context, media []byte, mime, contextSummary string) Result {
	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: []any{
			TextPart{Type: "text", Text: userPrompt(audioInstruction, contextSummary)},
			AudioPart{Type: "input_audio", InputAudio: inputAudio{
				Data:   base64.StdEncoding.EncodeToString(media),
				Format: audioFormat(mime),
			}},
		}},
	}
	result := e.complete(ctx, messages, "")
	// An audio description defaults to its own transcript.
	if result.Description == "" && result.Transcript != "" {
		result.Description = result.Transcript
	}
	return result
}

// AnalyzeVideo extracts fields from a video message.
func (e *Extractor) AnalyzeVideo(ctx context.Context, media []byte, mime, caption, contextSummary string) Result {
	prompt := videoInstruction
	if strings.TrimSpace(caption) != "" {
		prompt += "\nLegenda enviada: " + caption
	}
	messages := []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: []any{
			TextPart{Type: "text", Text: userPrompt(prompt, contextSummary)},
			ImagePart{Type: "image_url", ImageURL: imageURL{URL: DataURL(media, mime)}},
		}},
	}
	return e.complete(ctx, messages, caption)
}

func (e *Extractor) complete(ctx context.Context, messages []ChatMessage, fallbackText string) Result {
	raw, err := e.client.Complete(ctx, messages)
	if err != nil {
		e.logger.Warn("ai call failed, using fallback", slog.Any("error", err))
		return e.fallback(fallbackText)
	}
	result, err := parseResult(raw)
	if err != nil {
		e.logger.Warn("ai reply unparseable, using fallback", slog.Any("error", err))
		return e.fallback(fallbackText)
	}
	if result.Confidence == 0 {
		result.Confidence = aiConfidence
	}
	return result
}

func (e *Extractor) fallback(text string) Result {
	if e.classifier == nil {
		return Result{Category: CategoryOther, Confidence: fallbackConfidence}
	}
	return e.classifier.Classify(text)
}

func decodeResult(raw string) (Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, fmt.Errorf("decode extraction: %w", err)
	}
	result.Description = strings.TrimSpace(result.Description)
	result.Category = strings.TrimSpace(result.Category)
	result.AddressText = strings.TrimSpace(result.AddressText)
	result.Neighborhood = strings.TrimSpace(result.Neighborhood)
	result.Urgency = strings.TrimSpace(result.Urgency)
	result.Transcript = strings.TrimSpace(result.Transcript)
	result.SuggestedReply = strings.TrimSpace(result.SuggestedReply)
	return result, nil
}
