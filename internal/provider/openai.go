package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIProvider implements Provider for all OpenAI-compatible APIs,
// including OpenAI, DeepSeek, Groq, and Gemini's compatibility endpoint.
type OpenAIProvider struct {
	client  openai.Client
	model   string
	name    string
	baseURL string
}

func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini" // fallback; normally buildProvider passes the correct default
	}
	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		model:   model,
		name:    nameFromBaseURL(baseURL),
		baseURL: baseURL,
	}
}

func nameFromBaseURL(baseURL string) string {
	switch {
	case baseURL == "":
		return "openai"
	case strings.Contains(baseURL, "deepseek"):
		return "deepseek"
	case strings.Contains(baseURL, "generativelanguage.googleapis.com"):
		return "gemini"
	case strings.Contains(baseURL, "groq"):
		return "groq"
	case strings.Contains(baseURL, "dashscope"):
		return "qwen"
	case strings.Contains(baseURL, "moonshot"):
		return "kimi"
	}
	return "openai"
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.model }

func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: p.buildMessages(req),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan Event, 16)
	go p.processStream(ctx, stream, ch)
	return ch, nil
}

// processStream reads the OpenAI SSE stream and emits unified events.
func (p *OpenAIProvider) processStream(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk], ch chan<- Event) {
	defer close(ch)
	defer stream.Close()

	usage := &Usage{}
	for stream.Next() {
		select {
		case <-ctx.Done():
			ch <- Event{Type: EventError, Error: ctx.Err()}
			return
		default:
		}

		chunk := stream.Current()
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage.InputTokens = int(chunk.Usage.PromptTokens)
			usage.OutputTokens = int(chunk.Usage.CompletionTokens)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		// Reasoning models (DeepSeek) stream reasoning_content outside the SDK
		// struct; it must not leak into the visible reply.
		if delta.Content == "" && extractReasoningContent(delta.RawJSON()) != "" {
			continue
		}
		if delta.Content != "" {
			ch <- Event{Type: EventTextDelta, TextDelta: delta.Content}
		}
	}

	if err := stream.Err(); err != nil {
		ch <- Event{Type: EventError, Error: fmt.Errorf("openai streaming error: %w", err)}
		return
	}
	ch <- Event{Type: EventDone, Usage: usage}
}

// buildMessages converts unified Message types to OpenAI API params.
func (p *OpenAIProvider) buildMessages(req *ChatRequest) []openai.ChatCompletionMessageParamUnion {
	var params []openai.ChatCompletionMessageParamUnion

	if req.SystemPrompt != "" {
		params = append(params, openai.SystemMessage(req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			var parts []openai.ChatCompletionContentPartUnionParam
			hasImage := false
			for _, c := range msg.Content {
				switch {
				case c.Type == ContentTypeText:
					parts = append(parts, openai.TextContentPart(c.Text))
				case c.IsImage():
					hasImage = true
					dataURI := fmt.Sprintf("data:%s;base64,%s", c.MediaType, base64.StdEncoding.EncodeToString(c.Data))
					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: dataURI,
					}))
				default:
					parts = append(parts, openai.TextContentPart(inlineText(c)))
				}
			}
			if !hasImage {
				params = append(params, openai.UserMessage(joinText(msg.Content)))
				continue
			}
			params = append(params, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: parts,
					},
				},
			})

		case RoleAssistant:
			params = append(params, openai.AssistantMessage(joinText(msg.Content)))
		}
	}
	return params
}

// inlineText renders a non-image block as text for backends that only take
// text and images.
func inlineText(c Content) string {
	switch {
	case c.Type == ContentTypeText:
		return c.Text
	case c.IsText():
		return fmt.Sprintf("<attachment name=%q>\n%s\n</attachment>", c.Name, c.Data)
	case c.Type == ContentTypeDocument:
		return fmt.Sprintf("[reference document %q is not available to this backend]", c.Name)
	default:
		return fmt.Sprintf("[attached file %q (%s, %d bytes) cannot be read by this backend]", c.Name, c.MediaType, len(c.Data))
	}
}

func joinText(blocks []Content) string {
	var sb strings.Builder
	for i, c := range blocks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(inlineText(c))
	}
	return sb.String()
}

// extractReasoningContent parses the raw JSON of a delta chunk to find a
// "reasoning_content" field (used by DeepSeek and other reasoning models).
func extractReasoningContent(rawJSON string) string {
	var raw struct {
		ReasoningContent string `json:"reasoning_content"`
	}
	if err := json.Unmarshal([]byte(rawJSON), &raw); err != nil {
		return ""
	}
	return raw.ReasoningContent
}
