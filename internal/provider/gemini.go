package provider

import (
	"context"
	"fmt"
	"path/filepath"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider and DocumentUploader on the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ DocumentUploader = (*GeminiProvider)(nil)

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.model }

func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	contents := buildGeminiContents(req.Messages)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: request has no content")
	}

	ch := make(chan Event, 16)
	go p.processStream(ctx, model, contents, cfg, ch)
	return ch, nil
}

// processStream ranges over the SDK iterator and emits unified events. The
// last response chunk carries cumulative usage.
func (p *GeminiProvider) processStream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig, ch chan<- Event) {
	defer close(ch)

	usage := &Usage{}
	for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			ch <- Event{Type: EventError, Error: fmt.Errorf("gemini streaming error: %w", err)}
			return
		}
		if text := resp.Text(); text != "" {
			ch <- Event{Type: EventTextDelta, TextDelta: text}
		}
		if um := resp.UsageMetadata; um != nil {
			usage.InputTokens = int(um.PromptTokenCount)
			usage.OutputTokens = int(um.CandidatesTokenCount)
		}
	}
	if err := ctx.Err(); err != nil {
		ch <- Event{Type: EventError, Error: err}
		return
	}
	ch <- Event{Type: EventDone, Usage: usage}
}

// buildGeminiContents maps unified messages onto user/model contents.
func buildGeminiContents(msgs []Message) []*genai.Content {
	var out []*genai.Content
	for _, msg := range msgs {
		var parts []*genai.Part
		for _, c := range msg.Content {
			switch c.Type {
			case ContentTypeText:
				if c.Text != "" {
					parts = append(parts, genai.NewPartFromText(c.Text))
				}
			case ContentTypeAttachment:
				parts = append(parts, genai.NewPartFromBytes(c.Data, c.MediaType))
			case ContentTypeDocument:
				parts = append(parts, genai.NewPartFromURI(c.URI, c.MediaType))
			}
		}
		if len(parts) == 0 {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromParts(parts, role))
	}
	return out
}

// UploadDocument pushes a local file through the Files API.
func (p *GeminiProvider) UploadDocument(ctx context.Context, path string) (DocumentHandle, error) {
	mime := documentMIMEType(path)
	f, err := p.client.Files.UploadFromPath(ctx, path, &genai.UploadFileConfig{
		MIMEType:    mime,
		DisplayName: filepath.Base(path),
	})
	if err != nil {
		return DocumentHandle{}, fmt.Errorf("upload %s: %w", path, err)
	}
	if f.MIMEType != "" {
		mime = f.MIMEType
	}
	return DocumentHandle{
		Name:      filepath.Base(path),
		Path:      path,
		RemoteID:  f.Name,
		URI:       f.URI,
		MediaType: mime,
	}, nil
}

// DocumentValid reports whether the uploaded file still exists and is usable.
func (p *GeminiProvider) DocumentValid(ctx context.Context, h DocumentHandle) bool {
	if h.RemoteID == "" {
		return false
	}
	f, err := p.client.Files.Get(ctx, h.RemoteID, nil)
	if err != nil {
		return false
	}
	return f.State == genai.FileStateActive
}
