package provider

import "strings"

// ImageSupportDecision describes whether image attachments will reach the
// model and how confident the detector is about it.
type ImageSupportDecision struct {
	Supported bool
	Confident bool
	Reason    string
}

// DetectImageSupport estimates whether a provider/model combination accepts
// image input. Unknown combinations are allowed but marked not confident, so
// attachments are never blocked for newly released models.
func DetectImageSupport(providerName, model string) ImageSupportDecision {
	p := strings.ToLower(strings.TrimSpace(providerName))
	m := strings.ToLower(strings.TrimSpace(model))

	for _, kw := range []string{"gpt-4o", "gpt-4.1", "claude", "gemini", "vision", "-vl", "multimodal"} {
		if strings.Contains(m, kw) {
			return ImageSupportDecision{
				Supported: true,
				Confident: true,
				Reason:    "model family advertises image input",
			}
		}
	}

	switch {
	case strings.Contains(m, "deepseek-chat"), strings.Contains(m, "deepseek-reasoner"):
		return ImageSupportDecision{Supported: false, Confident: true, Reason: "DeepSeek chat models are text-only"}
	case p == "groq":
		return ImageSupportDecision{Supported: false, Confident: true, Reason: "selected Groq model is not a vision variant"}
	}

	switch p {
	case "anthropic", "gemini":
		return ImageSupportDecision{Supported: true, Confident: true, Reason: "provider supports image input"}
	}

	return ImageSupportDecision{Supported: true, Confident: false, Reason: "unknown model capability"}
}
