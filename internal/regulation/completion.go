package regulation

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Completer synthesizes an approximate regulation excerpt when the canonical
// index has no passage for a code. Calls must honor context cancellation.
type Completer interface {
	Complete(ctx context.Context, commune, zoneCode string) (string, error)
}

// GenAICompleter asks a Gemini model to phrase an approximate excerpt.
type GenAICompleter struct {
	client *genai.Client
	model  string
}

// NewGenAICompleter builds the client. model defaults to gemini-2.5-flash.
func NewGenAICompleter(ctx context.Context, apiKey, model string) (*GenAICompleter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("completion API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create completion client: %w", err)
	}
	return &GenAICompleter{client: client, model: model}, nil
}

func (c *GenAICompleter) Complete(ctx context.Context, commune, zoneCode string) (string, error) {
	prompt := fmt.Sprintf(
		"Rédige un court extrait de règlement d'urbanisme (PLU) plausible pour la zone %q de la commune de %s. "+
			"Reste factuel et générique: destination de la zone, constructions autorisées, contraintes principales. "+
			"Réponds uniquement avec le texte de l'extrait.",
		zoneCode, commune)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("completion returned no text")
	}
	return text, nil
}
