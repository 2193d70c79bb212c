package ai

import (
	"context"
	"log/slog"
)

// Gateway composes the prompt, calls the model and normalizes the answer.
// It is advisory: callers treat an error as "no suggestions", never as a
// request failure.
type Gateway struct {
	client ChatCompleter
	logger *slog.Logger
}

func NewGateway(client ChatCompleter, logger *slog.Logger) *Gateway {
	return &Gateway{client: client, logger: logger}
}

// Suggest returns at most three model suggestions for the request. The
// parser always yields at least the generic fallback, so a nil error implies
// a non-empty result.
func (g *Gateway) Suggest(ctx context.Context, req SuggestRequest) ([]Suggestion, error) {
	text, err := g.client.Complete(ctx, systemPrompt, userPrompt(req))
	if err != nil {
		g.logger.Warn("ai suggestion call failed", "error", err)
		return nil, err
	}
	return ParseSuggestions(text), nil
}
