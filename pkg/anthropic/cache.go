package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint set to a 1-hour TTL. A campaign shares one system prompt
// across every icebreaker request, so the prompt is cached once and read
// by all workers.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "1h",
			},
		},
	}
}

// WarmSystemPrompt sends one minimal request so the cache breakpoint is
// written before a worker fan-out starts reading it. The response text is
// discarded; only the cache write matters.
func WarmSystemPrompt(ctx context.Context, client Client, model string, system []SystemBlock) (*MessageResponse, error) {
	resp, err := client.CreateMessage(ctx, MessageRequest{
		Model:     model,
		MaxTokens: 1,
		System:    system,
		Messages:  []Message{{Role: "user", Content: "ok"}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: warm system prompt")
	}
	return resp, nil
}
