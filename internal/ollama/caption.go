package ollama

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// CaptionEnhancer turns a user's style hint into a full ACE-Step caption for
// one of the two loop kinds (drums or instruments).
type CaptionEnhancer struct {
	client *Client

	mu          sync.Mutex
	lastCaption map[string]string // kind -> last caption used (avoid repeats)
}

// NewCaptionEnhancer creates a caption enhancer backed by an Ollama client.
func NewCaptionEnhancer(client *Client) *CaptionEnhancer {
	return &CaptionEnhancer{
		client:      client,
		lastCaption: make(map[string]string),
	}
}

// captionSystemPrompt instructs the LLM to generate ACE-Step loop captions.
const captionSystemPrompt = `You are a music production caption generator for an AI music model called ACE-Step.

Your job: given a loop kind (drums or instruments) and an optional style hint, output ONE caption of 20-40 words that describes a short seamless loop of that kind.

Caption rules:
- Describe the SOUND, not a story. Focus on: instruments, timbre, effects, groove, production style.
- For "drums": percussion only. Kick, snare, hats, toms, shakers, drum machines. No melodic instruments.
- For "instruments": melodic and harmonic content only. No drum kit or percussion hits.
- Be SPECIFIC: "warm Rhodes piano with gentle chorus effect" not just "piano"
- The loop must be seamless: steady groove, no intro, no fills at the edges, no tempo changes.
- Honor the style hint when given, but keep the drums/instruments split strict.
- Each caption MUST be meaningfully different from any previous caption.

NEVER include:
- Lyrics, vocals, singing, or voice references
- Song titles, artist names, or album references
- Tempo or BPM numbers (the host sets tempo separately)
- Explanations, preambles, quotes, or formatting

Output format: ONLY the caption text. Nothing else. No quotes. Just the raw caption.

/no_think`

// Enhance creates a unique caption for a loop kind and style hint.
// Returns empty string on failure (caller should fall back to static
// captions).
func (g *CaptionEnhancer) Enhance(ctx context.Context, kind, hint string) string {
	g.mu.Lock()
	lastCaption := g.lastCaption[kind]
	g.mu.Unlock()

	prompt := fmt.Sprintf("Loop kind: %s", kind)
	if hint != "" {
		prompt += fmt.Sprintf("\nStyle hint: %s", hint)
	}
	if lastCaption != "" {
		prompt += fmt.Sprintf("\nPrevious caption (do NOT repeat this): %s", lastCaption)
	}

	caption, err := g.client.Generate(ctx, captionSystemPrompt, prompt)
	if err != nil {
		log.Printf("Ollama caption enhancement failed: %v", err)
		return ""
	}

	caption = cleanCaption(caption)
	if caption == "" || len(caption) < 15 {
		log.Printf("Ollama returned unusable caption: %q", caption)
		return ""
	}

	g.mu.Lock()
	g.lastCaption[kind] = caption
	g.mu.Unlock()

	return caption
}

// cleanCaption strips quotes, thinking tags, and stray formatting the model
// sometimes adds despite instructions.
func cleanCaption(s string) string {
	if i := strings.Index(s, "</think>"); i >= 0 {
		s = s[i+len("</think>"):]
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	// keep only the first line if the model rambled
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
