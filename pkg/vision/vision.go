// Package vision replaces image blocks with model-written text
// descriptions for upstreams that cannot accept images. Descriptions are
// produced by a small multimodal model and memoized for the process
// lifetime, so repeated turns over the same conversation do not re-pay
// the description calls.
package vision

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"mercator-hq/claude-proxy/pkg/config"
	"mercator-hq/claude-proxy/pkg/providers"
)

// unavailableText replaces an image whose description call failed.
const unavailableText = "[Image description unavailable]"

// hashPrefixLen bounds how much of a base64 payload feeds the memo key.
// Hashing the full payload would be wasted work on multi-megabyte images.
const hashPrefixLen = 8 * 1024

// maxConcurrent bounds parallel description calls per request.
const maxConcurrent = 4

// Describer rewrites request bodies, swapping image blocks for text.
type Describer struct {
	cfg      *config.Handle
	upstream *providers.Upstream
	logger   *slog.Logger

	mu   sync.Mutex
	memo map[string]string
}

// New creates a describer.
func New(cfg *config.Handle, logger *slog.Logger) *Describer {
	return &Describer{
		cfg:      cfg,
		upstream: providers.NewUpstream("Vision", 0),
		logger:   logger,
		memo:     make(map[string]string),
	}
}

// imageRef locates one image block inside a raw request body.
type imageRef struct {
	path string
	key  string
	url  string
}

// RewriteBody returns the body with every image block replaced by a text
// block. Bodies without images come back unchanged. A failed description
// substitutes placeholder text rather than failing the request.
func (d *Describer) RewriteBody(ctx context.Context, raw []byte) []byte {
	refs := collectImages(raw)
	if len(refs) == 0 {
		return raw
	}

	descriptions := d.describeAll(ctx, refs)

	out := raw
	for _, ref := range refs {
		text := descriptions[ref.key]
		if text == "" {
			text = unavailableText
		} else {
			text = "[Image Description: " + text + "]"
		}
		replaced, err := sjson.SetBytes(out, ref.path, map[string]string{"type": "text", "text": text})
		if err != nil {
			d.logger.Warn("failed to rewrite image block", "path", ref.path, "error", err)
			continue
		}
		out = replaced
	}
	return out
}

// collectImages finds image blocks and computes their memo keys.
func collectImages(raw []byte) []imageRef {
	var refs []imageRef
	gjson.GetBytes(raw, "messages").ForEach(func(mi, msg gjson.Result) bool {
		content := msg.Get("content")
		if !content.IsArray() {
			return true
		}
		content.ForEach(func(ci, block gjson.Result) bool {
			if block.Get("type").String() != "image" {
				return true
			}
			src := block.Get("source")
			ref := imageRef{
				path: fmt.Sprintf("messages.%d.content.%d", mi.Int(), ci.Int()),
			}
			if src.Get("type").String() == "url" {
				ref.key = src.Get("url").String()
				ref.url = ref.key
			} else {
				data := src.Get("data").String()
				ref.key = hashKey(data)
				ref.url = "data:" + src.Get("media_type").String() + ";base64," + data
			}
			refs = append(refs, ref)
			return true
		})
		return true
	})
	return refs
}

// hashKey derives a memo key from a bounded prefix of the base64 payload
// plus its length, which distinguishes same-prefix images.
func hashKey(data string) string {
	prefix := data
	if len(prefix) > hashPrefixLen {
		prefix = prefix[:hashPrefixLen]
	}
	sum := sha256.Sum256([]byte(prefix + ":" + strconv.Itoa(len(data))))
	return hex.EncodeToString(sum[:])
}

// describeAll resolves descriptions for all unique images, fanning out
// the uncached calls.
func (d *Describer) describeAll(ctx context.Context, refs []imageRef) map[string]string {
	out := make(map[string]string, len(refs))
	pending := make(map[string]string)

	d.mu.Lock()
	for _, ref := range refs {
		if text, ok := d.memo[ref.key]; ok {
			out[ref.key] = text
		} else {
			pending[ref.key] = ref.url
		}
	}
	d.mu.Unlock()

	if len(pending) == 0 {
		return out
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for key, url := range pending {
		key, url := key, url
		g.Go(func() error {
			text, err := d.describe(gctx, url)
			if err != nil {
				d.logger.Warn("image description failed", "error", err)
				return nil
			}
			mu.Lock()
			out[key] = text
			mu.Unlock()
			d.mu.Lock()
			d.memo[key] = text
			d.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// describe asks the configured vision model for a description.
func (d *Describer) describe(ctx context.Context, imageURL string) (string, error) {
	cfg := d.cfg.Current()
	if cfg.OpenRouterAPIKey == "" {
		return "", &providers.CredentialError{Provider: "openrouter", Key: "OPENROUTER_API_KEY"}
	}

	body, err := json.Marshal(map[string]interface{}{
		"model": cfg.VisionModel,
		"messages": []map[string]interface{}{{
			"role": "user",
			"content": []map[string]interface{}{
				{"type": "text", "text": "Describe this image in detail, including any visible text."},
				{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
			},
		}},
	})
	if err != nil {
		return "", err
	}

	headers := map[string]string{"Authorization": "Bearer " + cfg.OpenRouterAPIKey}
	resp, err := d.upstream.Post(ctx, cfg.OpenRouterBaseURL+"/chat/completions", body, headers)
	if err != nil {
		return "", err
	}

	text := gjson.GetBytes(resp, "choices.0.message.content").String()
	if text == "" {
		return "", &providers.ParseError{Provider: "Vision", RawResponse: string(resp)}
	}
	return text, nil
}
