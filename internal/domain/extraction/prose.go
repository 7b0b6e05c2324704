package extraction

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/PageSense/backend/internal/providers/browser"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/llmjson"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// extractProse renders the zone to markdown and reads it through the model.
// Link-heavy goals also get the zone's anchors attached.
func (e *Engine) extractProse(ctx context.Context, t Target) ([]types.Item, error) {
	text, err := e.Excerpt(ctx, t.Page, t.Anchors())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	content, err := e.complete(ctx, prosePrompt(t.Goal, t.Zone, text))
	if err != nil {
		return nil, err
	}
	items := toItems(llmjson.Items(content), types.MethodProse)

	if !t.Goal.LinkHeavy() {
		return items, nil
	}
	links := e.zoneLinks(ctx, t)
	if len(links) == 0 {
		return items, nil
	}
	if len(items) == 0 {
		items = []types.Item{{types.KeyMethod: string(types.MethodProse)}}
	}
	items[0][types.KeyExtractedLinks] = links
	return items, nil
}

// Excerpt renders the zone (or the whole page when no anchor matches) as
// markdown bounded to ProseMaxChars
func (e *Engine) Excerpt(ctx context.Context, page browser.Page, anchors []string) (string, error) {
	html, err := page.HTML(ctx, anchors)
	if errors.Is(err, browser.ErrNoMatch) && len(anchors) > 0 {
		html, err = page.HTML(ctx, nil)
	}
	if err != nil {
		return "", err
	}

	md, err := e.md.ConvertString(html, converter.WithDomain(page.URL()))
	if err != nil {
		return "", err
	}
	return truncateBlocks(strings.TrimSpace(md), e.cfg.ProseMaxChars), nil
}

// truncateBlocks cuts to at most max runes, preferring the last paragraph
// break in the second half of the window
func truncateBlocks(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n, end := 0, len(s)
	for i := range s {
		if n == max {
			end = i
			break
		}
		n++
	}
	head := s[:end]
	if i := strings.LastIndex(head, "\n\n"); i > len(head)/2 {
		return head[:i]
	}
	return head
}

// zoneLinks collects deduplicated in-zone anchors up to LinkCap
func (e *Engine) zoneLinks(ctx context.Context, t Target) []types.Link {
	links, err := t.Page.Links(ctx, t.Anchors())
	if errors.Is(err, browser.ErrNoMatch) && len(t.Anchors()) > 0 {
		links, err = t.Page.Links(ctx, nil)
	}
	if err != nil {
		t.Log.Debug("links unavailable", zap.Error(err))
		return nil
	}

	seen := make(map[string]bool, len(links))
	out := make([]types.Link, 0, min(len(links), e.cfg.LinkCap))
	for _, l := range links {
		if l.URL == "" || seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
		if len(out) == e.cfg.LinkCap {
			break
		}
	}
	return out
}
