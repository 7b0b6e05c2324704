package extraction

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/PageSense/backend/internal/domain/understanding"
	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

const extractionSystemPrompt = "You extract structured records from web page content. Answer with a single JSON object and nothing else."

var goalFields = map[types.Goal]string{
	types.GoalProducts:    `"name", "price" (number), "rating" (number), "url"`,
	types.GoalArticle:     `"title", "author", "date", "body"`,
	types.GoalContactInfo: `"name", "email", "phone", "address"`,
	types.GoalTopics:      `"title", "url", "author", "replies"`,
	types.GoalListItems:   `"title", "url", "description"`,
	types.GoalNews:        `"headline", "summary", "date", "url"`,
}

func fieldsFor(g types.Goal) string {
	if f, ok := goalFields[g]; ok {
		return f
	}
	return goalFields[types.GoalProducts]
}

func visionPrompt(goal types.Goal, zone types.ZoneType, blocks []types.OCRTextBlock) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Below is the visible text of the %s zone of a web page, one block per line in reading order as [top,left] text.\n", zone)
	fmt.Fprintf(&b, "Extract %s.\n\n", understanding.GoalHint(goal))
	for _, bl := range blocks {
		fmt.Fprintf(&b, "[%.0f,%.0f] %s\n", bl.Bounds.Top, bl.Bounds.Left, bl.Text)
	}
	fmt.Fprintf(&b, "\nReturn {\"items\": [...]} where each item may have %s. Omit fields you cannot see. Return {\"items\": []} if nothing matches.", fieldsFor(goal))
	return b.String()
}

func prosePrompt(goal types.Goal, zone types.ZoneType, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Read this markdown rendering of the %s zone of a web page and extract %s.\n\n", zone, understanding.GoalHint(goal))
	b.WriteString("---\n")
	b.WriteString(text)
	b.WriteString("\n---\n\n")
	fmt.Fprintf(&b, "Return {\"items\": [...]} where each item may have %s. Return {\"items\": []} if nothing matches.", fieldsFor(goal))
	return b.String()
}
