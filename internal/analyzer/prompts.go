package analyzer

import (
	"fmt"
	"strings"
)

const analysisSystemPrompt = `You analyze saved content for a personal knowledge system.
Respond with a single JSON object and nothing else, using this schema:
{
  "title": "short descriptive title",
  "description": "one or two sentence summary",
  "content_type": "article|tutorial|reference|news|discussion|unknown",
  "topics": ["topic", ...],
  "entities": {
    "people": [], "organizations": [], "technologies": [], "locations": []
  },
  "key_takeaways": ["takeaway", ...],
  "action_items": ["action", ...],
  "detected_dates": ["date string as written", ...],
  "difficulty": "beginner|intermediate|advanced",
  "estimated_minutes": 5
}`

// buildAnalysisPrompt assembles the user prompt for an analysis call.
func buildAnalysisPrompt(text, userContext string) string {
	var sb strings.Builder
	if userContext != "" {
		fmt.Fprintf(&sb, "User context: %s\n\n", userContext)
	}
	sb.WriteString("Content to analyze:\n\n")
	sb.WriteString(text)
	return sb.String()
}
