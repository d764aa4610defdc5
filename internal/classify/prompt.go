package classify

import (
	"fmt"
	"strings"

	"MarketRadar/internal/domain"
	"MarketRadar/internal/textutil"
)

// SystemPrompt pins the model to JSON-only output.
const SystemPrompt = "You are a JSON API. Respond with valid JSON only, no prose."

// BuildPrompt serializes every item with its index and asks for one verdict per item.
func BuildPrompt(batch []domain.BufferedItem, maxTextChars, minScore int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Below are %d posts from online communities. Analyze each one separately.\n", len(batch))
	b.WriteString("You are an experienced software founder. Find the posts that describe a clear software or SaaS opportunity.\n\n")
	b.WriteString("Posts:\n")
	for _, item := range batch {
		fmt.Fprintf(&b, "\n--- POST ID %d ---\n", item.Index)
		fmt.Fprintf(&b, "Link: %s\n", item.Permalink)
		fmt.Fprintf(&b, "Content: %s\n", textutil.Truncate(item.Text, maxTextChars))
		b.WriteString("-------------------\n")
	}

	b.WriteString(`
Respond with a JSON object only. Its "results" member holds one object per post, keeping the original post_id:

{
  "results": [
    {
      "post_id": 0,
      "is_opportunity": true,
      "pain_point": "the problem in one or two sentences",
      "target_audience": "who has the problem",
      "suggested_solution": "short product idea",
      "score": 8
    },
    {
      "post_id": 1,
      "is_opportunity": false
    }
  ]
}

Rules:
`)
	fmt.Fprintf(&b, "- score is an integer from 1 to 10; set is_opportunity to true only when score is %d or higher\n", minScore)
	b.WriteString("- problems software cannot solve are false\n")
	b.WriteString("- vague or generic complaints are false\n")
	b.WriteString("- write nothing outside the JSON\n")

	return b.String()
}
