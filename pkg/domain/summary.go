package domain

import "fmt"

// DefaultTitle is used for sessions whose state has not produced a title yet.
const DefaultTitle = "Untitled Research"

// DefaultPreview is shown for sessions with no written content or proposal.
const DefaultPreview = "New research session"

const previewLimit = 100

// Summary is the projection of a research state used for listings: a display
// title and a short preview string. Neither is authoritative.
type Summary struct {
	Title   string `json:"title"`
	Preview string `json:"preview"`
}

// Summarize derives the listing summary from an agent state. The preview is
// the first 100 characters of the first written section, else a count of
// proposed sections, else a fixed placeholder.
func Summarize(st ResearchState) Summary {
	sum := Summary{Title: st.Title, Preview: DefaultPreview}

	switch {
	case len(st.Sections) > 0 && st.Sections[0].Content != "":
		content := []rune(st.Sections[0].Content)
		if len(content) > previewLimit {
			sum.Preview = string(content[:previewLimit]) + "..."
		} else {
			sum.Preview = string(content)
		}
	case st.Proposal != nil && len(st.Proposal.Sections) > 0:
		sum.Preview = fmt.Sprintf("Proposal with %d sections", len(st.Proposal.Sections))
	}

	return sum
}
