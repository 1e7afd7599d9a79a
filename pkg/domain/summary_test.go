package domain

import (
	"strings"
	"testing"
)

func TestSummarize_EmptyState(t *testing.T) {
	sum := Summarize(ResearchState{})
	if sum.Preview != DefaultPreview {
		t.Errorf("expected placeholder preview, got %q", sum.Preview)
	}
	if sum.Title != "" {
		t.Errorf("expected empty title, got %q", sum.Title)
	}
}

func TestSummarize_TruncatesFirstSection(t *testing.T) {
	content := strings.Repeat("X", 150)
	sum := Summarize(ResearchState{
		Sections: []Section{{Idx: 0, Title: "Intro", Content: content}},
	})

	want := strings.Repeat("X", 100) + "..."
	if sum.Preview != want {
		t.Errorf("preview = %q, want %q", sum.Preview, want)
	}
}

func TestSummarize_ShortSectionNotTruncated(t *testing.T) {
	sum := Summarize(ResearchState{
		Sections: []Section{{Idx: 0, Title: "Intro", Content: "short"}},
	})
	if sum.Preview != "short" {
		t.Errorf("preview = %q, want %q", sum.Preview, "short")
	}
}

func TestSummarize_ProposalCount(t *testing.T) {
	sum := Summarize(ResearchState{
		Proposal: &Proposal{
			Sections: map[string]ProposalSection{
				"a": {Title: "A"},
				"b": {Title: "B"},
			},
		},
	})
	if sum.Preview != "Proposal with 2 sections" {
		t.Errorf("preview = %q", sum.Preview)
	}
}

func TestSummarize_SectionsWinOverProposal(t *testing.T) {
	sum := Summarize(ResearchState{
		Title:    "Quantum Computing",
		Proposal: &Proposal{Sections: map[string]ProposalSection{"a": {}}},
		Sections: []Section{{Content: "Written content"}},
	})
	if sum.Preview != "Written content" {
		t.Errorf("preview = %q", sum.Preview)
	}
	if sum.Title != "Quantum Computing" {
		t.Errorf("title = %q", sum.Title)
	}
}

func TestSummarize_MultibyteContent(t *testing.T) {
	content := strings.Repeat("é", 150)
	sum := Summarize(ResearchState{
		Sections: []Section{{Content: content}},
	})
	want := strings.Repeat("é", 100) + "..."
	if sum.Preview != want {
		t.Errorf("multibyte truncation broke a rune boundary")
	}
}
