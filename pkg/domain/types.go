package domain

import "time"

// Session is one independent research canvas: a titled record carrying the
// full agent state for that line of research.
type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Preview   string        `json:"preview"`
	State     ResearchState `json:"state"`
}

// SessionMetadata is the lightweight listing record kept in the aggregate
// index, so the sidebar can render without loading full session records.
type SessionMetadata struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Preview   string    `json:"preview"`
}

// Metadata derives the index entry for a session.
func (s *Session) Metadata() SessionMetadata {
	return SessionMetadata{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Preview:   s.Preview,
	}
}

// ProposalSection is one candidate section in the research proposal.
type ProposalSection struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Approved    bool   `json:"approved"`
}

// Proposal is the outline structure the agent offers before writing begins.
type Proposal struct {
	Sections map[string]ProposalSection `json:"sections"`
	Remarks  string                     `json:"remarks,omitempty"`
	Approved bool                       `json:"approved"`
}

// Section is a written section of the research report.
type Section struct {
	Idx     int    `json:"idx"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Footer  string `json:"footer,omitempty"`
}

// Source is a web source cited by the research.
type Source struct {
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// LogEntry is a progress log line emitted by the agent while it works.
type LogEntry struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Message is one turn of the session's chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResearchState mirrors the state schema published by the research agent. The
// session manager stores it opaquely; only the Summarize projection looks
// inside.
type ResearchState struct {
	Title     string                       `json:"title,omitempty"`
	Proposal  *Proposal                    `json:"proposal,omitempty"`
	Outline   map[string]map[string]string `json:"outline,omitempty"`
	Sections  []Section                    `json:"sections,omitempty"`
	Footnotes string                       `json:"footnotes,omitempty"`
	Sources   map[string]Source            `json:"sources,omitempty"`
	Tool      string                       `json:"tool,omitempty"`
	Logs      []LogEntry                   `json:"logs,omitempty"`
	Messages  []Message                    `json:"messages,omitempty"`
}
