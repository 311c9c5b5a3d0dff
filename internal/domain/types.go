package domain

import "time"

// TicketRecord is the full cached detail for one ticket: display fields plus
// the complete, unfiltered change and comment history.
type TicketRecord struct {
    Key         string    `json:"key"`
    Summary     string    `json:"summary"`
    Status      string    `json:"status"`
    Assignee    string    `json:"assignee"`
    Priority    string    `json:"priority"`
    Description string    `json:"description"`
    Estimation  any       `json:"estimation"`
    Sprint      string    `json:"sprint"`
    SprintState string    `json:"sprint_state"`
    Changes     []Change  `json:"changes"`
    Comments    []Comment `json:"comments"`
}

// Change is a single changed field within one changelog history event.
type Change struct {
    Date    string `json:"date"`
    DateISO string `json:"date_iso"`
    Author  string `json:"author"`
    Field   string `json:"field"`
    From    string `json:"from"`
    To      string `json:"to"`
}

type Comment struct {
    Date    string `json:"date"`
    DateISO string `json:"date_iso"`
    Author  string `json:"author"`
    Body    string `json:"body"`
}

// CacheEntry wraps a full record with the instant it was fetched.
type CacheEntry struct {
    CachedAt time.Time    `json:"cached_at"`
    Data     TicketRecord `json:"data"`
}

// ParsedIssue is the normalized search/issue view of a ticket.
type ParsedIssue struct {
    Key              string      `json:"key"`
    Summary          string      `json:"summary"`
    Status           string      `json:"status"`
    StatusCategory   string      `json:"statusCategory"`
    Assignee         string      `json:"assignee"`
    Reporter         string      `json:"reporter"`
    Priority         string      `json:"priority"`
    StoryPoints      any         `json:"storyPoints"`
    Type             string      `json:"type"`
    EpicKey          string      `json:"epicKey,omitempty"`
    EpicName         string      `json:"epicName,omitempty"`
    ParentKey        string      `json:"parentKey,omitempty"`
    ParentName       string      `json:"parentName,omitempty"`
    IssueLinks       []IssueLink `json:"issueLinks"`
    Subtasks         []Subtask   `json:"subtasks"`
    Resolution       string      `json:"resolution,omitempty"`
    StatusChangeDate string      `json:"statusChangeDate,omitempty"`
    Sprint           string      `json:"sprint,omitempty"`
    SprintState      string      `json:"sprintState,omitempty"`
}

type IssueLink struct {
    Type    string `json:"type"`
    Key     string `json:"key"`
    Summary string `json:"summary"`
}

type Subtask struct {
    Key     string `json:"key"`
    Summary string `json:"summary"`
    Status  string `json:"status"`
}
