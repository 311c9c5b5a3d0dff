/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/michael131468/pioj/internal/cache"
    "github.com/michael131468/pioj/internal/config"
    "github.com/michael131468/pioj/internal/domain"
    "github.com/michael131468/pioj/internal/store"
    "github.com/rs/zerolog"
)

// Sentinel errors the HTTP layer maps to client-side status codes.
var (
    ErrNotConfigured    = errors.New("JIRA not configured")
    ErrLLMNotConfigured = errors.New("LLM not configured. Set LLM_API_KEY in .env file")
    ErrNoTickets        = errors.New("No tickets provided")
)

type JiraClient interface {
    Configured() bool
    Issue(ctx context.Context, key string, expandChangelog, expandRendered bool, fields []string) (map[string]any, error)
    SearchIssues(ctx context.Context, jql string, max int, fields []string) (map[string]any, error)
    FieldDefs(ctx context.Context) ([]map[string]any, error)
    Myself(ctx context.Context) (map[string]any, error)
}

type LLM interface {
    Configured() bool
    Summarize(ctx context.Context, changelog string, days, ticketCount, changeCount int, extra string) (string, error)
}

const maxSearchResults = 100

var baseSearchFields = []string{
    "summary", "status", "assignee", "reporter", "priority",
    "issuetype", "parent", "issuelinks", "subtasks", "resolution",
}

type Service struct {
    cfg    config.Config
    log    zerolog.Logger
    cache  *cache.Store
    ws     *store.Workstreams
    jira   JiraClient
    llm    LLM
    fields *FieldResolver
}

func New(cfg config.Config, log zerolog.Logger, c *cache.Store, ws *store.Workstreams, jira JiraClient, llm LLM) *Service {
    return &Service{
        cfg:    cfg,
        log:    log,
        cache:  c,
        ws:     ws,
        jira:   jira,
        llm:    llm,
        fields: NewFieldResolver(cfg, jira, log),
    }
}

// TicketDetails is a windowed view of a cached record plus a hit marker.
type TicketDetails struct {
    domain.TicketRecord
    CacheHit bool `json:"_cache_hit"`
}

// TicketDetails serves the detail view for one ticket: fresh cache entries
// are projected to the requested window with no network access; otherwise the
// full history is refetched, stored whole, and then projected.
func (s *Service) TicketDetails(ctx context.Context, key string, days int) (*TicketDetails, error) {
    if !s.jira.Configured() { return nil, ErrNotConfigured }

    entries := s.cache.Load()
    if ent, ok := entries[key]; ok && s.cache.Fresh(ent) {
        s.log.Debug().Str("key", key).Msg("cache hit")
        return &TicketDetails{TicketRecord: projectWindow(ent.Data, days), CacheHit: true}, nil
    }

    s.log.Debug().Str("key", key).Msg("cache miss, fetching")
    raw, err := s.jira.Issue(ctx, key, true, true, nil)
    if err != nil { return nil, fmt.Errorf("fetch issue %s: %w", key, err) }

    rec := buildTicketRecord(ctx, s.fields, key, raw)
    entries[key] = domain.CacheEntry{CachedAt: time.Now().UTC(), Data: rec}
    if err := s.cache.Save(entries); err != nil {
        s.log.Warn().Err(err).Str("key", key).Msg("cache persist failed; serving uncached")
    }
    return &TicketDetails{TicketRecord: projectWindow(rec, days), CacheHit: false}, nil
}

// projectWindow derives the windowed view of a record: a copy whose changes
// and comments are restricted to the last N days. Pure; never touches the
// stored record.
func projectWindow(rec domain.TicketRecord, days int) domain.TicketRecord {
    return windowRecord(rec, time.Now().UTC().AddDate(0, 0, -days))
}

func windowRecord(rec domain.TicketRecord, cutoff time.Time) domain.TicketRecord {
    out := rec
    out.Changes = make([]domain.Change, 0, len(rec.Changes))
    out.Comments = make([]domain.Comment, 0, len(rec.Comments))
    for _, c := range rec.Changes {
        if t := parseTimeUTC(c.DateISO); t != nil && !t.Before(cutoff) { out.Changes = append(out.Changes, c) }
    }
    for _, c := range rec.Comments {
        if t := parseTimeUTC(c.DateISO); t != nil && !t.Before(cutoff) { out.Comments = append(out.Comments, c) }
    }
    return out
}

// searchFields is the field list for search and single-issue fetches: fixed
// base fields plus whichever dynamic ids resolve.
func (s *Service) searchFields(ctx context.Context) []string {
    fields := append([]string{}, baseSearchFields...)
    if id := s.fields.EstimationFieldID(ctx); id != "" { fields = append(fields, id) }
    if id := s.fields.Resolve(ctx, "Epic Link"); id != "" { fields = append(fields, id) }
    if id := s.fields.Resolve(ctx, "Parent Link"); id != "" { fields = append(fields, id) }
    if id := s.fields.SprintFieldID(ctx); id != "" { fields = append(fields, id) }
    return fields
}

// SearchTickets runs a JQL query and returns normalized, enriched results.
func (s *Service) SearchTickets(ctx context.Context, jql string) ([]domain.ParsedIssue, error) {
    if !s.jira.Configured() { return nil, ErrNotConfigured }

    res, err := s.jira.SearchIssues(ctx, jql, maxSearchResults, s.searchFields(ctx))
    if err != nil { return nil, fmt.Errorf("search: %w", err) }

    tickets := []domain.ParsedIssue{}
    epicKeys := map[string]struct{}{}
    parentKeys := map[string]struct{}{}
    issues, _ := res["issues"].([]any)
    for _, i0 := range issues {
        raw, _ := i0.(map[string]any)
        if raw == nil { continue }
        t := parseIssue(ctx, s.fields, raw)
        tickets = append(tickets, t)
        if t.EpicKey != "" { epicKeys[t.EpicKey] = struct{}{} }
        if t.ParentKey != "" { parentKeys[t.ParentKey] = struct{}{} }
    }

    // Enrichment: resolve epic and parent display names. Parents already
    // fetched as epics reuse that summary; keys compare case-sensitively.
    epicSummaries := map[string]string{}
    for k := range epicKeys { epicSummaries[k] = s.fetchSummary(ctx, k) }
    parentSummaries := map[string]string{}
    for k := range parentKeys {
        if sum, ok := epicSummaries[k]; ok { parentSummaries[k] = sum } else { parentSummaries[k] = s.fetchSummary(ctx, k) }
    }
    for i := range tickets {
        if sum, ok := epicSummaries[tickets[i].EpicKey]; ok && tickets[i].EpicKey != "" { tickets[i].EpicName = sum }
        if sum, ok := parentSummaries[tickets[i].ParentKey]; ok && tickets[i].ParentKey != "" { tickets[i].ParentName = sum }
    }

    // Backfill statusChangeDate for in-progress and review tickets; a failed
    // lookup just leaves the field unset.
    for i := range tickets {
        t := &tickets[i]
        if t.StatusCategory != "indeterminate" && !strings.Contains(strings.ToLower(t.Status), "review") { continue }
        raw, err := s.jira.Issue(ctx, t.Key, true, false, []string{"status"})
        if err != nil {
            s.log.Debug().Err(err).Str("key", t.Key).Msg("status change lookup failed")
            continue
        }
        if cl, ok := raw["changelog"].(map[string]any); ok {
            if d := statusChangeDate(cl); d != "" { t.StatusChangeDate = d }
        }
    }
    return tickets, nil
}

// fetchSummary resolves a ticket key to its summary, degrading to the key
// itself on any failure.
func (s *Service) fetchSummary(ctx context.Context, key string) string {
    raw, err := s.jira.Issue(ctx, key, false, false, []string{"summary"})
    if err != nil {
        s.log.Debug().Err(err).Str("key", key).Msg("summary lookup failed")
        return key
    }
    if fields, ok := raw["fields"].(map[string]any); ok {
        if sum := toStrAny(fields["summary"]); sum != "" { return sum }
    }
    return key
}

// GetIssue fetches and normalizes a single issue with its changelog.
func (s *Service) GetIssue(ctx context.Context, key string) (*domain.ParsedIssue, error) {
    if !s.jira.Configured() { return nil, ErrNotConfigured }
    raw, err := s.jira.Issue(ctx, key, true, false, s.searchFields(ctx))
    if err != nil { return nil, fmt.Errorf("fetch issue %s: %w", key, err) }
    t := parseIssue(ctx, s.fields, raw)
    return &t, nil
}

type ExportQuery struct {
    Name string `json:"name"`
    JQL  string `json:"jql"`
}

type ExportRequest struct {
    Tickets []string      `json:"tickets"`
    Days    int           `json:"days"`
    Name    string        `json:"name"`
    Queries []ExportQuery `json:"queries"`
}

// ExportWorkstream renders the tickets of a workstream, with their recent
// changes, as a markdown report.
func (s *Service) ExportWorkstream(ctx context.Context, req ExportRequest) (string, error) {
    if !s.jira.Configured() { return "", ErrNotConfigured }
    if len(req.Tickets) == 0 { return "", ErrNoTickets }
    days := req.Days
    if days <= 0 { days = 7 }
    name := req.Name
    if name == "" { name = "Workstream" }
    cutoff := time.Now().UTC().AddDate(0, 0, -days)

    b := &strings.Builder{}
    fmt.Fprintf(b, "# %s\n\n", name)
    fmt.Fprintf(b, "**Export Date:** %s\n", time.Now().Format("2006-01-02 15:04"))
    fmt.Fprintf(b, "**Time Range:** Last %d days\n", days)
    fmt.Fprintf(b, "**Ticket Count:** %d\n\n", len(req.Tickets))

    if len(req.Queries) > 0 {
        b.WriteString("## Queries\n\n")
        for i, q := range req.Queries {
            qn := q.Name
            if qn == "" { qn = fmt.Sprintf("Query %d", i+1) }
            fmt.Fprintf(b, "%d. **%s**\n   ```jql\n   %s\n   ```\n\n", i+1, qn, q.JQL)
        }
    }
    b.WriteString("## Tickets\n\n")

    for _, key := range req.Tickets {
        raw, err := s.jira.Issue(ctx, key, true, false, nil)
        if err != nil {
            s.log.Error().Err(err).Str("key", key).Msg("export: fetch failed")
            fmt.Fprintf(b, "### %s\n*Error fetching details*\n\n---\n\n", key)
            continue
        }
        rec := buildTicketRecord(ctx, s.fields, key, raw)

        fmt.Fprintf(b, "### %s: %s\n\n", key, rec.Summary)
        fmt.Fprintf(b, "- **Status:** %s\n", rec.Status)
        fmt.Fprintf(b, "- **Assignee:** %s\n", rec.Assignee)
        fmt.Fprintf(b, "- **Priority:** %s\n", rec.Priority)
        if rec.Estimation != nil { fmt.Fprintf(b, "- **Estimation:** %v\n", rec.Estimation) }
        fmt.Fprintf(b, "- **URL:** %s/browse/%s\n\n", s.cfg.JiraHost, key)

        if rec.Description != "" {
            fmt.Fprintf(b, "**Description:**\n%s\n\n", truncate(rec.Description, 500))
        }

        var recent []string
        for _, c := range rec.Changes {
            t := parseTimeUTC(c.DateISO)
            if t == nil || t.Before(cutoff) { continue }
            recent = append(recent, fmt.Sprintf("- `%s` **%s**: %s changed from `%s` to `%s`", c.Date, c.Author, c.Field, c.From, c.To))
        }
        if len(recent) > 0 {
            fmt.Fprintf(b, "**Recent Changes (Last %d days):**\n", days)
            b.WriteString(strings.Join(recent, "\n") + "\n\n")
        } else {
            fmt.Fprintf(b, "*No changes in the last %d days*\n\n", days)
        }
        b.WriteString("---\n\n")
    }
    return b.String(), nil
}

type SummaryRequest struct {
    Tickets      []string `json:"tickets"`
    Days         int      `json:"days"`
    Context      string   `json:"context"`
    OmitInactive bool     `json:"omit_inactive"`
}

type SummaryResult struct {
    Summary     string `json:"summary"`
    ChangeCount int    `json:"changeCount"`
    TicketCount int    `json:"ticketCount,omitempty"`
    Days        int    `json:"days,omitempty"`
}

// SummarizeWorkstream flattens recent changes and comments across a set of
// tickets (through the detail cache) and asks the LLM for a standup summary.
func (s *Service) SummarizeWorkstream(ctx context.Context, req SummaryRequest) (*SummaryResult, error) {
    if !s.jira.Configured() { return nil, ErrNotConfigured }
    if !s.llm.Configured() { return nil, ErrLLMNotConfigured }
    if len(req.Tickets) == 0 { return nil, ErrNoTickets }
    days := req.Days
    if days <= 0 { days = 7 }

    var lines []string
    for _, key := range req.Tickets {
        det, err := s.TicketDetails(ctx, key, days)
        if err != nil {
            s.log.Error().Err(err).Str("key", key).Msg("summary: fetch failed")
            continue
        }
        if req.OmitInactive && len(det.Changes) == 0 && len(det.Comments) == 0 { continue }
        for _, c := range det.Changes {
            lines = append(lines, fmt.Sprintf("[%s] %s - %s: %s changed from '%s' to '%s'", c.Date, key, c.Author, c.Field, c.From, c.To))
        }
        for _, c := range det.Comments {
            lines = append(lines, fmt.Sprintf("[%s] %s - %s: comment changed from '' to '%s'", c.Date, key, c.Author, truncate(c.Body, 100)))
        }
    }

    if len(lines) == 0 {
        return &SummaryResult{Summary: fmt.Sprintf("No changes found in the last %d days.", days)}, nil
    }
    summary, err := s.llm.Summarize(ctx, strings.Join(lines, "\n"), days, len(req.Tickets), len(lines), req.Context)
    if err != nil { return nil, err }
    return &SummaryResult{Summary: summary, ChangeCount: len(lines), TicketCount: len(req.Tickets), Days: days}, nil
}

type ConfigStatus struct {
    Configured    bool   `json:"configured"`
    Host          string `json:"host,omitempty"`
    LLMConfigured bool   `json:"llm_configured"`
    JiraStatus    string `json:"jira_status,omitempty"`
    AuthMode      string `json:"auth_mode,omitempty"`
}

// Status reports whether the tracker and LLM are configured, probing the
// tracker connection when possible.
func (s *Service) Status(ctx context.Context) ConfigStatus {
    st := ConfigStatus{
        Configured:    s.cfg.JiraConfigured(),
        LLMConfigured: s.cfg.LLMConfigured(),
    }
    if !st.Configured { return st }
    st.Host = s.cfg.JiraHost
    if _, err := s.jira.Myself(ctx); err != nil {
        st.JiraStatus = "error: " + err.Error()
        return st
    }
    st.JiraStatus = "connected"
    if s.cfg.JiraEmail != "" { st.AuthMode = "Basic Auth (Cloud)" } else { st.AuthMode = "Bearer Token (Server/DC)" }
    return st
}

func (s *Service) LoadWorkstreams() (json.RawMessage, error) { return s.ws.Load() }

func (s *Service) SaveWorkstreams(data json.RawMessage) error { return s.ws.Save(data) }

func truncate(s string, max int) string {
    r := []rune(s)
    if len(r) <= max { return s }
    return string(r[:max]) + "..."
}
