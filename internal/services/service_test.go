package services

import (
    "context"
    "fmt"
    "path/filepath"
    "strings"
    "testing"
    "time"

    "github.com/michael131468/pioj/internal/cache"
    "github.com/michael131468/pioj/internal/config"
    "github.com/michael131468/pioj/internal/domain"
    "github.com/michael131468/pioj/internal/store"
    "github.com/rs/zerolog"
)

type fakeJira struct {
    configured bool
    issues     map[string]map[string]any
    issueErr   error
    searchRes  map[string]any
    defs       []map[string]any

    issueCalls map[string]int
}

func newFakeJira() *fakeJira {
    return &fakeJira{
        configured: true,
        issues:     map[string]map[string]any{},
        defs:       stdFieldDefs,
        issueCalls: map[string]int{},
    }
}

func (f *fakeJira) Configured() bool { return f.configured }

func (f *fakeJira) Issue(ctx context.Context, key string, expandChangelog, expandRendered bool, fields []string) (map[string]any, error) {
    f.issueCalls[key]++
    if f.issueErr != nil { return nil, f.issueErr }
    raw, ok := f.issues[key]
    if !ok { return nil, fmt.Errorf("issue %s not found", key) }
    return raw, nil
}

func (f *fakeJira) SearchIssues(ctx context.Context, jql string, max int, fields []string) (map[string]any, error) {
    if f.searchRes == nil { return map[string]any{"issues": []any{}}, nil }
    return f.searchRes, nil
}

func (f *fakeJira) FieldDefs(ctx context.Context) ([]map[string]any, error) { return f.defs, nil }

func (f *fakeJira) Myself(ctx context.Context) (map[string]any, error) {
    return map[string]any{"displayName": "Test User"}, nil
}

type fakeLLM struct {
    configured   bool
    reply        string
    calls        int
    gotChangelog string
    gotDays      int
}

func (f *fakeLLM) Configured() bool { return f.configured }

func (f *fakeLLM) Summarize(ctx context.Context, changelog string, days, ticketCount, changeCount int, extra string) (string, error) {
    f.calls++
    f.gotChangelog = changelog
    f.gotDays = days
    return f.reply, nil
}

func newTestService(t *testing.T, jc *fakeJira, lc *fakeLLM) *Service {
    t.Helper()
    dir := t.TempDir()
    cfg := config.Config{JiraHost: "https://jira.example.com", JiraToken: "tok", CacheTTL: time.Hour}
    log := zerolog.Nop()
    c := cache.NewStore(filepath.Join(dir, "cache.json"), cfg.CacheTTL, log)
    ws := store.NewWorkstreams(filepath.Join(dir, "workstreams.json"), log)
    if lc == nil { lc = &fakeLLM{} }
    return New(cfg, log, c, ws, jc, lc)
}

func rawIssue(summary string, changeTimes ...time.Time) map[string]any {
    histories := []any{}
    for _, ct := range changeTimes {
        histories = append(histories, map[string]any{
            "created": ct.Format(time.RFC3339Nano),
            "author":  map[string]any{"displayName": "Dana"},
            "items": []any{
                map[string]any{"field": "status", "fromString": "To Do", "toString": "In Progress"},
            },
        })
    }
    return map[string]any{
        "fields": map[string]any{
            "summary": summary,
            "status":  map[string]any{"name": "In Progress"},
        },
        "changelog": map[string]any{"histories": histories},
    }
}

func TestWindowRecord_FiltersWithoutMutating(t *testing.T) {
    now := time.Now().UTC()
    rec := domain.TicketRecord{
        Key: "ABC-1",
        Changes: []domain.Change{
            {DateISO: now.AddDate(0, 0, -1).Format(time.RFC3339Nano), Field: "status"},
            {DateISO: now.AddDate(0, 0, -10).Format(time.RFC3339Nano), Field: "assignee"},
            {DateISO: "garbage", Field: "priority"},
        },
        Comments: []domain.Comment{
            {DateISO: now.AddDate(0, 0, -2).Format(time.RFC3339Nano), Body: "recent"},
            {DateISO: now.AddDate(0, 0, -20).Format(time.RFC3339Nano), Body: "old"},
        },
    }

    got := windowRecord(rec, now.AddDate(0, 0, -7))
    if len(got.Changes) != 1 || got.Changes[0].Field != "status" { t.Fatalf("changes: %+v", got.Changes) }
    if len(got.Comments) != 1 || got.Comments[0].Body != "recent" { t.Fatalf("comments: %+v", got.Comments) }

    // The stored record keeps its full history.
    if len(rec.Changes) != 3 || len(rec.Comments) != 2 { t.Fatalf("input mutated: %+v", rec) }

    // Widening the window is monotonic: everything in the 7-day view is in
    // the 30-day view.
    wide := windowRecord(rec, now.AddDate(0, 0, -30))
    if len(wide.Changes) != 2 || len(wide.Comments) != 2 { t.Fatalf("wide window: %+v", wide) }
}

func TestWindowRecord_Idempotent(t *testing.T) {
    now := time.Now().UTC()
    rec := domain.TicketRecord{
        Changes: []domain.Change{{DateISO: now.AddDate(0, 0, -1).Format(time.RFC3339Nano)}},
    }
    cutoff := now.AddDate(0, 0, -7)
    once := windowRecord(rec, cutoff)
    twice := windowRecord(once, cutoff)
    if len(once.Changes) != len(twice.Changes) { t.Fatalf("projection not idempotent") }
}

func TestTicketDetails_MissThenHit(t *testing.T) {
    jc := newFakeJira()
    now := time.Now().UTC()
    jc.issues["ABC-1"] = rawIssue("Cached ticket", now.Add(-2*time.Hour), now.AddDate(0, 0, -30))
    svc := newTestService(t, jc, nil)

    det, err := svc.TicketDetails(context.Background(), "ABC-1", 7)
    if err != nil { t.Fatalf("miss: %v", err) }
    if det.CacheHit { t.Fatalf("first fetch should be a miss") }
    if det.Summary != "Cached ticket" { t.Fatalf("summary = %q", det.Summary) }
    if len(det.Changes) != 1 { t.Fatalf("window should drop the 30-day-old change: %+v", det.Changes) }

    det, err = svc.TicketDetails(context.Background(), "ABC-1", 7)
    if err != nil { t.Fatalf("hit: %v", err) }
    if !det.CacheHit { t.Fatalf("second fetch should hit the cache") }
    if jc.issueCalls["ABC-1"] != 1 { t.Fatalf("fresh hit must not refetch; calls = %d", jc.issueCalls["ABC-1"]) }

    // A wider window over the same cached entry surfaces the old change.
    det, err = svc.TicketDetails(context.Background(), "ABC-1", 60)
    if err != nil { t.Fatalf("wide: %v", err) }
    if !det.CacheHit || len(det.Changes) != 2 { t.Fatalf("wide window from cache: hit=%v changes=%d", det.CacheHit, len(det.Changes)) }
}

func TestTicketDetails_FetchErrorLeavesCacheAlone(t *testing.T) {
    jc := newFakeJira()
    jc.issueErr = fmt.Errorf("boom")
    svc := newTestService(t, jc, nil)

    if _, err := svc.TicketDetails(context.Background(), "ABC-1", 7); err == nil {
        t.Fatalf("expected error")
    }
    entries := svc.cache.Load()
    if len(entries) != 0 { t.Fatalf("failed fetch must not write cache entries: %v", entries) }
}

func TestTicketDetails_NotConfigured(t *testing.T) {
    jc := newFakeJira()
    jc.configured = false
    svc := newTestService(t, jc, nil)
    if _, err := svc.TicketDetails(context.Background(), "ABC-1", 7); err != ErrNotConfigured {
        t.Fatalf("err = %v, want ErrNotConfigured", err)
    }
}

func TestSearchTickets_EnrichesEpicAndParentNames(t *testing.T) {
    jc := newFakeJira()
    jc.searchRes = map[string]any{
        "issues": []any{
            map[string]any{
                "key": "ABC-1",
                "fields": map[string]any{
                    "summary":           "Story under epic",
                    "customfield_10014": "EPIC-1",
                },
            },
            map[string]any{
                "key": "ABC-2",
                "fields": map[string]any{
                    "summary":           "Initiative child",
                    "customfield_10018": "INIT-1",
                },
            },
        },
    }
    jc.issues["EPIC-1"] = map[string]any{"fields": map[string]any{"summary": "The big epic"}}
    // INIT-1 lookup fails; the key itself stands in for the name.
    svc := newTestService(t, jc, nil)

    tickets, err := svc.SearchTickets(context.Background(), "project = ABC")
    if err != nil { t.Fatalf("search: %v", err) }
    if len(tickets) != 2 { t.Fatalf("got %d tickets", len(tickets)) }
    if tickets[0].EpicName != "The big epic" { t.Fatalf("epic name = %q", tickets[0].EpicName) }
    if tickets[1].ParentName != "INIT-1" { t.Fatalf("parent name = %q, want key fallback", tickets[1].ParentName) }
}

func TestSearchTickets_BackfillsStatusChangeDate(t *testing.T) {
    jc := newFakeJira()
    jc.searchRes = map[string]any{
        "issues": []any{
            map[string]any{
                "key": "ABC-1",
                "fields": map[string]any{
                    "summary": "Active",
                    "status": map[string]any{
                        "name":           "In Progress",
                        "statusCategory": map[string]any{"key": "indeterminate"},
                    },
                },
            },
        },
    }
    jc.issues["ABC-1"] = map[string]any{
        "fields": map[string]any{"status": map[string]any{"name": "In Progress"}},
        "changelog": map[string]any{
            "histories": []any{
                map[string]any{
                    "created": "2024-04-01T08:00:00.000+0000",
                    "items":   []any{map[string]any{"field": "status"}},
                },
            },
        },
    }
    svc := newTestService(t, jc, nil)

    tickets, err := svc.SearchTickets(context.Background(), "project = ABC")
    if err != nil { t.Fatalf("search: %v", err) }
    if tickets[0].StatusChangeDate != "2024-04-01T08:00:00.000+0000" {
        t.Fatalf("statusChangeDate = %q", tickets[0].StatusChangeDate)
    }
}

func TestSummarizeWorkstream_NoChangesSkipsLLM(t *testing.T) {
    jc := newFakeJira()
    jc.issues["ABC-1"] = rawIssue("Quiet ticket")
    lc := &fakeLLM{configured: true, reply: "unused"}
    svc := newTestService(t, jc, lc)

    res, err := svc.SummarizeWorkstream(context.Background(), SummaryRequest{Tickets: []string{"ABC-1"}, Days: 7})
    if err != nil { t.Fatalf("summary: %v", err) }
    if lc.calls != 0 { t.Fatalf("LLM should not be called with no changes") }
    if res.Summary != "No changes found in the last 7 days." { t.Fatalf("summary = %q", res.Summary) }
    if res.ChangeCount != 0 { t.Fatalf("changeCount = %d", res.ChangeCount) }
}

func TestSummarizeWorkstream_BuildsChangelog(t *testing.T) {
    jc := newFakeJira()
    now := time.Now().UTC()
    jc.issues["ABC-1"] = rawIssue("Busy ticket", now.Add(-3*time.Hour))
    lc := &fakeLLM{configured: true, reply: "did things"}
    svc := newTestService(t, jc, lc)

    res, err := svc.SummarizeWorkstream(context.Background(), SummaryRequest{Tickets: []string{"ABC-1"}, Days: 7})
    if err != nil { t.Fatalf("summary: %v", err) }
    if lc.calls != 1 { t.Fatalf("LLM calls = %d", lc.calls) }
    if !strings.Contains(lc.gotChangelog, "ABC-1 - Dana: status changed from 'To Do' to 'In Progress'") {
        t.Fatalf("changelog line missing:\n%s", lc.gotChangelog)
    }
    if res.Summary != "did things" || res.ChangeCount != 1 || res.TicketCount != 1 || res.Days != 7 {
        t.Fatalf("result: %+v", res)
    }
}

func TestSummarizeWorkstream_Guards(t *testing.T) {
    jc := newFakeJira()
    svc := newTestService(t, jc, &fakeLLM{configured: false})
    if _, err := svc.SummarizeWorkstream(context.Background(), SummaryRequest{Tickets: []string{"A-1"}}); err != ErrLLMNotConfigured {
        t.Fatalf("err = %v, want ErrLLMNotConfigured", err)
    }
    svc = newTestService(t, jc, &fakeLLM{configured: true})
    if _, err := svc.SummarizeWorkstream(context.Background(), SummaryRequest{}); err != ErrNoTickets {
        t.Fatalf("err = %v, want ErrNoTickets", err)
    }
}

func TestExportWorkstream_Markdown(t *testing.T) {
    jc := newFakeJira()
    now := time.Now().UTC()
    jc.issues["ABC-1"] = rawIssue("Export me", now.Add(-1*time.Hour))
    svc := newTestService(t, jc, nil)

    md, err := svc.ExportWorkstream(context.Background(), ExportRequest{
        Name:    "Team Alpha",
        Tickets: []string{"ABC-1", "MISSING-1"},
        Days:    7,
        Queries: []ExportQuery{{Name: "Open", JQL: "project = ABC"}},
    })
    if err != nil { t.Fatalf("export: %v", err) }
    for _, want := range []string{
        "# Team Alpha",
        "### ABC-1: Export me",
        "status changed from `To Do` to `In Progress`",
        "```jql",
        "https://jira.example.com/browse/ABC-1",
        "### MISSING-1\n*Error fetching details*",
    } {
        if !strings.Contains(md, want) { t.Fatalf("markdown missing %q:\n%s", want, md) }
    }
}

func TestStatus(t *testing.T) {
    jc := newFakeJira()
    svc := newTestService(t, jc, nil)
    st := svc.Status(context.Background())
    if !st.Configured || st.JiraStatus != "connected" { t.Fatalf("status: %+v", st) }
    if st.AuthMode != "Bearer Token (Server/DC)" { t.Fatalf("auth mode = %q", st.AuthMode) }

    svc.cfg.JiraEmail = "dev@example.com"
    st = svc.Status(context.Background())
    if st.AuthMode != "Basic Auth (Cloud)" { t.Fatalf("auth mode = %q", st.AuthMode) }
}
