/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "math"
    "regexp"
    "strings"
    "time"

    "github.com/michael131468/pioj/internal/domain"
)

func parseTimeUTC(v any) *time.Time {
    s, _ := v.(string)
    if s == "" { return nil }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil {
            tt := t.UTC(); return &tt
        }
    }
    return nil
}

func toStrAny(v any) string {
    if v == nil { return "" }
    if s, ok := v.(string); ok { return s }
    return fmt.Sprintf("%v", v)
}

// nameOf extracts the "name" of a nested ref object ({name: ...}), with a
// default for absent or malformed refs.
func nameOf(v any, key, def string) string {
    m, _ := v.(map[string]any)
    if m == nil { return def }
    if s := toStrAny(m[key]); s != "" { return s }
    return def
}

// normalizeEstimation collapses the heterogeneous estimation field to one
// scalar: whole numbers become ints, other numbers stay as-is, strings pass
// through, option objects yield their value (or name), anything else its
// display form.
func normalizeEstimation(v any) any {
    switch t := v.(type) {
    case nil:
        return nil
    case float64:
        if t == math.Trunc(t) { return int(t) }
        return t
    case int:
        return t
    case string:
        return t
    case map[string]any:
        if val, ok := t["value"]; ok && toStrAny(val) != "" { return val }
        if name, ok := t["name"]; ok && toStrAny(name) != "" { return name }
        return nil
    default:
        return fmt.Sprintf("%v", v)
    }
}

// Legacy Greenhopper sprint records serialize as
// "...Sprint@14b1c359[id=123,state=ACTIVE,name=Sprint 1,...]"; pull name and
// state out by pattern. Compatibility shim, not core logic.
var (
    sprintNameRe  = regexp.MustCompile(`name=([^,\]]+)`)
    sprintStateRe = regexp.MustCompile(`state=([^,\]]+)`)
)

// parseSprint extracts the most recent sprint (last list element) as a
// name/state pair; state is lower-cased.
func parseSprint(v any) (string, string) {
    list, ok := v.([]any)
    if !ok || len(list) == 0 { return "", "" }
    last := list[len(list)-1]
    switch t := last.(type) {
    case string:
        name, state := "", ""
        if m := sprintNameRe.FindStringSubmatch(t); m != nil { name = m[1] }
        if m := sprintStateRe.FindStringSubmatch(t); m != nil { state = strings.ToLower(m[1]) }
        return name, state
    case map[string]any:
        name := "Unknown Sprint"
        if nv, ok := t["name"]; ok { name = toStrAny(nv) }
        return name, strings.ToLower(toStrAny(t["state"]))
    }
    return "", ""
}

// statusChangeDate scans the changelog newest-first and returns the raw
// timestamp of the most recent status transition, or "".
func statusChangeDate(changelog map[string]any) string {
    if changelog == nil { return "" }
    histories, _ := changelog["histories"].([]any)
    for i := len(histories) - 1; i >= 0; i-- {
        h, _ := histories[i].(map[string]any)
        if h == nil { continue }
        items, _ := h["items"].([]any)
        for _, it := range items {
            m, _ := it.(map[string]any)
            if m == nil { continue }
            if toStrAny(m["field"]) == "status" {
                if c := toStrAny(h["created"]); c != "" { return c }
                break
            }
        }
    }
    return ""
}

// parseIssue normalizes one raw search/issue payload. Missing substructures
// degrade to defaults; nothing here can fail.
func parseIssue(ctx context.Context, fr *FieldResolver, raw map[string]any) domain.ParsedIssue {
    fields, _ := raw["fields"].(map[string]any)
    if fields == nil { fields = map[string]any{} }

    out := domain.ParsedIssue{
        Key:            toStrAny(raw["key"]),
        Summary:        toStrAny(fields["summary"]),
        Status:         nameOf(fields["status"], "name", "Unknown"),
        StatusCategory: "other",
        Assignee:       nameOf(fields["assignee"], "displayName", "Unassigned"),
        Reporter:       nameOf(fields["reporter"], "displayName", "Unknown"),
        Priority:       nameOf(fields["priority"], "name", "None"),
        Type:           nameOf(fields["issuetype"], "name", "Task"),
        IssueLinks:     []domain.IssueLink{},
        Subtasks:       []domain.Subtask{},
    }
    if st, ok := fields["status"].(map[string]any); ok {
        if cat, ok := st["statusCategory"].(map[string]any); ok {
            if k := toStrAny(cat["key"]); k != "" { out.StatusCategory = k }
        }
    }

    if id := fr.EstimationFieldID(ctx); id != "" {
        out.StoryPoints = normalizeEstimation(fields[id])
    }
    if id := fr.SprintFieldID(ctx); id != "" {
        out.Sprint, out.SprintState = parseSprint(fields[id])
    }

    // Hierarchy: native parent first (also the epic when the parent is one),
    // then the Epic Link / Parent Link custom fields.
    if parent, ok := fields["parent"].(map[string]any); ok {
        out.ParentKey = toStrAny(parent["key"])
        out.ParentName = out.ParentKey
        if pf, ok := parent["fields"].(map[string]any); ok {
            if s := toStrAny(pf["summary"]); s != "" { out.ParentName = s }
            if strings.EqualFold(nameOf(pf["issuetype"], "name", ""), "epic") {
                out.EpicKey = out.ParentKey
                out.EpicName = out.ParentName
            }
        }
    }
    if out.EpicKey == "" {
        if id := fr.Resolve(ctx, "Epic Link"); id != "" {
            if link := toStrAny(fields[id]); link != "" {
                out.EpicKey = link
                out.EpicName = link
            }
        }
    }
    if out.ParentKey == "" {
        if id := fr.Resolve(ctx, "Parent Link"); id != "" {
            if link := toStrAny(fields[id]); link != "" {
                out.ParentKey = link
                out.ParentName = link // real name filled in by enrichment
            }
        }
    }

    if links, ok := fields["issuelinks"].([]any); ok {
        for _, l0 := range links {
            l, _ := l0.(map[string]any)
            if l == nil { continue }
            if outward, ok := l["outwardIssue"].(map[string]any); ok {
                out.IssueLinks = append(out.IssueLinks, domain.IssueLink{
                    Type:    nameOf(l["type"], "outward", ""),
                    Key:     toStrAny(outward["key"]),
                    Summary: nameOf(outward["fields"], "summary", ""),
                })
            }
            if inward, ok := l["inwardIssue"].(map[string]any); ok {
                out.IssueLinks = append(out.IssueLinks, domain.IssueLink{
                    Type:    nameOf(l["type"], "inward", ""),
                    Key:     toStrAny(inward["key"]),
                    Summary: nameOf(inward["fields"], "summary", ""),
                })
            }
        }
    }

    if subs, ok := fields["subtasks"].([]any); ok {
        for _, s0 := range subs {
            sub, _ := s0.(map[string]any)
            if sub == nil { continue }
            st := domain.Subtask{Key: toStrAny(sub["key"]), Status: "Unknown"}
            if sf, ok := sub["fields"].(map[string]any); ok {
                st.Summary = toStrAny(sf["summary"])
                st.Status = nameOf(sf["status"], "name", "Unknown")
            }
            out.Subtasks = append(out.Subtasks, st)
        }
    }

    out.Resolution = nameOf(fields["resolution"], "name", "")
    if cl, ok := raw["changelog"].(map[string]any); ok {
        out.StatusChangeDate = statusChangeDate(cl)
    }
    return out
}

// buildTicketRecord normalizes a raw issue (with changelog and comments
// expanded) into the full cache record. History is kept complete; windowing
// happens at read time.
func buildTicketRecord(ctx context.Context, fr *FieldResolver, key string, raw map[string]any) domain.TicketRecord {
    fields, _ := raw["fields"].(map[string]any)
    if fields == nil { fields = map[string]any{} }

    rec := domain.TicketRecord{
        Key:      key,
        Summary:  "No summary",
        Status:   nameOf(fields["status"], "name", "Unknown"),
        Assignee: nameOf(fields["assignee"], "displayName", "Unassigned"),
        Priority: nameOf(fields["priority"], "name", "None"),
        Changes:  []domain.Change{},
        Comments: []domain.Comment{},
    }
    if s := toStrAny(fields["summary"]); s != "" { rec.Summary = s }
    if d, ok := fields["description"].(string); ok { rec.Description = d }

    if id := fr.EstimationFieldID(ctx); id != "" {
        rec.Estimation = normalizeEstimation(fields[id])
    }
    if id := fr.SprintFieldID(ctx); id != "" {
        rec.Sprint, rec.SprintState = parseSprint(fields[id])
    }

    if cl, ok := raw["changelog"].(map[string]any); ok {
        histories, _ := cl["histories"].([]any)
        for _, h0 := range histories {
            h, _ := h0.(map[string]any)
            if h == nil { continue }
            created := parseTimeUTC(h["created"])
            if created == nil { continue }
            author := nameOf(h["author"], "displayName", "Unknown")
            items, _ := h["items"].([]any)
            for _, it0 := range items {
                it, _ := it0.(map[string]any)
                if it == nil { continue }
                from := toStrAny(it["fromString"])
                if from == "" { from = "None" }
                to := toStrAny(it["toString"])
                if to == "" { to = "None" }
                rec.Changes = append(rec.Changes, domain.Change{
                    Date:    created.Format("2006-01-02 15:04"),
                    DateISO: created.Format(time.RFC3339Nano),
                    Author:  author,
                    Field:   toStrAny(it["field"]),
                    From:    from,
                    To:      to,
                })
            }
        }
    }

    if cd, ok := fields["comment"].(map[string]any); ok {
        comments, _ := cd["comments"].([]any)
        for _, c0 := range comments {
            c, _ := c0.(map[string]any)
            if c == nil { continue }
            created := parseTimeUTC(c["created"])
            if created == nil { continue }
            body, _ := c["body"].(string)
            rec.Comments = append(rec.Comments, domain.Comment{
                Date:    created.Format("2006-01-02 15:04"),
                DateISO: created.Format(time.RFC3339Nano),
                Author:  nameOf(c["author"], "displayName", "Unknown"),
                Body:    body,
            })
        }
    }
    return rec
}
