package services

import (
    "context"
    "errors"
    "testing"

    "github.com/michael131468/pioj/internal/config"
    "github.com/rs/zerolog"
)

func TestFieldResolver_EstimationFallbackOrder(t *testing.T) {
    fr := testResolver([]map[string]any{
        {"id": "customfield_20001", "name": "Size", "custom": true},
        {"id": "customfield_20002", "name": "Story Points", "custom": true},
    })
    // "Story point estimate" is absent; "Story Points" outranks "Size".
    if got := fr.EstimationFieldID(context.Background()); got != "customfield_20002" {
        t.Fatalf("got %q, want customfield_20002", got)
    }
}

func TestFieldResolver_ConfiguredOverrideWins(t *testing.T) {
    cfg := config.Config{EstimationField: "Effort"}
    fr := NewFieldResolver(cfg, &fakeFieldDefs{defs: []map[string]any{
        {"id": "customfield_20001", "name": "Story Points", "custom": true},
        {"id": "customfield_20003", "name": "Effort", "custom": true},
    }}, zerolog.Nop())
    if got := fr.EstimationFieldID(context.Background()); got != "customfield_20003" {
        t.Fatalf("got %q, want customfield_20003", got)
    }
}

func TestFieldResolver_OverrideMissingFallsThrough(t *testing.T) {
    cfg := config.Config{SprintField: "Nonexistent"}
    fr := NewFieldResolver(cfg, &fakeFieldDefs{defs: []map[string]any{
        {"id": "customfield_10020", "name": "Sprint", "custom": true},
    }}, zerolog.Nop())
    if got := fr.SprintFieldID(context.Background()); got != "customfield_10020" {
        t.Fatalf("got %q, want customfield_10020", got)
    }
}

func TestFieldResolver_IgnoresBuiltinFields(t *testing.T) {
    fr := testResolver([]map[string]any{
        {"id": "summary", "name": "Summary", "custom": false},
    })
    if got := fr.Resolve(context.Background(), "Summary"); got != "" {
        t.Fatalf("built-in field resolved to %q, want empty", got)
    }
}

func TestFieldResolver_FetchesOnceAfterSuccess(t *testing.T) {
    lister := &fakeFieldDefs{defs: stdFieldDefs}
    fr := NewFieldResolver(config.Config{}, lister, zerolog.Nop())
    fr.Resolve(context.Background(), "Sprint")
    fr.Resolve(context.Background(), "Epic Link")
    fr.Resolve(context.Background(), "No Such Field")
    if lister.calls != 1 { t.Fatalf("FieldDefs called %d times, want 1", lister.calls) }
}

func TestFieldResolver_RetriesAfterFailure(t *testing.T) {
    lister := &fakeFieldDefs{err: errors.New("upstream down")}
    fr := NewFieldResolver(config.Config{}, lister, zerolog.Nop())
    if got := fr.Resolve(context.Background(), "Sprint"); got != "" { t.Fatalf("got %q, want empty", got) }

    // Upstream recovers; the next miss retries the bulk fetch.
    lister.err = nil
    lister.defs = stdFieldDefs
    if got := fr.Resolve(context.Background(), "Sprint"); got != "customfield_10020" {
        t.Fatalf("got %q after recovery", got)
    }
    if lister.calls != 2 { t.Fatalf("FieldDefs called %d times, want 2", lister.calls) }
}
