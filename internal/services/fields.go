/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "strings"
    "sync"

    "github.com/michael131468/pioj/internal/config"
    "github.com/rs/zerolog"
)

type fieldLister interface {
    FieldDefs(ctx context.Context) ([]map[string]any, error)
}

// FieldResolver maps human field names to tracker field ids. The mapping is
// fetched lazily in one bulk call and kept for the process lifetime; a failed
// fetch leaves it empty so the next miss retries.
type FieldResolver struct {
    cfg  config.Config
    jira fieldLister
    log  zerolog.Logger

    mu     sync.Mutex
    byName map[string]string
}

// Common estimation field names, most standard first.
var estimationFieldNames = []string{
    "Story point estimate", // Atlassian default
    "Story Points",
    "Points",
    "Estimate",
    "Story points",
    "Effort",
    "T-Shirt Size",
    "Size",
}

var sprintFieldNames = []string{
    "Sprint",
    "Sprints",
    "Active Sprint",
    "Active Sprints",
}

func NewFieldResolver(cfg config.Config, jira fieldLister, log zerolog.Logger) *FieldResolver {
    return &FieldResolver{cfg: cfg, jira: jira, log: log, byName: map[string]string{}}
}

// Resolve returns the field id for a display name, or "" when unknown.
func (r *FieldResolver) Resolve(ctx context.Context, name string) string {
    r.mu.Lock(); defer r.mu.Unlock()
    if id, ok := r.byName[strings.ToLower(name)]; ok { return id }
    if len(r.byName) == 0 { r.populate(ctx) }
    return r.byName[strings.ToLower(name)]
}

// populate fills the map from the bulk field listing; custom fields only,
// keyed by lower-cased display name. Caller holds the lock.
func (r *FieldResolver) populate(ctx context.Context) {
    defs, err := r.jira.FieldDefs(ctx)
    if err != nil {
        r.log.Warn().Err(err).Msg("could not fetch custom fields")
        return
    }
    for _, f := range defs {
        custom, _ := f["custom"].(bool)
        if !custom { continue }
        name, _ := f["name"].(string)
        id, _ := f["id"].(string)
        if name != "" && id != "" { r.byName[strings.ToLower(name)] = id }
    }
}

// EstimationFieldID resolves the estimation field: configured override first,
// then common names in order.
func (r *FieldResolver) EstimationFieldID(ctx context.Context) string {
    if r.cfg.EstimationField != "" {
        if id := r.Resolve(ctx, r.cfg.EstimationField); id != "" { return id }
    }
    for _, name := range estimationFieldNames {
        if id := r.Resolve(ctx, name); id != "" { return id }
    }
    return ""
}

// SprintFieldID resolves the sprint field the same way.
func (r *FieldResolver) SprintFieldID(ctx context.Context) string {
    if r.cfg.SprintField != "" {
        if id := r.Resolve(ctx, r.cfg.SprintField); id != "" { return id }
    }
    for _, name := range sprintFieldNames {
        if id := r.Resolve(ctx, name); id != "" { return id }
    }
    return ""
}
