package config

import (
    "testing"
    "time"
)

func TestLoad_Defaults(t *testing.T) {
    for _, k := range []string{"JIRA_HOST", "JIRA_TOKEN", "HTTP_ADDR", "CACHE_FILE", "WORKSTREAMS_FILE", "CACHE_TTL_HOURS", "LLM_MODEL"} {
        t.Setenv(k, "")
    }
    cfg := Load()
    if cfg.HTTPAddr != ":5000" { t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr) }
    if cfg.CacheFile != "cache.json" { t.Fatalf("CacheFile = %q", cfg.CacheFile) }
    if cfg.WorkstreamsFile != "workstreams.json" { t.Fatalf("WorkstreamsFile = %q", cfg.WorkstreamsFile) }
    if cfg.CacheTTL != time.Hour { t.Fatalf("CacheTTL = %v", cfg.CacheTTL) }
    if cfg.LLMModel != "gpt-4o-mini" { t.Fatalf("LLMModel = %q", cfg.LLMModel) }
    if cfg.JiraConfigured() { t.Fatalf("should not be configured with empty env") }
}

func TestLoad_TrimsHostAndTTL(t *testing.T) {
    t.Setenv("JIRA_HOST", "https://jira.example.com/")
    t.Setenv("JIRA_TOKEN", "tok")
    t.Setenv("CACHE_TTL_HOURS", "4")

    cfg := Load()
    if cfg.JiraHost != "https://jira.example.com" { t.Fatalf("JiraHost = %q", cfg.JiraHost) }
    if cfg.CacheTTL != 4*time.Hour { t.Fatalf("CacheTTL = %v", cfg.CacheTTL) }
    if !cfg.JiraConfigured() { t.Fatalf("should be configured") }
}

func TestLoad_BadTTLFallsBack(t *testing.T) {
    t.Setenv("CACHE_TTL_HOURS", "not-a-number")
    if cfg := Load(); cfg.CacheTTL != time.Hour {
        t.Fatalf("CacheTTL = %v, want default 1h", cfg.CacheTTL)
    }
}
