/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
)

type Config struct {
    AppEnv   string
    HTTPAddr string

    JiraHost        string
    JiraEmail       string
    JiraToken       string
    EstimationField string
    SprintField     string

    CacheFile       string
    WorkstreamsFile string
    CacheTTL        time.Duration

    LLMAPIKey  string
    LLMAPIBase string
    LLMModel   string
    LLMTimeout time.Duration

    HTTPTimeout time.Duration
}

func getenv(key, def string) string {
    v := os.Getenv(key)
    if v == "" { return def }
    return v
}

func atoi(key string, def int) int {
    v := os.Getenv(key)
    if v == "" { return def }
    i, err := strconv.Atoi(v)
    if err != nil { return def }
    return i
}

func dur(key string, def time.Duration) time.Duration {
    v := os.Getenv(key)
    if v == "" { return def }
    d, err := time.ParseDuration(v)
    if err != nil { return def }
    return d
}

func Load() Config {
    // .env is optional; real env vars win
    _ = godotenv.Load()

    cfg := Config{
        AppEnv:   getenv("APP_ENV", "dev"),
        HTTPAddr: getenv("HTTP_ADDR", ":5000"),

        JiraHost:        strings.TrimRight(getenv("JIRA_HOST", ""), "/"),
        JiraEmail:       getenv("JIRA_EMAIL", ""),
        JiraToken:       getenv("JIRA_TOKEN", ""),
        EstimationField: getenv("JIRA_ESTIMATION_FIELD", ""),
        SprintField:     getenv("JIRA_SPRINT_FIELD", ""),

        CacheFile:       getenv("CACHE_FILE", "cache.json"),
        WorkstreamsFile: getenv("WORKSTREAMS_FILE", "workstreams.json"),
        CacheTTL:        time.Duration(atoi("CACHE_TTL_HOURS", 1)) * time.Hour,

        LLMAPIKey:  getenv("LLM_API_KEY", ""),
        LLMAPIBase: getenv("LLM_API_BASE", ""),
        LLMModel:   getenv("LLM_MODEL", "gpt-4o-mini"),
        LLMTimeout: dur("LLM_TIMEOUT", 60*time.Second),

        HTTPTimeout: dur("HTTP_TIMEOUT", 15*time.Second),
    }
    return cfg
}

// JiraConfigured reports whether enough of the tracker config is present to
// attempt any upstream call.
func (c Config) JiraConfigured() bool { return c.JiraHost != "" && c.JiraToken != "" }

func (c Config) LLMConfigured() bool { return strings.TrimSpace(c.LLMAPIKey) != "" }
