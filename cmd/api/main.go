/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/michael131468/pioj/internal/adapters/jira"
    "github.com/michael131468/pioj/internal/adapters/llm"
    "github.com/michael131468/pioj/internal/cache"
    "github.com/michael131468/pioj/internal/config"
    apphttp "github.com/michael131468/pioj/internal/http"
    "github.com/michael131468/pioj/internal/logger"
    "github.com/michael131468/pioj/internal/services"
    "github.com/michael131468/pioj/internal/store"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)

    // Adapters
    jc := jira.NewClient(cfg, log)
    lc := llm.NewClient(cfg, log)

    // Stores
    tickets := cache.NewStore(cfg.CacheFile, cfg.CacheTTL, log)
    workstreams := store.NewWorkstreams(cfg.WorkstreamsFile, log)

    svc := services.New(cfg, log, tickets, workstreams, jc, lc)
    router := apphttp.NewRouter(cfg, log, svc)

    log.Info().
        Str("addr", cfg.HTTPAddr).
        Bool("jira_configured", cfg.JiraConfigured()).
        Bool("llm_configured", cfg.LLMConfigured()).
        Msg("starting pioj")
    if !cfg.JiraConfigured() {
        log.Warn().Msg("JIRA not configured; set JIRA_HOST and JIRA_TOKEN in .env")
    }

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
