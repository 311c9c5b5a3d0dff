/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/gin-contrib/cors"
    "github.com/gin-gonic/gin"
    "github.com/michael131468/pioj/internal/config"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc any) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(cors.Default())
    r.Use(func(c *gin.Context){
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc)

    r.StaticFile("/", "./web/index.html")
    api := r.Group("/api")
    api.GET("/config/status", h.ConfigStatus)
    api.GET("/workstreams", h.GetWorkstreams)
    api.POST("/workstreams", h.SaveWorkstreams)
    api.POST("/search", h.Search)
    api.GET("/issue/:key", h.Issue)
    api.POST("/ticket/details", h.TicketDetails)
    api.POST("/workstream/export", h.Export)
    api.POST("/workstream/summary", h.Summary)

    return r
}
