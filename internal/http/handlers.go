/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"

    "github.com/gin-gonic/gin"
    "github.com/michael131468/pioj/internal/config"
    "github.com/michael131468/pioj/internal/domain"
    "github.com/michael131468/pioj/internal/services"
    "github.com/rs/zerolog"
)

type service interface {
    Status(ctx context.Context) services.ConfigStatus
    LoadWorkstreams() (json.RawMessage, error)
    SaveWorkstreams(data json.RawMessage) error
    SearchTickets(ctx context.Context, jql string) ([]domain.ParsedIssue, error)
    GetIssue(ctx context.Context, key string) (*domain.ParsedIssue, error)
    TicketDetails(ctx context.Context, key string, days int) (*services.TicketDetails, error)
    ExportWorkstream(ctx context.Context, req services.ExportRequest) (string, error)
    SummarizeWorkstream(ctx context.Context, req services.SummaryRequest) (*services.SummaryResult, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

// fail maps service errors to responses: configuration and input problems are
// the client's, everything else is ours.
func (h *Handlers) fail(c *gin.Context, err error) {
    status := http.StatusInternalServerError
    if errors.Is(err, services.ErrNotConfigured) || errors.Is(err, services.ErrLLMNotConfigured) || errors.Is(err, services.ErrNoTickets) {
        status = http.StatusBadRequest
    }
    c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handlers) ConfigStatus(c *gin.Context) {
    c.JSON(http.StatusOK, h.svc.Status(c.Request.Context()))
}

func (h *Handlers) GetWorkstreams(c *gin.Context) {
    data, err := h.svc.LoadWorkstreams()
    if err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"workstreams": data})
}

func (h *Handlers) SaveWorkstreams(c *gin.Context) {
    body, err := c.GetRawData()
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
        return
    }
    if err := h.svc.SaveWorkstreams(body); err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) Search(c *gin.Context) {
    var req struct {
        JQL string `json:"jql"`
    }
    if err := c.ShouldBindJSON(&req); err != nil || req.JQL == "" {
        c.JSON(http.StatusBadRequest, gin.H{"error": "JQL query required"})
        return
    }
    tickets, err := h.svc.SearchTickets(c.Request.Context(), req.JQL)
    if err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (h *Handlers) Issue(c *gin.Context) {
    issue, err := h.svc.GetIssue(c.Request.Context(), c.Param("key"))
    if err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, issue)
}

func (h *Handlers) TicketDetails(c *gin.Context) {
    var req struct {
        Key  string `json:"key"`
        Days int    `json:"days"`
    }
    if err := c.ShouldBindJSON(&req); err != nil || req.Key == "" {
        c.JSON(http.StatusBadRequest, gin.H{"error": "No ticket key provided"})
        return
    }
    if req.Days <= 0 { req.Days = 7 }
    det, err := h.svc.TicketDetails(c.Request.Context(), req.Key, req.Days)
    if err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, det)
}

func (h *Handlers) Export(c *gin.Context) {
    var req services.ExportRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
        return
    }
    md, err := h.svc.ExportWorkstream(c.Request.Context(), req)
    if err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"markdown": md})
}

func (h *Handlers) Summary(c *gin.Context) {
    var req services.SummaryRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
        return
    }
    res, err := h.svc.SummarizeWorkstream(c.Request.Context(), req)
    if err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, res)
}
