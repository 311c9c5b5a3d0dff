/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package llm

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "strings"

    openai "github.com/openai/openai-go/v2"
    "github.com/openai/openai-go/v2/option"
    "github.com/openai/openai-go/v2/shared"

    "github.com/michael131468/pioj/internal/config"
    "github.com/rs/zerolog"
)

type Client struct {
    key   string
    model string
    api   openai.Client
    log   zerolog.Logger
}

// NewClient builds an OpenAI-compatible chat client. A custom base URL allows
// pointing at any compatible provider.
func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    opts := []option.RequestOption{
        option.WithAPIKey(cfg.LLMAPIKey),
        option.WithHTTPClient(&http.Client{ Timeout: cfg.LLMTimeout }),
    }
    if cfg.LLMAPIBase != "" { opts = append(opts, option.WithBaseURL(cfg.LLMAPIBase)) }
    return &Client{ key: cfg.LLMAPIKey, model: cfg.LLMModel, api: openai.NewClient(opts...), log: log }
}

func (c *Client) Configured() bool { return strings.TrimSpace(c.key) != "" }

// Summarize turns a flattened changelog into a short standup-style summary.
func (c *Client) Summarize(ctx context.Context, changelog string, days, ticketCount, changeCount int, extra string) (string, error) {
    if !c.Configured() { return "", errors.New("llm: missing api key") }
    prompt := fmt.Sprintf(`Analyze these JIRA ticket changes from the last %d days (%d changes across %d tickets) and provide a concise, actionable summary.

Changes:
%s

Please provide a brief summary focusing on:
1. Major progress and completions
2. Active work areas
3. Any blockers or concerning patterns
4. Notable status changes
5. Key trends

Keep it concise (3-5 bullet points) and actionable for a team standup.`, days, changeCount, ticketCount, changelog)
    if extra != "" { prompt += "\n\nAdditional context/instructions: " + extra }

    resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
        Model: shared.ChatModel(c.model),
        Messages: []openai.ChatCompletionMessageParamUnion{
            openai.UserMessage(prompt),
        },
        MaxTokens:   openai.Int(1024),
        Temperature: openai.Float(0.7),
    })
    if err != nil { return "", fmt.Errorf("llm api: %w", err) }
    if len(resp.Choices) == 0 { return "", errors.New("llm: no choices") }
    return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
