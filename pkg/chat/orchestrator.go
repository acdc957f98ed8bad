package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rayhq/docuchat/internal/observability"
	"github.com/rayhq/docuchat/internal/tracing"
	"github.com/rayhq/docuchat/pkg/embedding"
	"github.com/rayhq/docuchat/pkg/llm"
	"github.com/rayhq/docuchat/pkg/session"
	"github.com/rayhq/docuchat/pkg/store"
	"github.com/rayhq/docuchat/pkg/websearch"
)

// ErrEmptyMessage indicates an empty user message.
var ErrEmptyMessage = errors.New("message cannot be empty")

// Capabilities selects which tools the orchestrator offers the model.
type Capabilities struct {
	Retrieval bool
	WebSearch bool
}

// Variant names the capability combination for logs and metrics.
func (c Capabilities) Variant() string {
	switch {
	case c.Retrieval && c.WebSearch:
		return "unified"
	case c.WebSearch:
		return "websearch"
	case c.Retrieval:
		return "retrieval"
	default:
		return "basic"
	}
}

// Reply is the outcome of one conversation turn.
type Reply struct {
	Content   string         `json:"content"`
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
	Usage     *llm.Usage     `json:"usage,omitempty"`
}

// Orchestrator runs conversation turns: it assembles history, offers
// tools per its capability set, executes the model's tool calls and
// records the exchange in session memory.
type Orchestrator struct {
	provider   llm.Provider
	embedder   embedding.Provider
	store      *store.Store
	sessions   *session.Cache
	search     websearch.Provider
	caps       Capabilities
	model      string
	temp       float64
	maxTokens  int
	maxResults int
	minScore   float64
	maxTurns   int
	logger     zerolog.Logger
}

// New creates an orchestrator.
func New(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("model provider is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session cache is required")
	}
	if cfg.Capabilities.Retrieval && (cfg.Store == nil || cfg.Embedder == nil) {
		return nil, errors.New("retrieval requires a store and an embedder")
	}
	if cfg.Capabilities.WebSearch && cfg.Search == nil {
		return nil, errors.New("web search requires a search provider")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}

	observability.EnsureRegistered()

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	maxTurns := cfg.MaxToolTurns
	if maxTurns <= 0 {
		maxTurns = 10
	}

	return &Orchestrator{
		provider:   cfg.Provider,
		embedder:   cfg.Embedder,
		store:      cfg.Store,
		sessions:   cfg.Sessions,
		search:     cfg.Search,
		caps:       cfg.Capabilities,
		model:      cfg.Model,
		temp:       cfg.Temperature,
		maxTokens:  cfg.MaxTokens,
		maxResults: maxResults,
		minScore:   cfg.MinScore,
		maxTurns:   maxTurns,
		logger:     cfg.Logger,
	}, nil
}

// OrchestratorConfig holds the collaborators and tuning for New.
type OrchestratorConfig struct {
	Provider     llm.Provider
	Embedder     embedding.Provider
	Store        *store.Store
	Sessions     *session.Cache
	Search       websearch.Provider
	Capabilities Capabilities

	Model        string
	Temperature  float64
	MaxTokens    int
	MaxResults   int
	MinScore     float64
	MaxToolTurns int
	Logger       zerolog.Logger
}

// Capabilities returns the orchestrator's capability set.
func (o *Orchestrator) Capabilities() Capabilities {
	return o.caps
}

// Chat runs one conversation turn for a session.
func (o *Orchestrator) Chat(ctx context.Context, sessionKey, message string) (*Reply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	started := time.Now()
	ctx = tracing.WithSessionID(ctx, sessionKey)
	logger := tracing.LoggerFromContext(ctx, o.logger)

	if _, err := o.sessions.GetOrCreate(sessionKey); err != nil {
		return nil, err
	}

	// Windowed history, then the new user turn
	messages := []llm.Message{}
	for _, m := range o.sessions.History(sessionKey) {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})

	if err := o.sessions.Append(sessionKey, session.Message{Role: "user", Content: message}); err != nil {
		return nil, err
	}

	reply, err := o.runToolLoop(ctx, messages)
	if err != nil {
		logger.Error().Err(err).Msg("Chat turn failed")
		return nil, err
	}

	if err := o.sessions.Append(sessionKey, session.Message{Role: "assistant", Content: reply.Content}); err != nil {
		return nil, err
	}

	observability.RecordChatTurn(o.caps.Variant())
	logger.Info().
		Str("variant", o.caps.Variant()).
		Int("tool_calls", len(reply.ToolCalls)).
		Dur("elapsed", time.Since(started)).
		Msg("Chat turn completed")

	return reply, nil
}

// ClearSession drops a session's history.
func (o *Orchestrator) ClearSession(sessionKey string) {
	o.sessions.Clear(sessionKey)
}

func (o *Orchestrator) tools() []llm.Tool {
	tools := []llm.Tool{}
	if o.caps.Retrieval {
		tools = append(tools, searchDocumentsTool())
	}
	if o.caps.WebSearch {
		tools = append(tools, searchWebTool())
	}
	return tools
}

// runToolLoop drives the model until it answers without tool calls or
// the turn limit is hit.
func (o *Orchestrator) runToolLoop(ctx context.Context, messages []llm.Message) (*Reply, error) {
	tools := o.tools()
	prompt := systemPrompt(o.caps, time.Now())
	allToolCalls := []llm.ToolCall{}

	for turn := 0; turn < o.maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		response, err := o.provider.Chat(ctx, llm.Request{
			Model:        o.model,
			Messages:     messages,
			Tools:        tools,
			Temperature:  o.temp,
			MaxTokens:    o.maxTokens,
			SystemPrompt: prompt,
		})
		if err != nil {
			observability.RecordCollaboratorError("llm")
			return nil, err
		}

		if len(response.ToolCalls) == 0 {
			return &Reply{
				Content:   response.Content,
				ToolCalls: allToolCalls,
				Usage:     response.Usage,
			}, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    o.executeTool(ctx, call),
				ToolCallID: call.ID,
			})
		}

		allToolCalls = append(allToolCalls, response.ToolCalls...)
	}

	return nil, fmt.Errorf("maximum tool execution turns exceeded")
}

// executeTool runs one tool call. Failures come back as text for the
// model rather than aborting the turn.
func (o *Orchestrator) executeTool(ctx context.Context, call llm.ToolCall) string {
	switch call.Name {
	case toolSearchDocuments:
		if !o.caps.Retrieval {
			return fmt.Sprintf("Error: tool %s is not available.", call.Name)
		}
		if err := validateArguments(searchDocumentsTool(), call.Arguments); err != nil {
			return "Error: " + err.Error()
		}
		return o.searchDocuments(ctx, call.Arguments)

	case toolSearchWeb:
		if !o.caps.WebSearch {
			return fmt.Sprintf("Error: tool %s is not available.", call.Name)
		}
		if err := validateArguments(searchWebTool(), call.Arguments); err != nil {
			return "Error: " + err.Error()
		}
		return o.searchWeb(ctx, call.Arguments)

	default:
		return fmt.Sprintf("Error: unknown tool %s.", call.Name)
	}
}

func (o *Orchestrator) searchDocuments(ctx context.Context, args map[string]interface{}) string {
	query := args["query"].(string)

	maxResults := o.maxResults
	if v, ok := args["max_results"].(float64); ok {
		maxResults = int(v)
	}

	vector, err := o.embedder.Embed(ctx, query)
	if err != nil {
		observability.RecordCollaboratorError("embedding")
		return "Error: document search is temporarily unavailable."
	}

	matches, err := o.store.Search(ctx, vector, maxResults, o.minScore)
	if err != nil {
		observability.RecordCollaboratorError("store")
		return "Error: document search is temporarily unavailable."
	}

	return formatMatches(query, matches)
}

func (o *Orchestrator) searchWeb(ctx context.Context, args map[string]interface{}) string {
	query := args["query"].(string)

	results, err := o.search.Search(ctx, query, o.maxResults)
	if err != nil {
		observability.RecordCollaboratorError("websearch")
		return "Error: web search is temporarily unavailable."
	}

	return websearch.FormatResults(query, results)
}

// formatMatches renders retrieved fragments as a numbered context block.
func formatMatches(query string, matches []store.Match) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No document passages found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Document passages for %q:\n", query)
	for i, m := range matches {
		name := ""
		if v, ok := m.Metadata["fileName"].(string); ok {
			name = v
		}
		fmt.Fprintf(&b, "%d. [%s, score %.2f] %s\n", i+1, name, m.Score, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}
