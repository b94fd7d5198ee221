// Package runtime runs agents against an OpenAI-compatible chat backend
// with a bounded tool-use loop.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/seocho-project/graphqa/pkg/agent"
	"github.com/seocho-project/graphqa/pkg/models"
)

// DefaultMaxIterations bounds the tool-use loop. On exhaustion the adapter
// forces a final answer with no tools offered.
const DefaultMaxIterations = 8

// ErrNoChoices is returned when the backend answers with an empty choice
// list.
var ErrNoChoices = errors.New("chat backend returned no choices")

// ChatClient is the slice of the go-openai client the adapter needs. Tests
// inject fakes; production wires *openai.Client.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Adapter implements agent.Runner over a ChatClient.
type Adapter struct {
	client        ChatClient
	model         string
	maxIterations int
	logger        *slog.Logger
}

// New creates an Adapter. maxIterations below 1 falls back to
// DefaultMaxIterations.
func New(client ChatClient, model string, maxIterations int, logger *slog.Logger) *Adapter {
	if maxIterations < 1 {
		maxIterations = DefaultMaxIterations
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		client:        client,
		model:         model,
		maxIterations: maxIterations,
		logger:        logger.With("component", "runtime"),
	}
}

var tracer = otel.Tracer("graphqa/agent/runtime")

// Run drives the tool-use loop for one agent. Each model call and tool
// execution checks ctx first, so cancellation is honored between steps.
func (ad *Adapter) Run(ctx context.Context, a *agent.Agent, prompt string, rc *agent.RunContext) (*agent.RunOutput, error) {
	ctx, span := tracer.Start(ctx, "agent.run", oteltrace.WithAttributes(
		attribute.String("agent.id", a.ID),
		attribute.String("db", a.Database),
	))
	defer span.End()

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: a.Instructions},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	tools := toolSpecs(a.Tools)
	out := &agent.RunOutput{}

	for i := 0; i < ad.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := ad.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    ad.model,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return nil, fmt.Errorf("chat completion: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, ErrNoChoices
		}
		out.Usage.Add(models.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		})

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			out.Text = msg.Content
			return out, nil
		}

		messages = append(messages, msg)
		for _, call := range msg.ToolCalls {
			result := ad.execTool(ctx, a, rc, call, out)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    result,
			})
		}
	}

	// Iteration budget exhausted: demand a final answer with no tools on
	// offer so the model cannot keep calling them.
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: "Tool budget exhausted. Give your final answer now using only the information gathered above.",
	})
	resp, err := ad.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    ad.model,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("forced conclusion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	out.Usage.Add(models.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	})
	out.Text = resp.Choices[0].Message.Content
	return out, nil
}

// execTool runs one tool call in its own span. Tool failures are reported
// back to the model as content rather than failing the run; the model can
// recover or conclude without the result.
func (ad *Adapter) execTool(ctx context.Context, a *agent.Agent, rc *agent.RunContext, call openai.ToolCall, out *agent.RunOutput) string {
	ctx, span := tracer.Start(ctx, "agent.tool", oteltrace.WithAttributes(
		attribute.String("tool.name", call.Function.Name),
		attribute.String("db", a.Database),
	))
	defer span.End()

	record := agent.ToolCallRecord{Name: call.Function.Name, Args: call.Function.Arguments}

	tool, ok := a.Tool(call.Function.Name)
	if !ok {
		record.Error = "unknown tool"
		out.ToolCalls = append(out.ToolCalls, record)
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			record.Error = err.Error()
			out.ToolCalls = append(out.ToolCalls, record)
			return fmt.Sprintf("error: malformed arguments: %v", err)
		}
	}

	result, err := tool.Handler(ctx, rc, args)
	if err != nil {
		span.SetAttributes(attribute.String("tool.error", err.Error()))
		ad.logger.Warn("tool call failed", "tool", call.Function.Name, "db", a.Database, "error", err)
		record.Error = err.Error()
		out.ToolCalls = append(out.ToolCalls, record)
		return fmt.Sprintf("error: %v", err)
	}
	if strings.HasPrefix(result, "[CACHED] ") {
		span.SetAttributes(attribute.String("cache", "hit"))
	}
	record.Result = result
	out.ToolCalls = append(out.ToolCalls, record)
	return result
}

func toolSpecs(tools []agent.Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	specs := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.ParametersSchema,
			},
		})
	}
	return specs
}
