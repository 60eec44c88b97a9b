package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/pipeline"
	"github.com/young1lin/docsanswer/pkg/logger"
)

const (
	askToolName  = "ask_docs"
	askToolParam = "question"
)

// newMCPHandler exposes answerer as the ask_docs tool over the streamable
// HTTP transport.
func newMCPHandler(answerer Answerer, version string) http.Handler {
	log := logger.Named("mcp")

	mcpServer := server.NewMCPServer(
		"docsanswer",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Use the ask_docs tool to get answers grounded in the product documentation."),
		server.WithRecovery(),
		server.WithHooks(newMCPHooks(log.Named("hooks"))),
	)

	tool := mcp.NewTool(
		askToolName,
		mcp.WithDescription("Answer a question using the product documentation."),
		mcp.WithString(
			askToolParam,
			mcp.Required(),
			mcp.Description("The user's question in plain text."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	)
	mcpServer.AddTool(tool, askDocsTool(answerer, log))

	return server.NewStreamableHTTPServer(
		mcpServer,
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return logger.ContextWithTraceID(ctx, logger.TraceIDFromContext(r.Context()))
		}),
	)
}

func askDocsTool(answerer Answerer, base *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString(askToolParam)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return mcp.NewToolResultError("question cannot be empty"), nil
		}

		res, err := answerer.Run(ctx, question)
		if err != nil {
			logger.For(ctx, base).Error("ask_docs failed", zap.Error(err))
			return mcp.NewToolResultError(pipeline.Guidance(err)), nil
		}
		return mcp.NewToolResultText(res.Answer), nil
	}
}

func newMCPHooks(log *zap.Logger) *server.Hooks {
	hooks := &server.Hooks{}

	hooks.AddBeforeAny(func(ctx context.Context, id any, method mcp.MCPMethod, message any) {
		logger.For(ctx, log).Debug("mcp request received", hookFields(ctx, id, method)...)
	})

	hooks.AddOnSuccess(func(ctx context.Context, id any, method mcp.MCPMethod, message any, result any) {
		logger.For(ctx, log).Info("mcp request succeeded", hookFields(ctx, id, method)...)
	})

	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		fields := append(hookFields(ctx, id, method), zap.Error(err))
		logger.For(ctx, log).Error("mcp request failed", fields...)
	})

	return hooks
}

func hookFields(ctx context.Context, id any, method mcp.MCPMethod) []zap.Field {
	fields := []zap.Field{
		zap.Any("request_id", id),
		zap.String("method", string(method)),
	}
	if session := server.ClientSessionFromContext(ctx); session != nil {
		fields = append(fields, zap.String("session_id", session.SessionID()))
	}
	return fields
}
