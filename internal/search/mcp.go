package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/young1lin/docsanswer/internal/config"
	"github.com/young1lin/docsanswer/pkg/logger"
)

// NoDocumentationFound is returned when the service answered but had no
// usable result. It is distinct from an error, which means the service could
// not be reached at all.
const NoDocumentationFound = "no documentation found"

// ResultSeparator joins the text chunks of a search result.
const ResultSeparator = "\n\n---\n\n"

const sessionHeader = "Mcp-Session-Id"

// JSON-RPC ids are scoped to one Search run.
const (
	idInitialize = 1
	idToolsList  = 2
	idToolsCall  = 3
)

// ErrUnexpectedStatus wraps non-2xx answers from the search service.
var ErrUnexpectedStatus = errors.New("unexpected status from search service")

// MCPClient queries a documentation-search service over the MCP streamable
// HTTP transport. Each Search runs initialize, tools/list and tools/call in
// order and keeps no state between runs.
type MCPClient struct {
	baseURL         string
	apiKey          string
	toolName        string
	queryParam      string
	protocolVersion string
	clientInfo      mcp.Implementation
	client          *http.Client
	log             *zap.Logger
}

// NewMCPClient creates a search client. A nil httpClient gets one bounded by
// the configured timeout.
func NewMCPClient(cfg *config.SearchConfig, clientVersion string, httpClient *http.Client) *MCPClient {
	toolName := cfg.ToolName
	if toolName == "" {
		toolName = "search"
	}
	queryParam := cfg.QueryParam
	if queryParam == "" {
		queryParam = "query"
	}
	protocolVersion := cfg.ProtocolVersion
	if protocolVersion == "" {
		protocolVersion = config.DefaultProtocolVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	}

	return &MCPClient{
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		toolName:        toolName,
		queryParam:      queryParam,
		protocolVersion: protocolVersion,
		clientInfo:      mcp.Implementation{Name: "docsanswer", Version: clientVersion},
		client:          httpClient,
		log:             logger.Named("search"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      any             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    mcp.ClientCapabilities `json:"capabilities"`
	ClientInfo      mcp.Implementation     `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

type toolsListResult struct {
	Tools []struct {
		Name string `json:"name"`
	} `json:"tools"`
}

type toolCallResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

// exchange is the outcome of one POST: the decoded envelope (nil when the
// body held no payload) and the session id announced by the server.
type exchange struct {
	resp      *rpcResponse
	sessionID string
}

// Search runs the three protocol steps for query. A non-nil error means the
// service was unreachable or erroring at some step; NoDocumentationFound means
// it answered without usable text.
func (c *MCPClient) Search(ctx context.Context, query string) (string, error) {
	log := logger.For(ctx, c.log)

	hello, err := c.post(ctx, "", rpcRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		Method:  string(mcp.MethodInitialize),
		Params: initializeParams{
			ProtocolVersion: c.protocolVersion,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo:      c.clientInfo,
		},
		ID: idInitialize,
	})
	if err != nil {
		return "", fmt.Errorf("initialize: %w", err)
	}
	sessionID := hello.sessionID
	c.logHandshake(log, hello.resp, sessionID)

	tools, err := c.post(ctx, sessionID, rpcRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		Method:  string(mcp.MethodToolsList),
		ID:      idToolsList,
	})
	if err != nil {
		return "", fmt.Errorf("tools/list: %w", err)
	}
	c.logTools(log, tools.resp)

	call, err := c.post(ctx, sessionID, rpcRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		Method:  string(mcp.MethodToolsCall),
		Params: mcp.CallToolParams{
			Name:      c.toolName,
			Arguments: map[string]any{c.queryParam: query},
		},
		ID: idToolsCall,
	})
	if err != nil {
		return "", fmt.Errorf("tools/call %s: %w", c.toolName, err)
	}

	text, ok := c.extractText(log, call.resp)
	if !ok {
		return NoDocumentationFound, nil
	}

	log.Info("documentation search completed",
		zap.String("query", query),
		zap.Int("text_length", len(text)),
	)
	return text, nil
}

// post sends one JSON-RPC request. Only transport problems are errors; an
// undecodable body yields an exchange with a nil resp.
func (c *MCPClient) post(ctx context.Context, sessionID string, req rpcRequest) (*exchange, error) {
	log := logger.For(ctx, c.log)

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if sessionID != "" {
		httpReq.Header.Set(sessionHeader, sessionID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error("search service returned an error status",
			zap.String("method", req.Method),
			zap.Int("status", resp.StatusCode),
			zap.String("body", truncate(string(body), 500)),
		)
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	log.Debug("MCP raw response",
		zap.String("method", req.Method),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.String("body", truncate(string(body), 2000)),
	)

	ex := &exchange{sessionID: resp.Header.Get(sessionHeader)}
	if ex.sessionID == "" {
		ex.sessionID = sessionID
	}

	payload, ok := decodeBody(resp.Header.Get("Content-Type"), body)
	if !ok {
		log.Warn("no JSON-RPC payload in search response", zap.String("method", req.Method))
		return ex, nil
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(payload, &rpcResp); err != nil {
		log.Warn("search response is not a JSON-RPC envelope",
			zap.String("method", req.Method),
			zap.Error(err),
		)
		return ex, nil
	}
	ex.resp = &rpcResp
	return ex, nil
}

// decodeBody reads plain JSON bodies directly and everything else as an
// event stream.
func decodeBody(contentType string, body []byte) (json.RawMessage, bool) {
	if strings.HasPrefix(strings.TrimSpace(contentType), "application/json") {
		trimmed := bytes.TrimSpace(body)
		if !json.Valid(trimmed) {
			return nil, false
		}
		return json.RawMessage(trimmed), true
	}
	return DecodeStream(string(body))
}

func (c *MCPClient) logHandshake(log *zap.Logger, resp *rpcResponse, sessionID string) {
	var result initializeResult
	if resp != nil && resp.Result != nil {
		_ = json.Unmarshal(resp.Result, &result)
	}
	log.Debug("MCP session initialized",
		zap.String("session_id", sessionID),
		zap.String("server", result.ServerInfo.Name),
		zap.String("protocol_version", result.ProtocolVersion),
	)
}

func (c *MCPClient) logTools(log *zap.Logger, resp *rpcResponse) {
	if resp == nil || resp.Result == nil {
		log.Debug("tools/list returned no result")
		return
	}
	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		log.Debug("tools/list result not understood", zap.Error(err))
		return
	}
	names := make([]string, 0, len(result.Tools))
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	log.Info("search service tools", zap.Strings("tools", names))
}

// extractText joins the text entries of a tools/call result.
func (c *MCPClient) extractText(log *zap.Logger, resp *rpcResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	if resp.Error != nil {
		log.Warn("search tool returned a JSON-RPC error",
			zap.Int("code", resp.Error.Code),
			zap.String("message", resp.Error.Message),
		)
		return "", false
	}
	if resp.Result == nil {
		return "", false
	}

	var result toolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		log.Warn("failed to parse tools/call result", zap.Error(err))
		return "", false
	}
	if result.IsError {
		var msg string
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		log.Warn("search tool reported an error", zap.String("message", truncate(msg, 500)))
		return "", false
	}

	texts := make([]string, 0, len(result.Content))
	for _, item := range result.Content {
		if item.Type == "text" && item.Text != "" {
			texts = append(texts, item.Text)
		}
	}
	if len(texts) == 0 {
		return "", false
	}
	return strings.Join(texts, ResultSeparator), true
}
