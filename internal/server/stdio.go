// Package server hosts the tool dispatch surface on the two supported
// transports: line-delimited JSON-RPC over stdio, and a small REST adapter.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/haasonsaas/webagent/internal/tools"
)

const maxLineBytes = 1024 * 1024 // 1MB buffer

// rpcRequest is one line-delimited JSON-RPC request frame.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  rpcParams       `json:"params"`
}

type rpcParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// JSON-RPC error codes used by the stdio transport.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInternalError  = -32603
)

// StdioServer serves tool calls over stdin/stdout. One request per line,
// one response per line; logs go to stderr so stdout stays clean protocol.
type StdioServer struct {
	registry *tools.Registry
	logger   *slog.Logger
	in       io.Reader
	out      io.Writer
}

// NewStdioServer creates a stdio server reading from in and writing to out.
func NewStdioServer(registry *tools.Registry, logger *slog.Logger, in io.Reader, out io.Writer) *StdioServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioServer{registry: registry, logger: logger, in: in, out: out}
}

// Run processes requests until the input closes or the context ends.
func (s *StdioServer) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, maxLineBytes), maxLineBytes)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.handleLine(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdio: %w", err)
	}
	return nil
}

func (s *StdioServer) handleLine(ctx context.Context, line []byte) {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		s.respond(rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: codeParseError, Message: "parse error: " + err.Error()},
		})
		return
	}

	response := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "tools/list":
		response.Result = map[string]any{"tools": tools.Definitions()}

	case "tools/call":
		result, err := s.registry.Dispatch(ctx, req.Params.Name, req.Params.Arguments)
		if err != nil {
			response.Error = &rpcError{Code: codeInternalError, Message: err.Error()}
		} else {
			response.Result = result
		}

	default:
		response.Error = &rpcError{Code: codeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
	}
	s.respond(response)
}

func (s *StdioServer) respond(response rpcResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("encode response failed", "error", err)
		return
	}
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		s.logger.Error("write response failed", "error", err)
	}
}
