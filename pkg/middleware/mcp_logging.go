package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-canvas/pkg/logging"
)

// MCPRequestLogger logs MCP JSON-RPC tool calls and their outcome at DEBUG level.
// SQL arguments are flattened and truncated; graph arguments are summarised.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}
			toolName := rpcReq.Params.Name

			logger.Debug("MCP request",
				zap.String("method", rpcReq.Method),
				zap.String("tool", toolName),
				zap.Any("arguments", summarizeArguments(rpcReq.Params.Arguments)),
			)

			recorder := &mcpResponseRecorder{ResponseWriter: w, body: &bytes.Buffer{}}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err != nil {
				// Streamed (SSE) responses are not plain JSON.
				return
			}

			switch {
			case rpcResp.Error != nil:
				logger.Debug("MCP response error",
					zap.String("tool", toolName),
					zap.Int("error_code", rpcResp.Error.Code),
					zap.String("error_message", rpcResp.Error.Message),
					zap.Duration("duration", duration))
			case rpcResp.Result.IsError:
				logger.Debug("MCP tool error",
					zap.String("tool", toolName),
					zap.Duration("duration", duration))
			default:
				logger.Debug("MCP response success",
					zap.String("tool", toolName),
					zap.Duration("duration", duration))
			}
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type mcpResponseRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var sensitiveArgumentKeys = []string{"password", "secret", "token", "credential"}

// summarizeArguments redacts secrets, shortens SQL and replaces graphs with their size.
func summarizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	result := make(map[string]any, len(args))
	for k, v := range args {
		lowerKey := strings.ToLower(k)
		if containsAny(lowerKey, sensitiveArgumentKeys) {
			result[k] = logging.RedactedText
			continue
		}

		switch val := v.(type) {
		case string:
			if lowerKey == "sql" || lowerKey == "query" {
				result[k] = logging.SanitizeQuery(val)
			} else {
				result[k] = logging.TruncateString(val, logging.MaxQueryLogLength)
			}
		case map[string]any:
			if nodes, ok := val["nodes"].([]any); ok {
				edges, _ := val["edges"].([]any)
				result[k] = map[string]int{"nodes": len(nodes), "edges": len(edges)}
			} else {
				result[k] = "{...}"
			}
		default:
			result[k] = v
		}
	}
	return result
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
