// Package rpc maps JSON-RPC 2.0 calls onto the public api.
package rpc

import (
	"bytes"
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"massa-api/api"
	"massa-api/apierr"
	"massa-api/logger"
	"massa-api/metrics"
	"massa-api/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const version = "2.0"

// Request is one JSON-RPC call. A request without id is a notification.
type Request struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id,omitempty"`
	Method  string              `json:"method"`
	Params  jsoniter.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id"`
	Result  interface{}         `json:"result,omitempty"`
	Error   *Error              `json:"error,omitempty"`
}

type method struct {
	params []string
	call   func(ctx context.Context, p params) (interface{}, error)
}

// Dispatcher routes calls by method name. It holds no state besides the route table.
type Dispatcher struct {
	methods map[string]method
}

func NewDispatcher(public api.Public) *Dispatcher {
	d := &Dispatcher{methods: map[string]method{
		"get_status": {call: func(ctx context.Context, _ params) (interface{}, error) {
			return public.GetStatus(ctx)
		}},
		"get_cliques": {call: func(ctx context.Context, _ params) (interface{}, error) {
			return public.GetCliques(ctx)
		}},
		"get_stakers": {call: func(ctx context.Context, _ params) (interface{}, error) {
			return public.GetStakers(ctx)
		}},
		"get_operations": {params: []string{"operation_ids"}, call: func(ctx context.Context, p params) (interface{}, error) {
			var ids []models.OperationId
			if err := p.decode("operation_ids", true, &ids); err != nil {
				return nil, err
			}
			return public.GetOperations(ctx, ids)
		}},
		"get_endorsements": {params: []string{"endorsement_ids"}, call: func(ctx context.Context, p params) (interface{}, error) {
			var ids []models.EndorsementId
			if err := p.decode("endorsement_ids", true, &ids); err != nil {
				return nil, err
			}
			return public.GetEndorsements(ctx, ids)
		}},
		"get_block": {params: []string{"block_id"}, call: func(ctx context.Context, p params) (interface{}, error) {
			var id models.BlockId
			if err := p.decode("block_id", true, &id); err != nil {
				return nil, err
			}
			return public.GetBlock(ctx, id)
		}},
		"get_graph_interval": {params: []string{"time_start", "time_end"}, call: func(ctx context.Context, p params) (interface{}, error) {
			var start, end *uint64
			if err := p.decode("time_start", false, &start); err != nil {
				return nil, err
			}
			if err := p.decode("time_end", false, &end); err != nil {
				return nil, err
			}
			return public.GetGraphInterval(ctx, start, end)
		}},
		"send_operations": {params: []string{"operations"}, call: func(ctx context.Context, p params) (interface{}, error) {
			var ops []models.Operation
			if err := p.decode("operations", true, &ops); err != nil {
				return nil, err
			}
			return public.SendOperations(ctx, ops)
		}},
	}}
	return d
}

// Methods lists the routed method names
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	return names
}

// Handle serves a single call or a batch and returns the encoded reply. The
// reply is nil when every call was a notification.
func (d *Dispatcher) Handle(ctx context.Context, body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return d.handleBatch(ctx, trimmed)
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return encode(errorResponse(nil, newError(CodeParseError, "parse error")))
	}
	resp := d.Call(ctx, &req)
	if resp == nil {
		return nil
	}
	return encode(resp)
}

func (d *Dispatcher) handleBatch(ctx context.Context, body []byte) []byte {
	var batch []jsoniter.RawMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		return encode(errorResponse(nil, newError(CodeParseError, "parse error")))
	}
	if len(batch) == 0 {
		return encode(errorResponse(nil, newError(CodeInvalidRequest, "empty batch")))
	}

	responses := make([]*Response, 0, len(batch))
	for _, raw := range batch {
		var req Request
		if err := json.Unmarshal(raw, &req); err != nil {
			responses = append(responses, errorResponse(nil, newError(CodeInvalidRequest, "invalid request")))
			continue
		}
		if resp := d.Call(ctx, &req); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil
	}
	return encode(responses)
}

// Call executes one request. It returns nil for notifications.
func (d *Dispatcher) Call(ctx context.Context, req *Request) *Response {
	notification := len(req.ID) == 0
	reply := func(resp *Response) *Response {
		if notification {
			return nil
		}
		return resp
	}

	if req.JSONRPC != version || req.Method == "" {
		return reply(errorResponse(req.ID, newError(CodeInvalidRequest, "invalid request")))
	}
	m, ok := d.methods[req.Method]
	if !ok {
		metrics.RPCRequests.WithLabelValues("unknown", "MethodNotFound").Inc()
		return reply(errorResponse(req.ID, newError(CodeMethodNotFound, "method not found: "+req.Method)))
	}

	start := time.Now()
	result, err := d.invoke(ctx, m, req)
	metrics.RPCDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := apierr.KindOf(err)
		metrics.RPCRequests.WithLabelValues(req.Method, string(kind)).Inc()
		if kind == apierr.KindInternal {
			logger.Logger.Error("RPC call failed", zap.String("method", req.Method), zap.Error(err))
		} else {
			logger.Logger.Debug("RPC call rejected", zap.String("method", req.Method), zap.Error(err))
		}
		return reply(errorResponse(req.ID, toError(err)))
	}
	metrics.RPCRequests.WithLabelValues(req.Method, "ok").Inc()
	return reply(&Response{JSONRPC: version, ID: req.ID, Result: result})
}

func (d *Dispatcher) invoke(ctx context.Context, m method, req *Request) (interface{}, error) {
	p, err := parseParams(req.Params, m.params)
	if err != nil {
		return nil, err
	}
	return m.call(ctx, p)
}

func errorResponse(id jsoniter.RawMessage, e *Error) *Response {
	if len(id) == 0 {
		id = jsoniter.RawMessage("null")
	}
	return &Response{JSONRPC: version, ID: id, Error: e}
}

func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Logger.Error("Failed to encode RPC response", zap.Error(err))
		data, _ = json.Marshal(errorResponse(nil, newError(CodeInternalError, "internal error")))
	}
	return data
}
