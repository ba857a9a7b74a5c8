package lib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/TecharoHQ/powhash/internal"
	"github.com/TecharoHQ/powhash/lib/binding"
	"github.com/TecharoHQ/powhash/lib/digest"
	"github.com/TecharoHQ/powhash/lib/dispatch"
)

// Buffer is the JSON shape of a byte buffer on the RPC endpoint:
//
//	{"type": "Buffer", "data": [104, 105]}
type Buffer struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// BufferOf converts data into its RPC form.
func BufferOf(data []byte) Buffer {
	result := Buffer{Type: "Buffer", Data: make([]int, len(data))}
	for i, b := range data {
		result.Data[i] = int(b)
	}
	return result
}

func (b Buffer) bytes() ([]byte, bool) {
	result := make([]byte, len(b.Data))
	for i, v := range b.Data {
		if v < 0 || v > 255 {
			return nil, false
		}
		result[i] = byte(v)
	}
	return result, true
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Result *Buffer `json:"result,omitempty"`
	Digest string  `json:"digest,omitempty"`
}

// decodeParam turns one RPC parameter into the value handed to the binding.
// Buffers become []byte; everything else is passed through as decoded JSON so
// the binding can reject it.
func decodeParam(pos int, raw json.RawMessage) (any, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var buf Buffer
		if err := json.Unmarshal(raw, &buf); err == nil && buf.Type == "Buffer" {
			data, ok := buf.bytes()
			if !ok {
				return nil, &binding.ArgumentError{Position: pos, Reason: "buffer bytes must be between 0 and 255"}
			}
			return data, nil
		}
	}

	var result any
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &binding.ArgumentError{Position: pos, Reason: fmt.Sprintf("can't decode argument: %v", err)}
	}

	return result, nil
}

// RPC exposes the untyped call boundary as JSON:
//
//	{"method": "hash", "params": [<buffer>, <fast?>]}
//	{"method": "hashAsync", "params": [<buffer>, <fast?>]}
//
// Extra params to hash are ignored, as they are by Binding.Hash.
// For hashAsync the server supplies the completion sink and waits for it, so
// both methods answer with the digest.
func (s *Server) RPC(w http.ResponseWriter, r *http.Request) {
	lg := internal.GetRequestLogger(r)

	body, err := s.readBody(w, r)
	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondWithError(w, lg, &binding.ArgumentError{Position: 0, Reason: fmt.Sprintf("request is not valid JSON: %v", err)})
		return
	}

	args := make([]any, 0, len(req.Params)+1)
	for i, raw := range req.Params {
		arg, err := decodeParam(i+1, raw)
		if err != nil {
			respondWithError(w, lg, err)
			return
		}
		args = append(args, arg)
	}

	lg = lg.With("rpc_method", req.Method, "params", len(args), "call", internal.FastHash(string(body)))

	var d digest.Digest
	switch req.Method {
	case "hash":
		d, err = s.binding.Hash(args...)
	case "hashAsync":
		// The server owns the sink slot, so the client may send at most the
		// buffer and the flag.
		if len(args) == 0 {
			err = &binding.ArgumentError{Position: 1, Reason: "at least one argument is required"}
			break
		}
		if len(args) > 2 {
			err = &binding.ArgumentError{Position: 3, Reason: "hashAsync takes at most two params, the server supplies the callback"}
			break
		}
		fut := dispatch.NewFuture()
		if err = s.binding.HashAsync(append(args, fut)...); err == nil {
			d, err = fut.Wait(r.Context())
		}
	default:
		err = &binding.ArgumentError{Position: 0, Reason: fmt.Sprintf("unknown method %q", req.Method)}
	}

	if err != nil {
		respondWithError(w, lg, err)
		return
	}

	result := BufferOf(d[:])
	writeJSON(w, lg, http.StatusOK, rpcResponse{
		Result: &result,
		Digest: d.String(),
	})
}
