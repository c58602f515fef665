package aggregator

import (
	"encoding/json"
	"time"

	"github.com/aristath/posenv/internal/domain"
	"github.com/aristath/posenv/internal/status"
)

// RequestData mirrors what the client sent, before any validation.
type RequestData struct {
	Method      string            `json:"method"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Body        json.RawMessage   `json:"body,omitempty"`
}

// Envelope is the response body of the position environment endpoint. The
// same document is written to the request log.
type Envelope struct {
	RequestID    string                     `json:"request_id"`
	Timestamp    time.Time                  `json:"timestamp"`
	DurationMs   int64                      `json:"duration_ms"`
	Cached       bool                       `json:"cached"`
	ServerStatus status.ServerPhase         `json:"server_status"`
	CurlCommand  string                     `json:"curl_command,omitempty"`
	RequestData  RequestData                `json:"request_data"`
	ResponseData domain.OrchestrationResult `json:"response_data"`
	Error        bool                       `json:"error"`
	ErrorStack   string                     `json:"error_stack"`
	StorageError string                     `json:"storage_error,omitempty"`
}

// newRequestData captures the raw request. The last value wins for repeated
// query keys.
func newRequestData(in Inbound) RequestData {
	rd := RequestData{Method: in.Method}
	if in.Method == methodGet {
		rd.QueryParams = make(map[string]string, len(in.Query))
		for k, v := range in.Query {
			if len(v) > 0 {
				rd.QueryParams[k] = v[len(v)-1]
			}
		}
		return rd
	}
	if json.Valid(in.Body) {
		rd.Body = json.RawMessage(in.Body)
	} else if len(in.Body) > 0 {
		quoted, _ := json.Marshal(string(in.Body))
		rd.Body = quoted
	}
	return rd
}

// curlCommand builds a command that replays the request.
func curlCommand(in Inbound) string {
	if in.BaseURL == "" {
		return ""
	}
	if in.Method == methodGet {
		return "curl -X GET '" + in.BaseURL + "?" + in.Query.Encode() + "'"
	}
	return "curl -X POST '" + in.BaseURL + "' -H 'Content-Type: application/json' -d '" + string(compactJSON(in.Body)) + "'"
}

func compactJSON(data []byte) []byte {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return data
	}
	out, err := json.Marshal(v)
	if err != nil {
		return data
	}
	return out
}
