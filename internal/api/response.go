package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/gateway"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/grid"
)

// maxBodyBytes bounds request bodies; queries are small.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// outcomeBody is the JSON form of a gateway.Outcome. Outcome tells clients
// whether the request was rejected before execution or failed during it.
type outcomeBody struct {
	Outcome   gateway.OutcomeKind  `json:"outcome"`
	Reason    string               `json:"reason,omitempty"`
	Message   string               `json:"message"`
	Result    *gateway.QueryResult `json:"result,omitempty"`
	Window    *grid.Window         `json:"window,omitempty"`
	RequestID string               `json:"request_id,omitempty"`
}

func newOutcomeBody(out gateway.Outcome) outcomeBody {
	body := outcomeBody{Outcome: out.Kind(), Message: out.Message()}
	switch o := out.(type) {
	case gateway.Success:
		body.Result = o.Result
	case gateway.Rejected:
		body.Reason = string(o.Reason)
	case gateway.Failed:
		body.Reason = string(o.Reason)
	}
	return body
}

// outcomeStatus maps an outcome to its HTTP status: rejections are the
// client's to fix (422), timeouts are 504 and other failures 502.
func outcomeStatus(out gateway.Outcome) int {
	switch o := out.(type) {
	case gateway.Success:
		return http.StatusOK
	case gateway.Rejected:
		return http.StatusUnprocessableEntity
	case gateway.Failed:
		if o.Reason == gateway.FailureTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorBody{Code: status, Message: msg, RequestID: RequestIDFromContext(r.Context())})
}

// decodeJSON reads one JSON object from the body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
