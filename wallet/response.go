package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/RustLabx/rstoken/lib/block/types"
	"github.com/RustLabx/rstoken/lib/msg"
	"github.com/RustLabx/rstoken/lib/store"
)

// Errors returned to client requests.
var (
	ErrBadRequest = errors.New("bad request")
	ErrChange     = errors.New("invalid change: has to be either 0 / 1 or external / change")
	ErrNoNet      = errors.New("network not available")
	ErrNoEndpoint = errors.New("no such endpoint")
	ErrNoStore    = errors.New("no database configured")
	ErrNoBroker   = errors.New("no message broker configured")
	ErrNoHD       = errors.New("no HD wallet configured")
)

const success = "success"

// Response defines the data structure returned to the client making the http request.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// data is the payload of successful responses.
type data map[string]interface{}

// statusOf maps an error to the http status replied.
func statusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, ErrNoStore), errors.Is(err, ErrNoBroker), errors.Is(err, ErrNoHD),
		errors.Is(err, msg.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, types.ErrKeyNotFound), errors.Is(err, types.ErrAdapterNotFound), errors.Is(err, ErrNoNet), errors.Is(err, ErrNoEndpoint),
		errors.Is(err, store.ErrTxNotFound), errors.Is(err, store.ErrAddrNotFound),
		errors.Is(err, store.ErrDataNotFound), errors.Is(err, types.ErrNoBlock):
		return http.StatusNotFound
	case errors.Is(err, types.ErrBroadcastFailed), errors.Is(err, types.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, types.ErrChainMismatch), errors.Is(err, types.ErrUnsupportedChain),
		errors.Is(err, types.ErrInvalidAddress), errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrInvalidHash), errors.Is(err, types.ErrInvalidTx),
		errors.Is(err, types.ErrInvalidKeyMaterial), errors.Is(err, types.ErrSignerMismatch),
		errors.Is(err, ErrBadRequest), errors.Is(err, ErrChange), errors.Is(err, msg.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// reply writes the response envelope for d or err, status overrides the success status when not zero.
func reply(rw http.ResponseWriter, r *http.Request, status int, d interface{}, err error) {
	res := Response{Status: status, Message: success, Data: d}

	if err != nil {
		res = Response{Status: statusOf(err), Message: err.Error()}
	} else if status == 0 {
		res.Status = http.StatusOK
	}

	l := zerolog.Ctx(r.Context())

	ev := l.Info()
	if res.Status >= http.StatusInternalServerError {
		ev = l.Error()
	} else if err != nil {
		ev = l.Warn()
	}

	ev.Int("status", res.Status).Err(err).Msg("httpreq")

	writeJSON(rw, res.Status, res)
}

func writeJSON(rw http.ResponseWriter, status int, v interface{}) {
	rw.Header().Set("Content-Type", "application/json;charset=utf8")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

// decode reads the json body of r into v.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err) //nolint:errorlint // decoder errors are not classified
	}

	return nil
}
