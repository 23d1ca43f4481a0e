package cerr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kazz187/timeguild/pkg/clog"
)

const maxRequestBody = 16 << 20

type responseReceiverKey struct{}

type responseReceiver struct {
	response any
	status   int
	err      error
	streamed bool
}

func contextWithResponseReceiver(ctx context.Context, err *responseReceiver) context.Context {
	return context.WithValue(ctx, responseReceiverKey{}, err)
}

func responseReceiverFromContext(ctx context.Context) *responseReceiver {
	if err, ok := ctx.Value(responseReceiverKey{}).(*responseReceiver); ok {
		return err
	}
	return nil
}

func SetJSONResponse(ctx context.Context, response any) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.response = response
	}
}

// SetCreatedJSONResponse is SetJSONResponse with a 201 status.
func SetCreatedJSONResponse(ctx context.Context, response any) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.response = response
		rr.status = http.StatusCreated
	}
}

// SetStreamed tells the middleware that the handler wrote the response
// itself (e.g. an event stream) and nothing more must be written.
func SetStreamed(ctx context.Context) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.streamed = true
	}
}

func SetJSONError(ctx context.Context, err error) {
	if rr := responseReceiverFromContext(ctx); rr != nil {
		rr.err = err
	}
}

func SetNewJSONError(ctx context.Context, code Code, msg string, err error) {
	SetJSONError(ctx, NewError(code, msg, err))
}

// DecodeJSON reads the request body into v. Malformed bodies are reported as
// InvalidArgument.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewError(InvalidArgument, "malformed request body", fmt.Errorf("failed to decode request: %w", err))
	}
	return nil
}

func NewConvertErrorChiMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			rr := &responseReceiver{}
			ctx := contextWithResponseReceiver(r.Context(), rr)
			next.ServeHTTP(rw, r.WithContext(ctx))
			if rr.streamed {
				if rr.err != nil {
					clog.AddError(ctx, rr.err)
				}
				return
			}
			ExtractToHTTPResponse(ctx, rw, rr)
		})
	}
}
