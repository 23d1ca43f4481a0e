package cerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/timeguild/pkg/storage"
)

func serve(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(body))
	NewConvertErrorChiMiddleware()(h).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_JSONResponse(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {
		SetJSONResponse(r.Context(), map[string]string{"name": "alpha"})
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"name":"alpha"}`, rec.Body.String())
}

func TestMiddleware_Created(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {
		SetCreatedJSONResponse(r.Context(), map[string]int{"n": 1})
	}, "")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMiddleware_NoContent(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMiddleware_Error(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {
		SetJSONError(r.Context(), fmt.Errorf("wrapped: %w", NewError(FailedPrecondition, "task is running", nil)))
	}, "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	var body HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "failed_precondition", body.Code)
	assert.Equal(t, "task is running", body.Message)
}

func TestMiddleware_UnknownError(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {
		SetJSONError(r.Context(), errors.New("boom"))
	}, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unknown"`)
}

func TestDecodeJSON(t *testing.T) {
	var got struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(req, &got))
	assert.Equal(t, "x", got.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	err := DecodeJSON(req, &got)
	assert.True(t, IsCode(err, InvalidArgument))
}

func TestWrapStorageReadError(t *testing.T) {
	err := WrapStorageReadError("task", fmt.Errorf("tasks/1.yaml: %w", storage.ErrNotFound))
	assert.Equal(t, NotFound, CodeOf(err))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = WrapStorageReadError("task", errors.New("disk on fire"))
	assert.Equal(t, Internal, CodeOf(err))
	assert.NotEmpty(t, err.(*Error).Stack)
}

func TestCodeNames(t *testing.T) {
	for c := OK; c <= Unauthenticated; c++ {
		assert.Equal(t, c, ParseCode(c.String()))
	}
	assert.Equal(t, Unknown, ParseCode("nope"))
	assert.Equal(t, OK, CodeOf(nil))
}

func TestMiddleware_Streamed(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {
		SetStreamed(r.Context())
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: hi\n\n"))
	}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: hi\n\n", rec.Body.String())
}
