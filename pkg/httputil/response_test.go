package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()

	WriteError(rr, http.StatusTooManyRequests, "too many requests")

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"too many requests"}`, rr.Body.String())
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	WriteJSON(rr, http.StatusOK, map[string]string{"token": "abc"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"token":"abc"}`, rr.Body.String())
}

func TestFixedResponse_Identical(t *testing.T) {
	f := NewFixedResponse(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})

	a, b := httptest.NewRecorder(), httptest.NewRecorder()
	f.Write(a)
	f.Write(b)

	assert.Equal(t, http.StatusUnauthorized, f.Status())
	assert.Equal(t, a.Code, b.Code)
	assert.Equal(t, a.Body.Bytes(), b.Body.Bytes())
	assert.Equal(t, a.Header(), b.Header())
	assert.Equal(t, "32", a.Header().Get("Content-Length"))
	assert.JSONEq(t, `{"error":"invalid credentials"}`, a.Body.String())
}
