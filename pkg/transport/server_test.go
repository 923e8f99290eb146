package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudmesh/pipeline/pkg/types"
)

func postMessage(t *testing.T, h http.Handler, msg types.Message) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealthAlwaysReturns200(t *testing.T) {
	s := NewServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleMessageDispatchesToRegisteredHandler(t *testing.T) {
	s := NewServer(nil)
	var received types.Message
	s.RegisterHandler(types.MessageReplicaTransfer, func(ctx context.Context, msg types.Message) (map[string]any, error) {
		received = msg
		return map[string]any{"ok": true}, nil
	})

	rec := postMessage(t, s.Handler(), types.Message{MessageType: types.MessageReplicaTransfer, SenderID: "n1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "n1", received.SenderID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["ok"])
}

func TestHandleMessageUnregisteredTypeReturns400(t *testing.T) {
	s := NewServer(nil)
	rec := postMessage(t, s.Handler(), types.Message{MessageType: types.MessageReplicaTransfer})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMessageHandlerErrorReturns500(t *testing.T) {
	s := NewServer(nil)
	s.RegisterHandler(types.MessageReplicaTransfer, func(ctx context.Context, msg types.Message) (map[string]any, error) {
		return nil, assertErr
	})
	rec := postMessage(t, s.Handler(), types.Message{MessageType: types.MessageReplicaTransfer})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleMessageRejectsNonPost(t *testing.T) {
	s := NewServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/message", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleMessageRejectsMalformedBody(t *testing.T) {
	s := NewServer(nil)
	req := httptest.NewRequest(http.MethodPost, "/message", bytes.NewReader([]byte("not-json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

var assertErr = errTest{}

type errTest struct{}

func (errTest) Error() string { return "handler failed" }
