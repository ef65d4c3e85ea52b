package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/session"
	"github.com/ppiankov/factstrip/internal/store"
	"github.com/ppiankov/factstrip/internal/verify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type backendFunc func(ctx context.Context, req model.VerificationRequest) (map[string]any, error)

func (f backendFunc) Verify(ctx context.Context, req model.VerificationRequest) (map[string]any, error) {
	return f(ctx, req)
}

func newTestServer(t *testing.T, b verify.Backend) (*gin.Engine, *session.Session) {
	t.Helper()
	if b == nil {
		b = backendFunc(func(_ context.Context, req model.VerificationRequest) (map[string]any, error) {
			return map[string]any{"success": true, "verdict": "true", "confidence": 88, "style": string(req.Style)}, nil
		})
	}
	sess, err := session.Open(session.Options{Backend: b, Store: store.NewMemory()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	return New(sess, model.ServerConfig{AllowOrigins: []string{"http://localhost:3000"}}, nil), sess
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t, nil)
	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCheck_Success(t *testing.T) {
	r, sess := newTestServer(t, nil)

	w := do(t, r, http.MethodPost, "/api/check", checkRequest{Statement: "The sky is blue", Style: "newspaper"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Result    model.VerificationResult `json:"result"`
		Analytics model.Analytics          `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "The sky is blue", body.Result.Statement)
	assert.Equal(t, model.StyleNewspaper, body.Result.Style)
	assert.Equal(t, model.Analytics{TotalChecks: 1, TrueCount: 1}, body.Analytics)
	assert.Len(t, sess.History(), 1)
}

func TestCheck_Validation(t *testing.T) {
	r, _ := newTestServer(t, nil)

	w := do(t, r, http.MethodPost, "/api/check", checkRequest{Statement: "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "ValidationError")

	w = do(t, r, http.MethodPost, "/api/check", checkRequest{Statement: "x", Style: "watercolor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/check", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheck_ServerError(t *testing.T) {
	r, _ := newTestServer(t, backendFunc(func(context.Context, model.VerificationRequest) (map[string]any, error) {
		return nil, &verify.ServerFailure{StatusCode: 500, Message: "model crashed"}
	}))

	w := do(t, r, http.MethodPost, "/api/check", checkRequest{Statement: "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(verify.KindServer), body.Error.Kind)
	assert.Equal(t, "model crashed", body.Error.Message)
}

func TestState_AfterCheckAndClear(t *testing.T) {
	r, _ := newTestServer(t, nil)
	do(t, r, http.MethodPost, "/api/check", checkRequest{Statement: "The sky is blue"})

	w := do(t, r, http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "succeeded", snap.State)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.History, 1)

	w = do(t, r, http.MethodPost, "/api/clear", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/state", nil)
	snap = session.Snapshot{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "idle", snap.State)
	assert.Nil(t, snap.Result)
	assert.Len(t, snap.History, 1)
}

func TestHistoryRoutes(t *testing.T) {
	r, sess := newTestServer(t, nil)
	do(t, r, http.MethodPost, "/api/check", checkRequest{Statement: "one"})
	do(t, r, http.MethodPost, "/api/check", checkRequest{Statement: "two"})

	hist := sess.History()
	require.Len(t, hist, 2)
	id := string(hist[1].ID)

	w := do(t, r, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		History   []model.HistoryEntry `json:"history"`
		Analytics model.Analytics      `json:"analytics"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.History, 2)
	assert.Equal(t, "two", list.History[0].Statement)
	assert.Equal(t, 2, list.Analytics.TotalChecks)

	w = do(t, r, http.MethodGet, "/api/history/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"statement":"one"`)

	w = do(t, r, http.MethodPost, "/api/history/"+id+"/explanation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entry model.HistoryEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	require.NotNil(t, entry.Explanation)
	assert.Equal(t, "Let's examine: one", entry.Explanation.Step1)

	w = do(t, r, http.MethodDelete, "/api/history/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, r, http.MethodDelete, "/api/history/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodGet, "/api/history/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, r, http.MethodPost, "/api/history/"+id+"/explanation", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/api/history", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, sess.History())
}

func TestCORS(t *testing.T) {
	r, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/check", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(verify.KindValidation))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(verify.KindNetwork))
	assert.Equal(t, http.StatusBadGateway, statusFor(verify.KindServer))
	assert.Equal(t, http.StatusInternalServerError, statusFor(verify.KindUnknown))
}
