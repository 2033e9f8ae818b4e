package response

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/pkg/infra/middleware/common"
	"github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, gin.H{"status": "healthy"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestFail(t *testing.T) {
	tests := []struct {
		name       string
		err        *errors.Errno
		wantStatus int
		wantDetail string
	}{
		{
			name:       "not found",
			err:        errors.ErrResourceNotFound,
			wantStatus: http.StatusNotFound,
			wantDetail: "Resource not found",
		},
		{
			name:       "server error keeps cause",
			err:        errors.ErrQueryFailed.WithCause(fmt.Errorf("milvus: connection refused")),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Error processing query: milvus: connection refused",
		},
		{
			name:       "nil falls back to internal",
			err:        nil,
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Set(common.GinRequestIDKey, "01J0000000000000000000TEST")

			Fail(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, c.IsAborted())

			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantDetail, body.Detail)
			assert.Equal(t, "01J0000000000000000000TEST", body.RequestID)
		})
	}
}

func TestFailWithError_PlainError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), "req-1"))

	FailWithError(c, fmt.Errorf("boom"))

	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrInternal.Code, body.Code)
	assert.Equal(t, "Internal server error: boom", body.Detail)
	assert.Equal(t, "req-1", body.RequestID)
}
