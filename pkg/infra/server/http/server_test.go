package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/legal-rag/pkg/options/server/http"
	apierrors "github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/json"
	"github.com/kart-io/legal-rag/pkg/utils/response"
)

func testOptions() *options.Options {
	o := options.NewOptions()
	o.Addr = "127.0.0.1:0"
	o.Mode = gin.TestMode
	return o
}

func TestServer_NoRoute(t *testing.T) {
	s, err := NewServer(testOptions(), nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierrors.ErrRouteNotFound.Code, body.Code)
	assert.NotEmpty(t, body.RequestID)
}

type bindRequest struct {
	Question string `json:"question" validate:"required,notblank"`
}

func TestServer_BindingUsesValidator(t *testing.T) {
	s, err := NewServer(testOptions(), nil)
	require.NoError(t, err)
	s.Engine().POST("/q", func(c *gin.Context) {
		var req bindRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusUnprocessableEntity)
			return
		}
		c.Status(http.StatusOK)
	})

	for body, want := range map[string]int{
		`{"question":"what is a tort?"}`: http.StatusOK,
		`{"question":"   "}`:             http.StatusUnprocessableEntity,
		`{}`:                             http.StatusUnprocessableEntity,
	} {
		w := httptest.NewRecorder()
		s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/q", strings.NewReader(body)))
		assert.Equal(t, want, w.Code, body)
	}
}

func TestServer_StartStop(t *testing.T) {
	s, err := NewServer(testOptions(), nil)
	require.NoError(t, err)
	s.Engine().GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop(context.Background()) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StartBindError(t *testing.T) {
	o := testOptions()
	o.Addr = "127.0.0.1:-1"
	s, err := NewServer(o, nil)
	require.NoError(t, err)
	assert.Error(t, s.Start(context.Background()))
}
