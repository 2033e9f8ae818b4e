package router

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/internal/legalrag/biz"
	"github.com/kart-io/legal-rag/internal/legalrag/handler"
	"github.com/kart-io/legal-rag/internal/legalrag/metrics"
	"github.com/kart-io/legal-rag/internal/legalrag/registry"
	"github.com/kart-io/legal-rag/internal/legalrag/store"
	"github.com/kart-io/legal-rag/internal/model"
	"github.com/kart-io/legal-rag/internal/pkg/chunker"
	"github.com/kart-io/legal-rag/pkg/llm"
	apierrors "github.com/kart-io/legal-rag/pkg/utils/errors"
	"github.com/kart-io/legal-rag/pkg/utils/json"
	"github.com/kart-io/legal-rag/pkg/validator"
)

var errDown = errors.New("milvus: connection refused")

type fakeStore struct {
	mu      sync.Mutex
	records []*store.Record
	matches []*store.Match
	searchK int
	inserts int
	down    bool

	// insertErr 不为空时 Insert 返回该错误。
	insertErr error
}

func (f *fakeStore) Insert(_ context.Context, records []*store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errDown
	}
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float32, topK int) ([]*store.Match, error) {
	if f.down {
		return nil, errDown
	}
	f.searchK = topK
	return f.matches[:min(topK, len(f.matches))], nil
}

func (f *fakeStore) QueryIDsByResource(_ context.Context, resourceID string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errDown
	}
	var ids []string
	for _, r := range f.records {
		if r.Chunk.ResourceID == resourceID && len(ids) < limit {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.records[:0]
	for _, r := range f.records {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return nil
}

func (f *fakeStore) Stats(context.Context) (*store.Stats, error) {
	if f.down {
		return nil, errDown
	}
	return &store.Stats{RowCount: int64(len(f.records)), Dimension: 2, Partitions: map[string]int64{}}, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (e fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, _ := e.Embed(ctx, []string{text})
	return out[0], nil
}

func (fakeEmbedder) Name() string { return "fake" }

type fakeChat struct{}

func (fakeChat) Chat(context.Context, []llm.Message, ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Content: " a written notice is required. "}, nil
}

func (c fakeChat) Generate(ctx context.Context, prompt, _ string, opts ...llm.GenerateOption) (*llm.GenerateResponse, error) {
	return c.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (fakeChat) Name() string { return "fake" }

type testEnv struct {
	engine   *gin.Engine
	store    *fakeStore
	registry *registry.Memory
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	binding.Validator = validator.NewBinding(validator.LangEN)

	st := &fakeStore{}
	reg := registry.NewMemory()
	m := metrics.New()
	svc := biz.NewRAGService(st, fakeEmbedder{}, fakeChat{}, nil, nil, m, &biz.ServiceConfig{
		TopK: 5, MaxTopK: 50, MaxTokens: 512, Temperature: 0.7, EmbedBatchSize: 32,
	})
	splitter, err := chunker.New(1000, 200)
	require.NoError(t, err)

	engine := gin.New()
	Register(engine, handler.NewHandler(svc, reg, splitter, m), maxUpload)
	return &testEnv{engine: engine, store: st, registry: reg}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) query(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func uploadRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e *testEnv) resources(t *testing.T) []model.Resource {
	w := e.do(httptest.NewRequest(http.MethodGet, "/api/resources", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return decode[[]model.Resource](t, w)
}

func TestRootAndHealth(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.store.down = true

	w := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"service running"}`, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apierrors.ErrStatsFailed.Code, body.Code)
	assert.Contains(t, body.Detail, "connection refused")
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_vectors":0,"dimension":2,"index_fullness":0,"namespaces":{}}`, w.Body.String())
}

func TestQuery_Validation(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	for name, body := range map[string]string{
		"empty object":   `{}`,
		"empty question": `{"question":""}`,
		"blank question": `{"question":"   "}`,
		"malformed":      `{"question":`,
		"wrong type":     `{"question":42}`,
	} {
		t.Run(name, func(t *testing.T) {
			w := env.query(body)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			assert.Equal(t, apierrors.ErrValidation.Code, decode[errorBody](t, w).Code)
		})
	}

	w := env.query(`{"question":"   "}`)
	assert.Contains(t, decode[errorBody](t, w).Detail, "question must not be blank")
}

func TestQuery_NoMatches(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	w := env.query(`{"question":"What is adverse possession?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"`+biz.NoAnswer+`","sources":[],"confidence":0}`, w.Body.String())
}

func TestQuery_DefaultsAndMaxResultsCap(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	for i := 0; i < 60; i++ {
		m := &store.Match{ID: fmt.Sprint(i)}
		m.Chunk.Text = fmt.Sprintf("clause %d", i)
		m.Chunk.Source = "lease.pdf"
		env.store.matches = append(env.store.matches, m)
	}

	w := env.query(`{"question":"notice period?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, env.store.searchK)
	res := decode[model.QueryResult](t, w)
	assert.Equal(t, "a written notice is required.", res.Answer)
	assert.Equal(t, []string{"lease.pdf"}, res.Sources)
	assert.Equal(t, 1.0, res.Confidence)

	w = env.query(`{"question":"notice period?","max_results":10000,"include_documents":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50, env.store.searchK)
	assert.Empty(t, decode[model.QueryResult](t, w).Sources)
}

func TestQuery_UpstreamDown(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.store.down = true
	w := env.query(`{"question":"anything"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apierrors.ErrQueryFailed.Code, decode[errorBody](t, w).Code)
}

func TestUpload_WrongExtension(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	w := env.do(uploadRequest(t, "/api/upload/document", "notes.txt", []byte("hello")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apierrors.ErrUnsupportedFormat.Code, body.Code)
	assert.Equal(t, "Only PDF and Word documents are supported", body.Detail)

	w = env.do(uploadRequest(t, "/api/upload/faq", "faq.pdf", []byte("%PDF")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Only Excel (.xlsx, .xls) and CSV files are supported", decode[errorBody](t, w).Detail)

	assert.Empty(t, env.resources(t))
	assert.Equal(t, 0, env.store.inserts)
}

func TestUpload_MissingFile(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	w := env.do(uploadRequest(t, "/api/upload/document", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.ErrMissingFile.Code, decode[errorBody](t, w).Code)
}

func TestUpload_TooLarge(t *testing.T) {
	env := newTestEnv(t, 1024)
	w := env.do(uploadRequest(t, "/api/upload/faq", "faq.csv", bytes.Repeat([]byte("x"), 4096)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, env.resources(t))
}

func TestUploadFAQ_MissingColumns(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	w := env.do(uploadRequest(t, "/api/upload/faq", "faq.csv", []byte("Question,Answer\nq,a\n")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apierrors.ErrMissingColumns.Code, body.Code)
	assert.Contains(t, body.Detail, "question, answer")

	assert.Equal(t, 0, env.store.inserts)
	assert.Empty(t, env.resources(t))
}

func TestFAQUploadListDelete(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	csv := "question,answer\n" +
		"What is a lease?,A contract for use of property.\n" +
		",orphan answer\n" +
		"Who pays repairs?,Usually the landlord.\n" +
		"nan,nan\n" +
		"Can rent rise?,Only as the lease allows.\n"

	w := env.do(uploadRequest(t, "/api/upload/faq", "tenancy.csv", []byte(csv)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	up := decode[handler.UploadResponse](t, w)
	assert.Equal(t, "FAQ uploaded successfully", up.Message)
	require.NotEmpty(t, up.ResourceID)
	assert.Equal(t, 3, env.store.count())

	list := env.resources(t)
	require.Len(t, list, 1)
	assert.Equal(t, up.ResourceID, list[0].ID)
	assert.Equal(t, "tenancy.csv", list[0].Name)
	assert.Equal(t, model.ResourceTypeFAQ, list[0].Type)
	assert.Equal(t, int64(len(csv)), list[0].Size)
	assert.False(t, list[0].UploadDate.IsZero())

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/resources/"+up.ResourceID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Resource deleted successfully"}`, w.Body.String())
	assert.Empty(t, env.resources(t))
	assert.Equal(t, 0, env.store.count())

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/resources/"+up.ResourceID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteUnknownResource(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	require.NoError(t, env.registry.Put(context.Background(), &model.Resource{ID: "keep", Name: "a.pdf", Type: model.ResourceTypeDocument}))

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/resources/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apierrors.ErrResourceNotFound.Code, body.Code)
	assert.Equal(t, "Resource not found", body.Message)

	list := env.resources(t)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].ID)
}

func TestUploadDocument_Docx(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Article 1. The tenant shall pay rent monthly.</w:t></w:r></w:p>` +
		`</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	w := env.do(uploadRequest(t, "/api/upload/document", "Lease.DOCX", buf.Bytes()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Document uploaded successfully", decode[handler.UploadResponse](t, w).Message)

	require.Equal(t, 1, env.store.count())
	chunk := env.store.records[0].Chunk
	assert.Equal(t, "Lease.DOCX", chunk.Source)
	assert.Equal(t, "docx", chunk.FileType)
	assert.Equal(t, model.ResourceTypeDocument, chunk.Type)
	assert.Contains(t, chunk.Text, "pay rent monthly")

	list := env.resources(t)
	require.Len(t, list, 1)
	assert.Equal(t, model.ResourceTypeDocument, list[0].Type)
}

func TestUpload_StoreDown(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.store.down = true

	w := env.do(uploadRequest(t, "/api/upload/faq", "faq.csv", []byte("question,answer\nq,a\n")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apierrors.ErrStoreWrite.Code, decode[errorBody](t, w).Code)
	assert.Empty(t, env.resources(t))
}

func TestUploadFAQ_FieldTooLong(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.store.insertErr = &store.FieldTooLongError{RecordID: "r", RowID: "0", Field: store.FieldAnswer, Size: 70000, Limit: 65535}

	w := env.do(uploadRequest(t, "/api/upload/faq", "faq.csv", []byte("question,answer\nq,a\n")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[errorBody](t, w)
	assert.Equal(t, apierrors.ErrFieldTooLong.Code, body.Code)
	assert.Contains(t, body.Detail, "row 0: answer is 70000 bytes, exceeds limit 65535")
	assert.Empty(t, env.resources(t))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	_ = env.query(`{"question":"q"}`)

	w := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "legal_rag_queries_total 1\n")
}
