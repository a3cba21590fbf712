package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/decoder"
	apperrors "github.com/Beto18v/AdoptaFacil-sub000/internal/errors"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
	"github.com/Beto18v/AdoptaFacil-sub000/internal/types"
)

const csvFile = "Donante,Monto,Fecha\nJuan,50000,2024-03-15\nAna,200,2024-03-16\nLuis,300,2024-03-17\n"

type stubSubmitter struct {
	receipt *types.Receipt
	err     error
	got     types.ImportBatch
}

func (s *stubSubmitter) Submit(_ context.Context, _ string, batch types.ImportBatch) (*types.Receipt, error) {
	s.got = batch
	return s.receipt, s.err
}

type apiView struct {
	ID      string            `json:"id"`
	State   string            `json:"state"`
	Headers []string          `json:"headers"`
	Mapping map[string]string `json:"mapping"`
	Records []map[string]any  `json:"records"`
	Preview []map[string]any  `json:"preview"`
	Error   string            `json:"error"`
	Receipt *types.Receipt    `json:"receipt"`
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newTestServer(sub pipeline.Submitter) (*Server, *Store) {
	gin.SetMode(gin.TestMode)
	store := NewStore(func() *pipeline.Session {
		return pipeline.NewSession(decoder.New(), sub)
	}, time.Hour, nil)
	return New(store, 0, nil), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, h http.Handler, id, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+id+"/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) apiView {
	t.Helper()
	var v apiView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func TestImportFlow(t *testing.T) {
	sub := &stubSubmitter{receipt: &types.Receipt{Message: "Se importaron 2 donaciones correctamente", Count: 2}}
	srv, _ := newTestServer(sub)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/api/imports", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeView(t, rec).ID
	require.NotEmpty(t, id)

	rec = upload(t, h, id, "donaciones.csv", []byte(csvFile))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decodeView(t, rec)
	assert.Equal(t, "mapping", v.State)
	assert.Equal(t, []string{"Donante", "Monto", "Fecha"}, v.Headers)
	assert.Equal(t, "Monto", v.Mapping["amount"])
	assert.Len(t, v.Preview, 3)

	rec = do(t, h, http.MethodPut, "/api/imports/"+id+"/mapping", gin.H{"field": "amount", "header": "Monto"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/imports/"+id+"/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.Equal(t, "preview", v.State)
	require.Len(t, v.Records, 3)
	assert.Equal(t, "2024-03-15", v.Records[0]["created_at"])

	rec = do(t, h, http.MethodPatch, "/api/imports/"+id+"/records/0", gin.H{"field": "amount", "value": "0"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeView(t, rec).Records[0]["amount"])

	rec = do(t, h, http.MethodDelete, "/api/imports/"+id+"/records/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeView(t, rec).Records, 2)

	rec = do(t, h, http.MethodPost, "/api/imports/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Receipt types.Receipt `json:"receipt"`
		Session apiView       `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Receipt.Count)
	assert.Equal(t, "upload", out.Session.State)
	assert.Len(t, sub.got, 2)

	rec = do(t, h, http.MethodDelete, "/api/imports/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/imports/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorStatuses(t *testing.T) {
	sub := &stubSubmitter{err: apperrors.Submission(http.StatusForbidden, "No tienes permisos para importar donaciones")}
	srv, store := newTestServer(sub)
	h := srv.Handler()
	id := store.Create().ID()

	// Wrong state.
	rec := do(t, h, http.MethodPost, "/api/imports/"+id+"/proceed", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidState, decodeError(t, rec).Code)

	// Bad file.
	rec = upload(t, h, id, "notes.txt", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeDecode, decodeError(t, rec).Code)

	rec = upload(t, h, id, "empty.csv", []byte("Monto,Fecha\n"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeEmptyData, decodeError(t, rec).Code)

	// Validation failure.
	rec = upload(t, h, id, "bad.csv", []byte("Donante,Monto,Fecha\nJuan,abc,2024-01-01\n"))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/imports/"+id+"/proceed", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid amount at row 2: abc", decodeError(t, rec).Error)

	// Unknown field.
	rec = do(t, h, http.MethodPut, "/api/imports/"+id+"/mapping", gin.H{"field": "color", "header": "Monto"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Submission failure.
	rec = upload(t, h, id, "ok.csv", []byte(csvFile))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/imports/"+id+"/proceed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPatch, "/api/imports/"+id+"/records/x", gin.H{"field": "amount", "value": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/imports/"+id+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, apperrors.CodeSubmission, e.Code)
	assert.Equal(t, "No tienes permisos para importar donaciones", e.Error)

	rec = do(t, h, http.MethodGet, "/api/imports/"+id, nil)
	v := decodeView(t, rec)
	assert.Equal(t, "preview", v.State)
	assert.Len(t, v.Records, 3)

	// Unknown session.
	rec = do(t, h, http.MethodGet, "/api/imports/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(apperrors.CodeNetwork))
	assert.Equal(t, http.StatusConflict, statusFor(apperrors.CodeStale))
	assert.Equal(t, http.StatusBadRequest, statusFor(apperrors.CodeEmptyBatch))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperrors.CodeUnknown))
}

func TestHealth(t *testing.T) {
	srv, store := newTestServer(&stubSubmitter{})
	store.Create()

	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, rec.Body.String())
}
