package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailfetch/internal/store"
	"trailfetch/models"
	"trailfetch/services"
)

type fakeAdapter struct {
	name   string
	domain string
}

func (f fakeAdapter) Name() string   { return f.name }
func (f fakeAdapter) Domain() string { return f.domain }
func (f fakeAdapter) Locate(context.Context, services.LocateRequest) ([]services.Candidate, error) {
	return nil, services.ErrNoTrailers
}

type fakeQueue struct {
	enqueued []string
}

func (q *fakeQueue) Enqueue(processID string) { q.enqueued = append(q.enqueued, processID) }

type handlerFixture struct {
	store   *store.Store
	queue   *fakeQueue
	process *ProcessHandler
	meta    *MetaHandler
	router  *mux.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	registry := services.NewRegistry(
		fakeAdapter{name: "APPLE_TV", domain: "tv.apple.com"},
		fakeAdapter{name: "NETFLIX", domain: "www.netflix.com"},
	)
	queue := &fakeQueue{}

	f := &handlerFixture{
		store:   st,
		queue:   queue,
		process: NewProcessHandler(st, registry, queue),
		meta:    NewMetaHandler(st, registry),
	}

	r := mux.NewRouter()
	r.HandleFunc("/process", f.process.Create).Methods(http.MethodPost)
	r.HandleFunc("/process/by-trailer-page", f.process.CreateByPage).Methods(http.MethodPost)
	r.HandleFunc("/process/{processId}", f.process.Get).Methods(http.MethodGet)
	r.HandleFunc("/trailers/feed", f.process.Feed).Methods(http.MethodGet)
	r.HandleFunc("/services", f.meta.Services).Methods(http.MethodGet)
	r.HandleFunc("/all-status", f.meta.Statuses).Methods(http.MethodGet)
	r.HandleFunc("/health", f.meta.Health).Methods(http.MethodGet)
	f.router = r
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateValidatesNameAndYear(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/process", map[string]any{"name": "The Batman"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.enqueued)
}

func TestCreateUnknownServiceNeverEnqueues(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/process", map[string]any{
		"name": "The Batman", "year": 2022, "serviceName": "DISNEY",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		AvailableServices []string `json:"availableServices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"APPLE_TV", "NETFLIX"}, resp.AvailableServices)
	assert.Empty(t, f.queue.enqueued)
}

func TestCreateAllServices(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/process", map[string]any{
		"name": "The Batman", "year": 2022,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ProcessID string `json:"processId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ProcessID)
	assert.Equal(t, []string{resp.ProcessID}, f.queue.enqueued)

	p, err := f.store.GetProcess(context.Background(), resp.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, "ALL", p.ServiceName)
	assert.Equal(t, "APPLE_TV|NETFLIX", p.Services)
	assert.Equal(t, "en-US", p.Lang)
	assert.Equal(t, models.StatusPending, p.Status)
}

func TestCreateByPageUnknownDomainNeverEnqueues(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/process/by-trailer-page", map[string]any{
		"trailerPage": "https://www.youtube.com/watch?v=abc",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		AvailableDomains []string `json:"availableDomains"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"tv.apple.com", "www.netflix.com"}, resp.AvailableDomains)
	assert.Empty(t, f.queue.enqueued)
}

func TestCreateByPageRejectsPlainHTTP(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/process/by-trailer-page", map[string]any{
		"trailerPage": "http://www.netflix.com/title/81223025",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateByPageResolvesService(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/process/by-trailer-page", map[string]any{
		"trailerPage": "https://www.netflix.com/title/81223025",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ProcessID string `json:"processId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	p, err := f.store.GetProcess(context.Background(), resp.ProcessID)
	require.NoError(t, err)
	assert.Equal(t, "NETFLIX", p.ServiceName)
	assert.Equal(t, "NETFLIX", p.Services)
	require.NotNil(t, p.TrailerPage)
	assert.Equal(t, "https://www.netflix.com/title/81223025", *p.TrailerPage)
}

func TestGetProcessNotFound(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/process/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetProcessIsIdempotent(t *testing.T) {
	f := newHandlerFixture(t)

	created := f.do(t, http.MethodPost, "/process", map[string]any{"name": "Dune", "year": 2021})
	require.Equal(t, http.StatusCreated, created.Code)
	var resp struct {
		ProcessID string `json:"processId"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &resp))

	first := f.do(t, http.MethodGet, "/process/"+resp.ProcessID, nil)
	second := f.do(t, http.MethodGet, "/process/"+resp.ProcessID, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestMetaEndpoints(t *testing.T) {
	f := newHandlerFixture(t)

	servicesRec := f.do(t, http.MethodGet, "/services", nil)
	require.Equal(t, http.StatusOK, servicesRec.Code)
	var infos []ServiceInfo
	require.NoError(t, json.Unmarshal(servicesRec.Body.Bytes(), &infos))
	assert.Equal(t, []ServiceInfo{
		{Name: "APPLE_TV", Domain: "tv.apple.com"},
		{Name: "NETFLIX", Domain: "www.netflix.com"},
	}, infos)

	statusRec := f.do(t, http.MethodGet, "/all-status", nil)
	require.Equal(t, http.StatusOK, statusRec.Code)
	var statuses []models.Status
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &statuses))
	assert.Contains(t, statuses, models.StatusDone)
	assert.Contains(t, statuses, models.StatusNoTrailers)

	healthRec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, healthRec.Code)
}

func TestFeedEmpty(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/trailers/feed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []json.RawMessage `json:"items"`
		Total int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
	assert.Zero(t, resp.Total)
}
