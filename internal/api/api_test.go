package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlstack/sitecrawl/internal/api"
	"github.com/crawlstack/sitecrawl/internal/index"
	"github.com/crawlstack/sitecrawl/internal/model"
	"github.com/crawlstack/sitecrawl/internal/store"
	"github.com/crawlstack/sitecrawl/pkg/failure"
)

type fakeStore struct {
	sites map[string]model.Site
	tasks map[string]model.Task
}

func newFakeStore() *fakeStore {
	return &fakeStore{sites: map[string]model.Site{}, tasks: map[string]model.Task{}}
}

func (f *fakeStore) CreateSite(_ context.Context, site model.Site) (model.Site, error) {
	f.sites[site.ID] = site
	return site, nil
}
func (f *fakeStore) UpdateSite(_ context.Context, id string, patch model.SitePatch) (model.Site, error) {
	site, ok := f.sites[id]
	if !ok {
		return model.Site{}, failure.NotFound("site not found")
	}
	if patch.Enabled != nil {
		site.Enabled = *patch.Enabled
	}
	f.sites[id] = site
	return site, nil
}
func (f *fakeStore) DeleteSite(_ context.Context, id string) error {
	if _, ok := f.sites[id]; !ok {
		return failure.NotFound("site not found")
	}
	delete(f.sites, id)
	return nil
}
func (f *fakeStore) GetSite(_ context.Context, id string) (model.Site, error) {
	site, ok := f.sites[id]
	if !ok {
		return model.Site{}, failure.NotFound("site not found")
	}
	return site, nil
}
func (f *fakeStore) ListSites(_ context.Context, _ store.SiteFilter) ([]model.Site, error) {
	var out []model.Site
	for _, s := range f.sites {
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeStore) TouchSiteLastCrawl(context.Context, string, time.Time) error { return nil }
func (f *fakeStore) CreateTask(_ context.Context, task model.Task) (model.Task, error) {
	f.tasks[task.ID] = task
	return task, nil
}
func (f *fakeStore) PatchTask(_ context.Context, id string, _ model.TaskProgressPatch) (model.Task, error) {
	return f.tasks[id], nil
}
func (f *fakeStore) GetTask(_ context.Context, id string) (model.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return model.Task{}, failure.NotFound("task not found")
	}
	return task, nil
}
func (f *fakeStore) ListTasks(_ context.Context, _ store.TaskFilter, _, _ int) ([]model.Task, int, error) {
	var out []model.Task
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out, len(out), nil
}
func (f *fakeStore) SweepOrphanedTasks(context.Context) (int, error) { return 0, nil }
func (f *fakeStore) Close() error                                   { return nil }

type fakeGateway struct{ deletedDomains []string }

func (*fakeGateway) EnsureIndex(context.Context) error { return nil }
func (*fakeGateway) UpsertBatch(context.Context, []model.Document) error {
	return nil
}
func (g *fakeGateway) DeleteByDomain(_ context.Context, domain string) error {
	g.deletedDomains = append(g.deletedDomains, domain)
	return nil
}
func (*fakeGateway) Search(_ context.Context, req index.SearchRequest) (index.SearchResponse, error) {
	return index.SearchResponse{Query: req.Query, Page: req.Page, PageSize: req.PageSize}, nil
}
func (*fakeGateway) Stats(context.Context) (index.Stats, error) {
	return index.Stats{NumDocuments: 3}, nil
}

type fakeSupervisor struct {
	nextTaskID string
	skip       bool
}

func (s *fakeSupervisor) StartAdHoc(context.Context, string, int, int, bool, string, string) (model.Task, error) {
	return model.Task{ID: s.nextTaskID, Status: model.TaskPending}, nil
}
func (s *fakeSupervisor) StartForSite(context.Context, model.Site) (model.Task, error) {
	if s.skip {
		return model.Task{}, nil
	}
	return model.Task{ID: s.nextTaskID, Status: model.TaskPending}, nil
}

func newTestApp(st *fakeStore, gw *fakeGateway, sup *fakeSupervisor, token string) *fiber.App {
	defaults := api.Defaults{MaxDepth: 3, MaxPages: 100, SameDomainOnly: true, FrequencyMin: 1440}
	return api.New(st, gw, sup, defaults, token, zerolog.Nop())
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestCreateAndListSites(t *testing.T) {
	st := newFakeStore()
	app := newTestApp(st, &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/sites", map[string]any{
		"domain":    "example.com",
		"start_url": "https://example.com/",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created model.Site
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "example.com", created.Domain)
	assert.Equal(t, 3, created.MaxDepth)

	resp = doJSON(t, app, http.MethodGet, "/sites", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSite_LowercasesDomain(t *testing.T) {
	st := newFakeStore()
	app := newTestApp(st, &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/sites", map[string]any{
		"domain":    "Example.COM",
		"start_url": "https://example.com/",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created model.Site
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "example.com", created.Domain)
}

func TestCreateSite_RejectsNonAbsoluteStartURL(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/sites", map[string]any{
		"domain":    "example.com",
		"start_url": "/not-absolute",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSite_RejectsBadPageBounds(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/sites", map[string]any{
		"domain":    "example.com",
		"start_url": "https://example.com/",
		"max_pages": 0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/sites", map[string]any{
		"domain":    "example2.com",
		"start_url": "https://example2.com/",
		"max_depth": -1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateSite_RejectsNonAbsoluteStartURL(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")
	created := mustCreateSite(t, app, "example.com")

	resp := doJSON(t, app, http.MethodPut, "/sites/"+created.ID, map[string]any{
		"start_url": "ftp://example.com/file",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSite_TriggersDeleteByDomain(t *testing.T) {
	st := newFakeStore()
	gw := &fakeGateway{}
	app := newTestApp(st, gw, &fakeSupervisor{nextTaskID: "t1"}, "")

	created := mustCreateSite(t, app, "example.com")

	resp := doJSON(t, app, http.MethodDelete, "/sites/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, gw.deletedDomains, "example.com")
}

func TestCrawlSite_OverlapReturnsConflict(t *testing.T) {
	st := newFakeStore()
	sup := &fakeSupervisor{nextTaskID: "t1", skip: true}
	app := newTestApp(st, &fakeGateway{}, sup, "")

	created := mustCreateSite(t, app, "example.com")

	resp := doJSON(t, app, http.MethodPost, "/sites/"+created.ID+"/crawl", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdHocCrawl_RequiresURL(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/crawl", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdHocCrawl_RejectsNonAbsoluteURL(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/crawl", map[string]any{"url": "not-a-url"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdHocCrawl_RejectsBadPageBounds(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/crawl", map[string]any{
		"url":       "https://example.com",
		"max_pages": 0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch_RequiresQuery(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodPost, "/search", map[string]any{"query": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/search", map[string]any{"query": "hello"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "")

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBearerAuth_RejectsMissingToken(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "secret")

	resp := doJSON(t, app, http.MethodGet, "/sites", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBearerAuth_HealthIsAlwaysOpen(t *testing.T) {
	app := newTestApp(newFakeStore(), &fakeGateway{}, &fakeSupervisor{nextTaskID: "t1"}, "secret")

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func mustCreateSite(t *testing.T, app *fiber.App, domain string) model.Site {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/sites", map[string]any{
		"domain":    domain,
		"start_url": "https://" + domain + "/",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var site model.Site
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&site))
	return site
}
