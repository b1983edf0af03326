package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/domain/repository"
	apphttp "github.com/lapublica/pipeline-api/internal/interfaces/http"
)

// ──────────────────────────────────────────────────────────────────────────────
// Doble del caso de uso
// ──────────────────────────────────────────────────────────────────────────────

const testItemID = "7f1c2d3e-4b5a-4c6d-8e9f-0a1b2c3d4e5f"

type transitionCall struct {
	CompanyID, UserID, ItemID string
	From, To                  pipeline.Stage
}

type fakePipeline struct {
	lastFilter    repository.PipelineItemFilter
	listed        bool
	gets          int
	transitions   []transitionCall
	transitionErr error
	created       *dto.CreatePipelineItemRequest
}

func (f *fakePipeline) Stages() []dto.StageDescriptorDTO {
	out := make([]dto.StageDescriptorDTO, 0)
	for _, d := range pipeline.Descriptors() {
		out = append(out, dto.StageDescriptorFrom(d))
	}
	return out
}

func (f *fakePipeline) List(_ context.Context, filter repository.PipelineItemFilter) (*dto.PipelineListResponse, error) {
	f.lastFilter = filter
	f.listed = true
	return &dto.PipelineListResponse{Items: []dto.PipelineItemDTO{{ID: testItemID, Stage: pipeline.StageDraft}}}, nil
}

func (f *fakePipeline) Get(_ context.Context, _, id string) (*dto.PipelineItemDTO, error) {
	f.gets++
	if id != testItemID {
		return nil, domain.ErrNotFound
	}
	return &dto.PipelineItemDTO{ID: testItemID, Stage: pipeline.StageDraft}, nil
}

func (f *fakePipeline) Create(_ context.Context, _, _ string, in dto.CreatePipelineItemRequest) (*dto.PipelineItemDTO, error) {
	f.created = &in
	return &dto.PipelineItemDTO{ID: "new", Number: in.Number, Stage: pipeline.StageDraft}, nil
}

func (f *fakePipeline) Transition(_ context.Context, companyID, userID, itemID string, from, to pipeline.Stage) (*dto.PipelineItemDTO, error) {
	f.transitions = append(f.transitions, transitionCall{companyID, userID, itemID, from, to})
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	return &dto.PipelineItemDTO{ID: itemID, Stage: to}, nil
}

func (f *fakePipeline) History(context.Context, string, string) ([]dto.PipelineTransitionDTO, error) {
	return []dto.PipelineTransitionDTO{}, nil
}

type fakeReports struct{}

func (fakeReports) Download(context.Context, repository.PipelineItemFilter) ([]byte, string, error) {
	return []byte("%PDF-1.4"), "pipeline-20240410.pdf", nil
}

type fakeSnapshots struct{ limit int }

func (f *fakeSnapshots) History(_ context.Context, companyID string, limit int) ([]*entity.PipelineStatsSnapshot, error) {
	f.limit = limit
	return []*entity.PipelineStatsSnapshot{{ID: "s1", CompanyID: companyID}}, nil
}

func buildPipelineApp(t *testing.T, svc *fakePipeline) *fiber.App {
	t.Helper()
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Pipeline:  svc,
		Reports:   fakeReports{},
		Snapshots: &fakeSnapshots{},
		Auth:      testAuthority(t, time.Hour),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, role string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) dto.ErrorResponse {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

// ──────────────────────────────────────────────────────────────────────────────
// Transiciones
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_OK(t *testing.T) {
	svc := &fakePipeline{}
	app := buildPipelineApp(t, svc)

	resp := call(t, app, http.MethodPost, "/api/pipeline/items/"+testItemID+"/transition", apphttp.RoleMember,
		dto.TransitionRequest{From: "draft", To: "sent"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, svc.transitions, 1)
	assert.Equal(t, transitionCall{testCompanyID, testUserID, testItemID, pipeline.StageDraft, pipeline.StageSent}, svc.transitions[0])

	var out dto.PipelineItemDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, pipeline.StageSent, out.Stage)
}

func TestTransition_MapeoDeErrores(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrIllegalTransition, http.StatusUnprocessableEntity, "ILLEGAL_TRANSITION"},
		{domain.ErrStaleState, http.StatusConflict, "STALE_STATE"},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("%w: total", domain.ErrInvalidInput), http.StatusBadRequest, "VALIDATION"},
		{fmt.Errorf("update pipeline stage: conn reset"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			app := buildPipelineApp(t, &fakePipeline{transitionErr: tc.err})
			resp := call(t, app, http.MethodPost, "/api/pipeline/items/"+testItemID+"/transition", apphttp.RoleAdmin,
				dto.TransitionRequest{From: "sent", To: "approved"})
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			e := decodeError(t, resp)
			assert.Equal(t, tc.code, e.Code)
			assert.Equal(t, tc.err.Error(), e.Message)
		})
	}
}

func TestTransition_EtapaDesconocida(t *testing.T) {
	svc := &fakePipeline{}
	app := buildPipelineApp(t, svc)

	resp := call(t, app, http.MethodPost, "/api/pipeline/items/"+testItemID+"/transition", apphttp.RoleAdmin,
		dto.TransitionRequest{From: "draft", To: "archived"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", decodeError(t, resp).Code)
	assert.Empty(t, svc.transitions)
}

func TestTransition_ViewerNoPuede(t *testing.T) {
	svc := &fakePipeline{}
	app := buildPipelineApp(t, svc)

	resp := call(t, app, http.MethodPost, "/api/pipeline/items/"+testItemID+"/transition", apphttp.RoleViewer,
		dto.TransitionRequest{From: "draft", To: "sent"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, svc.transitions)
}

func TestTransition_SinToken(t *testing.T) {
	app := buildPipelineApp(t, &fakePipeline{})
	resp := call(t, app, http.MethodPost, "/api/pipeline/items/"+testItemID+"/transition", "", dto.TransitionRequest{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ──────────────────────────────────────────────────────────────────────────────
// Lectura, alta e informes
// ──────────────────────────────────────────────────────────────────────────────

func TestList_PasaElAlcance(t *testing.T) {
	svc := &fakePipeline{}
	app := buildPipelineApp(t, svc)

	resp := call(t, app, http.MethodGet, "/api/pipeline/items?owner_id="+testUserID+"&kind=invoice", apphttp.RoleViewer, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, repository.PipelineItemFilter{CompanyID: testCompanyID, OwnerID: testUserID, Kind: "invoice"}, svc.lastFilter)
}

func TestList_ResponsableNoUUID(t *testing.T) {
	svc := &fakePipeline{}
	app := buildPipelineApp(t, svc)

	resp := call(t, app, http.MethodGet, "/api/pipeline/items?owner_id=bob", apphttp.RoleViewer, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", decodeError(t, resp).Code)
	assert.False(t, svc.listed)
}

func TestStages_Registro(t *testing.T) {
	app := buildPipelineApp(t, &fakePipeline{})
	resp := call(t, app, http.MethodGet, "/api/pipeline/stages", apphttp.RoleViewer, nil)
	defer resp.Body.Close()

	var stages []dto.StageDescriptorDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stages))
	require.Len(t, stages, 6)
	assert.Equal(t, "rejected", stages[5].Key)
}

func TestGetByID_NoEncontrado(t *testing.T) {
	svc := &fakePipeline{}
	app := buildPipelineApp(t, svc)
	resp := call(t, app, http.MethodGet, "/api/pipeline/items/9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d", apphttp.RoleViewer, nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, svc.gets)
}

func TestItemID_NoUUID_DevuelveNotFound(t *testing.T) {
	cases := []struct {
		name, method, path string
		body               any
	}{
		{"detalle", http.MethodGet, "/api/pipeline/items/q1", nil},
		{"historial", http.MethodGet, "/api/pipeline/items/q1/history", nil},
		{"transicion", http.MethodPost, "/api/pipeline/items/q1/transition", dto.TransitionRequest{From: "draft", To: "sent"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakePipeline{}
			app := buildPipelineApp(t, svc)

			resp := call(t, app, tc.method, tc.path, apphttp.RoleAdmin, tc.body)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Code)
			assert.Zero(t, svc.gets)
			assert.Empty(t, svc.transitions)
		})
	}
}

func TestCreate(t *testing.T) {
	svc := &fakePipeline{}
	app := buildPipelineApp(t, svc)

	resp := call(t, app, http.MethodPost, "/api/pipeline/items", apphttp.RoleMember, map[string]any{
		"kind": "quote", "number": "PRE-9", "company": "ACME", "total": "10.50", "issue_date": "2024-04-01",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, svc.created)
	assert.Equal(t, "10.5", svc.created.Total.String())
}

func TestReport_PDF(t *testing.T) {
	app := buildPipelineApp(t, &fakePipeline{})
	resp := call(t, app, http.MethodGet, "/api/pipeline/report.pdf", apphttp.RoleViewer, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pipeline-20240410.pdf")
}

func TestSnapshots(t *testing.T) {
	app := buildPipelineApp(t, &fakePipeline{})
	resp := call(t, app, http.MethodGet, "/api/pipeline/snapshots?limit=5", apphttp.RoleAdmin, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []dto.StatsSnapshotDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)
}
