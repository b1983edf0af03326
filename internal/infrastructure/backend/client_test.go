package backend_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/internal/infrastructure/backend"
	"github.com/lapublica/pipeline-api/pkg/config"
	"github.com/lapublica/pipeline-api/pkg/logger"
)

func newClient(t *testing.T, h http.Handler, scope backend.Scope) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return backend.NewClient(config.ClientConfig{
		BaseURL: srv.URL + "/",
		Token:   "tok",
		Timeout: 2 * time.Second,
	}, scope)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transition
// ──────────────────────────────────────────────────────────────────────────────

func TestTransition_OK(t *testing.T) {
	var hits atomic.Int32
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pipeline/items/q1/transition", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body dto.TransitionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, dto.TransitionRequest{From: "draft", To: "sent"}, body)

		writeJSON(w, http.StatusOK, dto.PipelineItemDTO{ID: "q1", Stage: pipeline.StageSent, IssueDate: "2024-03-01"})
	}), backend.Scope{})

	require.NoError(t, client.Transition(context.Background(), "q1", pipeline.StageDraft, pipeline.StageSent))
	assert.EqualValues(t, 1, hits.Load())
}

func TestTransition_MapeoDeErrores(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    any
		kind    error
		message string
	}{
		{"conflicto", http.StatusConflict, dto.ErrorResponse{Code: "STALE_STATE", Message: "moved by Anna"}, domain.ErrStaleState, "moved by Anna"},
		{"ilegal", http.StatusUnprocessableEntity, dto.ErrorResponse{Code: "ILLEGAL_TRANSITION", Message: "nope"}, domain.ErrIllegalTransition, "nope"},
		{"no existe", http.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: "gone"}, domain.ErrNotFound, "gone"},
		{"caído", http.StatusBadGateway, nil, domain.ErrNetworkFailure, domain.ErrNetworkFailure.Error()},
		{"sin permiso", http.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "other company"}, domain.ErrForbidden, "other company"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var hits atomic.Int32
			client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				if tc.body == nil {
					w.WriteHeader(tc.status)
					return
				}
				writeJSON(w, tc.status, tc.body)
			}), backend.Scope{})

			err := client.Transition(context.Background(), "q1", pipeline.StageApproved, pipeline.StageInvoiced)
			require.Error(t, err)

			var te *domain.TransitionError
			require.True(t, errors.As(err, &te))
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, tc.message, err.Error(), "el mensaje del backend se muestra tal cual")
			assert.EqualValues(t, 1, hits.Load(), "sin reintentos")
		})
	}
}

func TestTransition_FalloDeTransporte(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var logs bytes.Buffer
	client := backend.NewClient(config.ClientConfig{BaseURL: url, Timeout: time.Second}, backend.Scope{}).
		WithLogger(logger.New(logger.Config{Level: "debug", Out: &logs}))
	err := client.Transition(context.Background(), "q1", pipeline.StageApproved, pipeline.StageInvoiced)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)

	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	require.NotNil(t, te.Cause, "se conserva el error de transporte")
	assert.Equal(t, domain.ErrNetworkFailure.Error(), err.Error(), "el usuario ve el texto de la categoría")
	assert.Contains(t, logs.String(), "fallo de transporte")
	assert.Contains(t, logs.String(), `"error":`)
}

// ──────────────────────────────────────────────────────────────────────────────
// Lectura
// ──────────────────────────────────────────────────────────────────────────────

func TestLoadItems_AplicaElAlcance(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pipeline/items", r.URL.Path)
		assert.Equal(t, "u7", r.URL.Query().Get("owner_id"))
		assert.Equal(t, "invoice", r.URL.Query().Get("kind"))
		writeJSON(w, http.StatusOK, map[string]any{
			"items": []map[string]any{
				{"id": "f1", "kind": "invoice", "number": "FAC-1", "company": "ACME", "total": "300.00",
					"issue_date": "2024-03-01", "due_date": "2024-04-01", "is_overdue": true,
					"paid_percentage": 40, "stage": "invoiced"},
			},
			"stats": map[string]any{"conversion_rate": "0"},
		})
	}), backend.Scope{OwnerID: "u7", Kind: "invoice"})

	items, err := client.LoadItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, pipeline.StageInvoiced, items[0].Stage)
	assert.Equal(t, "300", items[0].Total.String())
	assert.True(t, items[0].IsOverdue)
	require.NotNil(t, items[0].PaidPercentage)
	assert.Equal(t, 40, *items[0].PaidPercentage)
	require.NotNil(t, items[0].DueDate)
}

func TestLoadItems_EtapaDesconocida(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"x","stage":"archived","issue_date":"2024-01-01"}],"stats":{}}`))
	}), backend.Scope{})

	_, err := client.LoadItems(context.Background())
	assert.Error(t, err)
}

func TestStages(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []dto.StageDescriptorDTO{{Key: "draft", Label: "Borrador", AllowedTransitions: []string{"sent"}}})
	}), backend.Scope{})

	stages, err := client.Stages(context.Background())
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, []string{"sent"}, stages[0].AllowedTransitions)
}

func TestHistory_NoAutorizado(t *testing.T) {
	client := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Code: "INVALID_TOKEN", Message: "token inválido o expirado"})
	}), backend.Scope{})

	_, err := client.History(context.Background(), "q1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "token inválido o expirado")
}
