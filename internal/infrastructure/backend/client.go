// Package backend cliente HTTP de la API del pipeline. Lo usan pipelinectl y el
// tablero de terminal como ItemLoader y Executor.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/lapublica/pipeline-api/internal/application/budget"
	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/internal/domain"
	"github.com/lapublica/pipeline-api/internal/domain/entity"
	"github.com/lapublica/pipeline-api/internal/domain/pipeline"
	"github.com/lapublica/pipeline-api/pkg/config"
	"github.com/lapublica/pipeline-api/pkg/logger"
)

var (
	_ budget.Executor   = (*Client)(nil)
	_ budget.ItemLoader = (*Client)(nil)
)

// Scope alcance visible del tablero (vacío = toda la empresa del token).
type Scope struct {
	OwnerID string
	Kind    string
}

// Client implementación sobre resty.
type Client struct {
	http  *resty.Client
	scope Scope
	log   *logger.Logger
}

// NewClient construye el cliente con la URL base, el token y el timeout de la configuración.
func NewClient(cfg config.ClientConfig, scope Scope) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.Token != "" {
		rc.SetAuthToken(cfg.Token)
	}
	return &Client{http: rc, scope: scope, log: logger.Nop()}
}

// WithLogger registra en debug los fallos de transporte, que al usuario le
// llegan solo como ErrNetworkFailure.
func (c *Client) WithLogger(log *logger.Logger) *Client {
	if log != nil {
		c.log = log
	}
	return c
}

// Scope alcance configurado.
func (c *Client) Scope() Scope { return c.scope }

// List documentos y métricas del alcance.
func (c *Client) List(ctx context.Context) (*dto.PipelineListResponse, error) {
	result := new(dto.PipelineListResponse)
	apiErr := new(dto.ErrorResponse)
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(apiErr)
	if c.scope.OwnerID != "" {
		req.SetQueryParam("owner_id", c.scope.OwnerID)
	}
	if c.scope.Kind != "" {
		req.SetQueryParam("kind", c.scope.Kind)
	}
	resp, err := req.Get("/api/pipeline/items")
	if err := c.check(resp, err, apiErr); err != nil {
		return nil, fmt.Errorf("listar documentos: %w", err)
	}
	return result, nil
}

// LoadItems lista autoritativa para el tablero.
func (c *Client) LoadItems(ctx context.Context) ([]entity.PipelineItem, error) {
	list, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entity.PipelineItem, 0, len(list.Items))
	for _, d := range list.Items {
		it, err := d.ToEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// Transition pide al backend el cambio de etapa. Una sola petición, sin reintentos.
// Los rechazos vuelven como *domain.TransitionError con el mensaje del backend.
func (c *Client) Transition(ctx context.Context, itemID string, from, to pipeline.Stage) error {
	apiErr := new(dto.ErrorResponse)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", itemID).
		SetBody(dto.TransitionRequest{From: from.String(), To: to.String()}).
		SetResult(new(dto.PipelineItemDTO)).
		SetError(apiErr).
		Post("/api/pipeline/items/{id}/transition")
	return c.check(resp, err, apiErr)
}

// Stages registro de etapas publicado por el backend.
func (c *Client) Stages(ctx context.Context) ([]dto.StageDescriptorDTO, error) {
	var result []dto.StageDescriptorDTO
	apiErr := new(dto.ErrorResponse)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(apiErr).
		Get("/api/pipeline/stages")
	if err := c.check(resp, err, apiErr); err != nil {
		return nil, fmt.Errorf("registro de etapas: %w", err)
	}
	return result, nil
}

// History historial de transiciones de un documento.
func (c *Client) History(ctx context.Context, itemID string) ([]dto.PipelineTransitionDTO, error) {
	var result []dto.PipelineTransitionDTO
	apiErr := new(dto.ErrorResponse)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", itemID).
		SetResult(&result).
		SetError(apiErr).
		Get("/api/pipeline/items/{id}/history")
	if err := c.check(resp, err, apiErr); err != nil {
		return nil, fmt.Errorf("historial %s: %w", itemID, err)
	}
	return result, nil
}

// check traduce fallos de transporte y respuestas de error a *domain.TransitionError.
// El error de transporte queda como Cause.
func (c *Client) check(resp *resty.Response, err error, apiErr *dto.ErrorResponse) error {
	if err != nil {
		ev := c.log.Debug().Err(err)
		if resp != nil && resp.Request != nil {
			ev = ev.Str("method", resp.Request.Method).Str("url", resp.Request.URL)
		}
		ev.Msg("fallo de transporte")
		te := domain.NewTransitionError(domain.ErrNetworkFailure, "")
		te.Cause = err
		return te
	}
	code := resp.StatusCode()
	if code < http.StatusBadRequest {
		return nil
	}
	msg := ""
	if apiErr != nil {
		msg = apiErr.Message
	}
	return domain.NewTransitionError(kindForStatus(code), msg)
}

func kindForStatus(code int) error {
	switch {
	case code == http.StatusConflict:
		return domain.ErrStaleState
	case code == http.StatusUnprocessableEntity:
		return domain.ErrIllegalTransition
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case code == http.StatusForbidden:
		return domain.ErrForbidden
	case code >= http.StatusInternalServerError:
		return domain.ErrNetworkFailure
	default:
		return domain.ErrInvalidInput
	}
}
