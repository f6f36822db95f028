// Package api is the typed REST surface of the nearby backend.
package api

import (
	"context"
	"strconv"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/zfogg/nearby/cli/pkg/client"
	clierrors "github.com/zfogg/nearby/cli/pkg/errors"
	"github.com/zfogg/nearby/cli/pkg/paging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// API issues requests through a client.Client.
type API struct {
	c *client.Client
}

// New wraps c.
func New(c *client.Client) *API {
	return &API{c: c}
}

// Client returns the underlying client.
func (a *API) Client() *client.Client { return a.c }

// Pagination is the wire form of a page descriptor.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount *int `json:"totalCount,omitempty"`
}

// Paging converts to the paging package's form.
func (p *Pagination) Paging() paging.Pagination {
	if p == nil {
		return paging.Pagination{}
	}
	out := paging.Pagination{Page: p.Page, Limit: p.Limit}
	if p.TotalCount != nil {
		out.TotalCount = *p.TotalCount
		out.HasTotal = true
	}
	return out
}

// Envelope is the shape of every response body.
type Envelope[T any] struct {
	Success    bool        `json:"success"`
	Data       T           `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Code       string      `json:"code,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// pageParams renders page and limit as query parameters.
func pageParams(page, limit int) map[string]string {
	return map[string]string{
		"page":  strconv.Itoa(page),
		"limit": strconv.Itoa(limit),
	}
}

// decode checks resp and unwraps its envelope.
func decode[T any](resp *resty.Response, err error) (Envelope[T], error) {
	var env Envelope[T]
	if err := CheckResponse(resp, err); err != nil {
		return env, err
	}
	if len(resp.Body()) == 0 {
		env.Success = true
		return env, nil
	}
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return env, clierrors.DecodeError(err)
	}
	if !env.Success {
		return env, clierrors.RejectedError(env.Message).WithCause(&APIError{
			Code:       env.Code,
			Message:    env.Message,
			StatusCode: resp.StatusCode(),
		})
	}
	return env, nil
}

// one decodes a single-record response.
func one[T any](resp *resty.Response, err error) (*T, error) {
	env, err := decode[T](resp, err)
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// list decodes a paginated response.
func list[T any](resp *resty.Response, err error) (paging.Page[T], error) {
	env, err := decode[[]T](resp, err)
	if err != nil {
		return paging.Page[T]{}, err
	}
	return paging.Page[T]{Items: env.Data, Pagination: env.Pagination.Paging()}, nil
}

// getList fetches one page of path with the bearer token.
func getList[T any](ctx context.Context, a *API, path string, page, limit int) (paging.Page[T], error) {
	req, err := a.c.AuthR(ctx)
	if err != nil {
		return paging.Page[T]{}, err
	}
	return list[T](req.SetQueryParams(pageParams(page, limit)).Get(path))
}
