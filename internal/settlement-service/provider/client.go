package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

var (
	// ErrUpstreamUnavailable: fornecedor fora do ar ou respondendo 5xx após as tentativas
	ErrUpstreamUnavailable = errors.New("result provider unavailable")
	// ErrMalformedResult: resposta sem is_declared ou com corpo inválido
	ErrMalformedResult = errors.New("malformed result response")
	// ErrSettlementRPC: status inesperado (4xx) do fornecedor
	ErrSettlementRPC = errors.New("result provider rpc error")
)

// resultResponse é o formato de GET /results
type resultResponse struct {
	IsDeclared  *bool  `json:"is_declared"`
	FinalResult string `json:"final_result"`
}

type Options struct {
	Timeout    time.Duration
	RPS        float64
	RetryCount int
	RetryWait  time.Duration
}

// Client consulta resultados declarados no fornecedor
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, opts Options) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = 0
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = 200 * time.Millisecond
	}

	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(4 * opts.RetryWait).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), 1),
	}
}

// Result devolve se o mercado tem resultado declarado e o código vencedor
func (c *Client) Result(ctx context.Context, eventID, marketID string) (bool, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, "", err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("eventId", eventID).
		SetQueryParam("marketId", marketID).
		Get("/results")
	if err != nil {
		if ctx.Err() != nil {
			return false, "", ctx.Err()
		}
		return false, "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	switch {
	case resp.StatusCode() >= http.StatusInternalServerError:
		return false, "", fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode())
	case resp.StatusCode() == http.StatusNotFound:
		// mercado desconhecido pelo fornecedor = ainda sem resultado
		return false, "", nil
	case !resp.IsSuccess():
		return false, "", fmt.Errorf("%w: status %d: %s", ErrSettlementRPC, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}

	var out resultResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return false, "", fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if out.IsDeclared == nil {
		return false, "", fmt.Errorf("%w: missing is_declared", ErrMalformedResult)
	}
	if !*out.IsDeclared {
		return false, "", nil
	}
	if out.FinalResult == "" {
		return false, "", fmt.Errorf("%w: declared without final_result", ErrMalformedResult)
	}
	return true, out.FinalResult, nil
}
