package agenda

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/InstitutoBarrosTecnologia/SistemaInstituto-sub000/libs/httpx"
)

type RESTConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// RESTProvider books appointments through the clinic's agenda HTTP API.
// Requests are never retried.
type RESTProvider struct {
	client *resty.Client
}

type createdAppointment struct {
	ID string `json:"id"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e apiError) text() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return e.Error
}

func NewRESTProvider(cfg RESTConfig) (*RESTProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("agenda base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	return &RESTProvider{client: client}, nil
}

func (p *RESTProvider) CreateAppointment(ctx context.Context, req Request) (string, error) {
	var created createdAppointment
	var failure apiError
	r := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&created).
		SetError(&failure)
	if id := httpx.RequestIDFromContext(ctx); id != "" {
		r.SetHeader(httpx.RequestIDHeader, id)
	}

	resp, err := r.Post("/api/v1/appointments")
	if err != nil {
		return "", fmt.Errorf("agenda request failed: %w", err)
	}
	switch {
	case resp.StatusCode() == http.StatusConflict:
		return "", &ConflictError{Detail: failure.text()}
	case resp.IsError():
		msg := failure.text()
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return "", fmt.Errorf("agenda returned %d: %s", resp.StatusCode(), msg)
	}
	if created.ID == "" {
		return "", errors.New("agenda response missing appointment id")
	}
	return created.ID, nil
}

// ReadyCheck calls the agenda API health endpoint.
func (p *RESTProvider) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		resp, err := p.client.R().SetContext(ctx).Get("/healthz")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("agenda health returned %d", resp.StatusCode())
		}
		return nil
	}
}
