package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agendaslug/agenda/services/slots-service/internal/availability"
)

const rulesPath = "/api/disponibilidadxslug/"

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// If nil, http.DefaultTransport is used. It is always wrapped for tracing.
	Transport http.RoundTripper
}

// Client calls the booking backend's availability lookup.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url must be http(s), got %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
	}, nil
}

// ListRules returns every availability rule of the tenant. Filtering happens in the caller.
func (c *Client) ListRules(ctx context.Context, sess Session, tenant string) ([]availability.Rule, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, errors.New("tenant is required")
	}
	endpoint := c.baseURL.JoinPath(rulesPath, tenant)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	sess.apply(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("availability lookup: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read availability response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp.StatusCode, body)
	}

	var wire []wireRule
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode availability response: %w", err)
	}
	rules := make([]availability.Rule, 0, len(wire))
	for _, w := range wire {
		rules = append(rules, w.rule())
	}
	return rules, nil
}

// Ping checks that the backend answers HTTP at all; any status counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func apiError(status int, body []byte) error {
	var payload struct {
		Msg string `json:"msg"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = strings.TrimSpace(payload.Msg)
	}
	if msg == "" {
		msg = fmt.Sprintf("Error %d", status)
	}
	return &APIError{Status: status, Message: msg}
}

type wireRule struct {
	ID        string  `json:"_id"`
	Location  wireRef `json:"sede"`
	Staff     wireRef `json:"colaborador"`
	DayOfWeek int     `json:"diaSemana"`
	StartTime string  `json:"horaInicio"`
	EndTime   string  `json:"horaFin"`
	Active    bool    `json:"activo"`
}

func (w wireRule) rule() availability.Rule {
	return availability.Rule{
		ID:         w.ID,
		StaffID:    w.Staff.ID,
		LocationID: w.Location.ID,
		DayOfWeek:  w.DayOfWeek,
		StartTime:  w.StartTime,
		EndTime:    w.EndTime,
		Active:     w.Active,
	}
}

// wireRef accepts both a populated document ({"_id": ...}) and a bare id string.
type wireRef struct {
	ID string
}

func (r *wireRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}
	var doc struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	r.ID = doc.ID
	return nil
}
