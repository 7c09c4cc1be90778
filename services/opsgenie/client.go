package opsgenie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ErrNotFound is returned when OpsGenie reports that a team or user does not exist.
var ErrNotFound = errors.New("opsgenie resource not found")

// IdentifierType tells OpsGenie how to interpret a team or user identifier.
type IdentifierType string

const (
	IdentifierName IdentifierType = "name"
)

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// AlertResponse is the acknowledgement returned for an accepted alert.
type AlertResponse struct {
	Result    string  `json:"result"`
	Took      float64 `json:"took"`
	RequestID string  `json:"requestId"`
}

// API is the subset of the OpsGenie API used to route alerts.
type API interface {
	CreateAlert(ctx context.Context, p AlertPayload) (AlertResponse, error)
	GetTeam(ctx context.Context, identifier string, typ IdentifierType) (Team, error)
	GetUser(ctx context.Context, identifier string) (User, error)
}

// APIError is a non-success response from the OpsGenie API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("opsgenie error: %s (status %d)", e.Message, e.StatusCode)
}

// Client talks to the OpsGenie REST API with a single API key.
type Client struct {
	url    *url.URL
	apiKey string
	client *http.Client
}

func NewClient(apiURL, apiKey string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid OpsGenie URL %q", apiURL)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		url:    u,
		apiKey: apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: promhttp.InstrumentRoundTripperCounter(requestsTotal, transport),
		},
	}, nil
}

func (c *Client) CreateAlert(ctx context.Context, p AlertPayload) (AlertResponse, error) {
	var r AlertResponse
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(p); err != nil {
		return r, errors.Wrap(err, "failed to encode alert")
	}
	req, err := c.newRequest(ctx, "POST", nil, &body, "v2", "alerts")
	if err != nil {
		return r, err
	}
	err = c.do(req, http.StatusAccepted, &r)
	return r, err
}

func (c *Client) GetTeam(ctx context.Context, identifier string, typ IdentifierType) (Team, error) {
	var r struct {
		Data Team `json:"data"`
	}
	q := url.Values{"identifierType": []string{string(typ)}}
	req, err := c.newRequest(ctx, "GET", q, nil, "v2", "teams", identifier)
	if err != nil {
		return r.Data, err
	}
	err = c.do(req, http.StatusOK, &r)
	return r.Data, err
}

func (c *Client) GetUser(ctx context.Context, identifier string) (User, error) {
	var r struct {
		Data User `json:"data"`
	}
	req, err := c.newRequest(ctx, "GET", nil, nil, "v2", "users", identifier)
	if err != nil {
		return r.Data, err
	}
	err = c.do(req, http.StatusOK, &r)
	return r.Data, err
}

// newRequest joins the escaped path segments onto the base URL.
func (c *Client) newRequest(ctx context.Context, method string, q url.Values, body *bytes.Buffer, segments ...string) (*http.Request, error) {
	u := *c.url
	raw := []string{"/", u.Path}
	escaped := []string{"/", u.EscapedPath()}
	for _, s := range segments {
		raw = append(raw, s)
		escaped = append(escaped, url.PathEscape(s))
	}
	u.Path = path.Join(raw...)
	u.RawPath = path.Join(escaped...)
	u.RawQuery = q.Encode()

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare API request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "GenieKey "+c.apiKey)
	return req, nil
}

func (c *Client) do(req *http.Request, expected int, v interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to execute API request")
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read API response")
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != expected {
		r := struct {
			Message string `json:"message"`
		}{
			Message: fmt.Sprintf("failed to understand OpsGenie response. code: %d content: %s", resp.StatusCode, string(body)),
		}
		json.Unmarshal(body, &r)
		return &APIError{StatusCode: resp.StatusCode, Message: r.Message}
	}
	if len(body) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(body, v), "failed to decode API response")
}
