package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cpuguy83/agenda/internal/auth"
	"github.com/cpuguy83/agenda/internal/calendar"
)

// SourceName is the name events fetched from the backend carry.
const SourceName = "agenda"

// Client talks to the agenda REST service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenProvider
	loc        *time.Location
}

// NewClient creates a client for baseURL. A nil tokens provider sends anonymous requests.
func NewClient(baseURL string, httpClient *http.Client, tokens auth.TokenProvider, loc *time.Location) *Client {
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}
	if tokens == nil {
		tokens = auth.None{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tokens:     tokens,
		loc:        loc,
	}
}

// DefaultHTTPClient returns the HTTP client used when none is given.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// Name implements calendar.Source.
func (c *Client) Name() string {
	return SourceName
}

// Corrupt describes a record dropped because it could not be converted.
type Corrupt struct {
	ID  string
	Err error
}

// FetchResult is the outcome of a month fetch.
type FetchResult struct {
	Events  []calendar.Event
	Corrupt []Corrupt
}

// Fetch loads the agenda of one month. Malformed records are left out of
// Events and listed in Corrupt.
func (c *Client) Fetch(ctx context.Context, year int, month time.Month) (*FetchResult, error) {
	q := url.Values{}
	q.Set("mes", strconv.Itoa(int(month)))
	q.Set("anio", strconv.Itoa(year))

	var records []Record
	if _, err := c.do(ctx, http.MethodGet, "/agenda?"+q.Encode(), nil, nil, &records); err != nil {
		return nil, fmt.Errorf("fetch agenda %04d-%02d: %w", year, int(month), err)
	}

	res := &FetchResult{Events: make([]calendar.Event, 0, len(records))}
	for i := range records {
		e, err := records[i].Event(c.loc)
		if err != nil {
			res.Corrupt = append(res.Corrupt, Corrupt{ID: string(records[i].ID), Err: err})
			continue
		}
		e.Source = SourceName
		res.Events = append(res.Events, e)
	}
	return res, nil
}

// FetchMonth implements calendar.Source. Dropped records are logged.
func (c *Client) FetchMonth(ctx context.Context, year int, month time.Month) ([]calendar.Event, error) {
	res, err := c.Fetch(ctx, year, month)
	if err != nil {
		return nil, err
	}
	for _, bad := range res.Corrupt {
		slog.Warn("dropping malformed agenda record", "id", bad.ID, "error", bad.Err)
	}
	return res.Events, nil
}

// Get loads a single agenda item.
func (c *Client) Get(ctx context.Context, id string) (calendar.Event, error) {
	var r Record
	if _, err := c.do(ctx, http.MethodGet, "/agenda/"+url.PathEscape(id), nil, nil, &r); err != nil {
		return calendar.Event{}, fmt.Errorf("get agenda %s: %w", id, err)
	}
	e, err := r.Event(c.loc)
	if err != nil {
		return calendar.Event{}, err
	}
	e.Source = SourceName
	return e, nil
}

// Update sends the full record of e. The returned event reflects the
// backend's answer when it sends one back, and e otherwise.
func (c *Client) Update(ctx context.Context, e calendar.Event) (calendar.Event, error) {
	rec := FromEvent(e)
	var out Record
	resp, err := c.do(ctx, http.MethodPut, "/agenda/"+url.PathEscape(e.ID), nil, rec, &out)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("update agenda %s: %w", e.ID, err)
	}
	return c.updated(e, out, resp), nil
}

// UpdateStatus sends only the new status. When e carries a version it is
// sent as If-Match so a concurrent change is reported as ErrConflict.
func (c *Client) UpdateStatus(ctx context.Context, e calendar.Event, to calendar.Status) (calendar.Event, error) {
	header := http.Header{}
	if e.Version != "" {
		header.Set("If-Match", e.Version)
	}

	body := struct {
		Status calendar.Status `json:"estado"`
	}{to}

	var out Record
	resp, err := c.do(ctx, http.MethodPatch, "/agenda/"+url.PathEscape(e.ID)+"/estado", header, body, &out)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("update status of agenda %s: %w", e.ID, err)
	}

	e.Status = to
	return c.updated(e, out, resp), nil
}

// updated picks the event to report after a write. An echoed record without
// estado or version keeps what was sent, since the write succeeded.
func (c *Client) updated(sent calendar.Event, out Record, resp *http.Response) calendar.Event {
	if etag := resp.Header.Get("ETag"); etag != "" {
		sent.Version = etag
	}
	if out.ID != "" {
		if e, err := out.Event(c.loc); err == nil {
			if out.Status == "" {
				e.Status = sent.Status
			}
			if out.Version == "" {
				e.Version = sent.Version
			}
			e.Source = sent.Source
			return e
		}
	}
	return sent
}

// do sends a request and decodes a JSON answer into out when there is one.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, in, out any) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: backend url not configured", ErrInvalidInput)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	tok, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if tok != nil && tok.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}

	slog.Debug("backend request", "method", method, "path", path, "request_id", reqID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return resp, err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	return resp, decode(resp.Body, out)
}

// checkStatus maps a non-2xx response to a sentinel error.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := errorMessage(resp.Body)
	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrUnauthorized
	case http.StatusConflict, http.StatusPreconditionFailed:
		sentinel = ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = ErrInvalidInput
	default:
		return fmt.Errorf("agenda service unexpected status: %d %s", resp.StatusCode, msg)
	}
	if msg == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, msg)
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// decode reads a JSON body into out. List endpoints may wrap their payload
// as {"data": ...}; both shapes are accepted. An empty body leaves out untouched.
func decode(r io.Reader, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	if data[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(data, &wrapped) == nil && len(wrapped.Data) > 0 && !bytes.Equal(wrapped.Data, []byte("null")) {
			data = wrapped.Data
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ calendar.Source = (*Client)(nil)
