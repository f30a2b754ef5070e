package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pivotmedia/newsroom/internal/errclass"
	"github.com/pivotmedia/newsroom/internal/pkg/httpretry"
)

const (
	// pageSize is the backend's list page size.
	pageSize = 100
	// writeBatchSize is the backend's per-call write limit.
	writeBatchSize = 10
)

// Record is one row of a logical table: the backend's opaque row ID plus
// a field map. Typed accessors project field maps into domain structs at
// the package boundary; unknown fields survive updates because patches
// only carry the fields being changed.
type Record struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Client talks to the tabular datastore's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	baseID     string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a datastore client for one base.
func NewClient(baseURL, apiKey, baseID string) *Client {
	if baseURL == "" {
		baseURL = "https://api.airtable.com/v0"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		baseID:  baseID,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 60 * time.Second,
		}, 3),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

type recordsEnvelope struct {
	Records []Record `json:"records"`
}

// doRequest performs an authenticated request and returns the body.
func (c *Client) doRequest(ctx context.Context, method, path string, rawQuery string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, path)
	if rawQuery != "" {
		reqURL += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "store", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errclass.New(errclass.Transient, "store", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errclass.Newf(errclass.FromStatus(resp.StatusCode), "store",
			"API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	return respBody, nil
}

// Find streams every page matching the query from one table.
func (c *Client) Find(ctx context.Context, table string, q Query) ([]Record, error) {
	var all []Record
	offset := ""

	for {
		values := url.Values{}
		if q.Filter != nil {
			values.Set("filterByFormula", q.Filter.Compile())
		}
		for i, s := range q.Sorts {
			values.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
			dir := "asc"
			if s.Desc {
				dir = "desc"
			}
			values.Set(fmt.Sprintf("sort[%d][direction]", i), dir)
		}
		if q.MaxRecords > 0 {
			values.Set("maxRecords", fmt.Sprintf("%d", q.MaxRecords))
		}
		for _, f := range q.Fields {
			values.Add("fields[]", f)
		}
		values.Set("pageSize", fmt.Sprintf("%d", pageSize))
		if offset != "" {
			values.Set("offset", offset)
		}

		respBody, err := c.doRequest(ctx, http.MethodGet, url.PathEscape(table), values.Encode(), nil)
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, errclass.New(errclass.Upstream, "store", err)
		}

		all = append(all, page.Records...)
		if page.Offset == "" {
			break
		}
		if q.MaxRecords > 0 && len(all) >= q.MaxRecords {
			all = all[:q.MaxRecords]
			break
		}
		offset = page.Offset
	}

	return all, nil
}

// Get fetches a single record by row ID. A missing row returns (nil, nil).
func (c *Client) Get(ctx context.Context, table, id string) (*Record, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, url.PathEscape(table)+"/"+id, "", nil)
	if err != nil {
		if errclass.ClassOf(err) == errclass.InvalidInput {
			return nil, nil
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(respBody, &rec); err != nil {
		return nil, errclass.New(errclass.Upstream, "store", err)
	}
	return &rec, nil
}

// Insert creates one record and returns its row ID.
func (c *Client) Insert(ctx context.Context, table string, fields map[string]interface{}) (string, error) {
	ids, err := c.InsertBatch(ctx, table, []map[string]interface{}{fields})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", errclass.Newf(errclass.Upstream, "store", "insert returned no record")
	}
	return ids[0], nil
}

// InsertBatch creates records in chunks of the backend write limit and
// returns the new row IDs in input order.
func (c *Client) InsertBatch(ctx context.Context, table string, rows []map[string]interface{}) ([]string, error) {
	var ids []string
	for start := 0; start < len(rows); start += writeBatchSize {
		end := start + writeBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		chunk := rows[start:end]
		payload := recordsEnvelope{Records: make([]Record, len(chunk))}
		for i, fields := range chunk {
			payload.Records[i] = Record{Fields: fields}
		}

		respBody, err := c.doRequest(ctx, http.MethodPost, url.PathEscape(table), "", payload)
		if err != nil {
			return ids, err
		}

		var created recordsEnvelope
		if err := json.Unmarshal(respBody, &created); err != nil {
			return ids, errclass.New(errclass.Upstream, "store", err)
		}
		for _, rec := range created.Records {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

// Update patches a single record. Only the supplied fields change.
func (c *Client) Update(ctx context.Context, table, id string, patch map[string]interface{}) error {
	_, err := c.doRequest(ctx, http.MethodPatch, url.PathEscape(table)+"/"+id, "",
		map[string]interface{}{"fields": patch})
	return err
}

// Delete removes a single record.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, url.PathEscape(table)+"/"+id, "", nil)
	return err
}

// Upsert updates the first record whose matchField equals the row's
// value, creating it when absent. Returns the row ID.
func (c *Client) Upsert(ctx context.Context, table, matchField string, fields map[string]interface{}) (string, error) {
	value, _ := fields[matchField].(string)
	existing, err := c.Find(ctx, table, Query{
		Filter:     Eq(matchField, value),
		MaxRecords: 1,
	})
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		if err := c.Update(ctx, table, existing[0].ID, fields); err != nil {
			return "", err
		}
		return existing[0].ID, nil
	}
	return c.Insert(ctx, table, fields)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ========== Field map helpers ==========

// Str reads a string field, tolerating absence.
func (r Record) Str(field string) string {
	v, _ := r.Fields[field].(string)
	return v
}

// Int reads a numeric field. JSON numbers decode as float64.
func (r Record) Int(field string) int {
	switch v := r.Fields[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Float reads a numeric field as float64.
func (r Record) Float(field string) float64 {
	switch v := r.Fields[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Bool reads a checkbox field.
func (r Record) Bool(field string) bool {
	v, _ := r.Fields[field].(bool)
	return v
}

// Time parses an RFC 3339 timestamp field; the zero time means absent
// or unparseable.
func (r Record) Time(field string) time.Time {
	s := r.Str(field)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		// Some backends emit dates without a time component.
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
