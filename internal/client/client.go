package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/store"
)

const (
	defaultTimeout = 10 * time.Second
	apiPrefix      = "/api/v1"
)

var errMissingBaseURL = errors.New("client: base url required")

// Paging describes the window of a BasicList.
type Paging struct {
	Start int64 `json:"start"`
	Size  int64 `json:"size"`
	Count int64 `json:"count"`
	Total int64 `json:"total"`
}

// BasicList is one page of records of a kind.
type BasicList[T any] struct {
	Kind string `json:"kind"`
	Page Paging `json:"page"`
	Data []T    `json:"data"`
}

// CountResponse is returned by the count endpoints.
type CountResponse struct {
	Kind  string `json:"kind"`
	Count int64  `json:"count"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// APIError is returned for non-2xx responses. It unwraps to the store
// sentinel matching the reason of its code.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	reason := e.Code
	if index := strings.LastIndex(reason, "."); index >= 0 {
		reason = reason[index+1:]
	}
	switch reason {
	case "not_found":
		return store.ErrNotFound
	case "conflict":
		return store.ErrConflict
	case "duplicate":
		return store.ErrDuplicate
	case "referenced":
		return store.ErrReferenced
	case "invalid", "clearance", "retired":
		return store.ErrInvalid
	}
	if e.Status == http.StatusNotFound {
		return store.ErrNotFound
	}
	return nil
}

// Config configures the API clients.
type Config struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

type transport struct {
	http    *http.Client
	baseURL string
	token   string
}

func newTransport(cfg Config) (*transport, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("client: base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &transport{http: httpClient, baseURL: baseURL, token: strings.TrimSpace(cfg.Token)}, nil
}

func (t *transport) do(ctx context.Context, method, path string, query url.Values, body, response any) error {
	target := t.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		request.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.http.Do(request)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			apiErr.Code = payload.Code
			if payload.Error != "" {
				apiErr.Message = payload.Error
			}
		}
		return apiErr
	}
	if response == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// StandardClient offers the CRUD calls every resource of the API supports.
type StandardClient[T any] struct {
	transport *transport
	path      string
}

func newStandardClient[T any](cfg Config, resource string) (*StandardClient[T], error) {
	t, err := newTransport(cfg)
	if err != nil {
		return nil, err
	}
	return &StandardClient[T]{transport: t, path: apiPrefix + "/" + resource}, nil
}

// Create stores a new record and returns it as saved.
func (c *StandardClient[T]) Create(ctx context.Context, data T) (T, error) {
	var created T
	err := c.transport.do(ctx, http.MethodPost, c.path, nil, data, &created)
	return created, err
}

// Count returns the number of stored records.
func (c *StandardClient[T]) Count(ctx context.Context) (int64, error) {
	var response CountResponse
	if err := c.transport.do(ctx, http.MethodGet, c.path+"/count", nil, nil, &response); err != nil {
		return 0, err
	}
	return response.Count, nil
}

// Retrieve returns size records beginning with the record at start. A size of
// zero retrieves all records.
func (c *StandardClient[T]) Retrieve(ctx context.Context, start, size int64) (BasicList[T], error) {
	query := url.Values{}
	query.Set("start", strconv.FormatInt(start, 10))
	if size > 0 {
		query.Set("size", strconv.FormatInt(size, 10))
	}
	var list BasicList[T]
	err := c.transport.do(ctx, http.MethodGet, c.path, query, nil, &list)
	return list, err
}

// RetrieveByID loads one record.
func (c *StandardClient[T]) RetrieveByID(ctx context.Context, id string) (T, error) {
	var record T
	err := c.transport.do(ctx, http.MethodGet, c.path+"/"+url.PathEscape(id), nil, nil, &record)
	return record, err
}

// Update replaces the record and returns it as saved.
func (c *StandardClient[T]) Update(ctx context.Context, id string, data T) (T, error) {
	var updated T
	err := c.transport.do(ctx, http.MethodPut, c.path+"/"+url.PathEscape(id), nil, data, &updated)
	return updated, err
}

// Delete removes the record.
func (c *StandardClient[T]) Delete(ctx context.Context, id string) error {
	return c.transport.do(ctx, http.MethodDelete, c.path+"/"+url.PathEscape(id), nil, nil, nil)
}

func (c *StandardClient[T]) participationPath(id, operativeID string) string {
	return c.path + "/" + url.PathEscape(id) + "/operative/" + url.PathEscape(operativeID)
}

// DispatchClient accesses /api/v1/dispatches.
type DispatchClient struct {
	*StandardClient[Dispatch]
}

// NewDispatchClient constructs a DispatchClient.
func NewDispatchClient(cfg Config) (*DispatchClient, error) {
	standard, err := newStandardClient[Dispatch](cfg, "dispatches")
	if err != nil {
		return nil, err
	}
	return &DispatchClient{StandardClient: standard}, nil
}

// MissionClient accesses the dispatches of kind mission.
type MissionClient struct {
	*StandardClient[Mission]
}

// NewMissionClient constructs a MissionClient.
func NewMissionClient(cfg Config) (*MissionClient, error) {
	standard, err := newStandardClient[Mission](cfg, "missions")
	if err != nil {
		return nil, err
	}
	return &MissionClient{StandardClient: standard}, nil
}

// OperationClient accesses the dispatches of kind operation.
type OperationClient struct {
	*StandardClient[Operation]
}

// NewOperationClient constructs an OperationClient.
func NewOperationClient(cfg Config) (*OperationClient, error) {
	standard, err := newStandardClient[Operation](cfg, "operations")
	if err != nil {
		return nil, err
	}
	return &OperationClient{StandardClient: standard}, nil
}

// MissionReportClient accesses /api/v1/missionreports.
type MissionReportClient struct {
	*StandardClient[MissionReport]
}

// NewMissionReportClient constructs a MissionReportClient.
func NewMissionReportClient(cfg Config) (*MissionReportClient, error) {
	standard, err := newStandardClient[MissionReport](cfg, "missionreports")
	if err != nil {
		return nil, err
	}
	return &MissionReportClient{StandardClient: standard}, nil
}

// AddOperative adds the operative to the report.
func (c *MissionReportClient) AddOperative(ctx context.Context, reportID, operativeID string) (OperativeReport, error) {
	var entry OperativeReport
	err := c.transport.do(ctx, http.MethodPut, c.participationPath(reportID, operativeID), nil, nil, &entry)
	return entry, err
}

// UpdateOperative stores the operative's achievements and notes.
func (c *MissionReportClient) UpdateOperative(ctx context.Context, reportID, operativeID string, entry OperativeReport) (OperativeReport, error) {
	var updated OperativeReport
	err := c.transport.do(ctx, http.MethodPost, c.participationPath(reportID, operativeID), nil, entry, &updated)
	return updated, err
}

// RemoveOperative removes the operative from the report.
func (c *MissionReportClient) RemoveOperative(ctx context.Context, reportID, operativeID string) error {
	return c.transport.do(ctx, http.MethodDelete, c.participationPath(reportID, operativeID), nil, nil, nil)
}

// OperativeClient accesses /api/v1/operatives.
type OperativeClient struct {
	*StandardClient[Operative]
}

// NewOperativeClient constructs an OperativeClient.
func NewOperativeClient(cfg Config) (*OperativeClient, error) {
	standard, err := newStandardClient[Operative](cfg, "operatives")
	if err != nil {
		return nil, err
	}
	return &OperativeClient{StandardClient: standard}, nil
}

// History returns the mission history of the operative, latest first.
func (c *OperativeClient) History(ctx context.Context, operativeID string) ([]OperativeDispatchReport, error) {
	var list BasicList[OperativeDispatchReport]
	err := c.transport.do(ctx, http.MethodGet, c.path+"/"+url.PathEscape(operativeID)+"/history", nil, nil, &list)
	return list.Data, err
}

// SpecialMissionClient accesses /api/v1/specialmissions.
type SpecialMissionClient struct {
	*StandardClient[SpecialMission]
}

// NewSpecialMissionClient constructs a SpecialMissionClient.
func NewSpecialMissionClient(cfg Config) (*SpecialMissionClient, error) {
	standard, err := newStandardClient[SpecialMission](cfg, "specialmissions")
	if err != nil {
		return nil, err
	}
	return &SpecialMissionClient{StandardClient: standard}, nil
}

// AddOperative adds the operative to the special mission.
func (c *SpecialMissionClient) AddOperative(ctx context.Context, missionID, operativeID, notes string) (OperativeSpecialReport, error) {
	var entry OperativeSpecialReport
	err := c.transport.do(ctx, http.MethodPut, c.participationPath(missionID, operativeID), nil, OperativeSpecialReport{Notes: notes}, &entry)
	return entry, err
}

// RemoveOperative removes the operative from the special mission.
func (c *SpecialMissionClient) RemoveOperative(ctx context.Context, missionID, operativeID string) error {
	return c.transport.do(ctx, http.MethodDelete, c.participationPath(missionID, operativeID), nil, nil, nil)
}
