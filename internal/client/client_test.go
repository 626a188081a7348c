package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Paladins-Inn/delphi-council/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchClientCRUD(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.RequestURI())
		mu.Unlock()
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/dispatches":
			var body Dispatch
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body.ID = "d-1"
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/dispatches/count":
			_ = json.NewEncoder(w).Encode(CountResponse{Kind: "dispatches", Count: 7})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/dispatches":
			_ = json.NewEncoder(w).Encode(BasicList[Dispatch]{
				Kind: "dispatches",
				Page: Paging{Start: 5, Size: 2, Count: 1, Total: 6},
				Data: []Dispatch{{Persisted: Persisted{ID: "d-6"}, Code: "DC-6"}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/dispatches/d-1":
			_ = json.NewEncoder(w).Encode(Dispatch{Persisted: Persisted{ID: "d-1"}, Code: "DC-1"})
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/dispatches/d-1":
			var body Dispatch
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			body.Version++
			_ = json.NewEncoder(w).Encode(body)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/dispatches/d-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(server.Close)

	dispatches, err := NewDispatchClient(Config{BaseURL: server.URL + "/", Token: "secret-token"})
	require.NoError(t, err)
	ctx := context.Background()

	created, err := dispatches.Create(ctx, Dispatch{Code: "DC-1", Name: "Alpha"})
	require.NoError(t, err)
	assert.Equal(t, "d-1", created.ID)

	count, err := dispatches.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)

	list, err := dispatches.Retrieve(ctx, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(6), list.Page.Total)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "DC-6", list.Data[0].Code)

	loaded, err := dispatches.RetrieveByID(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "DC-1", loaded.Code)

	updated, err := dispatches.Update(ctx, "d-1", loaded)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated.Version)

	require.NoError(t, dispatches.Delete(ctx, "d-1"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"POST /api/v1/dispatches",
		"GET /api/v1/dispatches/count",
		"GET /api/v1/dispatches?size=2&start=5",
		"GET /api/v1/dispatches/d-1",
		"PUT /api/v1/dispatches/d-1",
		"DELETE /api/v1/dispatches/d-1",
	}, seen)
}

func TestClientMapsErrorCodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/operatives/missing":
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "not found", Code: "operatives.get.not_found"})
		case "/api/v1/missionreports/r-1/operative/o-1":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "clearance", Code: "reports.add_operative.clearance"})
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	operatives, err := NewOperativeClient(Config{BaseURL: server.URL})
	require.NoError(t, err)
	_, err = operatives.RetrieveByID(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "operatives.get.not_found", apiErr.Code)

	reportsClient, err := NewMissionReportClient(Config{BaseURL: server.URL})
	require.NoError(t, err)
	_, err = reportsClient.AddOperative(context.Background(), "r-1", "o-1")
	assert.ErrorIs(t, err, store.ErrInvalid)

	_, err = operatives.Count(context.Background())
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewSpecialMissionClient(Config{BaseURL: " "})
	assert.ErrorIs(t, err, errMissingBaseURL)
}
