package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"

	"github.com/universe-mcp/harvester/internal/index"
	"github.com/universe-mcp/harvester/internal/store"
	"github.com/universe-mcp/harvester/pkg/model"
)

// Response is a generic huma response wrapper.
type Response[T any] struct {
	Body T
}

// GetIndexInput selects one published index document.
type GetIndexInput struct {
	Name string `path:"name" doc:"Index document file name" example:"all-servers.json"`
}

// ListRecordsInput selects one category's records.
type ListRecordsInput struct {
	Category string `path:"category" doc:"Record category" enum:"servers,clients,use-cases" example:"servers"`
	Limit    int    `query:"limit" doc:"Maximum number of records" default:"0" minimum:"0" maximum:"10000" required:"false"`
}

// GetRecordInput selects a single record.
type GetRecordInput struct {
	Category string `path:"category" doc:"Record category" enum:"servers,clients,use-cases" example:"servers"`
	ID       string `path:"id" doc:"Record id (source slug)" example:"github-mcp"`
}

// RecordListResponse is the body of a record listing.
type RecordListResponse struct {
	Records []model.Record `json:"records"`
	Count   int            `json:"count"`
}

// RegisterEndpoints registers the read-only JSON API.
func RegisterEndpoints(api huma.API, records store.Store, indexDir string) {
	huma.Register(api, huma.Operation{
		OperationID: "get-statistics",
		Method:      http.MethodGet,
		Path:        "/v0/statistics",
		Summary:     "Corpus statistics",
		Description: "Get the published statistics document for the harvested corpus.",
		Tags:        []string{"indexes"},
	}, func(_ context.Context, _ *struct{}) (*Response[index.Statistics], error) {
		data, err := os.ReadFile(filepath.Join(indexDir, index.DocStatistics))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, huma.Error404NotFound("Statistics not published yet")
			}
			return nil, huma.Error500InternalServerError("Failed to read statistics", err)
		}
		var stats index.Statistics
		if err := json.Unmarshal(data, &stats); err != nil {
			return nil, huma.Error500InternalServerError("Corrupt statistics document", err)
		}
		return &Response[index.Statistics]{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-index",
		Method:      http.MethodGet,
		Path:        "/v0/indexes/{name}",
		Summary:     "Get a published index document",
		Description: "Get one of the published index documents by file name.",
		Tags:        []string{"indexes"},
	}, func(_ context.Context, input *GetIndexInput) (*Response[any], error) {
		if !index.IsDocument(input.Name) {
			return nil, huma.Error404NotFound(fmt.Sprintf("Unknown index document %q", input.Name))
		}
		data, err := os.ReadFile(filepath.Join(indexDir, input.Name))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, huma.Error404NotFound("Index not published yet")
			}
			return nil, huma.Error500InternalServerError("Failed to read index", err)
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, huma.Error500InternalServerError("Corrupt index document", err)
		}
		return &Response[any]{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/v0/records/{category}",
		Summary:     "List harvested records",
		Description: "Get every harvested record of a category, ordered by id.",
		Tags:        []string{"records"},
	}, func(ctx context.Context, input *ListRecordsInput) (*Response[RecordListResponse], error) {
		category, ok := model.ParseCategory(input.Category)
		if !ok {
			return nil, huma.Error400BadRequest(fmt.Sprintf("Unknown category %q", input.Category))
		}

		recs, err := records.List(ctx, category)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to list records", err)
		}
		if input.Limit > 0 && len(recs) > input.Limit {
			recs = recs[:input.Limit]
		}

		values := make([]model.Record, len(recs))
		for i, rec := range recs {
			values[i] = *rec
		}
		return &Response[RecordListResponse]{
			Body: RecordListResponse{Records: values, Count: len(values)},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/v0/records/{category}/{id}",
		Summary:     "Get one harvested record",
		Tags:        []string{"records"},
	}, func(ctx context.Context, input *GetRecordInput) (*Response[model.Record], error) {
		category, ok := model.ParseCategory(input.Category)
		if !ok {
			return nil, huma.Error400BadRequest(fmt.Sprintf("Unknown category %q", input.Category))
		}

		rec, err := records.Get(ctx, category, input.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, huma.Error404NotFound("Record not found")
			}
			return nil, huma.Error500InternalServerError("Failed to get record", err)
		}
		return &Response[model.Record]{Body: *rec}, nil
	})
}
