package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/clothai/clothai/internal/api/response"
	"github.com/clothai/clothai/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ExecutionLister defines the interface the handler depends on.
type ExecutionLister interface {
	ListExecutions(ctx context.Context) ([]models.Execution, error)
}

// NewExecutionsHandler returns an http.HandlerFunc for GET /executions.
// The provider returns the full history in one shot, so pagination is
// applied here.
func NewExecutionsHandler(svc ExecutionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit := parsePagination(r)

		execs, err := svc.ListExecutions(r.Context())
		if err != nil {
			writeStatusFetchError(w, err)
			return
		}

		total := len(execs)
		// Pages past the end collapse to an empty slice. The guard uses
		// division so an arbitrarily large page value cannot overflow the
		// start offset.
		start := total
		if page-1 <= total/limit {
			start = (page - 1) * limit
			if start > total {
				start = total
			}
		}
		end := start + limit
		if end > total {
			end = total
		}

		items := make([]executionResponse, 0, end-start)
		for _, e := range execs[start:end] {
			items = append(items, executionResponse{
				ExecutionID: e.ID,
				Status:      string(e.Status),
				Output:      e.Output,
				ErrorDetail: e.ErrorDetail,
			})
		}

		response.Collection(w, items, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: end < total,
		})
	}
}

func parsePagination(r *http.Request) (page, limit int) {
	page = 1
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

type executionResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	Output      string `json:"output,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}
