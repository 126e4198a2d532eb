package jobs

import (
	"context"
	"errors"
	"sort"

	"github.com/CosmoTheDev/reconctl/internal/reconapi"
	"github.com/CosmoTheDev/reconctl/models"
)

// NoScans is shown when history is empty or could not be loaded.
const NoScans = "No scans found."

// Lister returns every scan known to the service.
type Lister interface {
	ListScans(ctx context.Context) ([]models.Scan, error)
}

// HistoryFetcher loads the remote scan history once per call.
type HistoryFetcher struct {
	api Lister
}

func NewHistoryFetcher(api Lister) *HistoryFetcher {
	return &HistoryFetcher{api: api}
}

// List returns history rows newest first. Any failure is a *reconapi.FetchError;
// callers show an empty state rather than failing.
func (h *HistoryFetcher) List(ctx context.Context) ([]Summary, error) {
	scans, err := h.api.ListScans(ctx)
	if err != nil {
		var fe *reconapi.FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &reconapi.FetchError{Op: "list scans", Err: err}
	}

	out := make([]Summary, 0, len(scans))
	for i := range scans {
		out = append(out, Summarize(&scans[i]))
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders rows by creation time, descending. Rows with equal
// times keep a stable order by id.
func SortNewestFirst(rows []Summary) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
}
