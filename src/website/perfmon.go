package website

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/perf"
)

type FlameItem struct {
	Offset      int64
	Duration    int64
	Category    string
	Description string
	Children    []*FlameItem
	End         time.Time  `json:"-"`
	Parent      *FlameItem `json:"-"`
}

type PerfRecord struct {
	Route     string
	Path      string
	Duration  int64
	Breakdown *FlameItem
}

// buildPerfRecords nests each request's blocks by time, in microseconds from
// the start of the request.
func buildPerfRecords(perfData *perf.PerfStorage) []PerfRecord {
	perfRecords := []PerfRecord{}
	for _, item := range perfData.AllRequests {
		record := PerfRecord{
			Route:    item.Route,
			Path:     item.Path,
			Duration: item.End.Sub(item.Start).Microseconds(),
			Breakdown: &FlameItem{
				Offset:   0,
				Duration: item.End.Sub(item.Start).Microseconds(),
				End:      item.End,
			},
		}

		parent := record.Breakdown
		for _, block := range item.Blocks {
			for parent.Parent != nil && block.End.After(parent.End) {
				parent = parent.Parent
			}
			flame := FlameItem{
				Offset:      block.Start.Sub(item.Start).Microseconds(),
				Duration:    block.End.Sub(block.Start).Microseconds(),
				Category:    block.Category,
				Description: block.Description,
				End:         block.End,
				Parent:      parent,
			}

			parent.Children = append(parent.Children, &flame)
			parent = &flame
		}

		perfRecords = append(perfRecords, record)
	}
	return perfRecords
}

// PerfmonHandler dumps recent request timings as JSON. It is only mounted on
// the private server.
func PerfmonHandler(perfCollector *perf.PerfCollector) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		perfJSON, err := json.Marshal(buildPerfRecords(perfCollector.GetPerfCopy()))
		if err != nil {
			logging.Error().Err(err).Msg("failed to marshal perf data")
			http.Error(rw, "failed to marshal perf data", http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.Write(perfJSON)
	}
}
