package perf

import (
	"context"
	"sync"
	"time"

	"github.com/quillpress/quill/src/jobs"
)

type RequestPerf struct {
	Route  string
	Path   string // the path actually matched
	Method string
	Start  time.Time
	End    time.Time
	Blocks []PerfBlock

	mu sync.Mutex
}

func MakeNewRequestPerf(route string, method string, path string) *RequestPerf {
	return &RequestPerf{
		Start:  time.Now(),
		Route:  route,
		Path:   path,
		Method: method,
	}
}

func (rp *RequestPerf) EndRequest() {
	if rp == nil {
		return
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	for i := range rp.Blocks {
		if rp.Blocks[i].End.IsZero() {
			rp.Blocks[i].End = time.Now()
		}
	}
	rp.End = time.Now()
}

func (rp *RequestPerf) Checkpoint(category, description string) {
	if rp == nil {
		return
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	now := time.Now()
	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       now,
		End:         now,
		Category:    category,
		Description: description,
	})
}

// StartBlock opens a timed block. Call End on the returned handle to close
// it. Safe to call on a nil RequestPerf.
func (rp *RequestPerf) StartBlock(category, description string) BlockHandle {
	if rp == nil {
		return BlockHandle{}
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()

	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       time.Now(),
		Category:    category,
		Description: description,
	})
	return BlockHandle{
		rp:    rp,
		index: len(rp.Blocks) - 1,
	}
}

func (rp *RequestPerf) MsFromStart(block *PerfBlock) float64 {
	return float64(block.Start.Sub(rp.Start).Nanoseconds()) / 1000 / 1000
}

func (rp *RequestPerf) Duration() time.Duration {
	return rp.End.Sub(rp.Start)
}

type BlockHandle struct {
	rp    *RequestPerf
	index int
}

func (h BlockHandle) End() {
	if h.rp == nil {
		return
	}

	h.rp.mu.Lock()
	defer h.rp.mu.Unlock()

	if h.rp.Blocks[h.index].End.IsZero() {
		h.rp.Blocks[h.index].End = time.Now()
	}
}

type PerfBlock struct {
	Start       time.Time
	End         time.Time
	Category    string
	Description string
}

func (pb *PerfBlock) Duration() time.Duration {
	return pb.End.Sub(pb.Start)
}

func (pb *PerfBlock) DurationMs() float64 {
	return float64(pb.Duration().Nanoseconds()) / 1000 / 1000
}

type perfContextKeyType struct{}

// PerfContextKey looks up the current request's *RequestPerf in a context.
var PerfContextKey = perfContextKeyType{}

// ExtractPerf returns the request perf attached to ctx, or nil. All
// RequestPerf methods accept a nil receiver.
func ExtractPerf(ctx context.Context) *RequestPerf {
	if ctx == nil {
		return nil
	}
	rp, _ := ctx.Value(PerfContextKey).(*RequestPerf)
	return rp
}

func AttachPerfToContext(ctx context.Context, rp *RequestPerf) context.Context {
	return context.WithValue(ctx, PerfContextKey, rp)
}

// Only the most recent requests are kept.
const MaxStoredRequests = 1000

type PerfStorage struct {
	AllRequests []*RequestPerf
}

type PerfCollector struct {
	In          chan<- *RequestPerf
	RequestCopy chan<- (chan<- PerfStorage)

	job *jobs.Job
}

func RunPerfCollector() (*PerfCollector, *jobs.Job) {
	in := make(chan *RequestPerf)
	job := jobs.New("perf collector")
	requestCopy := make(chan (chan<- PerfStorage))

	var storage PerfStorage

	go func() {
		defer job.Finish()

		for {
			select {
			case perf := <-in:
				storage.AllRequests = append(storage.AllRequests, perf)
				if len(storage.AllRequests) > MaxStoredRequests {
					storage.AllRequests = storage.AllRequests[len(storage.AllRequests)-MaxStoredRequests:]
				}
			case resultChan := <-requestCopy:
				resultChan <- PerfStorage{
					AllRequests: append([]*RequestPerf(nil), storage.AllRequests...),
				}
			case <-job.Canceled():
				return
			}
		}
	}()

	perfCollector := PerfCollector{
		In:          in,
		RequestCopy: requestCopy,
		job:         job,
	}
	return &perfCollector, job
}

func (perfCollector *PerfCollector) SubmitRun(run *RequestPerf) {
	if perfCollector == nil {
		return
	}
	select {
	case perfCollector.In <- run:
	case <-perfCollector.job.Canceled():
	}
}

// GetPerfCopy returns an empty storage once the collector has shut down.
func (perfCollector *PerfCollector) GetPerfCopy() *PerfStorage {
	resultChan := make(chan PerfStorage, 1)
	select {
	case perfCollector.RequestCopy <- resultChan:
	case <-perfCollector.job.Canceled():
		return &PerfStorage{}
	}
	perfStorageCopy := <-resultChan
	return &perfStorageCopy
}
