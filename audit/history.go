package audit

import (
	"sync"

	"github.com/halftrip/cachepurge"
)

// Record is one audited purge pass.
type Record struct {
	Seq          uint64                    `json:"seq"`
	AtUnixMs     int64                     `json:"atUnixMs"`
	PassID       string                    `json:"passId"`
	AllSucceeded bool                      `json:"allSucceeded"`
	DurationMs   int64                     `json:"durationMs"`
	Outcomes     []cachepurge.PurgeOutcome `json:"outcomes"`
}

// Failed returns the names of adapters that were not cleared.
func (r Record) Failed() []string {
	var out []string
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o.Adapter)
		}
	}
	return out
}

// History is a fixed-size buffer of purge records. It implements cachepurge.Recorder.
type History struct {
	mu       sync.Mutex
	capacity int
	records  []Record
	nextSeq  uint64
}

// NewHistory constructs a history holding at most capacity records.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 256
	}
	return &History{capacity: capacity, nextSeq: 1}
}

var _ cachepurge.Recorder = (*History)(nil)

// Record implements cachepurge.Recorder.
func (h *History) Record(res cachepurge.AggregateResult) {
	h.Append(Record{
		AtUnixMs:     res.FinishedAt.UnixMilli(),
		PassID:       res.PassID,
		AllSucceeded: res.AllSucceeded,
		DurationMs:   res.Duration().Milliseconds(),
		Outcomes:     append([]cachepurge.PurgeOutcome(nil), res.Outcomes...),
	})
}

// Append adds a record and returns its assigned sequence.
func (h *History) Append(rec Record) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.Seq = h.nextSeq
	h.nextSeq++
	if len(h.records) >= h.capacity {
		copy(h.records, h.records[1:])
		h.records[len(h.records)-1] = rec
	} else {
		h.records = append(h.records, rec)
	}
	return rec.Seq
}

// Since returns records with seq > after and the latest delivered seq.
func (h *History) Since(after uint64) ([]Record, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	latest := after
	idx := 0
	for idx < len(h.records) && h.records[idx].Seq <= after {
		idx++
	}
	if idx == len(h.records) {
		return nil, latest
	}
	out := make([]Record, len(h.records)-idx)
	copy(out, h.records[idx:])
	return out, out[len(out)-1].Seq
}

// Latest returns the most recent record.
func (h *History) Latest() (Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[len(h.records)-1], true
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
