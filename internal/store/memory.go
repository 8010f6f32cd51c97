package store

import (
	"sort"
	"sync"

	"meetscribe/internal/domain"
)

// Memory is an in-process SegmentStore. Segments live only for the process
// lifetime; durable storage sits behind the same port in the host app.
type Memory struct {
	mu     sync.Mutex
	nextID int64
	byRec  map[string][]domain.Segment
}

func NewMemory() *Memory {
	return &Memory{byRec: make(map[string][]domain.Segment)}
}

// SaveSegment assigns the segment an id and appends it to its recording.
func (m *Memory) SaveSegment(seg domain.Segment) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	seg.ID = m.nextID
	m.byRec[seg.RecordingID] = append(m.byRec[seg.RecordingID], seg)
	return seg.ID, nil
}

// ReplaceLiveSegments drops every stored segment for the recording and
// installs the diarized set in its place, assigning fresh ids.
func (m *Memory) ReplaceLiveSegments(recordingID string, diarized []domain.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replacement := make([]domain.Segment, 0, len(diarized))
	for _, seg := range diarized {
		m.nextID++
		seg.ID = m.nextID
		seg.RecordingID = recordingID
		replacement = append(replacement, seg)
	}
	m.byRec[recordingID] = replacement
	return nil
}

// Segments returns the recording's segments ordered by start time.
func (m *Memory) Segments(recordingID string) ([]domain.Segment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.byRec[recordingID]
	out := make([]domain.Segment, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}
