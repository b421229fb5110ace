package dblog

import "time"

// Stats is a point-in-time copy of a logger's counters.
type Stats struct {
	TotalLogged           int64
	TotalFailed           int64
	FlushCount            int64
	BatchCount            int64
	MinBatchSize          int
	MaxBatchSize          int
	AvgBatchSize          float64
	MaxProcessingTimeMs   float64
	TotalProcessingTimeMs float64
}

type statsAccumulator struct {
	Stats
	batchRows int64
}

func (s *statsAccumulator) reset() {
	*s = statsAccumulator{}
}

func (s *statsAccumulator) failed(n int) {
	s.TotalFailed += int64(n)
}

func (s *statsAccumulator) processed(rows int, d time.Duration, err error) {
	ms := float64(d) / float64(time.Millisecond)
	s.TotalProcessingTimeMs += ms
	if ms > s.MaxProcessingTimeMs {
		s.MaxProcessingTimeMs = ms
	}
	if err != nil {
		s.TotalFailed += int64(rows)
		return
	}
	s.TotalLogged += int64(rows)
}

func (s *statsAccumulator) batch(rows int) {
	s.BatchCount++
	s.batchRows += int64(rows)
	if s.MinBatchSize == 0 || rows < s.MinBatchSize {
		s.MinBatchSize = rows
	}
	if rows > s.MaxBatchSize {
		s.MaxBatchSize = rows
	}
	s.AvgBatchSize = float64(s.batchRows) / float64(s.BatchCount)
}

func (l *Logger) Stats() Stats {
	l.statsMu.Lock()
	defer l.statsMu.Unlock()
	return l.stats.Stats
}

func (l *Logger) ResetStats() {
	l.statsMu.Lock()
	l.stats.reset()
	l.statsMu.Unlock()
}
