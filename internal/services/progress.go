package services

import (
	"slices"
)

// Progress is one status line of an aggregation. Percent never decreases
// within a request and Log holds every message so far, oldest first.
type Progress struct {
	Percent int      `json:"percent"`
	Message string   `json:"message"`
	Log     []string `json:"log"`
}

type ProgressFunc func(Progress)

// progressTracker is owned by the orchestrating goroutine of one request.
type progressTracker struct {
	sink    ProgressFunc
	percent int
	log     []string
}

func newProgressTracker(sink ProgressFunc) *progressTracker {
	return &progressTracker{sink: sink}
}

func (p *progressTracker) report(percent int, message string) {
	percent = min(max(percent, p.percent), 100)
	p.percent = percent
	p.log = append(p.log, message)

	if p.sink != nil {
		p.sink(Progress{
			Percent: percent,
			Message: message,
			Log:     slices.Clone(p.log),
		})
	}
}
