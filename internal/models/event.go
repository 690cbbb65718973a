package models

import "time"

type EventType string

const (
	EventScalar    EventType = "scalar"
	EventImage     EventType = "image"
	EventFigure    EventType = "figure"
	EventVideo     EventType = "video"
	EventHistogram EventType = "histogram"
	EventOther     EventType = "other"
	EventParam     EventType = "param"
	EventGraph     EventType = "graph"
)

// Histogram is the binned form of a flattened tensor recorded by the
// local sink.
type Histogram struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Counts []int   `json:"counts"`
}

// Event is one record of the local sink's events.jsonl log. Payload
// fields are populated per type; rendered payloads (images, figures)
// live next to the log and are referenced by Path.
type Event struct {
	Type      EventType  `json:"type"`
	Key       string     `json:"key"`
	Step      int        `json:"step,omitempty"`
	Value     float64    `json:"value,omitempty"`
	Text      string     `json:"text,omitempty"`
	Path      string     `json:"path,omitempty"`
	FPS       int        `json:"fps,omitempty"`
	Histogram *Histogram `json:"histogram,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
