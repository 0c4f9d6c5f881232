package domain

import "time"

// Stage names a step of the retrieval pipeline.
type Stage string

// Pipeline stages in emission order.
const (
	StageRoute    Stage = "route"
	StageEmbed    Stage = "embed"
	StageRank     Stage = "rank"
	StageFuse     Stage = "fuse"
	StageComplete Stage = "complete"
)

// EventStatus is the state of a stage.
type EventStatus string

// Event statuses.
const (
	StatusStarted   EventStatus = "started"
	StatusCompleted EventStatus = "completed"
	StatusDegraded  EventStatus = "degraded"
	StatusFailed    EventStatus = "failed"
)

// Event is a progress notification emitted while a query is processed.
// Events of one query carry strictly increasing Seq values.
type Event struct {
	QueryID string         `json:"query_id"`
	Seq     int            `json:"seq"`
	Stage   Stage          `json:"stage"`
	Status  EventStatus    `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}
