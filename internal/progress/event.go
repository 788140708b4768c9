package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart     Stage = "RUN_START"
	StageRunDone      Stage = "RUN_DONE"
	StageShutdown     Stage = "SHUTDOWN"
	StageWorkerStart  Stage = "WORKER_START"
	StageWorkerDone   Stage = "WORKER_DONE"
	StageItemStart    Stage = "ITEM_START"
	StageItemDone     Stage = "ITEM_DONE"
	StageItemSkipped  Stage = "ITEM_SKIPPED"
	StageDownloadDone Stage = "DOWNLOAD_DONE"
)

// Outcome values carried by download and run events.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// Event captures a single component of crawl progress.
type Event struct {
	// RunID identifies the dispatcher run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Worker is the index of the emitting worker, or -1 for the dispatcher.
	Worker int
	// Title is the article title for item and download events.
	Title string
	// URL is the image URL for download events.
	URL string
	// Bytes carries the number of bytes written by a download.
	Bytes int64
	// Outcome is set on download and run completion events.
	Outcome string
	// Dur captures download and run latency.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageShutdown, StageWorkerStart, StageWorkerDone:
	case StageItemStart, StageItemDone, StageItemSkipped:
		if e.Title == "" {
			return fmt.Errorf("%s requires title", e.Stage)
		}
	case StageDownloadDone:
		if e.URL == "" {
			return errors.New("download done requires url")
		}
		if e.Outcome == "" {
			return errors.New("download done requires outcome")
		}
	case StageRunDone:
		if e.Outcome == "" {
			return errors.New("run done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseRunID parses a textual UUID into the Event form.
func ParseRunID(raw string) ([16]byte, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return [16]byte{}, fmt.Errorf("parse run id: %w", err)
	}
	return UUIDToBytes(id), nil
}
