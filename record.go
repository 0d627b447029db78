package capturex

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the discriminant of a status record.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Record is one of Queued, Running, Succeeded or Failed.
type Record interface {
	Status() Status
	isRecord()
}

// Queued: accepted, not yet started.
type Queued struct {
	CreatedAt time.Time `json:"created_at"`
	Payload   Payload   `json:"payload"`
}

// Running: claimed by a worker.
type Running struct {
	StartedAt time.Time `json:"started_at"`
	Payload   Payload   `json:"payload"`
}

// Succeeded is terminal. DeepResearch is encoded as null when research was skipped.
type Succeeded struct {
	FinishedAt   time.Time   `json:"finished_at"`
	Notion       ArtifactRef `json:"notion"`
	Plan         Plan        `json:"plan"`
	DeepResearch *Research   `json:"deep_research"`
}

// Failed is terminal. Error holds the message text only.
type Failed struct {
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error"`
}

func (Queued) Status() Status    { return StatusQueued }
func (Running) Status() Status   { return StatusRunning }
func (Succeeded) Status() Status { return StatusSucceeded }
func (Failed) Status() Status    { return StatusFailed }

func (Queued) isRecord()    {}
func (Running) isRecord()   {}
func (Succeeded) isRecord() {}
func (Failed) isRecord()    {}

func (r Queued) MarshalJSON() ([]byte, error) {
	type fields Queued
	return json.Marshal(struct {
		Status Status `json:"status"`
		fields
	}{StatusQueued, fields(r)})
}

func (r Running) MarshalJSON() ([]byte, error) {
	type fields Running
	return json.Marshal(struct {
		Status Status `json:"status"`
		fields
	}{StatusRunning, fields(r)})
}

func (r Succeeded) MarshalJSON() ([]byte, error) {
	type fields Succeeded
	return json.Marshal(struct {
		Status Status `json:"status"`
		fields
	}{StatusSucceeded, fields(r)})
}

func (r Failed) MarshalJSON() ([]byte, error) {
	type fields Failed
	return json.Marshal(struct {
		Status Status `json:"status"`
		fields
	}{StatusFailed, fields(r)})
}

// MarshalRecord encodes rec with its "status" discriminant.
func MarshalRecord(rec Record) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("nil record")
	}
	return json.Marshal(rec)
}

// UnmarshalRecord decodes a record by dispatching on its "status" field.
func UnmarshalRecord(data []byte) (Record, error) {
	var head struct {
		Status Status `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Status {
	case StatusQueued:
		var r Queued
		return decodeRecord(data, &r)
	case StatusRunning:
		var r Running
		return decodeRecord(data, &r)
	case StatusSucceeded:
		var r Succeeded
		return decodeRecord(data, &r)
	case StatusFailed:
		var r Failed
		return decodeRecord(data, &r)
	case "":
		return nil, fmt.Errorf("record has no status")
	default:
		return nil, fmt.Errorf("unknown record status %q", head.Status)
	}
}

func decodeRecord[R Record](data []byte, r *R) (Record, error) {
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return *r, nil
}
