// Package scheduler is the durable, single-fire delayed task scheduler used to
// call the go-live executor at a shipment's go-live time.
package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrTaskNotFound is returned by DeleteTask when the task already fired or was deleted.
var ErrTaskNotFound = errors.New("scheduler: task not found")

// OIDCToken names the identity the scheduler authenticates as when it calls the target.
type OIDCToken struct {
	ServiceAccountEmail string `json:"serviceAccountEmail"`
	Audience            string `json:"audience"`
}

type HTTPRequest struct {
	HTTPMethod string            `json:"httpMethod"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers,omitempty"`
	// Body is base64 encoded when the task is serialized.
	Body      []byte     `json:"body"`
	OIDCToken *OIDCToken `json:"oidcToken,omitempty"`
}

type Task struct {
	// Name is assigned by the scheduler on creation. A name set by the caller
	// is used as a prefix of the assigned one.
	Name         string      `json:"name,omitempty"`
	ScheduleTime time.Time   `json:"scheduleTime"`
	HTTPRequest  HTTPRequest `json:"httpRequest"`
}

// Scheduler creates named tasks that invoke an HTTP target once, at or after ScheduleTime.
type Scheduler interface {
	CreateTask(ctx context.Context, task Task) (string, error)
	DeleteTask(ctx context.Context, name string) error
}
