package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep purges expired refresh sessions.
	TaskSessionSweep = "session:sweep"
	// TaskProfileRefresh re-syncs user profiles from the identity provider.
	TaskProfileRefresh = "profile:refresh"
)

// SessionSweepPayload carries scheduling metadata.
type SessionSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewSessionSweepTask constructs an Asynq task for the session sweep.
func NewSessionSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SessionSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionSweep, body, asynq.Queue(QueueDefault)), nil
}

// ProfileRefreshPayload carries scheduling metadata.
type ProfileRefreshPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewProfileRefreshTask constructs an Asynq task for the profile refresh.
func NewProfileRefreshTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ProfileRefreshPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProfileRefresh, body, asynq.Queue(QueueDefault)), nil
}
