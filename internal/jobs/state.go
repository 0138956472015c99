package jobs

import (
	"fmt"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

var validTransitions = map[models.JobStatus][]models.JobStatus{
	models.JobPending: {
		models.JobRunning,   // start
		models.JobCancelled, // cancelled before dispatch
	},
	models.JobRunning: {
		models.JobCompleted,
		models.JobFailed, // executor failure, dispatch failure or stalled
		models.JobCancelled,
	},
	// Terminal states
	models.JobCompleted: {},
	models.JobFailed:    {},
	models.JobCancelled: {},
}

// ValidateStateTransition checks if a job may move from one status to another.
func ValidateStateTransition(from, to models.JobStatus) error {
	allowedStates, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}

	for _, allowed := range allowedStates {
		if allowed == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition from %s to %s", from, to)
}
