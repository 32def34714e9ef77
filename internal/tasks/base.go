package tasks

import (
	"encoding/json"
	"fmt"
	"time"

	"m3roodi/internal/models"
)

// NewTask builds an active task. args may be any JSON-encodable value;
// it is stored as a flat argument map.
func NewTask(name string, args interface{}, due time.Time, rule *string, schedule models.TaskSchedule, maxAttempts int) (*models.ScheduledTask, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s arguments: %w", name, err)
	}
	var stored models.TaskArgs
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%s arguments must be a JSON object: %w", name, err)
	}
	if stored == nil {
		stored = models.TaskArgs{}
	}

	return &models.ScheduledTask{
		Name:        name,
		Args:        stored,
		Schedule:    schedule,
		RRule:       rule,
		Due:         due,
		Status:      models.TaskActive,
		MaxAttempts: maxAttempts,
	}, nil
}
