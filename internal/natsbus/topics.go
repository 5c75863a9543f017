package natsbus

import "fmt"

// Topic patterns for run event publishing.

func TopicRunEvents(runID string) string {
	return fmt.Sprintf("events.run.%s", runID)
}

const (
	TopicEventsAll  = "events.>"
	TopicEventsRuns = "events.run.*"
)
