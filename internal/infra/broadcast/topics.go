package broadcast

// TaskTopic names the per-job channel that analysis progress events are
// published on. Socket clients attach to it by job id.
func TaskTopic(jobID string) string { return "task_" + jobID }

// ChatTopic names the per-session channel that agent replies stream on.
func ChatTopic(sessionID string) string { return "chat_" + sessionID }
