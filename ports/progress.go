package ports

// ProgressFunc receives a notification after each task terminates. Calls
// are serialised; completed increases by one per call.
type ProgressFunc func(completed, total int, currentTarget string)

// NoProgress discards notifications.
func NoProgress(int, int, string) {}
