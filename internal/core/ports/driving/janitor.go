package driving

import "context"

// Janitor periodically removes finished job records.
type Janitor interface {
	// Start begins the sweep loop
	Start(ctx context.Context)

	// Stop gracefully stops the loop
	Stop()

	// Sweep runs one purge across all queues and returns how many job
	// records were removed.
	Sweep(ctx context.Context) (int, error)
}
