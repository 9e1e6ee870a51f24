package interfaces

import (
	"github.com/ternarybob/colligo/internal/models"
)

// ProgressBus carries job snapshots from the single writer (the running job)
// to any number of subscribers. Publish never blocks: a subscriber that
// cannot keep up loses ticks rather than backing the publisher up.
type ProgressBus interface {
	Publish(snapshot models.JobSnapshot)
	Subscribe() (<-chan models.JobSnapshot, func())
	Close()
}
