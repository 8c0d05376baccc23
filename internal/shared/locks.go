package shared

import "fmt"

// ElectionLockKey builds redis keys guarding election tally sections.
func ElectionLockKey(electionID string) string {
	return fmt.Sprintf("election:%s:lock", electionID)
}
