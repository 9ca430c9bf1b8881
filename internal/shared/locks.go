package shared

import "fmt"

// IntegrityLockKey builds the redis key guarding balance integrity runs for a scope.
func IntegrityLockKey(scope string) string {
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("ledger:integrity:%s:lock", scope)
}
