package services

import "cart-monitor-service/models"

// IsAbandoned reports whether entry has been idle strictly longer than
// thresholdSeconds. An entry idle for exactly the threshold is still active.
func IsAbandoned(entry models.CacheEntry, thresholdSeconds int64) bool {
	return entry.IdleSeconds > thresholdSeconds
}
