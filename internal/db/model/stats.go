package model

const OverallStatsCollection = "overall_stats"

// OverallStatsDocument represents the overall factory statistics
type OverallStatsDocument struct {
	ID           string `bson:"_id"`           // Always "overall_stats"
	MarketCount  uint64 `bson:"market_count"`  // Total registered markets
	PendingSagas uint64 `bson:"pending_sagas"` // Provisioning sagas not yet completed
	LastUpdated  int64  `bson:"last_updated"`  // Unix timestamp of last update
}
