package ports

import (
	"context"
	"time"
)

type (
	// Collection names a logical collection of the monitored document store.
	Collection string

	// CountFilter narrows a count. Zero values are ignored. SinceField defaults to created_at.
	CountFilter struct {
		Equals     map[string]string
		Since      time.Time
		SinceField string
	}

	// MonitoredStore is the read-only view of the application store that probes inspect.
	MonitoredStore interface {
		Ping(ctx context.Context) error
		Count(ctx context.Context, collection Collection, filter CountFilter) (int64, error)
		EstimateSize(ctx context.Context, collection Collection) (int64, error)
		// LatestTimestamp returns the newest creation time matching the filter, or the zero time.
		LatestTimestamp(ctx context.Context, collection Collection, filter CountFilter) (time.Time, error)
	}
)

const (
	CollectionUsers            Collection = "users"
	CollectionSessions         Collection = "sessions"
	CollectionCompanies        Collection = "companies"
	CollectionAuditLogs        Collection = "audit_logs"
	CollectionBackups          Collection = "backups"
	CollectionSecurityPolicies Collection = "security_policies"
)

// MonitoredCollections lists every collection the probes may read.
var MonitoredCollections = []Collection{
	CollectionUsers,
	CollectionSessions,
	CollectionCompanies,
	CollectionAuditLogs,
	CollectionBackups,
	CollectionSecurityPolicies,
}
