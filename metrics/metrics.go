package metrics

import "github.com/prometheus/client_golang/prometheus"

// Key constants are exported primarily for documentation reasons. Typically,
// they will not be used programmatically outside of defining the collectors.

// Keys for services metrics.
const (
	SQLQueriesTotalKey          = "services_sql_queries_total"
	SQLQueryFailuresTotalKey    = "services_sql_query_failures_total"
	SQLQueryDurationSecondsKey  = "services_sql_query_duration_seconds"
	SQLTransactionsTotalKey     = "services_sql_transactions_total"
	ObjectsCollectedTotalKey    = "services_objects_collected_total"
	ObjectCacheRequestsTotalKey = "services_object_cache_requests_total"
	StoredObjectsKey            = "services_stored_objects"
	LiveObjectsKey              = "services_live_objects"

	Fail = "fail"
	Ok   = "ok"
	Hit  = "hit"
	Miss = "miss"
)

// Collectors for services metrics.
var (
	SQLQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SQLQueriesTotalKey,
		Help: "Cumulative number of SQL statements executed.",
	}, []string{"engine", "kind"})
	SQLQueryFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SQLQueryFailuresTotalKey,
		Help: "Cumulative number of SQL statements which failed.",
	}, []string{"engine"})
	SQLQueryDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: SQLQueryDurationSecondsKey,
		Help: "Duration of SQL statement execution.",
	}, []string{"engine"})
	SQLTransactionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: SQLTransactionsTotalKey,
		Help: "Cumulative number of SQL transactions committed by the bridge.",
	}, []string{"status"})
	ObjectsCollectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: ObjectsCollectedTotalKey,
		Help: "Cumulative number of live object handles collected after commit.",
	})
	ObjectCacheRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ObjectCacheRequestsTotalKey,
		Help: "Cumulative number of object cache lookups.",
	}, []string{"result"})
	StoredObjects = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: StoredObjectsKey,
		Help: "Number of stored objects, by type.",
	}, []string{"type"})
	LiveObjects = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: LiveObjectsKey,
		Help: "Number of live in-memory object handles, by type.",
	}, []string{"type"})
)

// ServicesCollectors lists collectors used by the services daemon.
func ServicesCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		SQLQueriesTotal,
		SQLQueryFailuresTotal,
		SQLQueryDurationSeconds,
		SQLTransactionsTotal,
		ObjectsCollectedTotal,
		ObjectCacheRequestsTotal,
		StoredObjects,
		LiveObjects,
	}
}
