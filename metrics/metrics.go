package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors for the SQL atom store.
var (
	AtomStoresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_atom_stores_total",
		Help: "Cumulative number of atoms written to the database.",
	})
	AtomLoadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_atom_loads_total",
		Help: "Cumulative number of atoms materialized from the database.",
	})
	NodeInsertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_node_inserts_total",
		Help: "Cumulative number of first-time node INSERTs.",
	})
	NodeUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_node_updates_total",
		Help: "Cumulative number of node truth-value UPDATEs.",
	})
	LinkInsertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_link_inserts_total",
		Help: "Cumulative number of first-time link INSERTs.",
	})
	LinkUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_link_updates_total",
		Help: "Cumulative number of link truth-value UPDATEs.",
	})
	NodeQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_node_queries_total",
		Help: "Cumulative number of (type, name) node lookups.",
	})
	NodeQueryHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_node_query_hits_total",
		Help: "Cumulative number of node lookups that found a row.",
	})
	LinkQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_link_queries_total",
		Help: "Cumulative number of (type, outgoing) link lookups.",
	})
	LinkQueryHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_link_query_hits_total",
		Help: "Cumulative number of link lookups that found a row.",
	})
	IncomingSetQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_incoming_set_queries_total",
		Help: "Cumulative number of incoming-set queries.",
	})
	IncomingSetAtomsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_incoming_set_atoms_total",
		Help: "Cumulative number of atoms returned by incoming-set queries.",
	})
	ValueStoresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_value_stores_total",
		Help: "Cumulative number of Value rows written.",
	})
	ValueDeletesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_value_deletes_total",
		Help: "Cumulative number of Value rows deleted.",
	})
	QueueItemsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_write_queue_items_total",
		Help: "Cumulative number of atoms enqueued for asynchronous store.",
	})
	QueueDrainsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_write_queue_drains_total",
		Help: "Cumulative number of write-queue barriers that had to wait.",
	})
	QueueDrainSecondsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_write_queue_drain_seconds_total",
		Help: "Cumulative number of seconds spent waiting in write-queue barriers.",
	})
	QueueFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "atomspace_write_queue_failures_total",
		Help: "Cumulative number of asynchronous stores that failed and were dropped.",
	})
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atomspace_write_queue_depth",
		Help: "Number of atoms currently queued and not yet stored.",
	})
	BusyWriters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atomspace_write_queue_busy_writers",
		Help: "Number of writer goroutines currently executing a store.",
	})
	PoolFreeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "atomspace_pool_free_connections",
		Help: "Number of idle connections in the connection pool.",
	})
)

// StoreCollectors lists the collectors used by the sqlstore package.
func StoreCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		AtomStoresTotal,
		AtomLoadsTotal,
		NodeInsertsTotal,
		NodeUpdatesTotal,
		LinkInsertsTotal,
		LinkUpdatesTotal,
		NodeQueriesTotal,
		NodeQueryHitsTotal,
		LinkQueriesTotal,
		LinkQueryHitsTotal,
		IncomingSetQueriesTotal,
		IncomingSetAtomsTotal,
		ValueStoresTotal,
		ValueDeletesTotal,
		QueueItemsTotal,
		QueueDrainsTotal,
		QueueDrainSecondsTotal,
		QueueFailuresTotal,
		QueueDepth,
		BusyWriters,
		PoolFreeConnections,
	}
}
