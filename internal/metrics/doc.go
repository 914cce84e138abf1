// Package metrics defines Prometheus instrumentation for the catalog
// store, the import pipeline, and the thumbnail cache. Metrics are
// registered with the default registry via promauto; exposing them is
// left to the embedding application.
package metrics
