// Package workers computes worker pool sizes from available CPU,
// with an environment override for manual tuning.
package workers
