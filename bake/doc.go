// Package bake provides the serialized queue that every bake runs through.
//
// A Queue is a FIFO with a single worker goroutine. Jobs run strictly one
// at a time in submission order, so two bakes never write the same tile
// surface at once. A job that fails or panics is reported to the queue's
// error handler and the worker moves on to the next job.
//
// A running job is never cancelled. Superseding work is expressed by
// enqueueing another job, which observes whatever state the earlier job
// left behind.
package bake
