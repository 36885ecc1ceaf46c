// Package pipeline orchestrates the quantitative flow-speed run: for every
// (interval, segment) pair it builds a kymograph, estimates the dominant
// orientation, evaluates the velocity policy and accumulates the results
// into keyed matrices.
//
// This package is the composition root: it imports the flow domain package
// and the storage layer, but neither of those imports pipeline.
package pipeline
