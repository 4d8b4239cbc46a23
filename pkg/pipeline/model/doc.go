// Package model provides the data structures shared by the pipeline package and its step implementations.
// It defines the image payload, the per-job options, results and timing maps, the two step variants
// (regular and branch) and the hook contract used by pipeline options such as the drawer and the metrics collector.
package model
