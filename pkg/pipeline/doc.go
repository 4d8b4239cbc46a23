// Package pipeline runs galaxy surface-photometry workflows over one or many images.
//
// A Pipeline holds a registry of named steps and a graph of named sequences. Every job starts at the
// first step of the "head" sequence. Regular steps transform the image and contribute partial results,
// while branch steps may redirect the job to the start of any other sequence. A job succeeds once it
// runs past the end of its current sequence and reports the time spent in every regular step.
//
// Jobs are isolated: an unreadable image, an empty frame or a failing step turns into a failed Outcome
// and a log line, never into an error crossing the job boundary. ProcessList broadcasts list-valued
// options across the image list, fans the jobs out on a pool of workers and returns the outcomes in
// input order, together with the mean time of every step over the successful jobs.
//
// Hooks implementing model.PipelineOption observe runs; the drawer and metrics packages provide two.
package pipeline
