// Package job runs generation jobs.
//
// A Pipeline is an explicit, ordered list of Steps registered under an event
// name. The Executor loads a pending job from the result store, runs the
// pipeline's steps in order and writes progress after each one, then
// completes or fails the job. Step outputs are checkpointed by (job ID, step
// name), so a redelivered job resumes after the last step that finished.
//
// The Runner feeds the Executor from an in-process queue, and the Sweeper
// republishes pending jobs that stopped making progress.
package job
