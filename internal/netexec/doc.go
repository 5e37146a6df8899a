// Package netexec owns the network executor: one goroutine that runs
// submitted tasks in FIFO order, one at a time.
//
// Every transport operation and every transport callback runs as a task on
// the executor, so code reached only from tasks needs no locking for state
// that is confined to the executor.
//
// Loop affinity is carried by the context handed to each task. Go has no
// goroutine identity, so "am I on the executor" is answered with OnLoop(ctx)
// using the ctx a task received; any other ctx reports false.
package netexec
