// Package async provides a generic, exactly-once Future for completion-style results.
//
// A Future is obtained either from Async, which runs a function on its own goroutine, or from
// NewPromise, which hands the caller the Resolver. A Resolver may be called any number of times
// from any goroutine; only the first call takes effect. This makes it safe to race a normal
// completion path against a deadline path that completes early.
//
//	future, resolve := async.NewPromise[Content]()
//	go func() {
//	    resolve(run(ctx))
//	}()
//	go func() {
//	    <-deadline
//	    resolve(fallback, nil) // ignored if run finished first
//	}()
//
//	content, err := future.Await()
//
// Waiters can block with Await, bound the wait with AwaitContext or AwaitWithTimeout, select on
// Done, poll with IsComplete, or register a callback with Then.
package async
