// Package election provides the sequential election queue for leadsync.
//
// Every candidate of a leadership slot enrolls by creating an ephemeral,
// sequential token below the slot's election path. The candidate holding the
// lowest sequence is front of the queue and runs its LeaderProcess. When the
// front token disappears (crash, session expiry or abdication) the next
// candidate becomes front and runs its process as a replacement.
//
// # Usage
//
//	elector := election.New(session, election.Config{}, logger, metrics)
//	defer elector.Close(ctx)
//
//	if err := elector.Join(ctx, transition, core); err != nil {
//	    return err
//	}
//
// # Replacement Detection
//
// The first check after joining runs the process with isReplacement=false if
// the candidate is already front. Once a predecessor was observed, or after a
// re-enrollment requested through Rejoin, every later run is a replacement.
//
// # Change Detection
//
// Each candidate goroutine combines a KV watcher on the election path with a
// polling ticker. Bucket TTL expiry emits no watch event, so polling is what
// notices a crashed predecessor; the watcher shortens the reaction time for
// explicit deletes.
//
// # Re-enrollment
//
// A LeaderProcess that abdicates calls Rejoin from inside Run. The candidate
// goroutine sees the request once Run returns and creates a fresh token at
// the back of the queue. A token that vanished on its own (for example a lost
// keepalive) is replaced the same way.
package election
