// Package trail captures entity mutations into an append-only audit trail.
//
// A unit of work hands the [Recorder] the tracked [Change] set before it
// writes. [Diff] turns each change into a [Snapshot]: creates carry the new
// values, deletes the old ones, and updates only the columns whose value
// actually differs. Entities with no effective change produce nothing.
//
// Keys assigned by the database on insert are unknown at diff time. The
// returned [Batch] keeps those columns deferred until the business write has
// run; the caller supplies them with [Batch.ResolveKey] (or by filling the
// Current map of the change) and then calls [Batch.Commit] with the same
// transaction, so the trail commits or rolls back together with the data it
// describes.
//
// A serialization failure is confined to its own entity: the rest of the
// batch is still written, and the failure is logged with its table name and
// reported through a [*CaptureError].
package trail
