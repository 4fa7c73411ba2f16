// Package series replays a persisted event log for one instrument into a
// dense, randomly-indexable sequence of book states.
//
// Every intermediate state is retained, including the absent marker at
// index 0, so any earlier point in the stream can be queried. Replay and
// live application share the same transition function (book.Apply), which
// keeps the two modes semantically identical.
package series
