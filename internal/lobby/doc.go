// Package lobby implements the room directory at the heart of the relay
// server: sessions, rooms and their members, the relay that fans messages
// out to room members, the line protocol dispatcher that mutates the
// directory, and the reaper that evicts abandoned rooms.
//
// All directory state is guarded by a single mutex. Connection goroutines
// and the reaper goroutine both go through it, and fan-out that belongs to a
// mutation is queued while the lock is held so that members of a room see
// messages in the order the directory accepted them.
package lobby
