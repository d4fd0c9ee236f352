// internal/messaging/broadcaster.go
package messaging

import "sync"

// Broadcaster maps room identifiers to their current member sockets.
// Rooms are created on first join and deleted when their last member
// leaves; no orphan rooms persist.
type Broadcaster struct {
	mu    sync.Mutex
	rooms map[string][]*Socket
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		rooms: make(map[string][]*Socket),
	}
}

// Join adds a socket to a room. Adding a socket that is already a member
// is a no-op.
func (b *Broadcaster) Join(room string, s *Socket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, member := range b.rooms[room] {
		if member == s {
			return
		}
	}
	b.rooms[room] = append(b.rooms[room], s)
}

// Leave removes a socket from a room, deleting the room entry entirely if
// it becomes empty.
func (b *Broadcaster) Leave(room string, s *Socket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.rooms[room]
	for i, member := range members {
		if member == s {
			b.rooms[room] = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(b.rooms[room]) == 0 {
		delete(b.rooms, room)
	}
}

// Members returns a snapshot of the room's current member set. Joiners
// after the snapshot is taken are not included in an in-flight broadcast.
func (b *Broadcaster) Members(room string) []*Socket {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.rooms[room]
	snapshot := make([]*Socket, len(members))
	copy(snapshot, members)
	return snapshot
}

// Rooms returns the identifiers of all rooms that currently have members.
func (b *Broadcaster) Rooms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.rooms))
	for id := range b.rooms {
		ids = append(ids, id)
	}
	return ids
}
