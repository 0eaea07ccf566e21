package hub

import "sync"

// Bindings remembers which connection last claimed each player. It is
// best effort: entries can be stale or missing and callers treat a miss
// as "nothing to clean up".
type Bindings struct {
	m sync.Map // player id -> conn id
}

func (b *Bindings) Bind(playerID, connID string) {
	b.m.Store(playerID, connID)
}

// Unbind forgets the player only if connID is still its binding, so a
// closing old connection cannot evict a newer one.
func (b *Bindings) Unbind(playerID, connID string) {
	b.m.CompareAndDelete(playerID, connID)
}

func (b *Bindings) Lookup(playerID string) (string, bool) {
	v, ok := b.m.Load(playerID)
	if !ok {
		return "", false
	}
	return v.(string), true
}
