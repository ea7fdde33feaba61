package diagctx

import (
	"encoding/json"
	"sync"
)

// Store owns every Context, keyed by caseID. All mutation goes through
// Mutate or Apply, which hold a per-case lock across the whole
// read-modify-write cycle so two racing messages for the same case cannot
// drop a completed step or double-push a topic. Different cases never
// contend.
type Store interface {
	// Mutate runs fn against the case's context under the per-case lock,
	// creating the context on first access. It returns a snapshot of the
	// context after fn ran.
	Mutate(caseID string, fn func(*Context)) *Context

	// Apply is Mutate without the create: if the case does not exist the
	// call is a silent no-op and Apply returns false.
	Apply(caseID string, fn func(*Context)) bool

	// Peek returns a snapshot of the case's context without mutating it.
	Peek(caseID string) (*Context, bool)

	// Delete drops the case entirely. Used by test teardown; production
	// cases are never explicitly deleted.
	Delete(caseID string)

	Close() error
}

// Clone returns a deep copy of the context. Snapshots handed out by stores
// are clones so callers can never mutate shared state outside the lock.
func (c *Context) Clone() *Context {
	data, err := json.Marshal(c)
	if err != nil {
		// Context contains only plain data; marshal cannot fail in practice.
		panic("diagctx: context marshal: " + err.Error())
	}
	var out Context
	if err := json.Unmarshal(data, &out); err != nil {
		panic("diagctx: context unmarshal: " + err.Error())
	}
	return &out
}

// caseSlot pairs a context with its per-case lock.
type caseSlot struct {
	mu  sync.Mutex
	ctx *Context
}

// MemoryStore is the in-process Store used by tests and single-node runs.
type MemoryStore struct {
	mu    sync.Mutex
	cases map[string]*caseSlot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[string]*caseSlot)}
}

func (s *MemoryStore) slot(caseID string, create bool) *caseSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.cases[caseID]
	if !ok {
		if !create {
			return nil
		}
		slot = &caseSlot{ctx: NewContext(caseID)}
		s.cases[caseID] = slot
	}
	return slot
}

// Mutate implements Store.
func (s *MemoryStore) Mutate(caseID string, fn func(*Context)) *Context {
	slot := s.slot(caseID, true)
	slot.mu.Lock()
	defer slot.mu.Unlock()
	fn(slot.ctx)
	return slot.ctx.Clone()
}

// Apply implements Store.
func (s *MemoryStore) Apply(caseID string, fn func(*Context)) bool {
	slot := s.slot(caseID, false)
	if slot == nil {
		return false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	fn(slot.ctx)
	return true
}

// Peek implements Store.
func (s *MemoryStore) Peek(caseID string) (*Context, bool) {
	slot := s.slot(caseID, false)
	if slot == nil {
		return nil, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.ctx.Clone(), true
}

// Delete implements Store.
func (s *MemoryStore) Delete(caseID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cases, caseID)
}

// Close implements Store. The memory store holds no resources.
func (s *MemoryStore) Close() error {
	return nil
}
