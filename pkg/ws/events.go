package ws

import "sync"

// Handlers is a set of typed observation callbacks. Nil fields are skipped.
// Open is only raised by a Server. Callbacks run on the goroutine that
// produced the observation, usually the channel's read loop.
type Handlers struct {
	Open              func(c *Channel)
	Message           func(c *Channel, msg Message)
	IncompleteMessage func(c *Channel, msg Message)
	Ping              func(c *Channel, payload []byte)
	Pong              func(c *Channel, payload []byte)
	Close             func(c *Channel, ev CloseEvent)
	Error             func(c *Channel, err error)
}

// subscribers is an ordered registry of Handlers with explicit removal.
type subscribers struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]Handlers
	order  []int
}

func (s *subscribers) add(h Handlers) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs == nil {
		s.subs = make(map[int]Handlers)
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = h
	s.order = append(s.order, id)

	var once sync.Once

	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subs, id)

	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *subscribers) snapshot() []Handlers {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Handlers, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.subs[id])
	}

	return out
}

func (s *subscribers) emitOpen(c *Channel) {
	for _, h := range s.snapshot() {
		if h.Open != nil {
			h.Open(c)
		}
	}
}

func (s *subscribers) emitMessage(c *Channel, msg Message) {
	for _, h := range s.snapshot() {
		if h.Message != nil {
			h.Message(c, msg)
		}
	}
}

func (s *subscribers) emitIncomplete(c *Channel, msg Message) {
	for _, h := range s.snapshot() {
		if h.IncompleteMessage != nil {
			h.IncompleteMessage(c, msg)
		}
	}
}

func (s *subscribers) emitPing(c *Channel, payload []byte) {
	for _, h := range s.snapshot() {
		if h.Ping != nil {
			h.Ping(c, payload)
		}
	}
}

func (s *subscribers) emitPong(c *Channel, payload []byte) {
	for _, h := range s.snapshot() {
		if h.Pong != nil {
			h.Pong(c, payload)
		}
	}
}

func (s *subscribers) emitClose(c *Channel, ev CloseEvent) {
	for _, h := range s.snapshot() {
		if h.Close != nil {
			h.Close(c, ev)
		}
	}
}

func (s *subscribers) emitError(c *Channel, err error) {
	for _, h := range s.snapshot() {
		if h.Error != nil {
			h.Error(c, err)
		}
	}
}
