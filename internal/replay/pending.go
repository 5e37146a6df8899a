package replay

import (
	"sort"
	"sync"
	"time"
)

// PendingCommand tracks one replayed command awaiting its response.
type PendingCommand struct {
	Seq      int
	ID       int
	Method   string
	SentAt   time.Time
	Deadline time.Time
	Events   int
}

// PendingCommands stores in-flight commands by DevTools command id.
type PendingCommands struct {
	mu    sync.RWMutex
	items map[int]PendingCommand
}

func NewPendingCommands() *PendingCommands {
	return &PendingCommands{
		items: make(map[int]PendingCommand),
	}
}

func (p *PendingCommands) Track(item PendingCommand) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items[item.ID] = item
}

// MarkEvent attributes one unsolicited event to command id.
func (p *PendingCommands) MarkEvent(id int) (PendingCommand, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.items[id]
	if !ok {
		return PendingCommand{}, false
	}
	item.Events++
	p.items[id] = item
	return item, true
}

// Resolve removes and returns the command with id.
func (p *PendingCommands) Resolve(id int) (PendingCommand, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.items[id]
	if ok {
		delete(p.items, id)
	}
	return item, ok
}

func (p *PendingCommands) Get(id int) (PendingCommand, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[id]
	return item, ok
}

func (p *PendingCommands) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Earliest returns the command whose deadline comes first.
func (p *PendingCommands) Earliest() (PendingCommand, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var best PendingCommand
	found := false
	for _, item := range p.items {
		if !found || item.Deadline.Before(best.Deadline) ||
			(item.Deadline.Equal(best.Deadline) && item.Seq < best.Seq) {
			best = item
			found = true
		}
	}
	return best, found
}

// List returns pending commands in send order.
func (p *PendingCommands) List() []PendingCommand {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PendingCommand, 0, len(p.items))
	for _, item := range p.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Seq < out[j].Seq
	})
	return out
}
