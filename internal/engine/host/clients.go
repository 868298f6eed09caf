package host

import "container/list"

// DefaultMaxClients bounds how many clients the host remembers.
const DefaultMaxClients = 1024

// clients maps client ids to their controlling version, forgetting the
// least recently seen client once full. Callers hold the host lock.
type clients struct {
	max     int
	entries map[string]*list.Element
	order   *list.List // front = most recently seen
}

type client struct {
	id         string
	controller *Version
}

func newClients(maxSize int) *clients {
	if maxSize <= 0 {
		maxSize = DefaultMaxClients
	}
	return &clients{
		max:     maxSize,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// get returns the controller of id and marks it as seen.
func (c *clients) get(id string) (*Version, bool) {
	elem, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*client).controller, true //nolint:forcetypeassert // type is guaranteed by set
}

func (c *clients) set(id string, v *Version) {
	if elem, ok := c.entries[id]; ok {
		elem.Value.(*client).controller = v //nolint:forcetypeassert // type is guaranteed by set
		c.order.MoveToFront(elem)
		return
	}

	for c.order.Len() >= c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*client).id) //nolint:forcetypeassert // type is guaranteed by set
	}
	c.entries[id] = c.order.PushFront(&client{id: id, controller: v})
}

// reassign replaces the controller of every client with fn's result.
func (c *clients) reassign(fn func(*Version) *Version) {
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		cl := elem.Value.(*client) //nolint:forcetypeassert // type is guaranteed by set
		cl.controller = fn(cl.controller)
	}
}

// controlled counts the clients controlled by v.
func (c *clients) controlled(v *Version) int {
	n := 0
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if v != nil && elem.Value.(*client).controller == v { //nolint:forcetypeassert // type is guaranteed by set
			n++
		}
	}
	return n
}

func (c *clients) len() int {
	return c.order.Len()
}
