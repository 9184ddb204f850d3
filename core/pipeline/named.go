package pipeline

// Item is a pipeline entry. Names are unique when non-empty.
type Item[T any] struct {
	Name     string
	Delegate T
}

// Named is an ordered, mutable sequence of hook items
type Named[T any] struct {
	items []Item[T]
}

// Items returns a copy of the items in order
func (p *Named[T]) Items() []Item[T] {
	out := make([]Item[T], len(p.items))
	copy(out, p.items)
	return out
}

// Delegates returns the delegates in order
func (p *Named[T]) Delegates() []T {
	out := make([]T, len(p.items))
	for i, item := range p.items {
		out[i] = item.Delegate
	}
	return out
}

// Len returns the number of items
func (p *Named[T]) Len() int {
	return len(p.items)
}

// IndexOf returns the position of the named item, or -1
func (p *Named[T]) IndexOf(name string) int {
	if name == "" {
		return -1
	}
	for i, item := range p.items {
		if item.Name == name {
			return i
		}
	}
	return -1
}

// AddToStart inserts item first. With replaceInPlace an existing item of the
// same name is replaced where it stands instead.
func (p *Named[T]) AddToStart(item Item[T], replaceInPlace bool) {
	p.InsertAt(0, item, replaceInPlace)
}

// AddToEnd appends item. With replaceInPlace an existing item of the same
// name is replaced where it stands instead.
func (p *Named[T]) AddToEnd(item Item[T], replaceInPlace bool) {
	existing := p.RemoveByName(item.Name)
	if replaceInPlace && existing != -1 {
		p.insert(existing, item)
		return
	}
	p.items = append(p.items, item)
}

// InsertAt inserts item at index, clamped to the pipeline bounds
func (p *Named[T]) InsertAt(index int, item Item[T], replaceInPlace bool) {
	existing := p.RemoveByName(item.Name)
	if replaceInPlace && existing != -1 {
		index = existing
	}
	p.insert(index, item)
}

// InsertBefore inserts item ahead of the named item, or first when the name is unknown
func (p *Named[T]) InsertBefore(name string, item Item[T]) {
	p.RemoveByName(item.Name)
	index := p.IndexOf(name)
	if index == -1 {
		index = 0
	}
	p.insert(index, item)
}

// InsertAfter inserts item behind the named item, or last when the name is unknown
func (p *Named[T]) InsertAfter(name string, item Item[T]) {
	p.RemoveByName(item.Name)
	index := p.IndexOf(name)
	if index == -1 {
		p.items = append(p.items, item)
		return
	}
	p.insert(index+1, item)
}

// RemoveByName removes the named item and returns its former index, or -1
func (p *Named[T]) RemoveByName(name string) int {
	index := p.IndexOf(name)
	if index == -1 {
		return -1
	}
	p.items = append(p.items[:index], p.items[index+1:]...)
	return index
}

func (p *Named[T]) insert(index int, item Item[T]) {
	if index < 0 {
		index = 0
	}
	if index >= len(p.items) {
		p.items = append(p.items, item)
		return
	}
	p.items = append(p.items, Item[T]{})
	copy(p.items[index+1:], p.items[index:])
	p.items[index] = item
}

func (p *Named[T]) clone() Named[T] {
	return Named[T]{items: p.Items()}
}
