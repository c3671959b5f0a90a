package scheduling

// arena owns entities by id and remembers insertion order.
type arena[T any] struct {
	order []int64
	items map[int64]T
}

func (a *arena[T]) put(id int64, v T) {
	if a.items == nil {
		a.items = make(map[int64]T)
	}
	if _, ok := a.items[id]; !ok {
		a.order = append(a.order, id)
	}
	a.items[id] = v
}

func (a *arena[T]) get(id int64) (T, bool) {
	v, ok := a.items[id]
	return v, ok
}

// remove reports whether id was present.
func (a *arena[T]) remove(id int64) bool {
	if _, ok := a.items[id]; !ok {
		return false
	}
	delete(a.items, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return true
}

func (a *arena[T]) all() []T {
	out := make([]T, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.items[id])
	}
	return out
}

func (a *arena[T]) len() int { return len(a.order) }
