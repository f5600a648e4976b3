package menu

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	menus map[string]Menu
	items map[string]Item
	seq   map[string]int
	next  int
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		menus: make(map[string]Menu),
		items: make(map[string]Item),
		seq:   make(map[string]int),
	}
}

func (r *memoryRepository) Create(_ context.Context, m Menu) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.menus[m.ID]; exists {
		return errors.New("menu exists")
	}
	r.menus[m.ID] = m
	r.order(m.ID)
	return nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Menu, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.menus[id]
	if !ok {
		return Menu{}, ErrNotFound
	}
	return m, nil
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID string) ([]Menu, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Menu
	for _, m := range r.menus {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] > r.seq[out[j].ID] })
	return out, nil
}

func (r *memoryRepository) Update(_ context.Context, m Menu) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.menus[m.ID]; !ok {
		return ErrNotFound
	}
	r.menus[m.ID] = m
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.menus[id]; !ok {
		return ErrNotFound
	}
	for itemID, it := range r.items {
		if it.MenuID == id {
			delete(r.items, itemID)
			delete(r.seq, itemID)
		}
	}
	delete(r.menus, id)
	delete(r.seq, id)
	return nil
}

func (r *memoryRepository) AddItems(_ context.Context, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		if _, ok := r.menus[it.MenuID]; !ok {
			return ErrNotFound
		}
		if _, exists := r.items[it.ID]; exists {
			return errors.New("item exists")
		}
	}
	for _, it := range items {
		r.items[it.ID] = it
		r.order(it.ID)
	}
	return nil
}

func (r *memoryRepository) GetItem(_ context.Context, id string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (r *memoryRepository) ListItems(_ context.Context, menuID string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Item
	for _, it := range r.items {
		if it.MenuID == menuID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.seq[out[i].ID] < r.seq[out[j].ID] })
	return out, nil
}

func (r *memoryRepository) UpdateItem(_ context.Context, it Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[it.ID]; !ok {
		return ErrNotFound
	}
	r.items[it.ID] = it
	return nil
}

func (r *memoryRepository) DeleteItem(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	delete(r.seq, id)
	return nil
}

// order records insertion order; callers hold mu.
func (r *memoryRepository) order(id string) {
	r.next++
	r.seq[id] = r.next
}
