// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"sync"

	"github.com/google/uuid"
)

// ConnectionRegistry tracks live connections by id. It is created
// explicitly and injected into the broker connector rather than living as
// process-global state, so independent engines never share entries.
type ConnectionRegistry struct {
	lock        sync.Mutex
	connections map[uuid.UUID]*Connection
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{connections: make(map[uuid.UUID]*Connection)}
}

func (r *ConnectionRegistry) register(c *Connection) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.connections[c.Id] = c
}

func (r *ConnectionRegistry) remove(id uuid.UUID) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.connections, id)
}

// Get returns the live connection with the given id, if any.
func (r *ConnectionRegistry) Get(id uuid.UUID) (*Connection, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	c, ok := r.connections[id]
	return c, ok
}

// Count returns the number of live connections.
func (r *ConnectionRegistry) Count() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.connections)
}
