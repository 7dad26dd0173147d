// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"sync"

	"github.com/google/uuid"

	"github.com/gridfabric/stompwire/frame"
)

// AckMode selects how delivered messages are acknowledged.
type AckMode string

const (
	// AckAuto means the broker considers a message acknowledged on delivery.
	AckAuto AckMode = "auto"
	// AckClient acknowledgment is cumulative: acking a message acks every
	// earlier unacknowledged message on the same subscription.
	AckClient AckMode = "client"
	// AckClientIndividual acknowledges exactly one message.
	AckClientIndividual AckMode = "client-individual"
)

// A Subscription is one standing request to receive messages from a
// destination. The listener goroutine is the only producer on C and one
// Reader is expected to be the only consumer.
type Subscription struct {
	Id          uuid.UUID
	Destination string
	AckMode     AckMode
	C           chan *frame.Frame
}

// subscriptionRegistry maps subscription ids and destinations to their
// delivery channels for inbound MESSAGE routing.
type subscriptionRegistry struct {
	lock          sync.Mutex
	byId          map[string]*Subscription
	byDestination map[string]*Subscription
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{
		byId:          make(map[string]*Subscription),
		byDestination: make(map[string]*Subscription),
	}
}

func (r *subscriptionRegistry) add(sub *Subscription) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.byId[sub.Id.String()] = sub
	r.byDestination[sub.Destination] = sub
}

func (r *subscriptionRegistry) remove(sub *Subscription) {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.byId, sub.Id.String())
	if r.byDestination[sub.Destination] == sub {
		delete(r.byDestination, sub.Destination)
	}
}

// route finds the delivery target for an inbound MESSAGE frame: by
// subscription id when the header is present, by destination otherwise.
func (r *subscriptionRegistry) route(subId, destination string) (*Subscription, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if subId != "" {
		sub, ok := r.byId[subId]
		if ok {
			return sub, true
		}
	}
	sub, ok := r.byDestination[destination]
	return sub, ok
}

// all returns a snapshot of the registered subscriptions.
func (r *subscriptionRegistry) all() []*Subscription {
	r.lock.Lock()
	defer r.lock.Unlock()
	subs := make([]*Subscription, 0, len(r.byId))
	for _, sub := range r.byId {
		subs = append(subs, sub)
	}
	return subs
}
