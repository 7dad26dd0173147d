// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

// Package model holds the application-facing message value delivered by a
// queue Reader.
package model

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// A Message is the value handed to the consuming Read call. It is owned
// exclusively by that call; the engine keeps no reference after delivery.
type Message struct {
	// Id is the broker-assigned message identifier.
	Id string
	// SubscriptionId identifies the subscription the message arrived on.
	SubscriptionId string
	// Destination the message was published to.
	Destination string
	// ContentType as declared by the sender, may be empty.
	ContentType string
	// ContentLength as declared on the wire.
	ContentLength int
	// Body holds the raw frame body bytes.
	Body []byte
	// Payload is the decoded application value, produced by the Reader's
	// configured converter. Nil when no converter was configured.
	Payload interface{}
}

// CastBodyToType decodes the JSON body into the object typ points at.
func (m *Message) CastBodyToType(typ interface{}) error {
	typVal := reflect.ValueOf(typ)
	if typVal.Kind() != reflect.Ptr {
		return fmt.Errorf("CastBodyToType: invalid argument, argument should be the address of an object")
	}
	if typVal.IsNil() {
		return fmt.Errorf("CastBodyToType: cannot cast to nil")
	}

	var decoded interface{}
	if err := json.Unmarshal(m.Body, &decoded); err != nil {
		return fmt.Errorf("CastBodyToType: failed to unmarshal body: %w", err)
	}

	return mapstructure.Decode(decoded, typ)
}
