// Copyright 2021-2023 Gridfabric, Inc.
// SPDX-License-Identifier: BSD-2-Clause

package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridfabric/stompwire/frame"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubscribe_SendsSubscribeFrame(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckClient)
	require.NoError(t, err)

	sent := mock.sentOf(frame.SUBSCRIBE)
	require.Len(t, sent, 1)
	assert.Equal(t, sub.Id.String(), sent[0].Header.Get(frame.Id))
	assert.Equal(t, "/q/orders", sent[0].Header.Get(frame.Destination))
	assert.Equal(t, "client", sent[0].Header.Get(frame.Ack))
}

func TestUnsubscribe_ForgetsSubscriptionAndPendingAcks(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckClient)
	require.NoError(t, err)
	conn.RecordPendingAck(sub, "m-1")
	assert.Equal(t, 1, conn.PendingAckCount())

	require.NoError(t, conn.Unsubscribe(sub))
	assert.Equal(t, 0, conn.PendingAckCount())

	sent := mock.sentOf(frame.UNSUBSCRIBE)
	require.Len(t, sent, 1)
	assert.Equal(t, sub.Id.String(), sent[0].Header.Get(frame.Id))
}

func TestListener_RoutesMessageBySubscriptionId(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckAuto)
	require.NoError(t, err)

	mock.deliver(frame.NewMessage("/q/orders", "m-1", sub.Id.String(), []byte("hello")))

	got := waitDelivery(t, sub)
	assert.Equal(t, "m-1", got.Header.Get(frame.MessageId))
	assert.Equal(t, []byte("hello"), got.Body)
}

func TestListener_FallsBackToDestinationRouting(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckAuto)
	require.NoError(t, err)

	// some brokers stamp their own subscription token; destination still
	// identifies the target
	mock.deliver(frame.NewMessage("/q/orders", "m-2", "broker-token-9", []byte("x")))

	got := waitDelivery(t, sub)
	assert.Equal(t, "m-2", got.Header.Get(frame.MessageId))
}

func TestListener_UnroutableMessageIsViolation(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	mock.deliver(frame.NewMessage("/q/nowhere", "m-1", "s-1", nil))

	evt := waitEvent(t, conn, ProtocolViolation)
	assert.ErrorIs(t, evt.Err, ErrUnknownDelivery)
}

func TestListener_BrokerErrorFrame(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	mock.deliver(frame.NewError("malformed frame received", []byte("detail")))

	evt := waitEvent(t, conn, BrokerFault)
	var brokerErr *BrokerError
	require.ErrorAs(t, evt.Err, &brokerErr)
	assert.Equal(t, "malformed frame received", brokerErr.Message)
	assert.Equal(t, []byte("detail"), brokerErr.Body)
}

func TestListener_UnexpectedCommandIsViolation(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	mock.deliver(frame.NewConnected("1.2", "0,0"))

	evt := waitEvent(t, conn, ProtocolViolation)
	assert.ErrorIs(t, evt.Err, ErrUnexpectedCommand)
}

func TestReceipt_WaitUnblocksWhenBrokerConfirms(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	r := conn.NewReceipt()
	ctx := testContext(t)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- conn.WaitReceipt(ctx, r)
		}()
	}

	mock.deliver(frame.NewReceipt(string(r)))
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestReceipt_WaitHonorsContext(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	r := conn.NewReceipt()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := conn.WaitReceipt(ctx, r)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReceipt_NoReceiptReturnsImmediately(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)
	assert.NoError(t, conn.WaitReceipt(testContext(t), NoReceipt))
}

func TestListener_UnknownReceiptIsViolation(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	mock.deliver(frame.NewReceipt(uuid.New().String()))

	evt := waitEvent(t, conn, ProtocolViolation)
	assert.ErrorIs(t, evt.Err, ErrUnknownReceipt)
}

func TestListener_UnparseableReceiptIdIsViolation(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	mock.deliver(frame.NewReceipt("not-a-receipt-token"))

	evt := waitEvent(t, conn, ProtocolViolation)
	assert.Contains(t, evt.Err.Error(), "unparseable")
}

func TestAck_CumulativeClearsEarlierMessages(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckClient)
	require.NoError(t, err)
	conn.RecordPendingAck(sub, "m-1")
	conn.RecordPendingAck(sub, "m-2")
	conn.RecordPendingAck(sub, "m-3")

	require.NoError(t, conn.Ack(testContext(t), sub, "m-2", false))
	assert.Equal(t, 1, conn.PendingAckCount())

	sent := mock.sentOf(frame.ACK)
	require.Len(t, sent, 1)
	assert.Equal(t, "m-2", sent[0].Header.Get(frame.Id))
	assert.Equal(t, sub.Id.String(), sent[0].Header.Get(frame.Subscription))
}

func TestAck_IndividualClearsOnlyThatMessage(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckClientIndividual)
	require.NoError(t, err)
	conn.RecordPendingAck(sub, "m-1")
	conn.RecordPendingAck(sub, "m-2")
	conn.RecordPendingAck(sub, "m-3")

	require.NoError(t, conn.Ack(testContext(t), sub, "m-2", false))
	assert.Equal(t, 2, conn.PendingAckCount())
}

func TestNack_SendsNackFrame(t *testing.T) {
	mock := newMockTransport()
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckClientIndividual)
	require.NoError(t, err)
	conn.RecordPendingAck(sub, "m-1")

	require.NoError(t, conn.Nack(testContext(t), sub, "m-1", false))
	assert.Equal(t, 0, conn.PendingAckCount())
	require.Len(t, mock.sentOf(frame.NACK), 1)
}

func TestAck_WithReceiptWaitsForConfirmation(t *testing.T) {
	mock := newMockTransport()
	mock.setAutoReceipt(true)
	conn := connected(t, mock, nil, nil)

	sub, err := conn.Subscribe("/q/orders", AckClient)
	require.NoError(t, err)
	conn.RecordPendingAck(sub, "m-1")

	require.NoError(t, conn.Ack(testContext(t), sub, "m-1", true))

	sent := mock.sentOf(frame.ACK)
	require.Len(t, sent, 1)
	_, hasReceipt := sent[0].Header.Contains(frame.Receipt)
	assert.True(t, hasReceipt)
}

func TestDisconnect_TearsDownCleanly(t *testing.T) {
	mock := newMockTransport()
	registry := NewConnectionRegistry()
	conn := connected(t, mock, nil, registry)

	require.NoError(t, conn.Disconnect())

	assert.Equal(t, 0, registry.Count())
	assert.True(t, mock.isClosed())
	require.Len(t, mock.sentOf(frame.DISCONNECT), 1)
	waitEvent(t, conn, ConnectionClosed)

	// everything after teardown is rejected
	assert.ErrorIs(t, conn.SendFrame(frame.NewBegin("tx")), ErrNotConnected)
	_, err := conn.Subscribe("/q/a", AckAuto)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, conn.Disconnect(), ErrNotConnected)
}

func TestListener_TransportFaultShutsDown(t *testing.T) {
	mock := newMockTransport()
	registry := NewConnectionRegistry()
	conn := connected(t, mock, nil, registry)

	// the broker drops the socket out from under us
	mock.Close()

	evt := waitEvent(t, conn, ProtocolViolation)
	assert.Contains(t, evt.Err.Error(), "receive failed")
	waitEvent(t, conn, ConnectionClosed)
	assert.Equal(t, 0, registry.Count())
	assert.False(t, conn.isLive())
}
