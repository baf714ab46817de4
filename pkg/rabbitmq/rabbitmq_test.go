package rabbitmq

import (
	"errors"
	"testing"

	amqp "github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockAcknowledger struct {
	mock.Mock
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	return m.Called(tag, multiple).Error(0)
}

func (m *mockAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	return m.Called(tag, multiple, requeue).Error(0)
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	return m.Called(tag, requeue).Error(0)
}

func TestHandleDelivery_AcksOnSuccess(t *testing.T) {
	ack := new(mockAcknowledger)
	ack.On("Ack", uint64(7), false).Return(nil).Once()

	var seen []byte
	msg := amqp.Delivery{Acknowledger: ack, DeliveryTag: 7, Body: []byte(`{"id":"1"}`)}
	err := HandleDelivery(msg, func(d amqp.Delivery) error {
		seen = d.Body
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []byte(`{"id":"1"}`), seen)
	ack.AssertExpectations(t)
}

func TestHandleDelivery_NacksOnFailure(t *testing.T) {
	ack := new(mockAcknowledger)
	ack.On("Nack", uint64(9), false, false).Return(nil).Once()

	msg := amqp.Delivery{Acknowledger: ack, DeliveryTag: 9, RoutingKey: "product.created"}
	err := HandleDelivery(msg, func(amqp.Delivery) error {
		return errors.New("malformed event")
	})

	assert.NoError(t, err)
	ack.AssertExpectations(t)
	ack.AssertNotCalled(t, "Ack", mock.Anything, mock.Anything)
}

func TestClient_WithoutChannel(t *testing.T) {
	c := &Client{}

	assert.ErrorIs(t, c.Publish("product", "product.created", []byte("{}")), ErrChannelUnavailable)
	assert.ErrorIs(t, c.Consume("q", "product", "product.*", func(amqp.Delivery) error { return nil }), ErrChannelUnavailable)
	assert.NoError(t, c.Close())
}
