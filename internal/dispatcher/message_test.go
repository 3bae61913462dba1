package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

func TestOfferSuffix(t *testing.T) {
	ev := model.EventPayload{EventType: model.EventOfferUpdated, OfferAmount: offer("150"), OfferCurrency: "inr"}

	assert.Equal(t, "New amount. Offer: INR 150.00", withOfferSuffix("New amount.", ev))
	assert.Equal(t, "Your offer changed.", withOfferSuffix("Your offer changed.", ev))
	assert.Equal(t, "Plain.", withOfferSuffix("Plain.", model.EventPayload{}))

	ev.OfferAmount = offer("99.5")
	assert.Equal(t, "x Offer: INR 99.50", withOfferSuffix("x", ev))
}

func TestDataPayload(t *testing.T) {
	d := dataPayload(model.EventPayload{EventType: model.EventCreated, AggregateID: "t1"})
	assert.Equal(t, map[string]any{"eventType": "CREATED", "taskId": "t1", "route": RouteTaskDetail}, d)

	d = dataPayload(model.EventPayload{
		EventType: model.EventPaymentRequested, AggregateID: "t1", PaymentRequestID: "p1",
		OfferAmount: offer("150.0"), OfferCurrency: "INR",
	})
	assert.Equal(t, RoutePaymentPay, d["route"])
	assert.Equal(t, "150.00", d["offerAmount"])
	assert.Equal(t, "INR", d["offerCurrency"])
	assert.Equal(t, "p1", d["paymentRequestId"])
}

func TestRoleOf(t *testing.T) {
	ev := model.EventPayload{EventType: model.EventPaymentCompleted, RequesterUserID: "req"}
	assert.Equal(t, model.RolePayer, roleOf(ev, "req"))
	assert.Equal(t, model.RolePayee, roleOf(ev, "helper"))
	assert.Equal(t, model.RoleAny, roleOf(ev.WithType(model.EventCancelled), "req"))
}
