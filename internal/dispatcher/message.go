package dispatcher

import (
	"strings"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

const (
	RouteTaskDetail = "TaskDetail"
	RoutePaymentPay = "PaymentPay"
)

// withOfferSuffix appends " Offer: CUR 150.00" unless the body already
// mentions an offer.
func withOfferSuffix(body string, ev model.EventPayload) string {
	if !ev.HasOffer() {
		return body
	}
	if strings.Contains(strings.ToLower(body), "offer") {
		return body
	}
	cur := strings.ToUpper(strings.TrimSpace(ev.OfferCurrency))
	amount := ev.OfferAmount.Decimal.StringFixed(2)
	if cur == "" {
		return body + " Offer: " + amount
	}
	return body + " Offer: " + cur + " " + amount
}

// dataPayload is the structured part the app uses to navigate.
func dataPayload(ev model.EventPayload) map[string]any {
	route := RouteTaskDetail
	if strings.TrimSpace(ev.PaymentRequestID) != "" {
		route = RoutePaymentPay
	}
	data := map[string]any{
		"eventType": ev.EventType.String(),
		"taskId":    ev.TaskID(),
		"route":     route,
	}
	if ev.PaymentRequestID != "" {
		data["paymentRequestId"] = ev.PaymentRequestID
	}
	if ev.HasOffer() {
		data["offerAmount"] = ev.OfferAmount.Decimal.StringFixed(2)
		if ev.OfferCurrency != "" {
			data["offerCurrency"] = strings.ToUpper(ev.OfferCurrency)
		}
	}
	return data
}

// roleOf returns the recipient's role for role-keyed templates.
func roleOf(ev model.EventPayload, recipient string) model.Role {
	if !ev.EventType.RoleKeyed() {
		return model.RoleAny
	}
	if recipient == ev.RequesterUserID {
		return model.RolePayer
	}
	return model.RolePayee
}
