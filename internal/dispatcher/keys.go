package dispatcher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/n3hifriends/oolshik-backend-sub000/internal/model"
)

// idempotencySeed identifies the notification a recipient gets for ev.
// Offer updates are keyed by amount so re-published offers with new event
// ids collapse into one delivery.
func idempotencySeed(ev model.EventPayload, recipient string) string {
	if ev.EventType == model.EventOfferUpdated && ev.HasOffer() {
		return strings.Join([]string{
			ev.EventType.String(),
			ev.TaskID(),
			strings.ToUpper(strings.TrimSpace(ev.OfferCurrency)),
			ev.OfferAmount.Decimal.String(),
		}, "|")
	}
	if ev.EventID != "" {
		return ev.EventID
	}
	return strings.Join([]string{ev.EventType.String(), ev.TaskID(), recipient}, "|")
}

// IdempotencyKey is sha256hex(seed + ":" + recipient).
func IdempotencyKey(ev model.EventPayload, recipient string) string {
	sum := sha256.Sum256([]byte(idempotencySeed(ev, recipient) + ":" + recipient))
	return hex.EncodeToString(sum[:])
}
