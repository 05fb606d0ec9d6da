package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/refundly/webhooks/pkg/domain/shared"
)

// PartnerQueue is the single shared queue for external-partner events.
const PartnerQueue = "refund-webhook-vendor"

// VendorQueue returns the name of the queue dedicated to a vendor.
func VendorQueue(vendorID ID) string {
	return vendorQueuePrefix + strconv.FormatInt(vendorID.Int64(), 10)
}

const vendorQueuePrefix = "webhook-vendor-"

// ParseVendorQueue returns the vendor owning a queue name produced by VendorQueue.
func ParseVendorQueue(name string) (ID, bool) {
	raw, ok := strings.CutPrefix(name, vendorQueuePrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return ID(id), true
}

// ErrMalformedMessage is returned for queue payloads that cannot be acted on.
var ErrMalformedMessage = fmt.Errorf("%w: malformed queue message", shared.ErrValidation)

// VendorMessage is the body published on a vendor queue.
type VendorMessage struct {
	WebhookEventID int64 `json:"webhookEventId"`
}

// PartnerMessage is the body published on the partner queue.
type PartnerMessage struct {
	RefundWebhookEventID int64 `json:"refundWebhookEventId"`
}

// EncodeMessages builds one queue body per event id for the given variant.
func EncodeMessages(variant Variant, ids []ID) ([][]byte, error) {
	bodies := make([][]byte, 0, len(ids))
	for _, id := range ids {
		var (
			body []byte
			err  error
		)
		switch variant {
		case VariantPartner:
			body, err = json.Marshal(PartnerMessage{RefundWebhookEventID: id.Int64()})
		default:
			body, err = json.Marshal(VendorMessage{WebhookEventID: id.Int64()})
		}
		if err != nil {
			return nil, fmt.Errorf("encode message for event %d: %w", id, err)
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

// DecodeMessage extracts the event id from a queue body. A body that is not JSON, lacks
// the variant's id field or carries a non-positive id yields ErrMalformedMessage.
func DecodeMessage(variant Variant, body []byte) (ID, error) {
	var id *int64
	switch variant {
	case VariantPartner:
		var msg struct {
			ID *int64 `json:"refundWebhookEventId"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		id = msg.ID
	default:
		var msg struct {
			ID *int64 `json:"webhookEventId"`
		}
		if err := json.Unmarshal(body, &msg); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		id = msg.ID
	}
	if id == nil || *id <= 0 {
		return 0, fmt.Errorf("%w: missing event id", ErrMalformedMessage)
	}
	return ID(*id), nil
}
