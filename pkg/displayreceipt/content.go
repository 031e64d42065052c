package displayreceipt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrymomot/receiptkit/pkg/receipt"
)

// DefaultReceiptKey is the user-info key carrying receipt data.
const DefaultReceiptKey = "com.batch"

// Content is the notification content handed over by the host. The pipeline returns it
// unchanged.
type Content struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	Body     string         `json:"body,omitempty"`
	UserInfo map[string]any `json:"user_info,omitempty"`
}

// extractReceipt builds the receipt carried under key. It reports false when the notification
// has no receipt data. The receipt id comes from the "i" field when present.
func extractReceipt(content Content, key string, now time.Time) (receipt.Receipt, bool, error) {
	raw, ok := content.UserInfo[key]
	if !ok || raw == nil {
		return receipt.Receipt{}, false, nil
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return receipt.Receipt{}, false, fmt.Errorf("%w: %q must be an object, got %T", ErrInvalidReceipt, key, raw)
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return receipt.Receipt{}, false, fmt.Errorf("%w: %v", ErrInvalidReceipt, err)
	}

	id, _ := fields["i"].(string)
	return receipt.New(id, payload, now), true, nil
}
