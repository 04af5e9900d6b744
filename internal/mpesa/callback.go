package mpesa

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/shopspring/decimal"
)

// Metadata item names read from a successful callback.
const (
	itemReceipt = "MpesaReceiptNumber"
	itemAmount  = "Amount"
	itemPhone   = "PhoneNumber"
)

type callbackEnvelope struct {
	Body struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string    `json:"MerchantRequestID"`
	CheckoutRequestID string    `json:"CheckoutRequestID"`
	ResultCode        *flexInt  `json:"ResultCode"`
	ResultDesc        string    `json:"ResultDesc"`
	CallbackMetadata  *metadata `json:"CallbackMetadata"`
}

type metadata struct {
	Item []metadataItem `json:"Item"`
}

type metadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	n, errParse := strconv.Atoi(strings.TrimSpace(raw))
	if errParse != nil {
		return fmt.Errorf("invalid result code %s", string(data))
	}
	*f = flexInt(n)
	return nil
}

// ParseCallback decodes an STK push result callback. Metadata fields are looked up by name and
// may be JSON strings or numbers. A successful result missing the receipt, amount or phone is
// a validation error.
func ParseCallback(body []byte, receivedAt time.Time) (billing.CallbackResult, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return billing.CallbackResult{}, fmt.Errorf("%w: empty callback body", billing.ErrValidation)
	}
	var env callbackEnvelope
	if errUnmarshal := json.Unmarshal(body, &env); errUnmarshal != nil {
		return billing.CallbackResult{}, fmt.Errorf("%w: decode callback: %v", billing.ErrValidation, errUnmarshal)
	}
	cb := env.Body.StkCallback
	if cb == nil {
		return billing.CallbackResult{}, fmt.Errorf("%w: missing Body.stkCallback", billing.ErrValidation)
	}
	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return billing.CallbackResult{}, fmt.Errorf("%w: missing CheckoutRequestID", billing.ErrValidation)
	}
	if cb.ResultCode == nil {
		return billing.CallbackResult{}, fmt.Errorf("%w: missing ResultCode", billing.ErrValidation)
	}

	result := billing.CallbackResult{
		ProviderRequestID: strings.TrimSpace(cb.CheckoutRequestID),
		MerchantRequestID: strings.TrimSpace(cb.MerchantRequestID),
		ResultCode:        int(*cb.ResultCode),
		ResultDesc:        strings.TrimSpace(cb.ResultDesc),
		Payload:           append([]byte(nil), body...),
		ReceivedAt:        receivedAt.UTC(),
	}
	if !result.Succeeded() {
		return result, nil
	}

	values := make(map[string]string)
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			if v, ok := scalarString(item.Value); ok {
				values[strings.TrimSpace(item.Name)] = v
			}
		}
	}
	for _, name := range []string{itemReceipt, itemAmount, itemPhone} {
		if values[name] == "" {
			return billing.CallbackResult{}, fmt.Errorf("%w: callback metadata missing %s", billing.ErrValidation, name)
		}
	}
	amount, errAmount := decimal.NewFromString(values[itemAmount])
	if errAmount != nil {
		return billing.CallbackResult{}, fmt.Errorf("%w: invalid callback amount %q", billing.ErrValidation, values[itemAmount])
	}
	result.Receipt = values[itemReceipt]
	result.Amount = amount
	result.PhoneNumber = values[itemPhone]
	return result, nil
}

// scalarString renders a JSON string or number as text.
func scalarString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if errUnmarshal := json.Unmarshal(trimmed, &s); errUnmarshal != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if errUnmarshal := json.Unmarshal(trimmed, &n); errUnmarshal != nil {
		return "", false
	}
	return n.String(), true
}
