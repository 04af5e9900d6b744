package mpesa

import (
	"errors"
	"testing"
	"time"

	"github.com/fitflow/billing/internal/billing"
	"github.com/shopspring/decimal"
)

const successPayload = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149},
          {"Name": "Balance"},
          {"Name": "Amount", "Value": 3000.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"}
        ]
      }
    }
  }
}`

func TestParseCallback_SuccessByName(t *testing.T) {
	at := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	res, err := ParseCallback([]byte(successPayload), at)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.ProviderRequestID != "ws_CO_191220191020363925" || res.MerchantRequestID != "29115-34620561-1" {
		t.Fatalf("unexpected ids %+v", res)
	}
	if !res.Succeeded() || res.Receipt != "NLJ7RT61SV" || res.PhoneNumber != "254708374149" {
		t.Fatalf("unexpected fields %+v", res)
	}
	if !res.Amount.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected amount 3000, got %s", res.Amount)
	}
	if !res.ReceivedAt.Equal(at) || len(res.Payload) == 0 {
		t.Fatalf("unexpected delivery details %+v", res)
	}
}

func TestParseCallback_StringValuesAndResultCode(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"R1","ResultCode":"0","CallbackMetadata":{"Item":[
		{"Name":"MpesaReceiptNumber","Value":"ABC"},{"Name":"Amount","Value":"1.50"},{"Name":"PhoneNumber","Value":"254700000000"}]}}}}`
	res, err := ParseCallback([]byte(payload), time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.ResultCode != 0 || !res.Amount.Equal(decimal.RequireFromString("1.5")) || res.PhoneNumber != "254700000000" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestParseCallback_FailureNeedsNoMetadata(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"MerchantRequestID":"M","CheckoutRequestID":"R2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	res, err := ParseCallback([]byte(payload), time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Succeeded() || res.ResultCode != 1032 || res.Receipt != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestParseCallback_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"empty":           ``,
		"not json":        `{`,
		"no callback":     `{"Body":{}}`,
		"no request id":   `{"Body":{"stkCallback":{"ResultCode":0}}}`,
		"no result code":  `{"Body":{"stkCallback":{"CheckoutRequestID":"R"}}}`,
		"bad result code": `{"Body":{"stkCallback":{"CheckoutRequestID":"R","ResultCode":"x"}}}`,
		"missing receipt": `{"Body":{"stkCallback":{"CheckoutRequestID":"R","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":1},{"Name":"PhoneNumber","Value":254700000000}]}}}}`,
		"bad amount":      `{"Body":{"stkCallback":{"CheckoutRequestID":"R","ResultCode":0,"CallbackMetadata":{"Item":[{"Name":"Amount","Value":"x"},{"Name":"PhoneNumber","Value":1},{"Name":"MpesaReceiptNumber","Value":"A"}]}}}}`,
		"no metadata":     `{"Body":{"stkCallback":{"CheckoutRequestID":"R","ResultCode":0}}}`,
	}
	for name, payload := range cases {
		if _, err := ParseCallback([]byte(payload), time.Now()); !errors.Is(err, billing.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}
