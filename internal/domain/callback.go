/**
 * @description
 * This file defines the payload types for the asynchronous STK push result
 * callback delivered by the Daraja API, along with helpers for unwrapping
 * the envelope Safaricom sometimes nests the result in.
 *
 * @notes
 * - The callback arrives either as {"Body":{"stkCallback":{...}}} or as the
 *   inner stkCallback object directly, so both shapes are modeled and
 *   ExtractStkCallback checks each in turn rather than assuming one.
 * - CallbackMetadata is only present on successful payments and carries a
 *   list of named items; ReceiptNumber pulls the M-Pesa receipt out of it.
 */

package domain

import "encoding/json"

// StkCallbackEnvelope is the outer wrapper Daraja posts to the callback URL.
type StkCallbackEnvelope struct {
	Body *StkCallbackBody `json:"Body,omitempty"`
	// Some deliveries skip the envelope and post the inner object directly.
	StkCallback *StkCallback `json:"stkCallback,omitempty"`
}

// StkCallbackBody is the "Body" member of the callback envelope.
type StkCallbackBody struct {
	StkCallback *StkCallback `json:"stkCallback,omitempty"`
}

// StkCallback is the payment result payload.
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata holds the named metadata items of a successful payment.
type CallbackMetadata struct {
	Item []CallbackMetadataItem `json:"Item"`
}

// CallbackMetadataItem is one Name/Value pair from the callback metadata.
// Value is numeric for some items (Amount) and a string for others
// (MpesaReceiptNumber), so it is kept as raw JSON-decoded data.
type CallbackMetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// ExtractStkCallback unwraps the callback body from raw JSON, tolerating both
// the enveloped and the bare shape. It returns false when neither shape holds
// a result payload; a malformed webhook is acknowledged, never rejected.
func ExtractStkCallback(raw []byte) (*StkCallback, bool) {
	var env StkCallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if env.Body != nil && env.Body.StkCallback != nil {
		return env.Body.StkCallback, true
	}
	if env.StkCallback != nil {
		return env.StkCallback, true
	}

	// Last resort: the payload may be the stkCallback object itself.
	var inner StkCallback
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, false
	}
	if inner.CheckoutRequestID == "" {
		return nil, false
	}
	return &inner, true
}

// ReceiptNumber extracts the MpesaReceiptNumber metadata value, if present.
func (c *StkCallback) ReceiptNumber() (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if receipt, ok := item.Value.(string); ok && receipt != "" {
				return receipt, true
			}
		}
	}
	return "", false
}

// Succeeded reports whether the callback indicates an authorized payment.
func (c *StkCallback) Succeeded() bool {
	return c.ResultCode == 0
}
