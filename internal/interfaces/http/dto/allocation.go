package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// AllocateRequest is the body of POST /allocations
type AllocateRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	SKU     string `json:"sku" binding:"required"`
	Qty     int    `json:"qty" binding:"required,gt=0"`
}

// AllocateResponse carries the batch the line was allocated to
type AllocateResponse struct {
	BatchRef string `json:"batch_ref"`
}

// DeallocateRequest is the body of DELETE /allocations
type DeallocateRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	SKU     string `json:"sku" binding:"required"`
}

// AddBatchRequest is the body of POST /batches
type AddBatchRequest struct {
	Ref string `json:"ref" binding:"required"`
	SKU string `json:"sku" binding:"required"`
	Qty int    `json:"qty" binding:"required,gt=0"`
	ETA *Date  `json:"eta"`
}

// ETATime returns the parsed eta, nil for a warehouse batch
func (r AddBatchRequest) ETATime() *time.Time {
	if r.ETA == nil {
		return nil
	}
	t := time.Time(*r.ETA)
	return &t
}

// AddBatchResponse echoes the created batch
type AddBatchResponse struct {
	Ref string     `json:"ref"`
	SKU string     `json:"sku"`
	Qty int        `json:"qty"`
	ETA *time.Time `json:"eta,omitempty"`
}

// Date accepts a calendar date ("2006-01-02") or an RFC3339 timestamp.
// JSON null leaves the pointer holding it nil.
type Date time.Time

const dateLayout = "2006-01-02"

// UnmarshalJSON implements json.Unmarshaler
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("eta must be a date string: %w", err)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		*d = Date(t)
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("eta %q is neither YYYY-MM-DD nor RFC3339", s)
	}
	*d = Date(t)
	return nil
}

// MarshalJSON implements json.Marshaler
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(d).Format(dateLayout))
}
