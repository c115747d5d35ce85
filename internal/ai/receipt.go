package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"smartspend/internal/core"
)

// ErrNotReceipt is returned when the image does not contain a readable
// receipt, or the model could not extract every required field from it.
var ErrNotReceipt = errors.New("image is not a recognizable receipt")

// ReceiptData is the structured result of scanning a receipt image. All
// fields are required; a partial extraction is rejected as a whole.
type ReceiptData struct {
	Amount       core.Money
	Date         time.Time
	Description  string
	MerchantName string
	Category     string
}

const receiptPrompt = `Analyze this receipt image and extract the following information in JSON format:
- Total amount (just the number)
- Date (in ISO format, YYYY-MM-DD)
- Description or items purchased (brief summary)
- Merchant/store name
- Suggested category (one of: housing, transportation, groceries, utilities, entertainment, food, shopping, healthcare, education, personal, travel, insurance, gifts, bills, other-expense)

Only respond with valid JSON in this exact format:
{
  "amount": number,
  "date": "ISO date string",
  "description": "string",
  "merchantName": "string",
  "category": "string"
}

If it is not a receipt, return an empty object. Do NOT use Markdown fences.`

// ScanReceipt sends the image to the model and returns the extracted
// fields. The caller decides what to do with them; nothing is written
// to the ledger here.
func (c *Client) ScanReceipt(ctx context.Context, image []byte, mimeType string) (*ReceiptData, error) {
	raw, err := c.generate(ctx, []*genai.Part{
		{Text: receiptPrompt},
		{
			InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     image,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan receipt: %w", err)
	}
	return parseReceipt(cleanModelJSON(raw, '{', '}'))
}

type rawReceipt struct {
	Amount       json.Number `json:"amount"`
	Date         string      `json:"date"`
	Description  string      `json:"description"`
	MerchantName string      `json:"merchantName"`
	Category     string      `json:"category"`
}

// parseReceipt validates the model's JSON. The model signals "not a
// receipt" with an empty object, and a hallucinated partial answer is
// treated the same way rather than half-filling a transaction.
func parseReceipt(clean string) (*ReceiptData, error) {
	var raw rawReceipt
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("parse receipt response: %w", err)
	}

	if raw.Amount == "" || raw.Date == "" || raw.Description == "" ||
		raw.MerchantName == "" || raw.Category == "" {
		return nil, ErrNotReceipt
	}

	// A zero, negative or garbled amount means the model did not read a
	// real total off the image; treat it like any other failed extraction.
	amount, err := core.ParseDecimalToCents(raw.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("%w: bad amount %q", ErrNotReceipt, raw.Amount)
	}

	date, err := time.Parse("2006-01-02", raw.Date)
	if err != nil {
		// Some models return a full timestamp even when asked for a date.
		date, err = time.Parse(time.RFC3339, raw.Date)
		if err != nil {
			return nil, fmt.Errorf("parse receipt date %q: %w", raw.Date, err)
		}
	}

	return &ReceiptData{
		Amount:       core.Money{Cents: amount},
		Date:         date.UTC(),
		Description:  strings.TrimSpace(raw.Description),
		MerchantName: strings.TrimSpace(raw.MerchantName),
		Category:     strings.ToLower(strings.TrimSpace(raw.Category)),
	}, nil
}
