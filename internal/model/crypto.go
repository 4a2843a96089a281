package model

// CryptoInvoice is the hosted payment page returned by the crypto processor.
type CryptoInvoice struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
	PayAddress string `json:"pay_address"`
	Status     string `json:"payment_status"`
}

// CryptoIPN is the instant payment notification posted by the processor.
type CryptoIPN struct {
	PaymentID     string `json:"payment_id"`
	InvoiceID     string `json:"invoice_id"`
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}
