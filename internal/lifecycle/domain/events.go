package domain

// Submission is a requester sending a VIN.
type Submission struct {
	RequesterID int64  `json:"requester_id"`
	DisplayName string `json:"display_name,omitempty"`
	RawText     string `json:"text"`
}

// Claim is an operator taking a ticket.
type Claim struct {
	TicketID   int64 `json:"ticket_id"`
	OperatorID int64 `json:"operator_id"`
}

// Fulfillment is an operator attaching the finished report to a ticket.
type Fulfillment struct {
	TicketID   int64    `json:"ticket_id"`
	OperatorID int64    `json:"operator_id"`
	Document   Document `json:"document"`
}

// Document references a file held by the chat transport. The desk never
// sees the bytes, only the handle and what the transport declared.
type Document struct {
	Handle    string `json:"handle"`
	FileName  string `json:"file_name,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
}
