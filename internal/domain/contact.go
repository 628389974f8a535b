package domain

// Contact is one normalized blast recipient.
type Contact struct {
	Number            string `json:"number"`
	RecipientName     string `json:"recipientName"`
	AdditionalMessage string `json:"additionalMessage"`
	ExtraMessage      string `json:"extraMessage"`
}

// RejectedContact records a contact dropped during normalization, keyed by
// its position in the submitted batch.
type RejectedContact struct {
	Index  int    `json:"index"`
	Number string `json:"number"`
	Reason string `json:"reason"`
}
