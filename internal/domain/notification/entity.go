// internal/domain/notification/entity.go
package notification

type Kind string

const (
	KindNewLead  Kind = "new_lead"
	KindThankYou Kind = "thank_you"
)

// Mail is one outbound message handed to the mail transport.
type Mail struct {
	Kind     Kind     `json:"kind"`
	From     string   `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	HTMLBody string   `json:"html_body"`
	TextBody string   `json:"text_body"`
}
