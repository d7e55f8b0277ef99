package payloads

// NotificationPayload — письмо, поставленное в очередь RabbitMQ
type NotificationPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
