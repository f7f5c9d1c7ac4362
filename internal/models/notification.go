package models

// Notification — письмо, которое отправитель уведомлений доставит через SMTP.
type Notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
