package reminder

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"ubertool-reminder-dispatch/internal/domain"
	"ubertool-reminder-dispatch/internal/service"
)

// Notice is the data a reminder template is rendered with.
type Notice struct {
	Email         string
	BookingNumber string
	Type          domain.ReminderType
	DueDate       string
	AppURL        string
}

type reminderTemplate struct {
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
}

var templates = map[domain.ReminderType]reminderTemplate{
	domain.ReminderTypeDueDay: {
		subject: template.Must(template.New("due_day_subject").Parse(
			`Reminder: booking {{.BookingNumber}} is due back today`)),
		text: template.Must(template.New("due_day_text").Parse(`Hello,

This is a reminder that the items in booking {{.BookingNumber}} are due back today, {{.DueDate}}.

Please return them by the end of the day.
{{if .AppURL}}
View your booking: {{.AppURL}}
{{end}}
Thank you,
Ubertool Team`)),
		html: htmltemplate.Must(htmltemplate.New("due_day_html").Parse(
			`<p>Hello,</p>
<p>This is a reminder that the items in booking <strong>{{.BookingNumber}}</strong> are due back today, {{.DueDate}}.</p>
<p>Please return them by the end of the day.</p>
{{if .AppURL}}<p><a href="{{.AppURL}}">View your booking</a></p>{{end}}
<p>Thank you,<br>Ubertool Team</p>`)),
	},
	domain.ReminderTypeOverdue: {
		subject: template.Must(template.New("overdue_subject").Parse(
			`Overdue: booking {{.BookingNumber}} was due {{.DueDate}}`)),
		text: template.Must(template.New("overdue_text").Parse(`Hello,

The items in booking {{.BookingNumber}} were due back on {{.DueDate}} and are now overdue.

Please return them as soon as possible to avoid additional charges.
{{if .AppURL}}
View your booking: {{.AppURL}}
{{end}}
Thank you,
Ubertool Team`)),
		html: htmltemplate.Must(htmltemplate.New("overdue_html").Parse(
			`<p>Hello,</p>
<p>The items in booking <strong>{{.BookingNumber}}</strong> were due back on {{.DueDate}} and are now overdue.</p>
<p>Please return them as soon as possible to avoid additional charges.</p>
{{if .AppURL}}<p><a href="{{.AppURL}}">View your booking</a></p>{{end}}
<p>Thank you,<br>Ubertool Team</p>`)),
	},
}

// Render builds the mail message for n.
func Render(n Notice, bcc []string) (*service.Message, error) {
	t, ok := templates[n.Type]
	if !ok {
		return nil, fmt.Errorf("no template for reminder type %q", n.Type)
	}

	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, n); err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	if err := t.text.Execute(&text, n); err != nil {
		return nil, fmt.Errorf("render text body: %w", err)
	}
	if err := t.html.Execute(&html, n); err != nil {
		return nil, fmt.Errorf("render html body: %w", err)
	}

	return &service.Message{
		To:       []string{n.Email},
		Bcc:      bcc,
		Subject:  subject.String(),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}
