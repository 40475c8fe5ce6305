package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	gomail "gopkg.in/mail.v2"

	"cine-match/logging"
	"cine-match/storage"
)

// Sender delivers a prepared message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails a digest of each served run.
type EmailNotifier struct {
	senderEmail    string
	recipientEmail string
	sender         Sender
	htmlTemplate   *template.Template
}

// EmailConfig contains configuration for email notifications
type EmailConfig struct {
	SMTPHost       string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	RecipientEmail string
}

const runTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Cine Match - Recommendations</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; }
        h1 { color: #e50914; }
        table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
        th { background-color: #f4f4f4; text-align: left; padding: 10px; }
        td { padding: 10px; border-bottom: 1px solid #ddd; }
        .prefs { background-color: #e3f2fd; padding: 10px; }
        .footer { font-size: 12px; color: #666; margin-top: 50px; text-align: center; }
    </style>
</head>
<body>
    <h1>Recommended {{.Heading}}</h1>
    <p>Served on {{.Date}} using the {{.Strategy}} ranker.</p>

    <div class="prefs">
        <p>Type: {{.Prefs.Type}} &middot; Genres: {{.Prefs.Genres}} &middot; Country: {{.Prefs.ProductionCountries}} &middot; Runtime: {{.Prefs.Runtime}} min</p>
    </div>

    <table>
        <tr>
            <th>#</th>
            <th>Title</th>
            <th>Type</th>
            <th>Runtime</th>
            <th>Genres</th>
            <th>Country</th>
            <th>IMDB</th>
        </tr>
        {{range .Items}}
        <tr>
            <td>{{.Rank}}</td>
            <td>{{.Title}}</td>
            <td>{{.Type}}</td>
            <td>{{printf "%.0f" .Runtime}}</td>
            <td>{{join .Genres}}</td>
            <td>{{join .ProductionCountries}}</td>
            <td>{{if .IMDBScore}}{{.IMDBScore}}{{else}}-{{end}}</td>
        </tr>
        {{end}}
    </table>

    <div class="footer">
        <p>Run {{.RunID}}. This is an automated email from Cine Match. Please do not reply.</p>
    </div>
</body>
</html>
`

// NewEmailNotifier creates a notifier that sends through SMTP.
func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	port := config.SMTPPort
	if port == 0 {
		port = 587
	}
	// Mailtrap style auth: the user name is fixed and the password is the API token.
	d := gomail.NewDialer(config.SMTPHost, port, "api", config.SenderPassword)
	return NewEmailNotifierWithSender(config, d)
}

// NewEmailNotifierWithSender creates a notifier that hands messages to sender.
func NewEmailNotifierWithSender(config EmailConfig, sender Sender) (*EmailNotifier, error) {
	tmpl, err := template.New("run").Funcs(template.FuncMap{
		"join": func(xs []string) string { return strings.Join(xs, ", ") },
	}).Parse(runTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	return &EmailNotifier{
		senderEmail:    config.SenderEmail,
		recipientEmail: config.RecipientEmail,
		sender:         sender,
		htmlTemplate:   tmpl,
	}, nil
}

// BuildRunMessage renders the digest for run.
func (n *EmailNotifier) BuildRunMessage(run *storage.Run) (*gomail.Message, error) {
	var heading string
	if run.Preferences.Type != "" {
		heading = cases.Title(language.English).String(run.Preferences.Type) + "s"
	}

	data := struct {
		Heading  string
		Date     string
		Strategy string
		RunID    string
		Prefs    any
		Items    []storage.RunItem
	}{
		Heading:  heading,
		Date:     run.CreatedAt.Local().Format("January 2, 2006 at 3:04 PM"),
		Strategy: run.Strategy,
		RunID:    run.ID,
		Prefs:    run.Preferences,
		Items:    run.Items,
	}

	var body bytes.Buffer
	if err := n.htmlTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render email template: %w", err)
	}

	var plain strings.Builder
	fmt.Fprintf(&plain, "Cine Match Recommendations\n\nServed on %s using the %s ranker.\n\n", data.Date, run.Strategy)
	for _, it := range run.Items {
		fmt.Fprintf(&plain, "%d. %s (%s, %.0f min) %s\n", it.Rank, it.Title, it.Type, it.Runtime, strings.Join(it.Genres, ", "))
	}
	plain.WriteString("\nThis is an automated email from Cine Match. Please do not reply.")

	m := gomail.NewMessage()
	m.SetHeader("From", n.senderEmail)
	m.SetHeader("To", n.recipientEmail)
	m.SetHeader("Subject", fmt.Sprintf("Cine Match: %d %s recommendations", len(run.Items), run.Strategy))
	m.SetBody("text/plain", plain.String())
	m.AddAlternative("text/html", body.String())
	return m, nil
}

// NotifyRun mails the digest of run. Empty runs are skipped.
func (n *EmailNotifier) NotifyRun(run *storage.Run) error {
	if run == nil || len(run.Items) == 0 {
		logging.Debug().Msg("No recommendations to notify about")
		return nil
	}
	if n.recipientEmail == "" {
		logging.Debug().Msg("No recipient email configured, skipping notification")
		return nil
	}

	m, err := n.BuildRunMessage(run)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logging.Info().Str("recipient", n.recipientEmail).Int("items", len(run.Items)).Msg("Email notification sent")
	return nil
}

// SendTest mails a short message to check the SMTP settings.
func (n *EmailNotifier) SendTest() error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.senderEmail)
	m.SetHeader("To", n.recipientEmail)
	m.SetHeader("Subject", "Cine Match: test email")
	m.SetBody("text/plain", "This is a test email from Cine Match sent at "+time.Now().Format(time.RFC1123)+".")

	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send test email: %w", err)
	}
	logging.Info().Str("recipient", n.recipientEmail).Msg("Test email sent")
	return nil
}

// MaskSecret shortens a secret for logging.
func MaskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) > 8:
		return secret[:4] + "..." + secret[len(secret)-4:]
	default:
		return "***"
	}
}
