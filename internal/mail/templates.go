package mail

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/travelblog/internal/db"
)

const (
	notProvided  = "Not provided"
	notSpecified = "Not specified"
	noMessage    = "No message provided"
)

// formData is the view model both templates render.
type formData struct {
	SiteName    string
	SiteURL     string
	FirstName   string
	FullName    string
	Email       string
	Phone       string
	Address     string
	Interests   string
	Experience  string
	Message     string
	HearAboutUs string
	SubmittedAt string
}

func newFormData(sub db.Submission, siteName, siteURL string) formData {
	submittedAt := sub.CreatedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	return formData{
		SiteName:    siteName,
		SiteURL:     siteURL,
		FirstName:   sub.FirstName,
		FullName:    sub.FullName(),
		Email:       sub.Email,
		Phone:       fallback(sub.Phone, notProvided),
		Address:     fallback(sub.Address, notProvided),
		Interests:   fallback(strings.Join(sub.Interests, ", "), notSpecified),
		Experience:  fallback(sub.Experience, notSpecified),
		Message:     fallback(sub.Message, noMessage),
		HearAboutUs: fallback(sub.HearAboutUs, notSpecified),
		SubmittedAt: submittedAt.UTC().Format("January 2, 2006 15:04 MST"),
	}
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

var (
	adminText = texttemplate.Must(texttemplate.New("admin.txt").Parse(`New "Write for Us" submission

Name: {{.FullName}}
Email: {{.Email}}
Phone: {{.Phone}}
Address: {{.Address}}
Interests: {{.Interests}}
Experience: {{.Experience}}
How they heard about us: {{.HearAboutUs}}
Submitted: {{.SubmittedAt}}

Message:
{{.Message}}
`))

	adminHTML = htmltemplate.Must(htmltemplate.New("admin.html").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>New "Write for Us" Submission</h2>
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td><strong>Name</strong></td><td>{{.FullName}}</td></tr>
    <tr><td><strong>Email</strong></td><td>{{.Email}}</td></tr>
    <tr><td><strong>Phone</strong></td><td>{{.Phone}}</td></tr>
    <tr><td><strong>Address</strong></td><td>{{.Address}}</td></tr>
    <tr><td><strong>Interests</strong></td><td>{{.Interests}}</td></tr>
    <tr><td><strong>Experience</strong></td><td>{{.Experience}}</td></tr>
    <tr><td><strong>How they heard about us</strong></td><td>{{.HearAboutUs}}</td></tr>
    <tr><td><strong>Submitted</strong></td><td>{{.SubmittedAt}}</td></tr>
  </table>
  <h3>Message</h3>
  <p style="white-space: pre-wrap;">{{.Message}}</p>
</div>
`))

	userText = texttemplate.Must(texttemplate.New("user.txt").Parse(`Hi {{.FirstName}},

Thank you for your interest in writing for {{.SiteName}}!

We have received your submission and our editorial team will review it.
You can expect to hear back from us within 3-5 business days.

Your submission:
Interests: {{.Interests}}
Experience: {{.Experience}}

In the meantime, explore our latest stories at {{.SiteURL}}

Best regards,
The {{.SiteName}} Team
`))

	userHTML = htmltemplate.Must(htmltemplate.New("user.html").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2>Thank you, {{.FirstName}}!</h2>
  <p>Thank you for your interest in writing for {{.SiteName}}.</p>
  <p>We have received your submission and our editorial team will review it.
  You can expect to hear back from us within <strong>3-5 business days</strong>.</p>
  <h3>Your submission</h3>
  <ul>
    <li><strong>Interests:</strong> {{.Interests}}</li>
    <li><strong>Experience:</strong> {{.Experience}}</li>
  </ul>
  <p>In the meantime, explore our latest stories at <a href="{{.SiteURL}}">{{.SiteURL}}</a>.</p>
  <p>Best regards,<br>The {{.SiteName}} Team</p>
</div>
`))
)

func render(text *texttemplate.Template, html *htmltemplate.Template, data formData) (string, string, error) {
	var textBuf, htmlBuf bytes.Buffer
	if err := text.Execute(&textBuf, data); err != nil {
		return "", "", err
	}
	if err := html.Execute(&htmlBuf, data); err != nil {
		return "", "", err
	}
	return textBuf.String(), htmlBuf.String(), nil
}
