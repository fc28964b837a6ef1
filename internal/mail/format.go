package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

// Layout carries the branding used by the HTML part.
type Layout struct {
	LogoURL string
	SiteURL string
}

var htmlTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"breaks": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
}).Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Document from SignDesk</title>
    <style>
      body { font-family: -apple-system, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0; background-color: #f8fafc; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; }
      .header { text-align: center; margin-bottom: 30px; padding: 20px; background-color: #1f2937; color: white; border-radius: 8px; }
      .header img { width: 48px; height: 48px; margin: 0 auto 10px auto; display: block; }
      .content-block { background: white; padding: 25px; border-radius: 8px; margin-bottom: 20px; }
      .document-body { font-size: 15px; line-height: 1.7; color: #374151; padding-bottom: 15px; }
      .document-content-box { background: #f9fafb; padding: 20px; border-radius: 6px; border-left: 3px solid #3b82f6; }
      .document-content-text { font-size: 13px; font-family: 'Courier New', monospace; background: white; padding: 15px; border: 1px solid #e5e7eb; }
      .footer { text-align: center; padding: 20px; background-color: #374151; color: white; border-radius: 8px; }
      .footer a { color: #93c5fd; text-decoration: none; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header">
        {{if .LogoURL}}<img src="{{.LogoURL}}" alt="SignDesk" width="48" height="48">{{end}}
        <h1>SignDesk</h1>
        <p>Professional Document Management</p>
      </div>
      <div class="content-block">
        <div class="document-body">{{breaks .Body}}</div>
        <div class="document-content-box">
          <h3>Document Content</h3>
          <div class="document-content-text">{{breaks .Content}}</div>
        </div>
      </div>
      <div class="footer">
        <p>Generated with SignDesk</p>
        {{if .SiteURL}}<p>Visit <a href="{{.SiteURL}}">{{.SiteURL}}</a></p>{{end}}
      </div>
    </div>
  </body>
</html>
`))

// Render builds the HTML part. Body and content are escaped; newlines become
// line breaks.
func (l Layout) Render(body, content string) (string, error) {
	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Layout
		Body, Content string
	}{l, body, content})
	if err != nil {
		return "", fmt.Errorf("render email html: %w", err)
	}
	return buf.String(), nil
}

var bodyTemplate = texttemplate.Must(texttemplate.New("body").Parse(`Dear {{.Recipient}},

I hope this email finds you well. Please find the {{.Title}} ready for your review and signature.

Document Details:
Document: {{.Title}}
Sender: {{.Sender}}
Date: {{.Date}}
Status: Ready for Signature

Please review the document carefully and provide your signature where indicated. The document includes all necessary terms and conditions we discussed.

If you have any questions or need clarification on any terms, please don't hesitate to reach out to me directly.

Next Steps:
1. Review all sections carefully
2. Click on the signature fields to add your signature
3. Add the date where required
4. Submit the completed document

Thank you for your time and consideration. I look forward to working with you.

Best regards,
{{.Sender}}

---
This document was generated and sent via SignDesk`))

// GenerateBody drafts the default message body for a document email.
func GenerateBody(title, sender, recipient string, now time.Time) string {
	var buf bytes.Buffer
	// The template only references fields of the struct below, so Execute
	// cannot fail on a bytes.Buffer.
	_ = bodyTemplate.Execute(&buf, struct{ Title, Sender, Recipient, Date string }{
		title, sender, recipient, now.Format("1/2/2006"),
	})
	return buf.String()
}

// MailtoURL builds a mailto: link pre-filled with recipients, subject, and body.
func MailtoURL(to []string, subject, body string) string {
	return "mailto:" + strings.Join(to, ",") + "?subject=" + encodeURIComponent(subject) + "&body=" + encodeURIComponent(body)
}

// encodeURIComponent percent-encodes everything outside the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ). net/url has no encoder with that set:
// QueryEscape turns spaces into "+", which mail clients show literally.
func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || ('0' <= c && c <= '9') || strings.IndexByte("-_.!~*'()", c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}
