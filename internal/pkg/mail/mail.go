// Package mail sends outbound email through an HTTP API with basic-auth
// credentials or through SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/smtp"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

const (
	ProviderHTTP = "http"
	ProviderSMTP = "smtp"
)

// Config holds mail provider settings.
type Config struct {
	Enable   bool
	Provider string
	// Endpoint is the API base, e.g. https://api.mailgun.net.
	Endpoint string
	Domain   string
	APIKey   string
	From     string

	Host string
	Port int
	User string
	Pass string
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Sender sends emails via the HTTP API or SMTP.
type Sender struct {
	cfg    Config
	client *http.Client
}

// New builds a sender. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) *Sender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderHTTP
	}
	return &Sender{cfg: cfg, client: httpClient}
}

// Enabled reports whether mail is configured to be sent.
func (s *Sender) Enabled() bool { return s.cfg.Enable }

// Send dispatches an email.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.Enable {
		return apperr.NotConfigured("mail")
	}
	if len(msg.To) == 0 {
		return apperr.Invalid("mail has no recipients")
	}
	if s.cfg.Provider == ProviderSMTP {
		return s.sendSMTP(msg)
	}
	return s.sendHTTP(ctx, msg)
}

// sendHTTP posts a form to <endpoint>/v3/<domain>/messages.
func (s *Sender) sendHTTP(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("from", s.cfg.From)
	for _, to := range msg.To {
		form.Add("to", to)
	}
	form.Set("subject", msg.Subject)
	if msg.Text != "" {
		form.Set("text", msg.Text)
	}
	if msg.HTML != "" {
		form.Set("html", msg.HTML)
	}

	endpoint := strings.TrimSuffix(s.cfg.Endpoint, "/") + "/v3/" + url.PathEscape(s.cfg.Domain) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperr.Internal("mail", err)
	}
	req.SetBasicAuth("api", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperr.Internal("mail", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return apperr.Internal("mail", fmt.Errorf("mail api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return nil
}

// sendSMTP sends a multipart/alternative message via net/smtp.
func (s *Sender) sendSMTP(msg Message) error {
	port := s.cfg.Port
	if port == 0 {
		port = 587
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	body, err := buildMIME(from, msg)
	if err != nil {
		return apperr.Internal("mail", err)
	}
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	if err := smtp.SendMail(addr, auth, from, msg.To, body); err != nil {
		return apperr.Internal("mail", err)
	}
	return nil
}

func buildMIME(from string, msg Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	var head bytes.Buffer
	head.WriteString("MIME-Version: 1.0\r\n")
	head.WriteString(fmt.Sprintf("From: %s\r\n", from))
	head.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.To, ", ")))
	head.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	head.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary()))

	parts := []struct{ typ, content string }{
		{"text/plain; charset=UTF-8", msg.Text},
		{"text/html; charset=UTF-8", msg.HTML},
	}
	for _, p := range parts {
		if p.content == "" {
			continue
		}
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.typ}})
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, p.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return append(head.Bytes(), body.Bytes()...), nil
}

const newsletterTpl = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
</head>
<body style="background-color:#fff;margin:0 auto;font-family:ui-sans-serif,system-ui,-apple-system,BlinkMacSystemFont,Segoe UI,Roboto,Helvetica Neue,Arial,sans-serif;padding:.5rem">
  <div style="max-width:550px;margin:40px auto;padding:20px;border:1px solid rgb(251,113,133);border-radius:.375rem">
    <p style="font-size:14px;line-height:24px;margin:16px 0">{{.SiteName}} just published:</p>
    <h1 style="font-size:20px;text-align:center">{{.Title}}</h1>
    {{if .Tags}}<p style="font-size:12px;color:rgb(107,114,128);text-align:center">{{range $i, $t := .Tags}}{{if $i}} · {{end}}#{{$t}}{{end}}</p>{{end}}
    <div style="font-size:14px;line-height:24px;margin:16px 0">{{.Summary}}</div>
    <p style="text-align:center;margin:32px 0">
      <a href="{{.DetailURL}}" target="_blank" style="text-decoration:none;display:inline-block;padding:12px 20px;background-color:rgb(251,113,133);border-radius:.25rem;color:#fff;font-size:12px;font-weight:600">Read more</a>
    </p>
    <hr style="width:100%;border:none;border-top:1px solid #eaeaea" />
    <p style="font-size:10px;line-height:24px;margin:16px 0;text-align:center;color:rgb(156,163,175)">
      This mail was sent automatically.{{if .UnsubscribeURL}} <a href="{{.UnsubscribeURL}}" style="color:rgb(156,163,175)">Unsubscribe</a>{{end}}<br />©{{year}} {{.SiteName}}
    </p>
  </div>
</body>
</html>`

// NewsletterData is the data for newsletter emails. Summary is trusted HTML.
type NewsletterData struct {
	SiteName       string
	Title          string
	Tags           []string
	Summary        template.HTML
	DetailURL      string
	UnsubscribeURL string
}

var newsletterTemplate = template.Must(template.New("newsletter").Funcs(template.FuncMap{
	"year": func() int { return time.Now().Year() },
}).Parse(newsletterTpl))

// RenderNewsletter renders the newsletter body.
func RenderNewsletter(data NewsletterData) (string, error) {
	if strings.TrimSpace(data.SiteName) == "" {
		data.SiteName = "mdx"
	}
	var buf bytes.Buffer
	if err := newsletterTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
