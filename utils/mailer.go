package utils

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
)

// SMTPConfig holds the credentials of the outgoing mail account.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
}

func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.Port != 0 && c.Username != "" && c.Password != ""
}

// Mail is a multipart/alternative message.
type Mail struct {
	To        []string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// BuildMIME renders m with the given From header. Headers are RFC 2047
// encoded and both bodies quoted-printable, under a random boundary.
func BuildMIME(from string, m Mail) []byte {
	safe := func(s string) string {
		return strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), "\r", " "), "\n", " ")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", safe(from))
	fmt.Fprintf(&buf, "To: %s\r\n", safe(strings.Join(m.To, ", ")))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", safe(m.Subject)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", mw.Boundary())

	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=utf-8", m.PlainBody},
		{"text/html; charset=utf-8", m.HTMLBody},
	} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", part.contentType)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := mw.CreatePart(h)
		if err != nil {
			continue
		}
		qp := quotedprintable.NewWriter(w)
		_, _ = qp.Write([]byte(part.body))
		_ = qp.Close()
	}
	_ = mw.Close()
	return buf.Bytes()
}

// SendMail delivers m over SMTP with STARTTLS (negotiated by net/smtp when the
// server offers it). Without credentials it only logs the message.
func SendMail(cfg SMTPConfig, m Mail) error {
	if !cfg.Configured() {
		Log.Info("[MOCK EMAIL] to:%s subject:%s", strings.Join(m.To, ","), m.Subject)
		return nil
	}
	if len(m.To) == 0 {
		return fmt.Errorf("mail %q has no recipients", m.Subject)
	}

	from := (&mail.Address{Name: cfg.FromName, Address: cfg.Username}).String()
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	if err := smtp.SendMail(addr, auth, cfg.Username, m.To, BuildMIME(from, m)); err != nil {
		Log.Error("failed to send mail %q to %s: %v", m.Subject, strings.Join(m.To, ","), err)
		return err
	}
	Log.Info("mail %q sent to %s", m.Subject, strings.Join(m.To, ","))
	return nil
}
