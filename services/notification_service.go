package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"chez-meme/models"
	"chez-meme/utils"
)

// Notifier tells the hosts that somebody asked for the couch.
type Notifier interface {
	NotifyStayRequest(ctx context.Context, req models.PendingReservation) error
}

// StayRequestMessage is the rendered notification for one request.
type StayRequestMessage struct {
	Subject    string
	Plain      string
	HTML       string
	ApproveURL string
	RejectURL  string
}

func BuildStayRequestMessage(baseURL string, req models.PendingReservation) StayRequestMessage {
	baseURL = strings.TrimRight(baseURL, "/")
	m := StayRequestMessage{
		Subject:    fmt.Sprintf("Nouvelle réservation - %s", req.GuestName),
		ApproveURL: fmt.Sprintf("%s/approve/%s", baseURL, req.Token),
		RejectURL:  fmt.Sprintf("%s/reject/%s", baseURL, req.Token),
	}
	from := utils.FormatDateFR(req.StartDate)
	to := utils.FormatDateFR(req.EndDate)

	var plain strings.Builder
	fmt.Fprintf(&plain, "%s veut réserver le canap' de chez mémé du %s au %s.\n", req.GuestName, from, to)
	if req.Email != "" {
		fmt.Fprintf(&plain, "Email : %s\n", req.Email)
	}
	if req.Phone != "" {
		fmt.Fprintf(&plain, "Téléphone : %s\n", req.Phone)
	}
	if req.Message != "" {
		fmt.Fprintf(&plain, "\n%s\n", req.Message)
	}
	fmt.Fprintf(&plain, "\nValider : %s\nRefuser : %s\n", m.ApproveURL, m.RejectURL)
	m.Plain = plain.String()

	var h strings.Builder
	fmt.Fprintf(&h, "<p>%s veut réserver le canap' de chez mémé du %s au %s.</p>",
		html.EscapeString(req.GuestName), from, to)
	if req.Email != "" || req.Phone != "" {
		fmt.Fprintf(&h, "<p>%s %s</p>", html.EscapeString(req.Email), html.EscapeString(req.Phone))
	}
	if req.Message != "" {
		fmt.Fprintf(&h, "<blockquote>%s</blockquote>", html.EscapeString(req.Message))
	}
	fmt.Fprintf(&h, `<p><a href="%s">[Demande validée]</a> <a href="%s">[Demande non validée]</a></p>`,
		html.EscapeString(m.ApproveURL), html.EscapeString(m.RejectURL))
	m.HTML = h.String()
	return m
}

// ---------------------------
// SMTP
// ---------------------------

type SMTPNotifier struct {
	Config     utils.SMTPConfig
	Recipients []string
	BaseURL    string
	send       func(utils.SMTPConfig, utils.Mail) error
}

func NewSMTPNotifier(cfg utils.SMTPConfig, recipients []string, baseURL string) *SMTPNotifier {
	return &SMTPNotifier{Config: cfg, Recipients: recipients, BaseURL: baseURL, send: utils.SendMail}
}

func (n *SMTPNotifier) NotifyStayRequest(_ context.Context, req models.PendingReservation) error {
	msg := BuildStayRequestMessage(n.BaseURL, req)
	if !n.Config.Configured() || len(n.Recipients) == 0 {
		utils.Log.Info("[mock mail] %s: approve %s reject %s", msg.Subject, msg.ApproveURL, msg.RejectURL)
		return nil
	}
	return n.send(n.Config, utils.Mail{
		To:        n.Recipients,
		Subject:   msg.Subject,
		PlainBody: msg.Plain,
		HTMLBody:  msg.HTML,
	})
}

// ---------------------------
// SendGrid
// ---------------------------

const sendgridEndpoint = "/v3/mail/send"

type SendGridNotifier struct {
	Key        string
	Host       string
	From       *sgmail.Email
	Recipients []string
	BaseURL    string
}

func NewSendGridNotifier(key, fromName, fromEmail string, recipients []string, baseURL string) *SendGridNotifier {
	return &SendGridNotifier{
		Key:        key,
		Host:       "https://api.sendgrid.com",
		From:       sgmail.NewEmail(fromName, fromEmail),
		Recipients: recipients,
		BaseURL:    baseURL,
	}
}

func (n *SendGridNotifier) prepare(msg StayRequestMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	for _, to := range n.Recipients {
		p.AddTos(sgmail.NewEmail("", to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(n.From)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.Plain),
		sgmail.NewContent("text/html", msg.HTML),
	)
	return m
}

func (n *SendGridNotifier) NotifyStayRequest(ctx context.Context, req models.PendingReservation) error {
	if len(n.Recipients) == 0 {
		return errors.New("sendgrid: no recipients configured")
	}
	msg := BuildStayRequestMessage(n.BaseURL, req)

	r := sendgrid.GetRequest(n.Key, sendgridEndpoint, n.Host)
	r.Method = http.MethodPost
	r.Body = sgmail.GetRequestBody(n.prepare(msg))

	res, err := sendgrid.MakeRequestWithContext(ctx, r)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: HTTP %d: %s", res.StatusCode, res.Body)
	}
	utils.Log.Info("stay request #%d sent through sendgrid", req.ID)
	return nil
}

// ---------------------------
// Telegram
// ---------------------------

type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	ChatID  int64
	BaseURL string
}

// NewTelegramNotifier connects the bot. apiEndpoint may be empty for the
// public Telegram API.
func NewTelegramNotifier(token string, chatID int64, baseURL, apiEndpoint string) (*TelegramNotifier, error) {
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, apiEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &TelegramNotifier{bot: bot, ChatID: chatID, BaseURL: baseURL}, nil
}

func (n *TelegramNotifier) NotifyStayRequest(_ context.Context, req models.PendingReservation) error {
	msg := BuildStayRequestMessage(n.BaseURL, req)

	out := tgbotapi.NewMessage(n.ChatID, msg.Plain)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Valider", msg.ApproveURL),
			tgbotapi.NewInlineKeyboardButtonURL("Refuser", msg.RejectURL),
		),
	)
	if _, err := n.bot.Send(out); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// ---------------------------
// Fan-out
// ---------------------------

// MultiNotifier succeeds when at least one channel delivered the message.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyStayRequest(ctx context.Context, req models.PendingReservation) error {
	if len(m) == 0 {
		return nil
	}
	var errs []error
	for _, n := range m {
		if err := n.NotifyStayRequest(ctx, req); err != nil {
			utils.Log.Warn("notifier %T failed for request #%d: %v", n, req.ID, err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}
