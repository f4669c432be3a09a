package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/usecase"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier delivers notifications in the background.
type SMTPNotifier struct {
	config SMTPConfig
	send   sendFunc
	wg     sync.WaitGroup
}

func NewSMTPNotifier(config SMTPConfig) *SMTPNotifier {
	if config.From == "" {
		config.From = config.Username
	}
	return &SMTPNotifier{
		config: config,
		send:   smtp.SendMail,
	}
}

func (n *SMTPNotifier) configured() bool {
	return n.config.Host != "" && n.config.Username != "" && n.config.Password != ""
}

func (n *SMTPNotifier) Notify(ctx context.Context, notification domain.Notification) {
	if !n.configured() {
		slog.InfoContext(
			ctx, "smtp not configured, notification dropped",
			slog.String("to", notification.To),
			slog.String("subject", notification.Subject),
			slog.String("module", "notify"),
		)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))
		auth := smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
		err := n.send(addr, auth, n.config.From, []string{notification.To}, buildMessage(n.config.From, notification))
		if err != nil {
			slog.Error(
				"failed to send notification",
				slog.String("to", notification.To),
				slog.String("error", err.Error()),
				slog.String("module", "notify"),
			)
		}
	}()
}

// Wait blocks until every queued notification has been attempted.
func (n *SMTPNotifier) Wait() {
	n.wg.Wait()
}

func buildMessage(from string, notification domain.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", notification.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", notification.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(notification.Body)
	return []byte(b.String())
}

var _ usecase.Notifier = (*SMTPNotifier)(nil)
