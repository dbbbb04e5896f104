// Package mail implements the Notifier port over SMTP. Notification
// bodies are written in markdown by the lifecycle layer; this adapter
// renders them to sanitized HTML before sending.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/jthorburn/prwarden/internal/domain/port/driven"
)

var (
	mdRenderer    goldmark.Markdown
	htmlSanitizer *bluemonday.Policy
)

func init() {
	mdRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	htmlSanitizer = bluemonday.UGCPolicy()
}

// Notifier sends approval-request emails to the governance inbox.
type Notifier struct {
	addr     string // host:port
	username string
	password string
	from     string
	to       []string
	logger   *slog.Logger

	// send is swappable for tests; defaults to smtp.SendMail.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ driven.Notifier = (*Notifier)(nil)

// NewNotifier creates an SMTP notifier. An empty username disables
// authentication, which suits local relays.
func NewNotifier(addr, username, password, from string, to []string, logger *slog.Logger) *Notifier {
	return &Notifier{
		addr:     addr,
		username: username,
		password: password,
		from:     from,
		to:       to,
		logger:   logger,
		send:     smtp.SendMail,
	}
}

// SendNotification renders the markdown body to HTML and sends it as a
// single-part HTML email.
func (n *Notifier) SendNotification(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := buildMessage(n.from, n.to, subject, renderHTML(body))

	var auth smtp.Auth
	if n.username != "" {
		host := n.addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", n.username, n.password, host)
	}

	if err := n.send(n.addr, auth, n.from, n.to, msg); err != nil {
		return fmt.Errorf("sending mail via %s: %w", n.addr, err)
	}

	n.logger.Info("notification sent", "subject", subject, "recipients", len(n.to))
	return nil
}

// renderHTML converts markdown to sanitized HTML, falling back to the
// sanitized source text if conversion fails.
func renderHTML(src string) string {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return htmlSanitizer.Sanitize(src)
	}
	return htmlSanitizer.Sanitize(buf.String())
}

func buildMessage(from string, to []string, subject, htmlBody string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("<html><body>\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n</body></html>\r\n")
	return []byte(b.String())
}

// Disabled is a Notifier that drops notifications, used when SMTP is not
// configured.
type Disabled struct{}

var _ driven.Notifier = Disabled{}

func (Disabled) SendNotification(context.Context, string, string) error { return nil }
