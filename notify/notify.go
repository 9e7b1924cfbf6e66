// Package notify delivers the pipeline completion message.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
)

// Message is an HTML notification.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Notifier sends messages.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// DefaultTimeout bounds one SMTP delivery when SMTPConfig.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// SMTPConfig is the mail relay used by Email.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SendFunc delivers one message to addr. It must return once ctx is done.
type SendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email sends messages through an SMTP relay.
type Email struct {
	cfg  SMTPConfig
	send SendFunc
}

// NewEmail creates an SMTP notifier.
func NewEmail(cfg SMTPConfig) *Email {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	e := &Email{cfg: cfg}
	e.send = e.sendMail
	return e
}

// WithSendFunc replaces the transport, mostly for tests.
func (e *Email) WithSendFunc(fn SendFunc) *Email {
	e.send = fn
	return e
}

// Notify implements Notifier. Delivery is bounded by ctx and by the
// configured timeout, whichever ends first.
func (e *Email) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.To) == 0 {
		return errors.NewValidationError("notify.to", "at least one recipient is required", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	if err := e.send(ctx, addr, auth, e.from(), msg.To, e.compose(msg)); err != nil {
		return errors.Wrapf(err, "send email via %s", addr)
	}
	return nil
}

// sendMail is smtp.SendMail driven over a connection that ctx can interrupt.
func (e *Email) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	// ctx が終わったら過去の期限を設定して読み書き中の呼び出しを解放する
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	err = e.deliver(conn, a, from, to, msg)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (e *Email) deliver(conn net.Conn, a smtp.Auth, from string, to []string, msg []byte) error {
	c, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: e.cfg.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (e *Email) from() string {
	if e.cfg.From != "" {
		return e.cfg.From
	}
	return e.cfg.Username
}

func (e *Email) compose(msg Message) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", e.from())
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	return b.Bytes()
}

// Log writes messages to the logger instead of sending them.
type Log struct {
	logger log.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger log.Logger) *Log {
	if logger == nil {
		logger = log.NewSlogLogger(nil)
	}
	return &Log{logger: logger}
}

// Notify implements Notifier.
func (l *Log) Notify(ctx context.Context, msg Message) error {
	l.logger.Info("Notification",
		"to", strings.Join(msg.To, ","),
		"subject", msg.Subject,
	)
	return nil
}

// New returns Email when an SMTP host is configured and Log otherwise.
func New(cfg SMTPConfig, logger log.Logger) Notifier {
	if cfg.Host == "" {
		return NewLog(logger)
	}
	return NewEmail(cfg)
}

// Summary is rendered into the completion email.
type Summary struct {
	DAGID           string
	RunID           string
	Accuracy        float64
	FirstPrediction int
	HasEvaluation   bool
	FailedTasks     []string
}

var completionTmpl = template.Must(template.New("completion").Parse(`<h3>Ad click pipeline completed</h3>
<p>DAG <b>{{.DAGID}}</b>, run {{.RunID}}.</p>
{{- if .HasEvaluation}}
<p>Test accuracy: {{printf "%.4f" .Accuracy}}<br>First prediction: {{.FirstPrediction}}</p>
{{- end}}
{{- if .FailedTasks}}
<p>Tasks that did not succeed: {{range $i, $t := .FailedTasks}}{{if $i}}, {{end}}{{$t}}{{end}}</p>
{{- end}}
`))

// CompletionMessage renders the message sent when the training DAG finishes.
func CompletionMessage(to []string, subject string, s Summary) (Message, error) {
	var b bytes.Buffer
	if err := completionTmpl.Execute(&b, s); err != nil {
		return Message{}, errors.Wrap(err, "render completion email")
	}
	return Message{To: to, Subject: subject, HTML: b.String()}, nil
}
