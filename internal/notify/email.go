package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// EmailConfig addresses the SMTP relay.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// ImplicitTLS dials TLS directly instead of upgrading with STARTTLS.
	ImplicitTLS bool
}

const dialTimeout = 30 * time.Second

type sendFunc func(ctx context.Context, addr string, auth sasl.Client, from string, to []string, r io.Reader) error

// EmailNotifier sends one message per notification with every recipient
// on the envelope only, so recipients do not see each other.
type EmailNotifier struct {
	cfg    EmailConfig
	send   sendFunc
	now    func() time.Time
	logger *zap.Logger
}

// NewEmail builds an EmailNotifier.
func NewEmail(cfg EmailConfig, logger *zap.Logger) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailNotifier{cfg: cfg, send: sendMail(cfg.ImplicitTLS), now: time.Now, logger: logger}
}

// Notify delivers n. Failures are logged and never returned.
func (e *EmailNotifier) Notify(ctx context.Context, n harvest.Notification) {
	if len(n.Recipients) == 0 {
		e.logger.Warn("no email recipients configured, skipping email", zap.Int("events", len(n.Events)))
		return
	}
	msg, err := e.message(n)
	if err != nil {
		e.logger.Error("build email failed", zap.Error(err))
		return
	}
	if err := e.send(ctx, e.addr(), e.auth(), n.Sender, n.Recipients, bytes.NewReader(msg)); err != nil {
		e.logger.Error("send email failed",
			zap.String("smtp_addr", e.addr()),
			zap.Int("recipients", len(n.Recipients)),
			zap.Error(err),
		)
		return
	}
	e.logger.Info("email sent", zap.Int("recipients", len(n.Recipients)), zap.Int("events", len(n.Events)))
}

func (e *EmailNotifier) message(n harvest.Notification) ([]byte, error) {
	var h mail.Header
	h.SetDate(e.now())
	self := []*mail.Address{{Address: n.Sender}}
	h.SetAddressList("From", self)
	h.SetAddressList("To", self)
	h.SetSubject(n.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if _, err := io.WriteString(w, n.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *EmailNotifier) addr() string {
	port := e.cfg.Port
	if port == 0 {
		port = 587
	}
	return net.JoinHostPort(e.cfg.Host, strconv.Itoa(port))
}

func (e *EmailNotifier) auth() sasl.Client {
	if e.cfg.Username == "" {
		return nil
	}
	return sasl.NewPlainClient("", e.cfg.Username, e.cfg.Password)
}

// sendMail returns a sender whose connection is bound to ctx: it is closed
// when ctx is done and carries ctx's deadline. Without implicit TLS the
// session is upgraded with STARTTLS.
func sendMail(implicitTLS bool) sendFunc {
	return func(ctx context.Context, addr string, auth sasl.Client, from string, to []string, r io.Reader) error {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("parse smtp address: %w", err)
		}
		tlsConfig := &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}

		dialer := &net.Dialer{Timeout: dialTimeout}
		var conn net.Conn
		if implicitTLS {
			conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		} else {
			conn, err = dialer.DialContext(ctx, "tcp", addr)
		}
		if err != nil {
			return fmt.Errorf("dial smtp: %w", err)
		}
		defer conn.Close()
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()
		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetDeadline(deadline); err != nil {
				return fmt.Errorf("set smtp deadline: %w", err)
			}
		}

		var c *smtp.Client
		if implicitTLS {
			c = smtp.NewClient(conn)
		} else if c, err = smtp.NewClientStartTLS(conn, tlsConfig); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
		defer c.Close()

		if auth != nil {
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
		if err := c.SendMail(from, to, r); err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		if err := c.Quit(); err != nil {
			return fmt.Errorf("smtp quit: %w", err)
		}
		return nil
	}
}
