// Package mailer SMTP 事务邮件发送
package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Config 邮件配置，SMTP 口令只从环境变量读取
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
	From     string `yaml:"from"`
}

// DefaultConfig 返回默认邮件配置
func DefaultConfig() Config {
	return Config{
		Port: 587,
		From: "TourHub <noreply@tourhub.io>",
	}
}

// Mailer SMTP 邮件发送器
type Mailer struct {
	cfg    Config
	client *mail.Client
}

// New 创建邮件发送器
func New(cfg Config) (*Mailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &Mailer{cfg: cfg, client: client}, nil
}

// SendWelcome 注册欢迎邮件
func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to TourHub, we're glad to have you!\n"+
			"We're all a big family here, so make sure to upload your user photo "+
			"so we get to know you a bit better.\n\nEnjoy your trips!",
		name)
	return m.send(ctx, to, "Welcome to the TourHub Family!", body)
}

// SendPasswordReset 密码重置邮件，令牌 10 分钟内有效
func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nForgot your password? Submit a PATCH request with your new "+
			"password and password confirmation to: %s\n"+
			"If you didn't forget your password, please ignore this email!",
		name, resetURL)
	return m.send(ctx, to, "Your password reset token (valid for only 10 minutes)", body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
