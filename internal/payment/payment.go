// Package payment Stripe 托管结账集成
package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Config 支付配置，密钥只从环境变量读取
type Config struct {
	SecretKey     string `yaml:"-"`
	WebhookSecret string `yaml:"-"`
	Currency      string `yaml:"currency"`
}

// DefaultConfig 返回默认支付配置
func DefaultConfig() Config {
	return Config{Currency: "usd"}
}

// CheckoutParams 结账会话参数
type CheckoutParams struct {
	TourID        string
	TourName      string
	TourSummary   string
	ImageURL      string
	Price         float64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Session 创建成功的结账会话
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutResult 结账完成事件的业务载荷
type CheckoutResult struct {
	TourID        string
	CustomerEmail string
	Amount        float64 // 主货币单位
}

// Client Stripe 客户端封装
type Client struct {
	cfg Config
	api *client.API
}

// NewClient 创建支付客户端
func NewClient(cfg Config) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Client{cfg: cfg, api: api}
}

// CreateCheckoutSession 为行程预订创建 Stripe 结账会话
//
// 金额按最小货币单位上送，行程 ID 写入 client_reference_id
// 供结账完成事件回查。
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
		CustomerEmail:      stripe.String(p.CustomerEmail),
		ClientReferenceID:  stripe.String(p.TourID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.cfg.Currency),
				UnitAmount: stripe.Int64(int64(p.Price * 100)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(fmt.Sprintf("%s Tour", p.TourName)),
					Description: stripe.String(p.TourSummary),
					Images:      stripe.StringSlice([]string{p.ImageURL}),
				},
			},
		}},
	}
	params.Context = ctx

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// ErrIgnoredEvent 与结账完成无关的 webhook 事件
var ErrIgnoredEvent = fmt.Errorf("ignored webhook event")

// ParseCheckoutCompleted 验签并解析结账完成事件
//
// 其它事件类型返回 ErrIgnoredEvent，由调用方静默确认。
func (c *Client) ParseCheckoutCompleted(payload []byte, sigHeader string) (*CheckoutResult, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, c.cfg.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	if event.Type != "checkout.session.completed" {
		return nil, ErrIgnoredEvent
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	email := sess.CustomerEmail
	if email == "" && sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	return &CheckoutResult{
		TourID:        sess.ClientReferenceID,
		CustomerEmail: email,
		Amount:        float64(sess.AmountTotal) / 100,
	}, nil
}
