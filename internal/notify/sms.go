package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/telegram"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// SMSSender delivers one text message.
type SMSSender interface {
	Send(ctx context.Context, to, from, text string) error
}

// Recipients resolves who gets an SMS and records what was sent.
type Recipients interface {
	FindSubscribers(ctx context.Context, ev models.AlertEvent) ([]models.Subscriber, error)
	SaveSMS(ctx context.Context, rec *models.SMSRecord) error
}

// CoolSMS is a client for the CoolSMS v4 messaging API.
type CoolSMS struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
	now       func() time.Time
}

type coolSMSError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func NewCoolSMS(cfg config.SMSConfig) *CoolSMS {
	return &CoolSMS{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.RequestTimeout).
			SetHeader("Content-Type", "application/json"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		now:       time.Now,
	}
}

// authorization builds the HMAC-SHA256 header CoolSMS expects.
func (c *CoolSMS) authorization() string {
	date := c.now().UTC().Format(time.RFC3339)
	salt := strings.ReplaceAll(uuid.NewString(), "-", "")

	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(date + salt))
	signature := hex.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("HMAC-SHA256 apiKey=%s, date=%s, salt=%s, signature=%s", c.apiKey, date, salt, signature)
}

func (c *CoolSMS) Send(ctx context.Context, to, from, text string) error {
	body := map[string]interface{}{
		"message": map[string]string{
			"to":   to,
			"from": from,
			"text": text,
		},
	}

	var apiErr coolSMSError
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", c.authorization()).
		SetBody(body).
		SetError(&apiErr).
		Post("/messages/v4/send")
	if err != nil {
		return fmt.Errorf("coolsms request failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("coolsms rejected message to %s: %s %s", to, apiErr.ErrorCode, apiErr.ErrorMessage)
	}
	return nil
}

// FormatSMS renders the short operator text message.
func FormatSMS(ev models.AlertEvent, link string, at time.Time) string {
	return fmt.Sprintf("%s\n%s %s\n%s: %s > %s(임계값)\n%s",
		at.Format("15:04:05"),
		ev.Equipment, ev.Severity.Code(),
		models.SensorLabel(ev.SensorType), telegram.Value(ev.Value), telegram.Value(ev.Threshold),
		link,
	)
}

// SMSChannel texts every subscriber of the alert's equipment.
type SMSChannel struct {
	cfg        config.SMSConfig
	sender     SMSSender
	shortener  *Shortener
	recipients Recipients
	severities map[models.Severity]bool
	log        *logger.Logger
	now        func() time.Time
}

func NewSMSChannel(cfg config.SMSConfig, sender SMSSender, shortener *Shortener, recipients Recipients, log *logger.Logger) *SMSChannel {
	sev := make(map[models.Severity]bool)
	for _, s := range cfg.Severities {
		if parsed, err := models.ParseSeverity(s); err == nil {
			sev[parsed] = true
		}
	}
	return &SMSChannel{
		cfg:        cfg,
		sender:     sender,
		shortener:  shortener,
		recipients: recipients,
		severities: sev,
		log:        log.Named("sms"),
		now:        time.Now,
	}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Accepts(n Notification) bool {
	if !c.severities[n.Alert.Severity] {
		return false
	}
	if !c.cfg.Enabled {
		c.log.Warn("SMS credentials not set, skipping %s", n.AlertID)
		return false
	}
	return true
}

func (c *SMSChannel) Send(ctx context.Context, n Notification) error {
	subs, err := c.recipients.FindSubscribers(ctx, n.Alert)
	if err != nil {
		return fmt.Errorf("failed to resolve subscribers: %w", err)
	}
	if len(subs) == 0 {
		return ErrNoRecipients
	}

	link := n.Link
	if c.cfg.ShortenLinks && c.shortener != nil {
		link = c.shortener.Shorten(ctx, link)
	}
	text := FormatSMS(n.Alert, link, c.now())

	var rowID *int64
	if n.RowID > 0 {
		id := n.RowID
		rowID = &id
	}

	sent := 0
	for _, sub := range subs {
		if err := c.sender.Send(ctx, sub.PhoneNumber, c.cfg.Sender, text); err != nil {
			c.log.Error("SMS to %s failed: %v", sub.PhoneNumber, err)
			continue
		}
		sent++

		rec := &models.SMSRecord{
			UserID:      sub.UserID,
			AlertID:     rowID,
			PhoneNumber: sub.PhoneNumber,
			Message:     text,
			Status:      "sent",
		}
		if err := c.recipients.SaveSMS(ctx, rec); err != nil {
			c.log.Warn("Failed to record SMS to %s: %v", sub.PhoneNumber, err)
		}
	}

	c.log.Info("SMS sent %d/%d for %s", sent, len(subs), n.AlertID)
	if sent == 0 {
		return fmt.Errorf("sms delivery failed for all %d recipients", len(subs))
	}
	return nil
}
