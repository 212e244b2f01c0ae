package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/notify"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/platform/observability"
)

const defaultNotificationTimeout = 90 * time.Second

// NotificationTemplates renders channel bodies for an order.
type NotificationTemplates interface {
	CustomerEmail(order Order) (notify.Email, error)
	AdminEmail(order Order, recipients []string, invoiceURL string) (notify.Email, error)
	Invoice(order Order) (string, error)
	AdminSMS(order Order) string
}

// NotificationServiceDeps bundles channel implementations. Nil channels count as unconfigured.
type NotificationServiceDeps struct {
	Templates   NotificationTemplates
	Mailer      notify.Mailer
	SMS         notify.SMSSender
	Renderer    notify.PDFRenderer
	Invoices    InvoiceStore
	AdminEmails []string
	AdminPhones []string
	Timeout     time.Duration
	Metrics     *observability.CheckoutMetrics
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	templates   NotificationTemplates
	mailer      notify.Mailer
	sms         notify.SMSSender
	renderer    notify.PDFRenderer
	invoices    InvoiceStore
	adminEmails []string
	adminPhones []string
	timeout     time.Duration
	metrics     *observability.CheckoutMetrics
	logger      func(context.Context, string, map[string]any)
}

// NewNotificationService constructs the fan-out service.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Templates == nil {
		return nil, errors.New("notification service: templates are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultNotificationTimeout
	}
	svc := &notificationService{
		templates:   deps.Templates,
		mailer:      deps.Mailer,
		sms:         deps.SMS,
		renderer:    deps.Renderer,
		invoices:    deps.Invoices,
		adminEmails: append([]string(nil), deps.AdminEmails...),
		adminPhones: append([]string(nil), deps.AdminPhones...),
		timeout:     timeout,
		metrics:     deps.Metrics,
		logger:      logger,
	}
	if svc.mailer == nil {
		svc.mailer = notify.Disabled{}
	}
	if svc.sms == nil {
		svc.sms = notify.Disabled{}
	}
	if svc.renderer == nil {
		svc.renderer = notify.Disabled{}
	}
	return svc, nil
}

// NotifyOrderConfirmed runs every channel concurrently. Channel failures are logged and counted
// but never returned; the invoice feeds the admin email when it renders in time.
func (s *notificationService) NotifyOrderConfirmed(ctx context.Context, order Order) NotificationReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		report = NotificationReport{}
	)
	record := func(channel NotificationChannel, err error) {
		outcome := NotificationSent
		switch {
		case errors.Is(err, notify.ErrChannelUnconfigured):
			outcome = NotificationSkipped
			s.logger(ctx, "notification.skipped", map[string]any{
				"channel": string(channel),
				"orderId": order.ID,
			})
		case err != nil:
			outcome = NotificationFailed
			s.metrics.NotificationFailed(ctx, string(channel))
			s.logger(ctx, "notification.failed", map[string]any{
				"channel":     string(channel),
				"orderId":     order.ID,
				"orderNumber": order.OrderNumber,
				"error":       fmt.Errorf("%w: %s: %w", ErrNotificationFailed, channel, err),
			})
		}
		mu.Lock()
		report[channel] = outcome
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		record(ChannelCustomerEmail, s.sendCustomerEmail(ctx, order))
		return nil
	})
	g.Go(func() error {
		record(ChannelAdminSMS, s.sendAdminSMS(ctx, order))
		return nil
	})
	g.Go(func() error {
		attachment, url, err := s.produceInvoice(ctx, order)
		record(ChannelInvoice, err)
		record(ChannelAdminEmail, s.sendAdminEmail(ctx, order, attachment, url))
		return nil
	})
	_ = g.Wait()
	return report
}

func (s *notificationService) sendCustomerEmail(ctx context.Context, order Order) error {
	if order.Delivery.Email == "" {
		return fmt.Errorf("%w: order has no customer email", notify.ErrChannelUnconfigured)
	}
	email, err := s.templates.CustomerEmail(order)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, email)
}

func (s *notificationService) sendAdminSMS(ctx context.Context, order Order) error {
	if len(s.adminPhones) == 0 {
		return notify.ErrChannelUnconfigured
	}
	return s.sms.SendSMS(ctx, s.adminPhones, s.templates.AdminSMS(order))
}

func (s *notificationService) sendAdminEmail(ctx context.Context, order Order, invoice *notify.Attachment, invoiceURL string) error {
	if len(s.adminEmails) == 0 {
		return notify.ErrChannelUnconfigured
	}
	email, err := s.templates.AdminEmail(order, s.adminEmails, invoiceURL)
	if err != nil {
		return err
	}
	if invoice != nil {
		email.Attachments = append(email.Attachments, *invoice)
	}
	return s.mailer.Send(ctx, email)
}

// produceInvoice renders the PDF and uploads it when a store is configured. A failed upload
// still yields the attachment.
func (s *notificationService) produceInvoice(ctx context.Context, order Order) (*notify.Attachment, string, error) {
	html, err := s.templates.Invoice(order)
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.renderer.RenderPDF(ctx, html)
	if err != nil {
		return nil, "", err
	}
	attachment := &notify.Attachment{
		Name:        order.OrderNumber + ".pdf",
		ContentType: "application/pdf",
		Data:        pdf,
	}
	if s.invoices == nil {
		return attachment, "", nil
	}
	url, err := s.invoices.UploadInvoice(ctx, order.OrderNumber, pdf)
	if err != nil {
		return attachment, "", fmt.Errorf("upload invoice: %w", err)
	}
	return attachment, url, nil
}
