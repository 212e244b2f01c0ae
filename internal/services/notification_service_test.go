package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/notify"
)

func notificationOrder() Order {
	return Order{
		ID:          "01HQORDER",
		OrderNumber: "SP-2025-000001",
		Delivery:    domain.DeliveryInfo{Email: "ada@example.com"},
	}
}

func TestNotifyOrderConfirmedRunsEveryChannel(t *testing.T) {
	mailer := &stubMailer{}
	sms := &stubSMS{}
	svc, err := NewNotificationService(NotificationServiceDeps{
		Templates:   stubTemplates{},
		Mailer:      mailer,
		SMS:         sms,
		Renderer:    stubRenderer{pdf: []byte("%PDF")},
		Invoices:    stubInvoiceStore{url: "https://storage.test/SP-2025-000001.pdf"},
		AdminEmails: []string{"kitchen@southplace.test"},
		AdminPhones: []string{"+2348000000000"},
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	report := svc.NotifyOrderConfirmed(context.Background(), notificationOrder())
	for _, channel := range []NotificationChannel{ChannelCustomerEmail, ChannelAdminEmail, ChannelAdminSMS, ChannelInvoice} {
		if report[channel] != NotificationSent {
			t.Fatalf("expected %s to be sent, got %q", channel, report[channel])
		}
	}
	admin, ok := mailer.bySubjectPrefix("new order")
	if !ok {
		t.Fatalf("expected admin email")
	}
	if len(admin.Attachments) != 1 || admin.Attachments[0].Name != "SP-2025-000001.pdf" {
		t.Fatalf("expected invoice attachment, got %+v", admin.Attachments)
	}
	if admin.HTML != "https://storage.test/SP-2025-000001.pdf" {
		t.Fatalf("expected invoice link to reach the template, got %q", admin.HTML)
	}
	if sms.body != "new order SP-2025-000001" {
		t.Fatalf("unexpected sms body %q", sms.body)
	}
}

func TestNotifyOrderConfirmedSkipsUnconfiguredChannels(t *testing.T) {
	mailer := &stubMailer{}
	svc, err := NewNotificationService(NotificationServiceDeps{
		Templates:   stubTemplates{},
		Mailer:      mailer,
		AdminEmails: []string{"kitchen@southplace.test"},
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	report := svc.NotifyOrderConfirmed(context.Background(), notificationOrder())
	if report[ChannelAdminSMS] != NotificationSkipped || report[ChannelInvoice] != NotificationSkipped {
		t.Fatalf("expected sms and invoice to be skipped, got %v", report)
	}
	admin, ok := mailer.bySubjectPrefix("new order")
	if !ok || len(admin.Attachments) != 0 {
		t.Fatalf("admin email must still go out without an invoice, got %+v", admin)
	}
}

func TestNotifyOrderConfirmedIsolatesFailures(t *testing.T) {
	mailer := &stubMailer{failTo: "ada@example.com"}
	sms := &stubSMS{err: errors.New("twilio down")}
	svc, err := NewNotificationService(NotificationServiceDeps{
		Templates:   stubTemplates{invoiceErr: errors.New("template broken")},
		Mailer:      mailer,
		SMS:         sms,
		Renderer:    stubRenderer{pdf: []byte("%PDF")},
		AdminEmails: []string{"kitchen@southplace.test"},
		AdminPhones: []string{"+2348000000000"},
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	report := svc.NotifyOrderConfirmed(context.Background(), notificationOrder())
	if report[ChannelCustomerEmail] != NotificationFailed || report[ChannelAdminSMS] != NotificationFailed || report[ChannelInvoice] != NotificationFailed {
		t.Fatalf("expected failures to be recorded, got %v", report)
	}
	if report[ChannelAdminEmail] != NotificationSent {
		t.Fatalf("admin email must be unaffected by other channels, got %v", report)
	}
}

func TestNotifyOrderConfirmedKeepsAttachmentWhenUploadFails(t *testing.T) {
	mailer := &stubMailer{}
	svc, err := NewNotificationService(NotificationServiceDeps{
		Templates:   stubTemplates{},
		Mailer:      mailer,
		Renderer:    stubRenderer{pdf: []byte("%PDF")},
		Invoices:    stubInvoiceStore{err: errors.New("bucket missing")},
		AdminEmails: []string{"kitchen@southplace.test"},
	})
	if err != nil {
		t.Fatalf("NewNotificationService: %v", err)
	}

	report := svc.NotifyOrderConfirmed(context.Background(), notificationOrder())
	if report[ChannelInvoice] != NotificationFailed {
		t.Fatalf("expected invoice upload failure, got %v", report)
	}
	admin, _ := mailer.bySubjectPrefix("new order")
	if len(admin.Attachments) != 1 {
		t.Fatalf("expected attachment despite upload failure")
	}
}

func TestNotificationChannelsUseTypedUnconfiguredError(t *testing.T) {
	if !errors.Is(fmtUnconfigured(), notify.ErrChannelUnconfigured) {
		t.Fatalf("expected wrapped unconfigured error")
	}
}

func fmtUnconfigured() error {
	svc := &notificationService{templates: stubTemplates{}, mailer: notify.Disabled{}}
	return svc.sendCustomerEmail(context.Background(), Order{})
}
