package notify

import (
	"bytes"
	"embed"
	"fmt"
	stdhtml "html"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateConfig carries the branding rendered into emails and invoices.
type TemplateConfig struct {
	CompanyName    string
	CompanyAddress string
	CompanyEmail   string
	// FooterMarkdown is staff-edited Markdown appended to customer emails and invoices.
	FooterMarkdown string
	// Location formats payment timestamps. Defaults to Africa/Lagos.
	Location *time.Location
}

// Company is the letterhead identity.
type Company struct {
	Name    string
	Address string
	Email   string
}

// Templates renders notification bodies for an order.
type Templates struct {
	set     *template.Template
	company Company
	footer  template.HTML
	loc     *time.Location
	strict  *bluemonday.Policy
}

// NewTemplates parses the embedded templates and pre-renders the footer.
func NewTemplates(cfg TemplateConfig) (*Templates, error) {
	set, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("notify: parse templates: %w", err)
	}
	footer, err := renderMarkdown(cfg.FooterMarkdown)
	if err != nil {
		return nil, err
	}
	loc := cfg.Location
	if loc == nil {
		if lagos, err := time.LoadLocation("Africa/Lagos"); err == nil {
			loc = lagos
		} else {
			loc = time.FixedZone("WAT", 60*60)
		}
	}
	name := strings.TrimSpace(cfg.CompanyName)
	if name == "" {
		name = "SouthPlace"
	}
	return &Templates{
		set: set,
		company: Company{
			Name:    name,
			Address: strings.TrimSpace(cfg.CompanyAddress),
			Email:   strings.TrimSpace(cfg.CompanyEmail),
		},
		footer: footer,
		loc:    loc,
		strict: bluemonday.StrictPolicy(),
	}, nil
}

// CustomerEmail renders the itemised receipt sent to the customer.
func (t *Templates) CustomerEmail(order domain.Order) (Email, error) {
	view := t.view(order, "")
	html, err := t.execute("customer_email.html", view)
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:      []string{order.Delivery.Email},
		Subject: fmt.Sprintf("Your %s order %s is confirmed", t.company.Name, order.OrderNumber),
		HTML:    html,
		Text:    t.plainSummary(view),
	}, nil
}

// AdminEmail renders the new-order alert for staff.
func (t *Templates) AdminEmail(order domain.Order, recipients []string, invoiceURL string) (Email, error) {
	view := t.view(order, invoiceURL)
	html, err := t.execute("admin_email.html", view)
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:      recipients,
		Subject: fmt.Sprintf("New order %s · %s", order.OrderNumber, view.Total),
		HTML:    html,
		Text:    t.plainSummary(view),
	}, nil
}

// Invoice renders the printable invoice document.
func (t *Templates) Invoice(order domain.Order) (string, error) {
	return t.execute("invoice.html", t.view(order, ""))
}

// AdminSMS renders the concise SMS alert.
func (t *Templates) AdminSMS(order domain.Order) string {
	view := t.view(order, "")
	return fmt.Sprintf("New order %s: %s, %d item(s), %s. %s %s",
		view.OrderNumber, view.CustomerName, view.ItemCount, view.Total, view.Phone, view.DeliveryMethod)
}

func (t *Templates) execute(name string, view orderView) (string, error) {
	var buf bytes.Buffer
	if err := t.set.ExecuteTemplate(&buf, name, view); err != nil {
		return "", fmt.Errorf("notify: render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (t *Templates) plainSummary(view orderView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n", view.OrderNumber)
	for _, line := range view.Lines {
		fmt.Fprintf(&b, "%d x %s  %s\n", line.Quantity, line.Name, line.Amount)
	}
	fmt.Fprintf(&b, "Total: %s\nReference: %s\n", view.Total, view.Reference)
	return b.String()
}

type lineView struct {
	Name     string
	Variant  string
	Extras   string
	Quantity int
	Amount   string
}

type orderView struct {
	Company        Company
	OrderNumber    string
	CustomerName   string
	Email          string
	Phone          string
	Address        string
	City           string
	DeliveryMethod string
	Instructions   string
	Lines          []lineView
	ItemCount      int
	Subtotal       string
	DeliveryFee    string
	VATCharged     bool
	VATRate        string
	VATAmount      string
	Total          string
	Currency       string
	Provider       string
	Reference      string
	PaidAt         string
	InvoiceURL     string
	Footer         template.HTML
}

func (t *Templates) view(order domain.Order, invoiceURL string) orderView {
	currency := order.Currency
	clean := func(s string) string {
		// Strip markup, then undo entity escaping so html/template escapes exactly once.
		return strings.TrimSpace(stdhtml.UnescapeString(t.strict.Sanitize(s)))
	}
	lines := make([]lineView, 0, len(order.Items))
	count := 0
	for _, item := range order.Items {
		extras := make([]string, 0, len(item.Extras))
		for _, extra := range item.Extras {
			extras = append(extras, clean(extra.Name))
		}
		amount := item.UnitPrice
		if item.VariantPrice != nil {
			amount = *item.VariantPrice
		}
		for _, extra := range item.Extras {
			amount += extra.Price
		}
		lines = append(lines, lineView{
			Name:     clean(item.Name),
			Variant:  clean(item.VariantName),
			Extras:   strings.Join(extras, ", "),
			Quantity: item.Quantity,
			Amount:   (amount * domain.Money(item.Quantity)).Format(currency),
		})
		count += item.Quantity
	}
	paidAt := order.CreatedAt
	if order.PaidAt != nil {
		paidAt = *order.PaidAt
	}
	name := clean(order.CustomerName)
	if name == "" {
		name = clean(order.Delivery.FullName())
	}
	return orderView{
		Company:        t.company,
		OrderNumber:    order.OrderNumber,
		CustomerName:   name,
		Email:          clean(order.Delivery.Email),
		Phone:          clean(order.Delivery.Phone),
		Address:        clean(order.Delivery.Address),
		City:           clean(order.Delivery.City),
		DeliveryMethod: string(order.Delivery.DeliveryMethod),
		Instructions:   clean(order.Delivery.SpecialInstructions),
		Lines:          lines,
		ItemCount:      count,
		Subtotal:       order.Pricing.Subtotal.Format(currency),
		DeliveryFee:    order.Pricing.DeliveryFee.Format(currency),
		VATCharged:     order.Pricing.VATAmount > 0,
		VATRate:        order.Pricing.VATRate.String(),
		VATAmount:      order.Pricing.VATAmount.Format(currency),
		Total:          order.Pricing.Total.Format(currency),
		Currency:       currency,
		Provider:       order.PaymentProvider,
		Reference:      order.PaymentReference,
		PaidAt:         paidAt.In(t.loc).Format("02 Jan 2006 15:04 MST"),
		InvoiceURL:     invoiceURL,
		Footer:         t.footer,
	}
}

func renderMarkdown(src string) (template.HTML, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", nil
	}
	md := goldmark.New(goldmark.WithExtensions(extension.Linkify))
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("notify: render footer: %w", err)
	}
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	return template.HTML(policy.SanitizeBytes(buf.Bytes())), nil
}
