package main

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/domain"
	"github.com/Noladmin/SouthPlace-Ecommerce-sub000/internal/storefront"
)

// checkoutCommand drives a real aggregator checkout against a deployed api. "start" stages the
// order and prints the hosted payment page; "resume" replays the return URL through redirect
// recovery in a fresh process, the way a customer's browser lands back on the storefront.
func checkoutCommand(logger *zap.Logger) *cli.Command {
	shared := []cli.Flag{
		&cli.StringFlag{Name: "api", Value: "http://localhost:8080", EnvVars: []string{"STOREFRONT_API_BASE_URL"}, Usage: "checkout api base url"},
		&cli.StringFlag{Name: "state-dir", Value: ".checkout-state", Usage: "directory holding the cart and pending checkout"},
		&cli.StringFlag{Name: "currency", Value: "NGN"},
	}
	return &cli.Command{
		Name:  "checkout",
		Usage: "smoke-test the storefront checkout against a running api",
		Subcommands: []*cli.Command{
			{
				Name:  "start",
				Usage: "build a cart, stage the order and start an aggregator payment",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{Name: "item", Required: true, Usage: `cart line as "name:price:quantity", repeatable`},
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "phone", Required: true},
					&cli.StringFlag{Name: "address", Required: true},
					&cli.StringFlag{Name: "city", Value: "Lagos"},
					&cli.StringFlag{Name: "delivery", Value: string(domain.DeliveryStandard), Usage: "standard or express"},
					&cli.StringFlag{Name: "instructions"},
				}, shared...),
				Action: func(c *cli.Context) error {
					lines, err := parseCartLines(c.StringSlice("item"))
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					flow, cart, err := openFlow(c, logger)
					if err != nil {
						return err
					}
					if err := cart.Clear(); err != nil {
						return err
					}
					for _, line := range lines {
						if err := cart.Add(line); err != nil {
							return err
						}
					}

					first, last, _ := strings.Cut(strings.TrimSpace(c.String("name")), " ")
					if err := flow.SubmitAccount(storefront.Account{
						Name:  c.String("name"),
						Email: c.String("email"),
						Phone: c.String("phone"),
					}); err != nil {
						return err
					}
					if err := flow.SubmitDelivery(c.Context, domain.DeliveryInfo{
						FirstName:           first,
						LastName:            last,
						Address:             c.String("address"),
						City:                c.String("city"),
						SpecialInstructions: c.String("instructions"),
						DeliveryMethod:      domain.DeliveryMethod(c.String("delivery")),
					}); err != nil {
						return err
					}
					if flow.Session().Method != domain.PaymentAggregator {
						if err := flow.SelectPaymentMethod(domain.PaymentAggregator); err != nil {
							return err
						}
					}

					result := flow.Pay(c.Context, storefront.PaymentInput{Email: c.String("email")})
					if result.Err != nil {
						return result.Err
					}
					session := flow.Session()
					describeStaged(c.App.Writer, session, result)
					return nil
				},
			},
			{
				Name:  "resume",
				Usage: "confirm the order from the payment page return URL",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "return-url", Required: true, Usage: "URL the payment page redirected to"},
				}, shared...),
				Action: func(c *cli.Context) error {
					returnURL, err := url.Parse(c.String("return-url"))
					if err != nil {
						return cli.Exit(fmt.Sprintf("invalid return url: %v", err), 2)
					}
					flow, _, err := openFlow(c, logger)
					if err != nil {
						return err
					}
					outcome, err := flow.HandleRedirect(c.Context, returnURL)
					fmt.Fprintf(c.App.Writer, "recovery: %s\n", outcome)
					if err != nil {
						return err
					}
					if confirmation := flow.Session().Confirmation; confirmation != nil {
						fmt.Fprintf(c.App.Writer, "order %s confirmed (%s %s)\n", confirmation.OrderNumber, confirmation.Provider, confirmation.Reference)
					}
					return nil
				},
			},
		},
	}
}

func openFlow(c *cli.Context, logger *zap.Logger) (*storefront.Flow, *storefront.CartStore, error) {
	storage, err := storefront.NewFileStorage(c.String("state-dir"))
	if err != nil {
		return nil, nil, err
	}
	cart, err := storefront.NewCartStore(storage)
	if err != nil {
		return nil, nil, err
	}
	client, err := storefront.NewClient(storefront.ClientConfig{BaseURL: c.String("api")})
	if err != nil {
		return nil, nil, err
	}
	flow, err := storefront.NewFlow(storefront.FlowDeps{
		Cart:     cart,
		Pending:  storefront.NewPendingStore(storage, nil),
		API:      client,
		Currency: c.String("currency"),
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return flow, cart, nil
}

// parseCartLines reads "name:price:quantity" specs. Quantity defaults to 1.
func parseCartLines(specs []string) ([]domain.CartLine, error) {
	if len(specs) == 0 {
		return nil, errors.New("at least one --item is required")
	}
	lines := make([]domain.CartLine, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("item %q: expected name:price[:quantity]", spec)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("item %q: name is required", spec)
		}
		price, err := domain.ParseMoney(parts[1])
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", spec, err)
		}
		quantity := 1
		if len(parts) == 3 {
			quantity, err = strconv.Atoi(strings.TrimSpace(parts[2]))
			if err != nil || quantity <= 0 {
				return nil, fmt.Errorf("item %q: quantity must be a positive integer", spec)
			}
		}
		lines = append(lines, domain.CartLine{
			ItemID:    strings.ToLower(strings.Join(strings.Fields(name), "-")),
			Name:      name,
			UnitPrice: price,
			Quantity:  quantity,
		})
	}
	return lines, nil
}

func describeStaged(w io.Writer, session storefront.CheckoutSession, result storefront.Result) {
	if session.Pending != nil {
		fmt.Fprintf(w, "staged %s\n", session.Pending.TempOrderNumber)
	}
	if session.Pricing != nil {
		fmt.Fprintf(w, "total %s\n", session.Pricing.Total)
	}
	if result.RedirectURL != "" {
		fmt.Fprintf(w, "pay at %s\nthen run: ops checkout resume --return-url '<url you land on>'\n", result.RedirectURL)
	}
}
