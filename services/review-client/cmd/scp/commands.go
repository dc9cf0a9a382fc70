package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

func newOrdersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List the suggested orders of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := a.selectStore(ctx)
			if err != nil {
				return err
			}
			orders, err := a.client.ListOrders(ctx, store)
			if err != nil {
				return fmt.Errorf("failed to list orders: %w", err)
			}
			printOrders(a.out, orders)
			return nil
		},
	}
}

// reviewOptions are the flags of the review command
type reviewOptions struct {
	kind     string
	source   string
	inc      []string
	dec      []string
	remove   []string
	set      []string
	submit   bool
	release  bool
	yes      bool
	location string
}

func newReviewCommand(a *app) *cobra.Command {
	opts := &reviewOptions{}
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Load an order, apply quantity edits and optionally submit or release it",
		Long: `Load an order and apply edits in the order --set, --inc, --dec, --remove.
Edits stay local until --submit. --release approves a suggested order once
nothing is pending.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.review(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.kind, "kind", "suggested", "order kind: suggested or opportunity")
	f.StringVar(&opts.source, "source", "", "source location (DC) of the suggested order")
	f.StringVar(&opts.location, "location", "", "destination location, defaults to --store")
	f.StringArrayVar(&opts.inc, "inc", nil, "add one unit to ITEM (repeatable)")
	f.StringArrayVar(&opts.dec, "dec", nil, "take one unit from ITEM (repeatable)")
	f.StringArrayVar(&opts.remove, "remove", nil, "zero out ITEM (repeatable)")
	f.StringArrayVar(&opts.set, "set", nil, "set ITEM=QTY (repeatable)")
	f.BoolVar(&opts.submit, "submit", false, "send the edits to the backend")
	f.BoolVar(&opts.release, "release", false, "release (approve) the order")
	f.BoolVarP(&opts.yes, "yes", "y", false, "do not ask before releasing")
	return cmd
}

func (a *app) review(ctx context.Context, opts *reviewOptions) error {
	store, err := a.selectStore(ctx)
	if err != nil {
		return err
	}
	a.assumeYes = opts.yes

	order, err := a.resolveOrder(ctx, store, opts)
	if err != nil {
		return err
	}
	if err := a.engine.Load(ctx, order); err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}

	if err := a.applyEdits(opts); err != nil {
		return err
	}

	loaded, _ := a.engine.Order()
	printOrderHeader(a.out, loaded)
	printLines(a.out, a.engine.Lines())

	if opts.submit {
		result, err := a.engine.Submit(ctx)
		if result != nil {
			printSubmitResult(a.out, result)
			if result.Refreshed {
				printLines(a.out, a.engine.Lines())
			}
		}
		if err != nil {
			return err
		}
	} else if a.engine.HasPendingChanges() {
		fmt.Fprintln(a.out, "Changes are pending; add --submit to send them.")
	}

	if opts.release {
		return a.release(ctx)
	}
	return nil
}

// resolveOrder finds the order named by the flags
func (a *app) resolveOrder(ctx context.Context, store string, opts *reviewOptions) (domain.Order, error) {
	kind, ok := domain.ParseOrderKind(strings.ToLower(opts.kind))
	if !ok {
		return domain.Order{}, fmt.Errorf("unknown order kind %q (suggested or opportunity)", opts.kind)
	}
	location := opts.location
	if location == "" {
		location = store
	}

	if kind == domain.KindOpportunityBuy {
		return domain.Order{Kind: kind, LocationID: location}, nil
	}

	orders, err := a.client.ListOrders(ctx, location)
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to list orders: %w", err)
	}

	var matches []domain.Order
	for _, o := range orders {
		if opts.source == "" || strings.EqualFold(o.SourceLocationID, opts.source) {
			matches = append(matches, o)
		}
	}
	switch len(matches) {
	case 0:
		if opts.source == "" {
			return domain.Order{}, fmt.Errorf("no suggested orders for %s", location)
		}
		return domain.Order{}, fmt.Errorf("no suggested order from %s to %s", opts.source, location)
	case 1:
		return matches[0], nil
	default:
		printOrders(a.out, matches)
		return domain.Order{}, errors.New("several orders match; pick one with --source")
	}
}

func (a *app) applyEdits(opts *reviewOptions) error {
	for _, s := range opts.set {
		item, qty, err := parseSet(s)
		if err != nil {
			return err
		}
		if err := a.engine.SetQuantity(item, qty); err != nil {
			return fmt.Errorf("--set %s: %w", s, err)
		}
	}
	edits := []struct {
		flag  string
		items []string
		apply func(string) error
	}{
		{"--inc", opts.inc, a.engine.Increment},
		{"--dec", opts.dec, a.engine.Decrement},
		{"--remove", opts.remove, a.engine.Remove},
	}
	for _, e := range edits {
		for _, item := range e.items {
			if err := e.apply(item); err != nil {
				return fmt.Errorf("%s %s: %w", e.flag, item, err)
			}
		}
	}
	return nil
}

// parseSet splits ITEM=QTY
func parseSet(s string) (string, decimal.Decimal, error) {
	item, raw, ok := strings.Cut(s, "=")
	item = strings.TrimSpace(item)
	if !ok || item == "" {
		return "", decimal.Zero, fmt.Errorf("--set %q: want ITEM=QTY", s)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("--set %q: %w", s, domain.ErrInvalidQuantity)
	}
	return item, qty, nil
}

func (a *app) release(ctx context.Context) error {
	if _, err := a.releases.Release(ctx); err != nil {
		if errors.Is(err, domain.ErrReleaseCancelled) {
			fmt.Fprintln(a.out, "Release cancelled.")
			return nil
		}
		return err
	}
	fmt.Fprintln(a.out, "Order released.")

	orders, err := a.releases.Acknowledge(ctx)
	if err != nil {
		return fmt.Errorf("order released but the order list could not be refreshed: %w", err)
	}
	printOrders(a.out, orders)
	return nil
}

// confirmRelease prompts on the command input unless --yes was given
func (a *app) confirmRelease(_ context.Context, order domain.Order) (bool, error) {
	if a.assumeYes {
		return true, nil
	}
	fmt.Fprintf(a.out, "Release order %s -> %s? [y/N]: ", order.SourceLocationID, order.LocationID)
	answer, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && answer == "" {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func newUploadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "upload forecast|locations FILE",
		Short:     "Upload forecasts or store locations from a CSV, TXT, XLS or XLSX file",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.UploadForecast), string(domain.UploadLocations)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := domain.UploadKind(strings.ToLower(args[0]))
			if !kind.IsValid() {
				return fmt.Errorf("unknown upload kind %q (forecast or locations)", args[0])
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			summary, err := a.uploader.UploadFile(cmd.Context(), kind, f.Name(), f)
			if err != nil {
				return err
			}
			printUploadSummary(a.out, summary)
			if summary.AllFailed() {
				return fmt.Errorf("no %s rows were uploaded", kind)
			}
			return nil
		},
	}
}

func newCodesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "codes",
		Short: "List inventory condition codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			codes, err := a.client.ConditionCodes(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range codes {
				if c.Code == "" {
					continue
				}
				fmt.Fprintf(a.out, "%-10s %s\n", c.Code, c.Desc)
			}
			return nil
		},
	}
}
