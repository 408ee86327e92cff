package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ghuser/agritrack/services/batch/application/dto"
	"github.com/ghuser/agritrack/services/batch/application/handlers"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		producer, producerLocation, product, quantity, unit string
		location, notes, planted, harvested                 string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a producer intake as a new batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := parseDecimal("quantity", quantity)
			if err != nil {
				return err
			}
			if qty == nil {
				return errors.New("--quantity is required")
			}
			req := handlers.CreateBatchRequest{
				ProducerName:     producer,
				ProducerLocation: producerLocation,
				ProductType:      product,
				Quantity:         *qty,
				Unit:             unit,
				Location:         location,
				Notes:            notes,
			}
			if req.PlantedOn, err = parseTime("planted", planted); err != nil {
				return err
			}
			if req.HarvestedOn, err = parseTime("harvested", harvested); err != nil {
				return err
			}

			view, err := ctx.client().CreateBatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return ctx.printView(cmd, view)
		},
	}

	cmd.Flags().StringVar(&producer, "producer", "", "Producer name")
	cmd.Flags().StringVar(&producerLocation, "producer-location", "", "Producer location")
	cmd.Flags().StringVar(&product, "product", "", "Product type, e.g. Tomatoes")
	cmd.Flags().StringVar(&quantity, "quantity", "", "Quantity, a positive decimal")
	cmd.Flags().StringVar(&unit, "unit", "kg", "Unit: kg, tons or bags")
	cmd.Flags().StringVar(&location, "location", "", "Where the intake was recorded")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	cmd.Flags().StringVar(&planted, "planted", "", "Planting date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&harvested, "harvested", "", "Harvest date (YYYY-MM-DD or RFC 3339)")
	_ = cmd.MarkFlagRequired("producer")
	_ = cmd.MarkFlagRequired("product")

	return cmd
}

func newTransportCommand(ctx *commandContext) *cobra.Command {
	var (
		stage                       stageFlags
		temperature, humidity, eta string
		delivered                   bool
	)

	cmd := &cobra.Command{
		Use:   "transport <payload>",
		Short: "Record a transport leg",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := stage.request()
			if err != nil {
				return err
			}
			req := handlers.TransportStageRequest{StageRequest: base, Delivered: delivered}
			if req.TemperatureC, err = parseDecimal("temperature", temperature); err != nil {
				return err
			}
			if req.HumidityPct, err = parseDecimal("humidity", humidity); err != nil {
				return err
			}
			if req.ExpectedDelivery, err = parseTime("eta", eta); err != nil {
				return err
			}

			view, err := ctx.client().Transport(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return ctx.printView(cmd, view)
		},
	}

	stage.register(cmd)
	cmd.Flags().StringVar(&temperature, "temperature", "", "Temperature in degrees Celsius")
	cmd.Flags().StringVar(&humidity, "humidity", "", "Relative humidity in percent")
	cmd.Flags().StringVar(&eta, "eta", "", "Expected delivery (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().BoolVar(&delivered, "delivered", false, "Mark the leg as delivered")

	return cmd
}

func newSellCommand(ctx *commandContext) *cobra.Command {
	var (
		stage                         stageFlags
		price, currency, discount, bb string
		sold                          bool
	)

	cmd := &cobra.Command{
		Use:   "sell <payload>",
		Short: "Record receipt by a seller, or the final sale with --sold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := stage.request()
			if err != nil {
				return err
			}
			req := handlers.SellerStageRequest{StageRequest: base, Currency: currency, Sold: sold}
			if req.Price, err = parseDecimal("price", price); err != nil {
				return err
			}
			if req.DiscountPct, err = parseDecimal("discount", discount); err != nil {
				return err
			}
			if req.BestBefore, err = parseTime("best-before", bb); err != nil {
				return err
			}

			view, err := ctx.client().Sell(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return ctx.printView(cmd, view)
		},
	}

	stage.register(cmd)
	cmd.Flags().StringVar(&price, "price", "", "Unit price")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code")
	cmd.Flags().StringVar(&discount, "discount", "", "Discount in percent")
	cmd.Flags().StringVar(&bb, "best-before", "", "Best-before date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().BoolVar(&sold, "sold", false, "Record the final sale")

	return cmd
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <payload>",
		Short: "Print the journey of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := ctx.client().Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return ctx.printView(cmd, view)
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var producer string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a producer's batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := ctx.client().List(cmd.Context(), producer, limit, offset)
			if err != nil {
				return err
			}
			if ctx.jsonFlag {
				return writeJSON(cmd, page)
			}
			out := cmd.OutOrStdout()
			if len(page.Batches) == 0 {
				fmt.Fprintln(out, "No batches found")
				return nil
			}
			fmt.Fprintln(out, renderBatchList(page.Batches))
			fmt.Fprintf(out, "Showing %d of %d\n", len(page.Batches), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&producer, "producer", "", "Producer name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")
	_ = cmd.MarkFlagRequired("producer")

	return cmd
}

func newQRCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var size int

	cmd := &cobra.Command{
		Use:   "qr <payload>",
		Short: "Write the verify QR code of a batch as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			png, err := ctx.client().QRCode(cmd.Context(), args[0], size)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = args[0] + ".png"
			}
			if err := os.WriteFile(outPath, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", outPath, len(png))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default <payload>.png)")
	cmd.Flags().IntVar(&size, "size", 0, "Image size in pixels")

	return cmd
}

// stageFlags are the flags shared by every custody stage command.
type stageFlags struct {
	actor, location, notes, at string
}

func (f *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.actor, "actor", "", "Custodian name")
	cmd.Flags().StringVar(&f.location, "location", "", "Where the stage happened")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-text notes")
	cmd.Flags().StringVar(&f.at, "at", "", "When the stage happened (default now)")
	_ = cmd.MarkFlagRequired("actor")
}

func (f *stageFlags) request() (handlers.StageRequest, error) {
	at, err := parseTime("at", f.at)
	if err != nil {
		return handlers.StageRequest{}, err
	}
	return handlers.StageRequest{
		Actor:      f.actor,
		OccurredAt: at,
		Location:   f.location,
		Notes:      f.notes,
	}, nil
}

func (c *commandContext) printView(cmd *cobra.Command, view dto.BatchView) error {
	if c.jsonFlag {
		return writeJSON(cmd, view)
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderView(view))
	return nil
}

func parseDecimal(name, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a number", name, raw)
	}
	return &d, nil
}

func parseTime(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--%s: %q is not a date (YYYY-MM-DD) or RFC 3339 time", name, raw)
}
