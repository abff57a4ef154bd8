// Command rider is a terminal client for the rider API.
//
//	rider -login rider@example.com -password secret list -tab in_transit
//	rider -token $TOKEN advance <shipmentID>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"riderBack/internal/rider/actions"
	"riderBack/internal/rider/client"
	"riderBack/internal/shipment/lifecycle"
)

func main() {
	_ = godotenv.Load()

	base := flag.String("base", envOr("RIDER_API_URL", "http://localhost:4001"), "API base URL")
	login := flag.String("login", os.Getenv("RIDER_LOGIN"), "rider email or phone")
	password := flag.String("password", os.Getenv("RIDER_PASSWORD"), "rider password")
	token := flag.String("token", os.Getenv("RIDER_TOKEN"), "bearer token, skips login")
	flag.Usage = usage
	flag.Parse()

	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	api := client.New(*base, nil)
	if err := authenticate(ctx, api, *token, *login, *password); err != nil {
		errorLog.Fatal(err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "list":
		err = runList(ctx, api, args[1:])
	case "advance":
		err = runAdvance(ctx, api, args[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		errorLog.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: rider [flags] list [-tab all|offers|in_transit|completed|canceled] [-limit n] [-cursor c]\n")
	fmt.Fprintf(flag.CommandLine.Output(), "       rider [flags] advance <shipmentID>\n\n")
	flag.PrintDefaults()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func authenticate(ctx context.Context, api *client.Client, token, login, password string) error {
	if token != "" {
		api.SetToken(token)
		return nil
	}
	if login == "" || password == "" {
		return errors.New("either -token or -login and -password are required")
	}
	_, err := api.Login(ctx, login, password)
	return err
}

func runList(ctx context.Context, api *client.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	filter := fs.String("tab", client.FilterAll, "status filter")
	limit := fs.Int("limit", 20, "page size")
	cursor := fs.String("cursor", "", "page cursor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	page, err := api.Shipments(ctx, client.Query{Tab: *filter, Limit: *limit, Cursor: *cursor})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tVENDOR\tSTATUS\tNEXT\tHEADING TO")
	for _, sh := range client.FilterByStatus(page.Items, *filter) {
		next := actions.Affordance(sh.Status, "").Text
		if next == "" {
			next = "-"
		}
		dest := "-"
		if sh.DestinationLocation != nil {
			dest = sh.DestinationLocation.Address
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", sh.ID, sh.OrderNo, sh.VendorName, lifecycle.StatusLabel(sh.Status), next, dest)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if page.NextCursor != "" {
		fmt.Printf("\nnext page: -cursor %s\n", page.NextCursor)
	}
	return nil
}

func runAdvance(ctx context.Context, api *client.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("advance needs exactly one shipment id")
	}
	sh, err := findShipment(ctx, api, args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := actions.New(api).Advance(ctx, sh)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.ExpectedStopID != "" {
		return fmt.Errorf("%w: refresh and retry", err)
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s -> %s", res.ShipmentID, res.Previous, res.Applied)
	if !res.ConfirmedByServer {
		fmt.Print(" (not confirmed by server)")
	}
	fmt.Println()
	return nil
}

// findShipment walks every page of the all tab until it sees id.
func findShipment(ctx context.Context, api *client.Client, id string) (client.Shipment, error) {
	cursor := ""
	for {
		page, err := api.Shipments(ctx, client.Query{Tab: client.FilterAll, Limit: 100, Cursor: cursor})
		if err != nil {
			return client.Shipment{}, err
		}
		for _, sh := range page.Items {
			if sh.ID == id {
				return sh, nil
			}
		}
		if page.NextCursor == "" {
			return client.Shipment{}, fmt.Errorf("shipment %s not found", id)
		}
		cursor = page.NextCursor
	}
}
