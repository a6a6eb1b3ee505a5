package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run one credit-gated search",
		ArgsUsage: "[free text query]",
		Flags: []cli.Flag{
			userFlag(),
			jsonFlag(),
			&cli.StringFlag{Name: "brand", Aliases: []string{"b"}, Usage: "Make, aliases accepted (chevy, vw)"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model"},
			&cli.IntFlag{Name: "year-min", Usage: "Oldest model year"},
			&cli.IntFlag{Name: "year-max", Usage: "Newest model year"},
			&cli.StringFlag{Name: "price-min", Usage: "Lowest price"},
			&cli.StringFlag{Name: "price-max", Usage: "Highest price"},
			&cli.StringSliceFlag{Name: "feature", Aliases: []string{"f"}, Usage: "Required feature (repeatable)"},
			&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "City or province"},
			&cli.StringFlag{Name: "postal", Usage: "Postal or ZIP code"},
			&cli.StringFlag{Name: "country", Usage: "CA or US"},
			&cli.IntFlag{Name: "radius", Usage: "Search radius in km"},
			&cli.IntFlag{Name: "page", Value: 1, Usage: "Result page"},
			&cli.IntFlag{Name: "limit", Usage: "Results per page"},
		},
		Action: runSearch,
	}
}

// partialFromFlags collects only the flags the user actually set.
func partialFromFlags(c *cli.Context) (domain.PartialCriteria, error) {
	var p domain.PartialCriteria
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	num := func(name string) *int {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Int(name)
		return &v
	}
	money := func(name string) (*decimal.Decimal, error) {
		if !c.IsSet(name) {
			return nil, nil
		}
		d, err := decimal.NewFromString(strings.TrimSpace(c.String(name)))
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		return &d, nil
	}

	p.Brand = str("brand")
	p.Model = str("model")
	p.Location = str("location")
	p.PostalCode = str("postal")
	p.Country = str("country")
	p.YearMin = num("year-min")
	p.YearMax = num("year-max")
	p.RadiusKM = num("radius")
	p.Page = num("page")
	p.Limit = num("limit")
	p.Features = c.StringSlice("feature")

	var err error
	if p.PriceMin, err = money("price-min"); err != nil {
		return p, err
	}
	if p.PriceMax, err = money("price-max"); err != nil {
		return p, err
	}
	return p, nil
}

func runSearch(c *cli.Context) error {
	partial, err := partialFromFlags(c)
	if err != nil {
		return err
	}
	st, err := stack(c)
	if err != nil {
		return err
	}
	defer st.Close()

	user := c.String("user")
	var res domain.RankedResults
	if text := strings.TrimSpace(strings.Join(c.Args().Slice(), " ")); text != "" {
		res, err = st.Search.ExecuteText(c.Context, text, partial, user)
	} else {
		res, err = st.Search.Execute(c.Context, domain.BuildCriteria(partial, st.Search.Defaults()), user)
	}
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return printResults(c, res)
}

func printResults(c *cli.Context, res domain.RankedResults) error {
	w := c.App.Writer
	if len(res.Results) == 0 {
		_, err := fmt.Fprintf(w, "No listings found (search %s).\n", res.SearchID)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tVEHICLE\tPRICE\tLOCATION\tSOURCE")
	for _, r := range res.Results {
		l := r.Listing
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s %s\t%s\t%s\n",
			r.Rank, r.MatchScore, l.Title, l.Price.Amount.StringFixed(0), l.Price.Currency, l.Location, l.Source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Page %d, %d of %d listings (search %s).\n", res.Page, len(res.Results), res.Total, res.SearchID)
	return err
}
