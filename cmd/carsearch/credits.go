package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/WessleyAI/carsearch/engine/domain"
	"github.com/urfave/cli/v2"
)

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "User ID to charge or inspect",
		EnvVars:  []string{"CARSEARCH_USER"},
		Required: true,
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print JSON instead of text"}
}

func creditsCommand() *cli.Command {
	return &cli.Command{
		Name:  "credits",
		Usage: "Inspect and manage search credits",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the balance of an account",
				Flags:  []cli.Flag{userFlag(), jsonFlag()},
				Action: runCreditsShow,
			},
			{
				Name:      "add",
				Usage:     "Add credits to an account",
				ArgsUsage: "AMOUNT",
				Flags:     []cli.Flag{userFlag(), jsonFlag()},
				Action:    runCreditsAdd,
			},
			{
				Name:  "unlimited",
				Usage: "Grant or revoke unlimited searches",
				Flags: []cli.Flag{
					userFlag(),
					jsonFlag(),
					&cli.BoolFlag{Name: "off", Usage: "Revoke instead of grant"},
				},
				Action: runCreditsUnlimited,
			},
			{
				Name:  "open",
				Usage: "Open an account with the free allowance",
				Flags: []cli.Flag{
					userFlag(),
					jsonFlag(),
					&cli.IntFlag{Name: "credits", Value: -1, Usage: "Initial credits (default: free allowance)"},
				},
				Action: runCreditsOpen,
			},
		},
	}
}

func runCreditsShow(c *cli.Context) error {
	st, err := stack(c)
	if err != nil {
		return err
	}
	defer st.Close()

	acct, err := st.Ledger.Balance(c.Context, c.String("user"))
	if err != nil {
		return err
	}
	return printAccount(c, acct)
}

func runCreditsAdd(c *cli.Context) error {
	amount, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return fmt.Errorf("amount must be a whole number, got %q", c.Args().First())
	}
	st, err := stack(c)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Ledger.AddCredits(c.Context, c.String("user"), amount); err != nil {
		return err
	}
	acct, err := st.Ledger.Balance(c.Context, c.String("user"))
	if err != nil {
		return err
	}
	return printAccount(c, acct)
}

func runCreditsUnlimited(c *cli.Context) error {
	st, err := stack(c)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Ledger.SetUnlimited(c.Context, c.String("user"), !c.Bool("off")); err != nil {
		return err
	}
	acct, err := st.Ledger.Balance(c.Context, c.String("user"))
	if err != nil {
		return err
	}
	return printAccount(c, acct)
}

func runCreditsOpen(c *cli.Context) error {
	st, err := stack(c)
	if err != nil {
		return err
	}
	defer st.Close()

	acct, err := st.Ledger.Open(c.Context, c.String("user"), c.Int("credits"))
	if err != nil {
		return err
	}
	return printAccount(c, acct)
}

func printAccount(c *cli.Context, a domain.CreditAccount) error {
	w := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	}
	if a.Unlimited {
		_, err := fmt.Fprintf(w, "%s: unlimited\n", a.UserID)
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d credits remaining\n", a.UserID, a.CreditsRemaining)
	return err
}
