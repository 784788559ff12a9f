package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/boddenberg/budget-tracker-go/internal/domain"
	"github.com/boddenberg/budget-tracker-go/internal/service"

	"github.com/google/subcommands"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ============================================================
// Backup
// ============================================================

type exportCmd struct {
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write every collection to a JSON backup" }
func (*exportCmd) Usage() string {
	return `budgetctl export [-o <file>]

  Writes a snapshot of the store. Without -o the snapshot goes to stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "Output file (defaults to stdout).")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		if c.out == "" {
			return ledger.ExportBackup(ctx, stdout)
		}
		file, err := os.Create(c.out)
		if err != nil {
			return err
		}
		if err := ledger.ExportBackup(ctx, file); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	})
}

type importCmd struct {
	overwrite bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "load a JSON backup into the store" }
func (*importCmd) Usage() string {
	return `budgetctl import [-overwrite] <file>

  Imports a snapshot. Records are upserted by id; with -overwrite every
  collection is emptied first.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.overwrite, "overwrite", false, "Empty every collection before importing.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "import requires exactly one file")
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		file, err := os.Open(f.Arg(0))
		if err != nil {
			return err
		}
		defer file.Close()
		return ledger.ImportBackup(ctx, file, c.overwrite)
	})
}

type clearCmd struct{}

func (*clearCmd) Name() string             { return "clear" }
func (*clearCmd) Synopsis() string         { return "empty every collection" }
func (*clearCmd) Usage() string            { return "budgetctl clear\n" }
func (*clearCmd) SetFlags(f *flag.FlagSet) {}

func (*clearCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		return ledger.Reset(ctx)
	})
}

// ============================================================
// Posting
// ============================================================

type runJobsCmd struct{}

func (*runJobsCmd) Name() string     { return "run-jobs" }
func (*runJobsCmd) Synopsis() string { return "post due recurring transactions and auto-pay due bills" }
func (*runJobsCmd) Usage() string {
	return `budgetctl run-jobs

  Runs the recurring posting job then the due-bill job once and prints what
  was posted and skipped.
`
}
func (*runJobsCmd) SetFlags(f *flag.FlagSet) {}

func (*runJobsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		report, err := ledger.RunJobs(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	})
}

type payLoanCmd struct {
	loan    string
	account string
	amount  float64
	date    string
}

func (*payLoanCmd) Name() string     { return "pay-loan" }
func (*payLoanCmd) Synopsis() string { return "record a payment against a loan" }
func (*payLoanCmd) Usage() string {
	return `budgetctl pay-loan -loan <id> -account <id> -amount <n> [-date YYYY-MM-DD]
`
}

func (c *payLoanCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.loan, "loan", "", "Loan id.")
	f.StringVar(&c.account, "account", "", "Account the payment is taken from.")
	f.Float64Var(&c.amount, "amount", 0, "Payment amount.")
	f.StringVar(&c.date, "date", "", "Payment date (defaults to today).")
}

func (c *payLoanCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.loan == "" || c.account == "" {
		fmt.Fprintln(os.Stderr, "-loan and -account are required")
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		res, err := ledger.ProcessPayment(ctx, c.loan, service.PaymentRequest{
			Amount:        c.amount,
			FromAccountID: c.account,
			PaymentDate:   c.date,
		})
		if err != nil {
			return err
		}
		currency := loanCurrency(ctx, ledger, c.loan)
		fmt.Fprintf(stdout, "principal %s, interest %s, balance %s\n",
			domain.FormatMoney(res.Principal, currency),
			domain.FormatMoney(res.Interest, currency),
			domain.FormatMoney(res.NewBalance, currency),
		)
		return nil
	})
}

func loanCurrency(ctx context.Context, ledger *service.Ledger, loanID string) string {
	rec, err := ledger.Get(ctx, domain.CollLoans, loanID)
	if err != nil {
		return ""
	}
	return rec.String("currency")
}

type scheduleCmd struct {
	loan string
}

func (*scheduleCmd) Name() string     { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "print a loan's amortization schedule" }
func (*scheduleCmd) Usage() string    { return "budgetctl schedule -loan <id>\n" }

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.loan, "loan", "", "Loan id.")
}

func (c *scheduleCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.loan == "" {
		fmt.Fprintln(os.Stderr, "-loan is required")
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		s, err := ledger.LoanSchedule(ctx, c.loan)
		if err != nil {
			return err
		}
		currency := loanCurrency(ctx, ledger, c.loan)
		tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "#\tdate\tpayment\tprincipal\tinterest\tbalance\t")
		for _, p := range s.Periods {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t\n", p.Period, p.Date.Display(),
				domain.FormatMoney(p.Payment, currency),
				domain.FormatMoney(p.Principal, currency),
				domain.FormatMoney(p.Interest, currency),
				domain.FormatMoney(p.Balance, currency),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "total interest %s, total paid %s\n",
			domain.FormatMoney(s.TotalInterest, currency),
			domain.FormatMoney(s.TotalPaid, currency),
		)
		return nil
	})
}

type markBillPaidCmd struct {
	bill string
}

func (*markBillPaidCmd) Name() string     { return "mark-bill-paid" }
func (*markBillPaidCmd) Synopsis() string { return "mark a bill paid and schedule its next occurrences" }
func (*markBillPaidCmd) Usage() string    { return "budgetctl mark-bill-paid -bill <id>\n" }

func (c *markBillPaidCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.bill, "bill", "", "Bill id.")
}

func (c *markBillPaidCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.bill == "" {
		fmt.Fprintln(os.Stderr, "-bill is required")
		return subcommands.ExitUsageError
	}
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		res, err := ledger.MarkBillPaid(ctx, c.bill)
		if err != nil {
			return err
		}
		return printJSON(res)
	})
}

// ============================================================
// Demo data
// ============================================================

type seedCmd struct{}

func (*seedCmd) Name() string             { return "seed" }
func (*seedCmd) Synopsis() string         { return "add the default categories and demo loans" }
func (*seedCmd) Usage() string            { return "budgetctl seed\n" }
func (*seedCmd) SetFlags(f *flag.FlagSet) {}

func (*seedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withLedger(ctx, func(ctx context.Context, ledger *service.Ledger) error {
		cats, err := ledger.SeedDefaultCategories(ctx)
		if err != nil {
			return err
		}
		loans, err := ledger.SeedDefaultLoans(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "added %d categories and %d loans\n", cats, loans)
		return nil
	})
}
