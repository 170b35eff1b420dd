package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/devricklin/feishu-request-relay/internal/biz/domain"
	"github.com/devricklin/feishu-request-relay/internal/biz/repo"
	"github.com/devricklin/feishu-request-relay/internal/conf"
	"github.com/devricklin/feishu-request-relay/internal/data"
)

const usage = `Usage: linkctl [-limit N] [-json] <command> <arg>

Commands:
  show <request_id>   show one forwarded request
  sender <sender_id>  list requests from a requester
  status <status>     list requests by status (pending, resolved_positive, resolved_negative)

The link store is selected with LINK_DB_DRIVER, LINK_DB_PATH and LINK_DB_DSN.
`

func main() {
	_ = godotenv.Load()

	cfg := conf.LoadFromEnv()
	if err := cfg.ValidateStore(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	links, err := data.OpenLinkStore(&cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer links.Close()

	if err := run(context.Background(), links, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		links.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, links repo.LinkRepo, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("linkctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 20, "maximum number of links to list")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w\n\n%s", err, usage)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("expected a command and one argument\n\n%s", usage)
	}
	cmd, arg := fs.Arg(0), fs.Arg(1)

	var result []*domain.Link
	switch cmd {
	case "show":
		link, err := links.GetByRequestID(ctx, arg)
		if err != nil {
			return fmt.Errorf("request %s: %w", arg, err)
		}
		result = []*domain.Link{link}
	case "sender":
		list, err := links.ListBySender(ctx, arg, *limit)
		if err != nil {
			return err
		}
		result = list
	case "status":
		status, err := domain.ParseLinkStatus(arg)
		if err != nil {
			return err
		}
		list, err := links.ListByStatus(ctx, status, *limit)
		if err != nil {
			return err
		}
		result = list
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printTable(out, result)
}

func printTable(out io.Writer, links []*domain.Link) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REQUEST\tSENDER\tSTATUS\tTAGS\tCREATED\tRESOLVED\tFORWARD")
	for _, l := range links {
		resolved := "-"
		if l.ResolvedAt != nil {
			resolved = l.ResolvedAt.Format(time.RFC3339)
		}
		tags := strings.Join(l.Tags, ",")
		if tags == "" {
			tags = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			l.RequestID, l.SenderID, l.Status, tags,
			l.CreatedAt.Format(time.RFC3339), resolved, l.Forward.String())
	}
	return w.Flush()
}
