package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"brewsync/internal"
	"brewsync/internal/catalog"
	"brewsync/internal/config"
	"brewsync/internal/connectors"
	"brewsync/internal/listener"
	"brewsync/internal/logger"
	"brewsync/internal/pipeline"
	"brewsync/internal/storage"
	"brewsync/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logger.New(logger.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "invoice:parse":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "invoice pdf, html or txt")
		out := fs.String("out", cfg.OutputDir, "report directory")
		asJSON := fs.Bool("json", false, "print the JSON report to stdout")
		_ = fs.Parse(os.Args[2:])
		requireFlag("--file", *file)

		doc, ings := parseFile(cfg, *file)
		now := time.Now()
		report := pipeline.BuildReport(doc, ings, cfg.InvoiceSupplier, now)
		if *asJSON {
			must(pipeline.WriteJSONReport(os.Stdout, report))
			return
		}
		paths, err := pipeline.SaveReports(*out, report, cfg.InvoiceCurrency, now)
		must(err)
		printInvoice(cfg, report)
		fmt.Printf("reports: %s, %s, %s\n", paths.JSON, paths.CSV, paths.CatalogImport)
	case "catalog:test":
		must(cfg.RequireBrewfather())
		must(catalog.NewClient(cfg).TestConnection(ctx))
		fmt.Println("brewfather connection ok")
	case "catalog:snapshot":
		must(cfg.RequireBrewfather())
		snap := catalog.FetchSnapshot(ctx, catalog.NewClient(cfg), internal.IngredientTypes)
		must(snap.Save(db))
		for _, t := range internal.IngredientTypes {
			if err, ok := snap.Errors[t]; ok {
				fmt.Printf("  %-12s error: %v\n", t, err)
				continue
			}
			fmt.Printf("  %-12s %d items\n", t, len(snap.For(t)))
		}
		fmt.Printf("catalog snapshot saved items=%d\n", snap.Count())
	case "catalog:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		typ := fs.String("type", "", "fermentable|hop|yeast|misc (default all)")
		filter := fs.String("filter", "", "fuzzy name filter")
		offline := fs.Bool("offline", false, "read the stored snapshot instead of the API")
		_ = fs.Parse(os.Args[2:])

		types := internal.IngredientTypes
		if *typ != "" {
			t, err := internal.ParseIngredientType(*typ)
			must(err)
			types = []internal.IngredientType{t}
		}
		snap := loadSnapshot(ctx, cfg, db, types, *offline)
		for _, t := range types {
			if err, ok := snap.Errors[t]; ok {
				fmt.Printf("%s: error: %v\n", t, err)
				continue
			}
			entries := filterEntries(snap.For(t), *filter)
			fmt.Printf("%s (%d)\n", t, len(entries))
			for _, e := range entries {
				fmt.Printf("  %-40s %10.3f %-4s %s\n", e.Name, e.CurrentAmount, e.Unit, e.ID)
			}
		}
	case "invoice:analyze":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "invoice pdf, html or txt")
		offline := fs.Bool("offline", false, "match against the stored snapshot")
		_ = fs.Parse(os.Args[2:])
		requireFlag("--file", *file)

		_, ings := parseFile(cfg, *file)
		snap := loadSnapshot(ctx, cfg, db, internal.IngredientTypes, *offline)
		printAnalysis(catalog.AnalyzeMatches(ings, snap))
	case "inventory:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "invoice pdf, html or txt")
		dryRun := fs.Bool("dry-run", false, "show matches without updating inventory")
		_ = fs.Parse(os.Args[2:])
		requireFlag("--file", *file)
		must(cfg.RequireBrewfather())

		doc, ings := parseFile(cfg, *file)
		client := catalog.NewClient(cfg)
		if *dryRun {
			snap := catalog.FetchSnapshot(ctx, client, internal.IngredientTypes)
			printAnalysis(catalog.AnalyzeMatches(ings, snap))
			fmt.Println("dry run: no inventory changes made")
			return
		}

		invoiceID, err := db.InsertInvoice(nil, "file:"+filepath.Base(*file), cfg.InvoiceSupplier, doc)
		must(err)
		must(db.InsertIngredients(invoiceID, ings))

		results := catalog.NewSyncService(client, cfg.InvoiceCurrency, log).Apply(ctx, ings)
		must(db.InsertSyncResults(invoiceID, uuid.NewString(), results))
		printSync(results)
		fmt.Printf("invoice stored id=%d\n", invoiceID)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.MailListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.MailListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := listener.NewConnector(ctx, cfg, strings.ToLower(strings.TrimSpace(*provider)))
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, cfg.InvoiceSenderFilter, conn, log)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d filtered=%d\n", *provider, result.Fetched, result.Stored, result.Filtered)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "gmail|imap (default all)")
		messageID := fs.String("messageId", "", "specific message-id")
		limit := fs.Int("limit", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg, log)
		if strings.TrimSpace(*messageID) != "" {
			requireFlag("--provider", *provider)
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			printProcessed(res)
			return
		}
		results, err := processor.ProcessPending(*limit, *provider)
		must(err)
		for _, res := range results {
			printProcessed(res)
		}
		fmt.Printf("processed pending emails=%d\n", len(results))
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		invoiceID := fs.Int64("invoiceId", 0, "stored invoice id")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *invoiceID == 0 {
			must(fmt.Errorf("--invoiceId is required"))
		}
		path := *out
		if strings.TrimSpace(path) == "" {
			path = filepath.Join(cfg.OutputDir, fmt.Sprintf("invoice_%d.xlsx", *invoiceID))
		}
		rows, err := db.GetExportRows(*invoiceID)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no export rows for invoiceId=%d", *invoiceID))
		}
		must(pipeline.ExportRowsToXLSX(rows, path))
		fmt.Printf("exported %d rows to %s\n", len(rows), path)
	case "mail:listen":
		must(listener.NewService(db, cfg, log).Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func parseFile(cfg config.Config, path string) (internal.InvoiceDocument, []internal.CanonicalIngredient) {
	doc, ings, err := pipeline.ProcessInvoiceFile(path, pipeline.TemplateFromConfig(cfg), pipeline.NormalizeOptionsFromConfig(cfg))
	must(err)
	if len(ings) == 0 {
		must(fmt.Errorf("no line items found in %s", path))
	}
	return doc, ings
}

func loadSnapshot(ctx context.Context, cfg config.Config, db *storage.DB, types []internal.IngredientType, offline bool) *catalog.Snapshot {
	if offline {
		snap, err := catalog.LoadSnapshot(db)
		must(err)
		return snap
	}
	must(cfg.RequireBrewfather())
	return catalog.FetchSnapshot(ctx, catalog.NewClient(cfg), types)
}

func filterEntries(entries []internal.CatalogEntry, filter string) []internal.CatalogEntry {
	if strings.TrimSpace(filter) == "" {
		return entries
	}
	out := []internal.CatalogEntry{}
	for _, e := range entries {
		if fuzzy.MatchNormalizedFold(filter, e.Name) {
			out = append(out, e)
		}
	}
	return out
}

func printInvoice(cfg config.Config, report pipeline.InvoiceReport) {
	fmt.Printf("invoice %s date=%s supplier=%s items=%d\n",
		util.DerefString(report.Invoice.Number), util.DerefString(report.Invoice.Date), report.Invoice.Supplier, report.Summary.TotalItems)
	for _, t := range internal.IngredientTypes {
		sum, ok := report.Summary.ByType[t]
		if !ok || sum.Count == 0 {
			continue
		}
		fmt.Printf("  %-12s %3d items %12s\n", t, sum.Count, util.FormatMoney(sum.TotalCost, cfg.InvoiceCurrency))
		for _, item := range sum.Items {
			fmt.Printf("    %-40s %10.3f %-6s %10s\n", item.Name, item.Amount, item.Unit, util.FormatMoney(item.TotalCost, cfg.InvoiceCurrency))
		}
	}
	fmt.Printf("  total cost %s\n", util.FormatMoney(report.Summary.TotalCost, cfg.InvoiceCurrency))
}

func printAnalysis(a catalog.MatchAnalysis) {
	for _, item := range a.Items {
		res := item.Result
		switch {
		case res.Found:
			fmt.Printf("  [%-6s] %-12s %s -> %s (%s)\n", res.Confidence, item.Ingredient.Type, item.Ingredient.Name, res.Entry.Name, res.Entry.ID)
		case len(res.Suggestions) > 0:
			names := make([]string, 0, len(res.Suggestions))
			for _, s := range res.Suggestions {
				names = append(names, s.Name)
			}
			fmt.Printf("  [none  ] %-12s %s (did you mean: %s)\n", item.Ingredient.Type, item.Ingredient.Name, strings.Join(names, ", "))
		default:
			fmt.Printf("  [none  ] %-12s %s\n", item.Ingredient.Type, item.Ingredient.Name)
		}
	}

	types := make([]string, 0, len(a.CategoryErrors))
	for t := range a.CategoryErrors {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  catalog %s unavailable: %v\n", t, a.CategoryErrors[internal.IngredientType(t)])
	}

	fmt.Printf("matches exact=%d partial=%d unmatched=%d\n", a.Exact, a.Partial, a.Unmatched)
	unmatched := a.UnmatchedByType()
	for _, t := range internal.IngredientTypes {
		if len(unmatched[t]) == 0 {
			continue
		}
		fmt.Printf("  %s: %s\n", t, catalog.Recommendation(t))
	}
}

func printSync(results []internal.CategorySyncResult) {
	summary := catalog.Summarize(results)
	for _, cat := range results {
		if cat.Err != nil {
			fmt.Printf("%s: catalog unavailable: %v\n", cat.Type, cat.Err)
			continue
		}
		s := summary[cat.Type]
		fmt.Printf("%s: successful=%d not_found=%d errors=%d\n", cat.Type, s.Successful, s.NotFound, s.Errors)
		for _, item := range cat.Items {
			if item.Success {
				fmt.Printf("  ok   %-40s %g -> %g %s\n", item.Name, item.CurrentAmount, item.NewAmount, item.Unit)
				continue
			}
			fmt.Printf("  fail %-40s %s\n", item.Name, item.Error)
		}
	}
}

func printProcessed(res pipeline.ProcessResult) {
	if res.Failed {
		fmt.Printf("email id=%d failed (see log)\n", res.EmailID)
		return
	}
	if res.Skipped {
		fmt.Printf("email id=%d skipped (not an invoice)\n", res.EmailID)
		return
	}
	fmt.Printf("processed email id=%d invoices=%v items=%d\n", res.EmailID, res.InvoiceIDs, res.Items)
}

func requireFlag(name, value string) {
	if strings.TrimSpace(value) == "" {
		must(fmt.Errorf("%s is required", name))
	}
}

func usage() {
	fmt.Println("usage: brewsync <command>")
	fmt.Println("commands:")
	fmt.Println("  invoice:parse --file=invoice.pdf [--out=./out] [--json]")
	fmt.Println("  invoice:analyze --file=invoice.pdf [--offline]")
	fmt.Println("  inventory:sync --file=invoice.pdf [--dry-run]")
	fmt.Println("  catalog:test")
	fmt.Println("  catalog:snapshot")
	fmt.Println("  catalog:list [--type=fermentable|hop|yeast|misc] [--filter=...] [--offline]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process [--provider=gmail|imap] [--messageId=...] [--limit=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  export:xlsx --invoiceId=1 [--out=./out/invoice_1.xlsx]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
