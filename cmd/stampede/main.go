// Command stampede is a mass DNS resolution tool for domain and subdomain
// enumeration.
//
// It loads a pool of DNS resolvers and a list of candidate names, races the
// names across the pool under a concurrency ceiling, prints each name that
// resolves as soon as it does, and finishes with an aggregate report.
//
// Usage:
//
//	stampede scan  -r resolvers.txt -d domains.txt        - Resolve full domain names
//	stampede brute -r resolvers.txt -w words.txt -D x.com - Brute-force subdomains of a base domain
//
// Examples:
//
//	stampede scan -r resolvers.txt -d domains.txt --format json -o report.json
//	stampede brute -r resolvers.txt -w wordlist.txt -D example.com --policy race
//	stampede scan -r resolvers.txt -d domains.txt --type AAAA --qps 500 --shuffle
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lc/stampede/internal/buildinfo"
	"github.com/lc/stampede/internal/config"
	"github.com/lc/stampede/internal/dnsquery"
	"github.com/lc/stampede/internal/engine"
	"github.com/lc/stampede/internal/filesys"
	"github.com/lc/stampede/internal/loader"
	"github.com/lc/stampede/internal/log"
	"github.com/lc/stampede/internal/output"
)

type scanFlags struct {
	resolversFile string
	outputFile    string
	format        string
	recordType    string
	policy        string
	timeout       time.Duration
	concurrency   int
	qps           int
	shuffle       bool
	verbose       bool
}

func main() {
	cfg, err := config.New().Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var flags scanFlags

	root := &cobra.Command{
		Use:   "stampede",
		Short: "Mass DNS resolution for domain and subdomain enumeration",
		Long: `Stampede resolves large lists of names against a pool of DNS resolvers.
Names are raced concurrently under a configurable ceiling; resolved names are
printed as they arrive and summarized in a final report.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.resolversFile, "resolvers", "r", "", "file containing DNS resolvers, one per line")
	pf.StringVarP(&flags.outputFile, "output", "o", "", "write the report to this file instead of stdout")
	pf.StringVar(&flags.format, "format", cfg.Scan.Format, "report format: text, json or csv")
	pf.StringVarP(&flags.recordType, "type", "t", cfg.Scan.RecordType, "DNS record type to query")
	pf.StringVar(&flags.policy, "policy", cfg.Scan.Policy, "resolver assignment: roundrobin or race")
	pf.DurationVar(&flags.timeout, "timeout", cfg.Scan.Timeout, "per-query timeout")
	pf.IntVarP(&flags.concurrency, "concurrency", "c", cfg.Scan.Concurrency, "max names resolved at once")
	pf.IntVar(&flags.qps, "qps", cfg.Scan.QPS, "global queries-per-second cap (0 = unlimited)")
	pf.BoolVar(&flags.shuffle, "shuffle", false, "randomize candidate order")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and progress reports")

	// ---- scan command ----
	var domainsFile string
	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Resolve a file of fully-formed domain names",
		Long: `Resolve every domain in the given file against the resolver pool.
Lines that are blank or start with '#' are skipped; invalid domains are
skipped with a warning.`,
		Example: "stampede scan -r resolvers.txt -d domains.txt --format json -o report.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.resolversFile == "" {
				return fmt.Errorf("--resolvers is required")
			}
			fs := filesys.OS()
			resolvers, err := loader.Resolvers(fs, flags.resolversFile)
			if err != nil {
				return err
			}
			names, err := loader.Candidates(fs, domainsFile)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), flags, resolvers, names, "")
		},
	}
	scanCmd.Flags().StringVarP(&domainsFile, "domains", "d", "", "file containing domains to resolve")
	_ = scanCmd.MarkFlagRequired("domains")

	// ---- brute command ----
	var (
		wordlistFile string
		baseDomain   string
	)
	bruteCmd := &cobra.Command{
		Use:   "brute",
		Short: "Brute-force subdomains of a base domain from a wordlist",
		Long: `Compose each wordlist label with the base domain ("label.domain") and
resolve the result against the resolver pool.`,
		Example: "stampede brute -r resolvers.txt -w wordlist.txt -D example.com",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.resolversFile == "" {
				return fmt.Errorf("--resolvers is required")
			}
			fs := filesys.OS()
			resolvers, err := loader.Resolvers(fs, flags.resolversFile)
			if err != nil {
				return err
			}
			names, err := loader.Wordlist(fs, wordlistFile, baseDomain)
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), flags, resolvers, names, baseDomain)
		},
	}
	bruteCmd.Flags().StringVarP(&wordlistFile, "wordlist", "w", "", "file containing subdomain labels")
	bruteCmd.Flags().StringVarP(&baseDomain, "domain", "D", "", "base domain to enumerate")
	_ = bruteCmd.MarkFlagRequired("wordlist")
	_ = bruteCmd.MarkFlagRequired("domain")

	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}

	root.AddCommand(scanCmd, bruteCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// runScan wires the engine together, streams resolved names to stdout, and
// renders the final report.
func runScan(ctx context.Context, flags scanFlags, resolvers, names []string, target string) error {
	if flags.verbose {
		log.SetDebug()
	}

	qtype, err := dnsquery.ParseRecordType(flags.recordType)
	if err != nil {
		return err
	}
	policy, err := engine.ParsePolicy(flags.policy)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(flags.format)
	if err != nil {
		return err
	}

	if flags.shuffle {
		loader.Shuffle(names)
	}

	scanner, err := engine.New(dnsquery.New(flags.timeout), engine.Options{
		Resolvers:   resolvers,
		Candidates:  names,
		Concurrency: flags.concurrency,
		Timeout:     flags.timeout,
		RecordType:  qtype,
		Policy:      policy,
		QPS:         flags.qps,
	})
	if err != nil {
		return err
	}

	// Print resolved names as they arrive so long scans show progress.
	// Suppressed when a JSON/CSV report goes to stdout: interleaved names
	// would corrupt the document for anything parsing it.
	live := flags.outputFile != "" || format == output.FormatText

	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		green := color.New(color.FgGreen)
		for name := range scanner.Stream() {
			if live {
				green.Fprintln(color.Output, name)
			}
		}
	}()

	progressDone := make(chan struct{})
	if flags.verbose {
		go reportProgress(scanner, len(names), progressDone)
	}

	start := time.Now()
	rep, runErr := scanner.Run(ctx)
	elapsed := time.Since(start)

	close(progressDone)
	printer.Wait()

	if runErr != nil {
		log.Warnf("scan interrupted: %v", runErr)
	}

	w := output.New(format, filesys.OS())
	switch {
	case flags.outputFile != "":
		if err := w.WriteFile(flags.outputFile, target, rep); err != nil {
			return err
		}
		log.Infof("report written to %s", flags.outputFile)
	case format != output.FormatText:
		if err := w.Render(os.Stdout, target, rep); err != nil {
			return err
		}
	default:
		printSummary(rep, policy, elapsed)
	}
	return runErr
}

// reportProgress logs scan progress every couple of seconds until done closes.
func reportProgress(s *engine.Scanner, total int, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			scanned, resolved := s.Progress()
			log.Debugf("progress: %d/%d scanned, %d resolved (%.1f%%)",
				scanned, total, resolved, float64(scanned)/float64(total)*100)
		case <-done:
			return
		}
	}
}

// printSummary renders the end-of-scan table for text output on stdout.
// Names were already streamed above, so only the counters remain.
func printSummary(rep *engine.Report, policy engine.Policy, elapsed time.Duration) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Scanned", "Resolved", "Resolvers", "Policy", "Duration"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
	)
	table.SetBorder(false)
	table.Append([]string{
		strconv.Itoa(rep.TotalScanned),
		strconv.Itoa(len(rep.Resolved)),
		strconv.Itoa(rep.ResolversUsed),
		string(policy),
		elapsed.Round(time.Millisecond).String(),
	})

	color.New(color.Bold).Println("\nSCAN SUMMARY:")
	table.Render()
}
