package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/rinkside/internal/seeder"
)

const (
	defaultNumLessons = 200
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultSettle     = 10 * time.Second
	defaultReplay     = 10
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numLessons = flag.Int("lessons", defaultNumLessons, "Number of lessons to generate")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "How long the stream may lag behind the writes")
		day        = flag.String("day", "", "First day to schedule on, YYYY-MM-DD (default tomorrow)")
		coaches    = flag.String("coaches", "", "Comma separated coaches (default Silvia,John,Sherry)")
		rinks      = flag.String("rinks", "", "Comma separated rinks (default Stadium,Mezzanine,Den)")
		replay     = flag.Int("replay", defaultReplay, "Resubmit every Nth lesson with the same idempotency key")
		cleanup    = flag.Bool("cleanup", false, "Delete the seeded lessons afterwards")
		outputFile = flag.String("output", "", "JSON file receiving the created lessons")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Log every submission")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seeder.ShowHelp()
		return
	}

	closeLog, err := seeder.SetupLogging(*logFile, *verbose)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	first, err := seeder.ParseDay(*day)
	if err != nil {
		_, _ = os.Stderr.WriteString("Bad -day: " + err.Error() + "\n")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &seeder.Config{
		BaseURL:    *baseURL,
		NumLessons: *numLessons,
		Workers:    *workers,
		Timeout:    *timeout,
		Settle:     *settle,
		Day:        first,
		Coaches:    splitList(*coaches),
		Rinks:      splitList(*rinks),
		Replays:    *replay,
		Cleanup:    *cleanup,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := seeder.Run(ctx, config); err != nil {
		_, _ = os.Stderr.WriteString("Seeding failed: " + err.Error() + "\n")
		cancel()
		closeLog()
		os.Exit(1)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
