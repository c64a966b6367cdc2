// Command toolloop answers a query with a model that may call capabilities
// before it answers.
//
//	toolloop -provider groq -scenario calculator -query "What is 12.5 * 8, divided by 4?"
//
// Credentials come from the environment (OPENAI_API_KEY, GROQ_API_KEY, ...), then
// from the API_KEYS.json file named by -keys. A .env file in the working
// directory is loaded first.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spachava753/toolloop"
	"github.com/spachava753/toolloop/credentials"
	"github.com/spachava753/toolloop/gateways/gemini"
	"github.com/spachava753/toolloop/internal/httputil"
	"github.com/spachava753/toolloop/log"
	"github.com/spachava753/toolloop/transcript"
)

type config struct {
	provider       string
	fallback       []string
	model          string
	query          string
	scenario       string
	maxIterations  int
	maxConcurrency int
	timeout        time.Duration
	keysPath       string
	transcriptPath string
	logFormat      string
	verbose        bool
	// stream writes Gemini answers to streamTo as they are generated. A call
	// that fails after part of its answer was written is not retried.
	stream   bool
	streamTo io.Writer
}

func parseFlags(args []string, stderr io.Writer) (config, error) {
	var cfg config
	var fallback string
	fs := flag.NewFlagSet("toolloop", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.provider, "provider", "openai", "model provider: "+strings.Join(providerNames(), ", "))
	fs.StringVar(&fallback, "fallback", "", "comma separated providers to try when -provider fails")
	fs.StringVar(&cfg.model, "model", "", "model name; defaults to a small model of the provider")
	fs.StringVar(&cfg.query, "query", "", "query to answer; defaults to the scenario's sample query")
	fs.StringVar(&cfg.scenario, "scenario", "calculator", "capability set: "+strings.Join(scenarioNames(), ", "))
	fs.IntVar(&cfg.maxIterations, "max-iterations", toolloop.DefaultMaxIterations, "maximum capability rounds before giving up")
	fs.IntVar(&cfg.maxConcurrency, "max-concurrency", 0, "maximum capabilities run at once; 0 means no limit")
	fs.DurationVar(&cfg.timeout, "timeout", 2*time.Minute, "overall time limit")
	fs.StringVar(&cfg.keysPath, "keys", "API_KEYS.json", "path of the API_KEYS.json credential file")
	fs.StringVar(&cfg.transcriptPath, "transcript", "", "SQLite file to save the conversation to")
	fs.StringVar(&cfg.logFormat, "log-format", "text", "log format: text or json")
	fs.BoolVar(&cfg.verbose, "v", false, "log every turn and capability call")
	fs.BoolVar(&cfg.stream, "stream", false, "print the answer while it is generated (gemini and vertex)")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}
	if fs.NArg() > 0 && cfg.query == "" {
		cfg.query = strings.Join(fs.Args(), " ")
	}
	if fallback != "" {
		for _, p := range strings.Split(fallback, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.fallback = append(cfg.fallback, p)
			}
		}
	}
	if _, ok := scenarios[cfg.scenario]; !ok {
		return config{}, fmt.Errorf("unknown scenario %q", cfg.scenario)
	}
	return cfg, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	ctx := log.WithLogger(context.Background(), log.New(os.Stderr, cfg.logFormat, level))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Error(ctx, "toolloop failed", err)
		os.Exit(1)
	}
}

func loadCredentials(ctx context.Context, path string) credentials.Provider {
	chain := credentials.Chain{credentials.EnvProvider{}}
	file, err := credentials.Load(path)
	switch {
	case err == nil:
		chain = append(chain, file)
	case errors.Is(err, os.ErrNotExist):
		log.Debug(ctx, "no key file", "path", path)
	default:
		log.Warn(ctx, "ignoring key file", "path", path, "error", err)
	}
	return chain
}

func run(ctx context.Context, cfg config, stdout io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	if cfg.stream {
		if (cfg.provider == "gemini" || cfg.provider == "vertex") && len(cfg.fallback) == 0 {
			cfg.streamTo = stdout
		} else {
			log.Warn(ctx, "streaming needs -provider gemini or vertex without -fallback, printing the answer at the end")
		}
	}
	creds := loadCredentials(ctx, cfg.keysPath)
	httpClient := httputil.NewClient(0)

	sc := scenarios[cfg.scenario]
	reg, err := sc.registry(ctx, creds, httpClient)
	if err != nil {
		return err
	}

	gw, err := buildGateway(ctx, cfg, creds, httpClient, gatewayOptions{system: sc.system, googleSearch: sc.googleSearch})
	if err != nil {
		return err
	}

	query := cfg.query
	if query == "" {
		query = sc.query
	}
	return resolve(ctx, cfg, gw, reg, query, stdout)
}

// resolve runs the loop and prints the answer.
func resolve(ctx context.Context, cfg config, gw toolloop.Gateway, reg *toolloop.Registry, query string, stdout io.Writer) error {
	observers := toolloop.Observers{toolloop.LogObserver{}}
	if cfg.transcriptPath != "" {
		store, err := transcript.Open(cfg.transcriptPath)
		if err != nil {
			return err
		}
		defer store.Close()
		observers = append(observers, store)
	}

	loop := &toolloop.Loop{
		Gateway:        toolloop.Wrap(gw, toolloop.WithLogging(), toolloop.WithRetry(nil)),
		Registry:       reg,
		MaxIterations:  cfg.maxIterations,
		MaxConcurrency: cfg.maxConcurrency,
		Observer:       observers,
	}

	ctx = log.With(ctx, "provider", cfg.provider, "scenario", cfg.scenario)
	log.Info(ctx, "resolving query", "query", query, "capabilities", reg.Len())
	out, err := loop.Run(ctx, query)
	if err != nil {
		return err
	}
	args := []any{"iterations", out.Iterations, "invocations", out.Conversation.Invocations()}
	if in, ok := toolloop.InputTokens(out.Usage); ok {
		args = append(args, "input_tokens", in)
	}
	if gen, ok := toolloop.OutputTokens(out.Usage); ok {
		args = append(args, "gen_tokens", gen)
	}
	log.Info(ctx, "resolved", args...)
	if cfg.streamTo != nil {
		// the answer has already been streamed
		_, err = fmt.Fprintln(stdout)
	} else {
		_, err = fmt.Fprintln(stdout, out.Answer)
	}
	if err != nil {
		return err
	}
	return printSources(stdout, out.Usage)
}

// printSources lists the web pages a grounded answer was based on.
func printSources(w io.Writer, usage toolloop.Metrics) error {
	sources, ok := toolloop.GetMetric[[]string](usage, gemini.MetricGroundingSources)
	if !ok || len(sources) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "\nSources:"); err != nil {
		return err
	}
	for _, s := range sources {
		if _, err := fmt.Fprintf(w, "  - %s\n", s); err != nil {
			return err
		}
	}
	return nil
}
