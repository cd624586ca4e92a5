// importctl imports ticket files and classifies text from the command
// line, using the same configuration (environment and .env) as the server.
//
//	importctl import [--auto-classify] [--content-type TYPE] FILE
//	importctl preview [--content-type TYPE] FILE
//	importctl classify --subject TEXT --description TEXT
//	importctl sweep DIR
//	importctl fetch [--output FILE] KEY
//
// Results are printed to stdout as JSON; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/ticketimport/internal/application"
	"github.com/JonMunkholm/ticketimport/internal/archive"
	"github.com/JonMunkholm/ticketimport/internal/config"
	"github.com/JonMunkholm/ticketimport/internal/core"
	"github.com/JonMunkholm/ticketimport/internal/inbox"
	"github.com/JonMunkholm/ticketimport/internal/logging"
)

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

const usage = `usage:
  importctl import [--auto-classify] [--content-type TYPE] FILE
  importctl preview [--content-type TYPE] FILE
  importctl classify --subject TEXT --description TEXT
  importctl sweep DIR
  importctl fetch [--output FILE] KEY
`

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format))

	switch cmd, rest := args[0], args[1:]; cmd {
	case "import":
		return runImport(ctx, cfg, rest, stdout)
	case "preview":
		return runPreview(ctx, cfg, rest, stdout)
	case "classify":
		return runClassify(ctx, cfg, rest, stdout)
	case "sweep":
		return runSweep(ctx, cfg, rest, stdout)
	case "fetch":
		return runFetch(ctx, cfg, rest, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func runImport(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("import", pflag.ContinueOnError)
	autoClassify := flags.Bool("auto-classify", cfg.Import.AutoClassify, "attach a keyword classification to each ticket")
	contentType := flags.String("content-type", "", "declared content type, used when the file name has no known extension")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("%w: import takes exactly one FILE", errUsage)
	}
	path := flags.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	app, err := application.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	outcome, err := app.Service.ImportBatch(ctx, core.ImportRequest{
		Data:         data,
		FileName:     filepath.Base(path),
		ContentType:  *contentType,
		AutoClassify: *autoClassify,
	})
	if err != nil {
		return errors.New(core.FormatUserError(err))
	}
	return printJSON(stdout, outcome)
}

// runPreview parses and validates FILE without storing anything.
func runPreview(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("preview", pflag.ContinueOnError)
	contentType := flags.String("content-type", "", "declared content type, used when the file name has no known extension")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("%w: preview takes exactly one FILE", errUsage)
	}
	path := flags.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	previewCfg := *cfg
	previewCfg.Database.Driver = config.DriverMemory
	previewCfg.Archive = config.ArchiveConfig{}
	previewCfg.Events = config.EventsConfig{}

	app, err := application.Build(ctx, &previewCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Service.Preview(core.ImportRequest{
		Data:        data,
		FileName:    filepath.Base(path),
		ContentType: *contentType,
	})
	if err != nil {
		return errors.New(core.FormatUserError(err))
	}
	return printJSON(stdout, res)
}

func runClassify(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("classify", pflag.ContinueOnError)
	subject := flags.String("subject", "", "ticket subject")
	description := flags.String("description", "", "ticket description")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *subject == "" && *description == "" {
		return fmt.Errorf("%w: --subject or --description is required", errUsage)
	}

	// Classification needs only the keyword table, not the store.
	classifyCfg := *cfg
	classifyCfg.Database.Driver = config.DriverMemory
	classifyCfg.Archive = config.ArchiveConfig{}
	classifyCfg.Events = config.EventsConfig{}

	app, err := application.Build(ctx, &classifyCfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return printJSON(stdout, app.Service.Classify(*subject, *description))
}

func runSweep(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: sweep takes exactly one DIR", errUsage)
	}

	app, err := application.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	sweeper, err := inbox.NewSweeper(app.Service, inbox.Config{
		Dir:          args[0],
		Schedule:     cfg.Inbox.Schedule,
		AutoClassify: cfg.Import.AutoClassify,
	})
	if err != nil {
		return err
	}
	res, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string]int{
		"processed": res.Processed,
		"failed":    res.Failed,
		"deferred":  res.Deferred,
	})
}

// runFetch restores an archived import file by the key an import outcome
// reported, writing it to --output or stdout.
func runFetch(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("fetch", pflag.ContinueOnError)
	output := flags.StringP("output", "o", "", "write the file here instead of stdout")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("%w: fetch takes exactly one KEY", errUsage)
	}
	if !cfg.Archive.Enabled() {
		return errors.New("archive is not configured (set ARCHIVE_S3_BUCKET)")
	}

	archiver, err := archive.NewS3Archiver(ctx, archive.S3Options{
		Region:    cfg.Archive.Region,
		Endpoint:  cfg.Archive.Endpoint,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		Prefix:    cfg.Archive.Prefix,
	})
	if err != nil {
		return err
	}
	data, err := archiver.Load(ctx, flags.Arg(0))
	if err != nil {
		return err
	}

	if *output == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(*output, data, 0o644)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
