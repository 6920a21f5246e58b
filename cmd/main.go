package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli-altsrc/v3"
	toml "github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/eatonphil/resultset"
	"github.com/eatonphil/resultset/export"
	"github.com/eatonphil/resultset/internal/config"
	"github.com/eatonphil/resultset/internal/logger"
)

type app struct {
	configPath string
	collation  string
	logLevel   string
	format     string

	cfg     *config.Config
	log     *zap.Logger
	closeFn func()
	backend *resultset.MemoryBackend
}

// readSource treats arg as a script path when such a file exists, "-" as
// standard input, and anything else as SQL text.
func readSource(arg string) (string, error) {
	if arg == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	if st, err := os.Stat(arg); err == nil && !st.IsDir() {
		b, err := os.ReadFile(arg)
		return string(b), err
	}
	return arg, nil
}

func (a *app) readerOptions() []resultset.Option {
	return []resultset.Option{
		resultset.WithOptions(a.cfg.Reader),
		resultset.WithLogger(a.log),
	}
}

func (a *app) before(ctx context.Context, c *cli.Command) (context.Context, error) {
	cfg, err := config.FromFile(a.configPath)
	if err != nil {
		return ctx, err
	}
	if a.collation != "" {
		cfg.Server.Collation = a.collation
	}
	if a.logLevel != "" {
		cfg.Logging.ConsoleLevel = a.logLevel
	}
	coll, ok := resultset.LookupCollation(cfg.Server.Collation)
	if !ok {
		return ctx, fmt.Errorf("unknown collation %q", cfg.Server.Collation)
	}
	a.cfg = cfg

	a.log, a.closeFn, err = logger.New(cfg.Logging)
	if err != nil {
		return ctx, err
	}

	a.backend = resultset.NewMemoryBackend(
		resultset.WithServerCollation(coll),
		resultset.WithBackendLogger(a.log),
	)

	if cfg.Server.Seed != "" {
		source, err := readSource(cfg.Server.Seed)
		if err != nil {
			return ctx, err
		}
		cursor, err := resultset.BeginBatch(ctx, a.backend.Execute(ctx, source), a.readerOptions()...)
		if err != nil {
			return ctx, err
		}
		defer cursor.Close()
		if err := cursor.Drain(ctx); err != nil {
			return ctx, fmt.Errorf("seed script %s: %w", cfg.Server.Seed, err)
		}
		a.log.Info("Seeded backend", zap.String("script", cfg.Server.Seed))
	}
	return ctx, nil
}

func (a *app) after(ctx context.Context, c *cli.Command) error {
	if a.closeFn != nil {
		a.closeFn()
	}
	return nil
}

func (a *app) repl(ctx context.Context, c *cli.Command) error {
	return resultset.RunRepl(a.backend, resultset.ReplConfig{
		Prompt:      a.cfg.Repl.Prompt,
		HistoryFile: a.cfg.Repl.HistoryFile,
		ShowSchema:  a.cfg.Repl.ShowSchema || c.Bool("schema"),
		Options:     a.readerOptions(),
	})
}

func (a *app) run(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("expected a script path, - or SQL text")
	}

	for _, arg := range c.Args().Slice() {
		source, err := readSource(arg)
		if err != nil {
			return err
		}
		err = resultset.PrintBatch(ctx, a.backend, os.Stdout, source, c.Bool("schema"), a.readerOptions()...)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) codec(output string) (export.Codec, error) {
	format := a.format
	if format == "" && output != "-" {
		format = filepath.Ext(output)
	}
	if format == "" || format == "." {
		format = a.cfg.Export.Format
	}

	switch strings.ToLower(format) {
	case "csv", ".csv":
		return export.CSV(
			export.WithDelimiter([]rune(a.cfg.Export.Delimiter)[0]),
			export.WithNullValue(a.cfg.Export.NullValue),
		), nil
	}
	return export.ForFormat(format)
}

func (a *app) export(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("expected a query and an output path")
	}
	source, err := readSource(c.Args().Get(0))
	if err != nil {
		return err
	}
	output := c.Args().Get(1)

	codec, err := a.codec(output)
	if err != nil {
		return err
	}

	cursor, err := resultset.BeginBatch(ctx, a.backend.Execute(ctx, source), a.readerOptions()...)
	if err != nil {
		return err
	}
	defer cursor.Close()

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if err := codec.Write(ctx, cursor, w); err != nil {
		return err
	}
	a.log.Info("Exported batch",
		zap.String("output", output),
		zap.Int("results", len(cursor.CompletedSchemas())))
	return nil
}

func main() {
	a := &app{}
	schemaFlag := &cli.BoolFlag{
		Name:  "schema",
		Usage: "print the columns of each result set before its rows",
	}

	cmd := &cli.Command{
		Name:  "resultset",
		Usage: "run SQL batches against an in-memory server and read their result sets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path of a TOML configuration file",
				Destination: &a.configPath,
			},
			&cli.StringFlag{
				Name:        "collation",
				Usage:       "server collation",
				Destination: &a.collation,
				Sources: cli.NewValueSourceChain(
					toml.TOML("server.collation", altsrc.NewStringPtrSourcer(&a.configPath))),
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "console log level (debug, info, warn, error)",
				Destination: &a.logLevel,
				Sources: cli.NewValueSourceChain(
					toml.TOML("logger.console_level", altsrc.NewStringPtrSourcer(&a.configPath))),
			},
		},
		Before: a.before,
		After:  a.after,
		Action: a.repl,
		Commands: []*cli.Command{
			{
				Name:   "repl",
				Usage:  "start an interactive shell",
				Flags:  []cli.Flag{schemaFlag},
				Action: a.repl,
			},
			{
				Name:      "run",
				Usage:     "run scripts or SQL text and print their result sets",
				ArgsUsage: "SCRIPT|SQL|- ...",
				Flags:     []cli.Flag{schemaFlag},
				Action:    a.run,
			},
			{
				Name:      "export",
				Usage:     "write every result set of a batch to a file",
				ArgsUsage: "SCRIPT|SQL|- OUTPUT",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       fmt.Sprintf("output format, one of %v; defaults to the output extension", export.Formats),
						Destination: &a.format,
					},
				},
				Action: a.export,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
