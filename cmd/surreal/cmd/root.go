package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	surrealdb "github.com/surrealdb/surrealdriver"
	"github.com/surrealdb/surrealdriver/pkg/logger"
)

// envPrefix prefixes the environment variables bound to flags, e.g.
// SURREAL_ENDPOINT for --endpoint.
const envPrefix = "SURREAL"

type root struct {
	cmd *cobra.Command
	v   *viper.Viper
	fmt *formatter
	log logger.Logger

	confFile   string
	debug      bool
	retryCount int
	retryDelay time.Duration
	timeout    time.Duration
}

// Execute runs the command line and exits with its status.
func Execute(ctx context.Context) {
	r := rootCmd()
	os.Exit(r.execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func (r *root) execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r.cmd.SetArgs(args)
	r.cmd.SetOut(stdout)
	r.cmd.SetErr(stderr)

	err := r.cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

func rootCmd() *root {
	r := &root{
		v:   viper.New(),
		fmt: &formatter{},
		log: logger.Nop(),
	}
	r.cmd = &cobra.Command{
		Use:               "surreal",
		Short:             "surreal runs SurrealQL against a SurrealDB server",
		Long:              "Connects over WebSocket (ws, wss) or HTTP (http, https), runs one command and prints the result.\n\nExit status: 1 usage or configuration error, 2 connection error, 3 statement or query error, 4 authentication error.",
		PersistentPreRunE: r.init,
		SilenceErrors:     true,
	}

	pf := r.cmd.PersistentFlags()
	r.fmt.ConfigFlags(pf)
	pf.StringVar(&r.confFile, "config", "", "Path to a config file (yaml, json or toml) holding flag values")
	pf.BoolVar(&r.debug, "debug", false, "Enable debug logging to stderr")
	pf.StringP("endpoint", "e", surrealdb.DefaultURL, "Server endpoint; the scheme selects the engine")
	pf.String("ns", "", "Namespace to use")
	pf.String("db", "", "Database to use")
	pf.StringP("user", "u", "", "Sign in as this user")
	pf.StringP("pass", "p", "", "Password for --user")
	pf.String("token", "", "Authenticate with this token instead of signing in")
	pf.String("encoding", "", "Wire format: cbor (default) or json. json sends record ids as strings")
	pf.IntVar(&r.retryCount, "retry", 0, "In case of a connection error, retry up to this many times. A negative value retries forever.")
	pf.DurationVar(&r.retryDelay, "retry-delay", 0, "Delay between retry attempts. Disables the default exponential backoff.")
	pf.DurationVar(&r.timeout, "timeout", 0, "The time limit for the whole command.")

	r.v.SetEnvPrefix(envPrefix)
	r.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	r.v.AutomaticEnv()
	_ = r.v.BindPFlags(pf)

	r.cmd.AddCommand(queryCmd(r))
	r.cmd.AddCommand(selectCmd(r))
	r.cmd.AddCommand(versionCmd(r))

	return r
}

func (r *root) init(cmd *cobra.Command, _ []string) error {
	if err := r.fmt.validate(); err != nil {
		return withCode(err, ExitUsage)
	}

	if r.confFile != "" {
		r.v.SetConfigFile(r.confFile)
		if err := r.v.ReadInConfig(); err != nil {
			return withCode(fmt.Errorf("reading config: %w", err), ExitUsage)
		}
	}

	if r.debug {
		lg, err := logger.New().FromBuffer(cmd.ErrOrStderr()).Level(zerolog.DebugLevel).Make()
		if err != nil {
			return withCode(err, ExitUsage)
		}
		r.log = lg
	}

	// Flags parsed; from here on errors are not usage errors.
	cmd.SilenceUsage = true
	return nil
}

func (r *root) config() *surrealdb.Config {
	cfg := &surrealdb.Config{
		Endpoint:  r.v.GetString("endpoint"),
		Namespace: r.v.GetString("ns"),
		Database:  r.v.GetString("db"),
		Token:     r.v.GetString("token"),
		Encoding:  r.v.GetString("encoding"),
		Logger:    r.log,
	}
	if user := r.v.GetString("user"); user != "" {
		cfg.Auth = &surrealdb.Auth{Username: user, Password: r.v.GetString("pass")}
	}
	return cfg
}

// context applies --timeout to ctx.
func (r *root) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout > 0 {
		return context.WithTimeout(ctx, r.timeout)
	}
	return context.WithCancel(ctx)
}

// connect opens the configured server, retrying connection errors as --retry
// asks. Configuration and authentication errors are never retried.
func (r *root) connect(ctx context.Context) (*surrealdb.DB, error) {
	cfg := r.config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var db *surrealdb.DB
	err := r.retry(ctx, func() error {
		var err error
		db, err = surrealdb.Open(ctx, cfg)
		if err != nil && !errors.Is(err, surrealdb.ErrConnection) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (r *root) retry(ctx context.Context, fn func() error) error {
	if r.retryCount == 0 {
		return fn()
	}
	var bo backoff.BackOff
	if r.retryDelay > 0 {
		bo = backoff.NewConstantBackOff(r.retryDelay)
	} else {
		bo = backoff.NewExponentialBackOff()
	}
	if r.retryCount > 0 {
		bo = backoff.WithMaxRetries(bo, uint64(r.retryCount))
	}
	bo = backoff.WithContext(bo, ctx)

	return backoff.RetryNotify(fn, bo, func(err error, next time.Duration) {
		r.log.Warn("transient problem, retrying", "error", err, "in", next)
	})
}
