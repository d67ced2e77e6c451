package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/prmerger/internal/cfg"
	"github.com/simplesurance/prmerger/internal/logfields"
	"github.com/simplesurance/prmerger/internal/mergeerr"
	"github.com/simplesurance/prmerger/internal/retry"
)

const appName = "prmerger"

var logger = zap.L()

// Version is set via a ldflag on compilation
var Version = "unknown"

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

type globalArguments struct {
	Verbose    bool
	ConfigFile string
	EnvFile    string
}

var args globalArguments

// config is loaded before any subcommand runs.
var config *cfg.Config

func mustLoadCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	config, err := cfg.LoadFile(args.ConfigFile)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", args.ConfigFile), err)

	err = config.ApplyEnv(args.EnvFile)
	exitOnErr(fmt.Sprintf("could not load environment file: %s", args.EnvFile), err)

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stderr,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stderr"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		// syncing stderr fails with EINVAL on some platforms, the error
		// is not actionable
		_ = logger.Sync()
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func newRetryer(config *cfg.Config) *retry.Retryer {
	return retry.New(
		retry.WithMaxAttempts(config.APIRetries+1),
		retry.WithInterval(config.APIRetryInterval),
	)
}

func newRootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   appName,
		Short: "Merge GitHub pull requests and branches into a base branch",
		Long: `prmerger merges all open pull requests that match a set of filters
into a base branch of a local git repository and recursively into its
submodules. The result can be pushed and tagged to run CI on the
combined state of the pull requests.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config = mustLoadCfg()
			mustInitLogger(config)

			logger.Debug(
				"loaded cfg file",
				logfields.Event("cfg_loaded"),
				zap.String("cfg_file", args.ConfigFile),
				zap.String("github_api_token", hide(config.GithubAPIToken)),
				zap.String("organization", config.Organization),
				zap.Strings("whitelist_users", config.WhitelistUsers),
				zap.String("remote", config.Remote),
				zap.Uint("api_retries", config.APIRetries),
				zap.Duration("api_retry_interval", config.APIRetryInterval),
				zap.String("log_format", config.LogFormat),
				zap.String("log_level", config.LogLevel),
				zap.Int("repositories", len(config.Repositories)),
			)
		},
	}

	c.PersistentFlags().BoolVarP(&args.Verbose, "verbose", "v", false, "enable verbose logging")
	c.PersistentFlags().StringVarP(&args.ConfigFile, "cfg-file", "c", "", "path to the prmerger configuration file")
	c.PersistentFlags().StringVar(&args.EnvFile, "env-file", cfg.DefaultEnvFile, "file with environment variables that is loaded if it exists")

	c.AddCommand(
		newMergeCmd(),
		newCheckRebasedCmd(),
		newVersionCmd(),
	)

	return c
}

func exit(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err.Error())
	}

	goodbye.Exit(context.Background(), mergeerr.ExitCode(err))
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		if sig != nil {
			logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
		}
	})

	exit(newRootCmd().Execute())
}
