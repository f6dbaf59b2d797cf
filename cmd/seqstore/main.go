package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfgpkg "github.com/seqstore/seqstore/internal/config"
	logpkg "github.com/seqstore/seqstore/pkg/log"
	"github.com/seqstore/seqstore/pkg/seqstore"
	filestore "github.com/seqstore/seqstore/pkg/storage/file"
	"github.com/seqstore/seqstore/pkg/storage/memory"
	"github.com/seqstore/seqstore/pkg/storage/pebblekv"
	redisstore "github.com/seqstore/seqstore/pkg/storage/redis"
)

// record is the CLI-side sequence type: an opaque JSON object keyed by its
// "topic" field.
type record map[string]any

func (r record) SequenceTopic() string {
	t, _ := r["topic"].(string)
	return t
}

func main() {
	var (
		configPath string
		backend    string
		dataDir    string
		keyContext string
		logLevel   string
		logFormat  string
		showEvents bool
	)

	rootCmd := &cobra.Command{
		Use:   "seqstore",
		Short: "Seqstore CLI",
		Long:  "Seqstore is a persistent keyed sequence store. This CLI operates on a local or remote backend directly.",
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", os.Getenv("SEQSTORE_CONFIG"), "Config file (json or yaml)")
	pf.StringVar(&backend, "backend", "", "Storage backend: memory|file|pebble|redis")
	pf.StringVar(&dataDir, "data-dir", "", "Data directory for file/pebble backends")
	pf.StringVar(&keyContext, "context", "", "Client context for key derivation")
	pf.StringVar(&logLevel, "log-level", os.Getenv("SEQSTORE_LOG_LEVEL"), "Log level: debug|info|warn|error")
	pf.StringVar(&logFormat, "log-format", os.Getenv("SEQSTORE_LOG_FORMAT"), "Log format: text|json")
	pf.BoolVar(&showEvents, "events", false, "Print lifecycle events as they fire")

	setup := func(ctx context.Context) (*seqstore.Store[record], func(), error) {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		cfgpkg.FromEnv(&cfg)
		if backend != "" {
			cfg.Backend = backend
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if keyContext != "" {
			cfg.Keys.Context = keyContext
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}

		logger := newLogger(cfg.Log)
		logpkg.RedirectStdLog(logger)

		storage, closeStorage, err := openStorage(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		st := seqstore.New[record](storage, seqstore.Options{
			Keys: seqstore.KeyInfo{
				Protocol: cfg.Keys.Protocol,
				Version:  cfg.Keys.Version,
				Context:  cfg.Keys.Context,
				Scope:    cfg.Keys.Scope,
			},
			Logger: logger,
		})
		if showEvents {
			_, _ = st.OnFiltered("", func(ev seqstore.Event[record]) {
				fmt.Fprintf(os.Stderr, "event %s topic=%q\n", ev.Kind, ev.Topic)
			})
		}
		st.Init(ctx)
		return st, closeStorage, nil
	}

	setCmd := &cobra.Command{
		Use:   "set <topic>",
		Short: "Insert or update a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, _ := cmd.Flags().GetString("data")
			var rec record
			if err := json.Unmarshal([]byte(data), &rec); err != nil {
				return fmt.Errorf("parse --data: %w", err)
			}
			if rec == nil {
				rec = record{}
			}
			rec["topic"] = args[0]
			ctx, cancel := signalContext()
			defer cancel()
			st, closeStorage, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()
			if err := st.Set(ctx, args[0], rec); err != nil {
				return err
			}
			return st.Flush(ctx)
		},
	}
	setCmd.Flags().String("data", "{}", "Sequence record as JSON")
	rootCmd.AddCommand(setCmd)

	getCmd := &cobra.Command{
		Use:   "get <topic>",
		Short: "Print the sequence stored under a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			st, closeStorage, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()
			rec, err := st.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(rec)
		},
	}
	rootCmd.AddCommand(getCmd)

	updateCmd := &cobra.Command{
		Use:   "update <topic>",
		Short: "Shallow-merge a patch into a stored sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patchJSON, _ := cmd.Flags().GetString("patch")
			var patch map[string]any
			if err := json.Unmarshal([]byte(patchJSON), &patch); err != nil {
				return fmt.Errorf("parse --patch: %w", err)
			}
			ctx, cancel := signalContext()
			defer cancel()
			st, closeStorage, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()
			merged, err := st.Update(ctx, args[0], patch)
			if err != nil {
				return err
			}
			if err := st.Flush(ctx); err != nil {
				return err
			}
			return printJSON(merged)
		},
	}
	updateCmd.Flags().String("patch", "{}", "Patch as JSON; fields overwrite same-named fields")
	rootCmd.AddCommand(updateCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <topic>",
		Short: "Delete a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, _ := cmd.Flags().GetInt("code")
			message, _ := cmd.Flags().GetString("message")
			ctx, cancel := signalContext()
			defer cancel()
			st, closeStorage, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()
			if err := st.Delete(ctx, args[0], seqstore.Reason{Code: code, Message: message}); err != nil {
				return err
			}
			return st.Flush(ctx)
		},
	}
	deleteCmd.Flags().Int("code", 0, "Deletion reason code")
	deleteCmd.Flags().String("message", "", "Deletion reason message")
	rootCmd.AddCommand(deleteCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			ctx, cancel := signalContext()
			defer cancel()
			st, closeStorage, err := setup(ctx)
			if err != nil {
				return err
			}
			defer closeStorage()
			if asJSON {
				return printJSON(st.Sequences())
			}
			for _, topic := range st.Topics() {
				fmt.Println(topic)
			}
			return nil
		},
	}
	listCmd.Flags().Bool("json", false, "Print full records as JSON")
	rootCmd.AddCommand(listCmd)

	slotsCmd := &cobra.Command{
		Use:   "slots",
		Short: "List persisted storage slots (pebble backend only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfgpkg.FromEnv(&cfg)
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			store, err := pebblekv.Open(pebblekv.Options{DataDir: cfg.DataDir, Fsync: parseFsync(cfg.Fsync)})
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			slots, err := store.Slots()
			if err != nil {
				return err
			}
			for _, slot := range slots {
				fmt.Println(slot)
			}
			return nil
		},
	}
	rootCmd.AddCommand(slotsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(cfg cfgpkg.LogConfig) logpkg.Logger {
	level, err := logpkg.ParseLevel(cfg.Level)
	if err != nil {
		level = logpkg.InfoLevel
	}
	var formatter logpkg.Formatter = &logpkg.TextFormatter{}
	if cfg.Format == "json" {
		formatter = &logpkg.JSONFormatter{}
	}
	return logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(formatter),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
}

func openStorage(ctx context.Context, cfg cfgpkg.Config) (seqstore.Storage, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), func() {}, nil
	case "file":
		st, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	case "pebble":
		st, err := pebblekv.Open(pebblekv.Options{DataDir: cfg.DataDir, Fsync: parseFsync(cfg.Fsync)})
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	case "redis":
		st, err := redisstore.New(redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q; use memory|file|pebble|redis", cfg.Backend)
	}
}

func parseFsync(mode string) pebblekv.FsyncMode {
	switch mode {
	case "never":
		return pebblekv.FsyncModeNever
	case "interval":
		return pebblekv.FsyncModeInterval
	default:
		return pebblekv.FsyncModeAlways
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
