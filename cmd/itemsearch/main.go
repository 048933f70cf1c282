package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/internal/version"
	"github.com/hrygo/itemsearch/server"
	"github.com/hrygo/itemsearch/store"
	"github.com/hrygo/itemsearch/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "itemsearch",
		Short: `Product image search: store catalog images, recognize their attributes and find similar items.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Systemd units provide their environment through EnvironmentFile.
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		Run: func(_ *cobra.Command, _ []string) {
			instanceProfile := &profile.Profile{
				Mode:           viper.GetString("mode"),
				Addr:           viper.GetString("addr"),
				Port:           viper.GetInt("port"),
				UNIXSock:       viper.GetString("unix-sock"),
				Data:           viper.GetString("data"),
				Driver:         viper.GetString("driver"),
				DSN:            viper.GetString("dsn"),
				VectorOps:      viper.GetString("vector-ops"),
				RecognizerURL:  viper.GetString("recognizer-url"),
				MetricsEnabled: viper.GetBool("metrics"),
				Version:        version.GetCurrentVersion(viper.GetString("mode")),
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				panic(err)
			}
			if instanceProfile.IsDev() {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}

			ctx, cancel := context.WithCancel(context.Background())
			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				cancel()
				printDatabaseError(err, instanceProfile)
				slog.Error("failed to create db driver", "error", err)
				return
			}

			storeInstance := store.New(dbDriver)
			if err := storeInstance.Migrate(ctx); err != nil {
				cancel()
				slog.Error("failed to migrate", "error", err)
				return
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance)
			if err != nil {
				cancel()
				slog.Error("failed to create server", "error", err)
				return
			}

			c := make(chan os.Signal, 1)
			// Trigger graceful shutdown on SIGINT or SIGTERM.
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					slog.Error("failed to start server", "error", err)
					cancel()
				}
			}

			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			// Wait for CTRL-C.
			<-ctx.Done()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.StringFull())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", profile.DriverPostgres)
	viper.SetDefault("port", 8080)
	viper.SetDefault("vector-ops", profile.VectorOpsArray)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8080, "port of server")
	rootCmd.PersistentFlags().String("unix-sock", "", "path to the unix socket, overrides --addr and --port")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", profile.DriverPostgres, "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("vector-ops", profile.VectorOpsArray, `feature storage on postgres, "array" (REAL[] with l2_distance) or "pgvector"`)
	rootCmd.PersistentFlags().String("recognizer-url", "", "base url of an HTTP recognition service, pipelines run in the database when empty")
	rootCmd.PersistentFlags().Bool("metrics", false, "expose prometheus metrics on /metrics")

	for _, name := range []string{"mode", "addr", "port", "unix-sock", "data", "driver", "dsn", "vector-ops", "recognizer-url", "metrics"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("itemsearch")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	rootCmd.AddCommand(versionCmd)
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("itemsearch %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Database driver: %s\n", profile.Driver)
	if profile.Driver == "postgres" {
		fmt.Printf("Vector ops: %s\n", profile.VectorOps)
	}
	fmt.Printf("Mode: %s\n", profile.Mode)
	if profile.UsesDatabasePipeline() {
		fmt.Println("Recognition: database pipelines")
	} else {
		fmt.Printf("Recognition: %s\n", profile.RecognizerURL)
	}

	if len(profile.UNIXSock) == 0 {
		if len(profile.Addr) == 0 {
			fmt.Printf("Server running on port %d\n", profile.Port)
		} else {
			fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
		}
	} else {
		fmt.Printf("Server running on unix socket: %s\n", profile.UNIXSock)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseError prints a hint for the common database connection failures.
func printDatabaseError(err error, profile *profile.Profile) {
	fmt.Fprintln(os.Stderr, "\nDatabase connection failed")

	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host"):
		fmt.Fprintln(os.Stderr, "  The database is not reachable. Check the host and port in the DSN.")
		if profile.Driver == "postgres" {
			fmt.Fprintln(os.Stderr, "  For local development use: --driver=sqlite --data=./data --recognizer-url=<url>")
		}
	case strings.Contains(errMsg, "SSL is not enabled") || strings.Contains(errMsg, "sslmode"):
		fmt.Fprintln(os.Stderr, "  SSL configuration mismatch. Add ?sslmode=disable to the DSN.")
	case strings.Contains(errMsg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "  Authentication failed. Check the credentials in ITEMSEARCH_DSN or .env.")
	case strings.Contains(errMsg, "database") && strings.Contains(errMsg, "does not exist"):
		fmt.Fprintln(os.Stderr, "  The database does not exist yet.")
	default:
		fmt.Fprintln(os.Stderr, "  Error:", errMsg)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
