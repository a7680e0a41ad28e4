package website

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/quillpress/quill/src/config"
	"github.com/quillpress/quill/src/hmnurl"
	"github.com/quillpress/quill/src/jobs"
	"github.com/quillpress/quill/src/logging"
	"github.com/quillpress/quill/src/perf"
	"github.com/quillpress/quill/src/registry"
	"github.com/quillpress/quill/src/templates"
	"github.com/spf13/cobra"
)

var configPath string

var WebsiteCommand = &cobra.Command{
	Use:   "quill",
	Short: "Run the Quill blog",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		config.Config = cfg
		logging.SetLevel(cfg.LogLevel)
		hmnurl.SetGlobalBaseUrl(cfg.BaseUrl)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		runWebsite()
	},
}

func init() {
	WebsiteCommand.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to a YAML config file. Missing files are ignored.")

	WebsiteCommand.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Pre-render known posts and serve the blog (the default)",
		Run: func(cmd *cobra.Command, args []string) {
			runWebsite()
		},
	})
	WebsiteCommand.AddCommand(pathsCommand())
	WebsiteCommand.AddCommand(revalidateCommand())
}

const shutdownTimeout = 10 * time.Second

func runWebsite() {
	defer logging.LogPanics(nil)
	logging.Info().Msg("Hello, Quill!")

	templates.Init()

	startupCtx := context.Background()
	services, serviceJobs, closeServices, err := NewServices(startupCtx)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to set up services")
	}

	// Every known post must render before we accept requests.
	paths, err := registry.ListKnownPaths(startupCtx, services.Fetcher)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to list known posts")
	}
	if err := services.Controller.Prerender(startupCtx, registry.Routes(paths)); err != nil {
		logging.Fatal().Err(err).Msg("failed to pre-render known posts")
	}
	logging.Info().Int("posts", len(paths)).Msg("pre-rendered known posts")

	var wg sync.WaitGroup

	perfCollector, perfCollectorJob := perf.RunPerfCollector()

	// Start background jobs
	wg.Add(1)
	backgroundJobs := append(jobs.Jobs{perfCollectorJob}, serviceJobs...)

	// Create HTTP server
	wg.Add(1)
	server := http.Server{
		Addr:    config.Config.Addr,
		Handler: NewWebsiteRoutes(services, perfCollector),
	}
	go func() {
		logging.Info().Str("addr", config.Config.Addr).Msg("Serving the website")
		serverErr := server.ListenAndServe()
		if !errors.Is(serverErr, http.ErrServerClosed) {
			logging.Error().Err(serverErr).Msg("Server shut down unexpectedly")
		}
		// The wg.Done() happens in the shutdown logic below.
	}()

	// The private server uses the default mux, which already has the pprof
	// routes from the import above.
	if config.Config.PrivateAddr != "" {
		http.Handle("/debug/perf", PerfmonHandler(perfCollector))
		go func() {
			// We don't bother to gracefully shut this down.
			log.Println(http.ListenAndServe(config.Config.PrivateAddr, nil))
		}()
	}

	// Wait for SIGINT in the background and trigger graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)
	go func() {
		<-signals // First SIGINT (start shutdown)
		logging.Info().Msg("Shutting down the website")

		go func() {
			logging.Info().Msg("Shutting down background jobs...")
			unfinished := backgroundJobs.CancelAndWait(shutdownTimeout)
			if len(unfinished) == 0 {
				logging.Info().Msg("Background jobs closed gracefully")
			} else {
				logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
			}
			wg.Done()
		}()

		// Gracefully shut down the HTTP server
		go func() {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err := server.Shutdown(timeoutCtx)
			if err != nil {
				logging.Warn().Err(err).Msg("Server did not shut down gracefully")
			}
			wg.Done()
		}()

		<-signals // Second SIGINT (force quit)
		logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the website")
		os.Exit(1)
	}()

	// Wait for all of the above to finish, then exit
	wg.Wait()
	closeServices()
}

func pathsCommand() *cobra.Command {
	var fullUrls bool
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "List the post pages that would be pre-rendered at startup",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			services, _, closeServices, err := NewServices(ctx)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			defer closeServices()

			paths, err := registry.ListKnownPaths(ctx, services.Fetcher)
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			for _, p := range paths {
				if fullUrls {
					fmt.Println(hmnurl.BuildPost(p.Slug))
				} else {
					fmt.Println(p.Route())
				}
			}
		},
	}
	cmd.Flags().BoolVar(&fullUrls, "urls", false, "Print absolute URLs instead of routes")
	return cmd
}

func revalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revalidate <slug or route>...",
		Short: "Ask the running server to regenerate post pages now",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			secret := config.Config.Generation.RevalidateSecret
			if secret == "" {
				fmt.Println("ERROR: generation.revalidateSecret is not configured, so the server has revalidation disabled.")
				os.Exit(1)
			}

			client := &http.Client{Timeout: config.Config.Generation.RegenerateTimeout() + 5*time.Second}
			failed := false
			for _, arg := range args {
				route := arg
				if !strings.HasPrefix(route, "/") {
					route = hmnurl.PostRoute(route)
				}
				body, status, err := requestRevalidate(cmd.Context(), client, route, secret)
				if err != nil {
					fmt.Printf("%s: ERROR: %v\n", route, err)
					failed = true
					continue
				}
				fmt.Printf("%s: %d %s\n", route, status, body)
				if status != http.StatusOK {
					failed = true
				}
			}
			if failed {
				os.Exit(1)
			}
		},
	}
}

func requestRevalidate(ctx context.Context, client *http.Client, route, secret string) (string, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hmnurl.BuildAPIRevalidate(route), nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+secret)

	res, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return "", res.StatusCode, err
	}
	return strings.TrimSpace(string(body)), res.StatusCode, nil
}
