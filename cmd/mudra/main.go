package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/tray"
)

var (
	configPath string
	addr       string
	noTray     bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "mudra",
	Short: "Mudra - face and hand landmark overlay",
	Long: `Mudra - face and hand landmark overlay on a mirrored camera feed.

Mudra opens the camera, loads the face and hand landmark models and draws
both on a mirrored preview. The right hand, as seen in the preview, drives
the position and rotation of a 3D object.

Configuration is read from a YAML file (--config or MUDRA_CONFIG), an
optional .env file and MUDRA_* environment variables.

Examples:
  mudra                         # Start with defaults on :8080
  mudra --addr :9090 --no-tray  # Headless on another port
  mudra --config mudra.yaml     # Start from a config file`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cmd.Context(), configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			c.Addr = addr
		}
		if noTray {
			c.Tray = false
		}

		if err := logger.Initialize(c.LogJSON, c.LogLevel); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		cfg = c
		return nil
	},
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&addr, "addr", ":8080", "HTTP listen address")
	rootCmd.Flags().BoolVar(&noTray, "no-tray", false, "run without the system tray menu")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	m := metrics.NewManager()
	a := app.New(app.Config{
		Lifecycle:      cfg.Lifecycle(),
		FrameInterval:  cfg.FrameInterval(),
		SmoothingAlpha: cfg.SmoothingAlpha,
		FaceTracking:   cfg.FaceTracking,
		HandTracking:   cfg.HandTracking,
		Camera:         capture.NewProvider(),
		Faces:          detector.NewMediaPipeFaceFactory(cfg.ModelScript),
		Hands:          detector.NewMediaPipeHandFactory(cfg.ModelScript),
		Metrics:        m,
	})

	stream := server.NewStreamHandler(server.DefaultPreviewFPS)
	a.SetPublisher(stream)

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Logger.Infow("Serving static files", "dir", staticDir)
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Pipeline:  a,
		Stream:    stream,
		Metrics:   m,
		WSRateHz:  cfg.WSRateHz,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.Addr)
	})
	g.Go(func() error {
		if err := a.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		a.Stop()
		return nil
	})

	// The tray owns the main thread until quit.
	if cfg.Tray {
		t := tray.New()
		t.SetTracking(a.Tracking())
		t.OnFaceTracking(a.SetFaceTracking)
		t.OnHandTracking(a.SetHandTracking)
		a.SubscribeTracking(t.SetTracking)
		t.OnRetry(func() {
			if err := a.Retry(); err != nil {
				logger.Logger.Warnw("Retry failed", "error", err)
			}
		})
		t.OnOpen(func() {
			if err := openBrowser(previewURL(cfg.Addr)); err != nil {
				logger.Logger.Warnw("Failed to open browser", "error", err)
			}
		})
		t.OnQuit(cancel)
		a.Readiness().Subscribe(t.SetReadiness)

		go func() {
			<-gctx.Done()
			t.Quit()
		}()
		t.Run()
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Logger.Infow("Shutdown complete")
	return nil
}

func previewURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.mudra/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
