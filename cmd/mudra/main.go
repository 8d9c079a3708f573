package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	_ "github.com/ayusman/mudra/internal/device/webcam"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file")
		deviceKind = flag.String("device", "", "tracking device: mock, webcam or replay")
		recording  = flag.String("recording", "", "recording id for the replay device")
		addr       = flag.String("addr", "", "HTTP listen address")
		dbPath     = flag.String("db", "", "sqlite database path")
		pluginDir  = flag.String("plugins", "", "plugin directory")
		noTray     = flag.Bool("no-tray", runtime.GOOS != "darwin", "run without the system tray")
	)
	flag.Parse()

	fmt.Println("Mudra - Hand Tracking Input")

	dataDir, err := dataDir()
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	cfg := config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Initialize the store
	path := firstNonEmpty(*dbPath, cfg.Store.Path, filepath.Join(dataDir, "mudra.db"))
	st, err := store.New(path)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Settings saved through the API win over the file; flags win over both.
	if *configPath == "" {
		if cfg, err = app.PersistedConfig(st, cfg); err != nil {
			log.Fatalf("Failed to load saved config: %v", err)
		}
	}
	if *deviceKind != "" {
		cfg.Device.Kind = *deviceKind
	}
	if *recording != "" {
		cfg.Device.RecordingID = *recording
	}
	cfg.Server.Addr = firstNonEmpty(*addr, cfg.Server.Addr)
	cfg.Plugins.Dir = firstNonEmpty(*pluginDir, cfg.Plugins.Dir, filepath.Join(dataDir, "plugins"))
	cfg.Server.StaticDir = firstNonEmpty(cfg.Server.StaticDir, findWebDir(dataDir))
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	a, err := app.New(app.Options{Config: cfg, Store: st})
	if err != nil {
		log.Fatalf("Failed to start tracking: %v", err)
	}
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		log.Printf("Plugin discovery failed: %v", err)
	}
	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start pipeline: %v", err)
	}

	if cfg.Server.StaticDir != "" {
		fmt.Printf("Serving static files from: %s\n", cfg.Server.StaticDir)
	}
	srv := server.New(server.Config{App: a, StaticDir: cfg.Server.StaticDir})
	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Server.Addr)
		if err := srv.ListenAndServe(cfg.Server.Addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	if *noTray {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down")
		return
	}
	runTray(a, cfg.Server.Addr)
}

// runTray blocks on the menu loop until Quit is chosen.
func runTray(a *app.App, addr string) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnTrack(a.SetTrack)
	t.OnRecord(func(recording bool) error {
		var err error
		if recording {
			_, err = a.StartRecording("")
		} else {
			_, err = a.StopRecording()
		}
		if err != nil {
			log.Printf("Recording toggle failed: %v", err)
		}
		return err
	})
	t.OnSettings(func() {
		if err := openBrowser(settingsURL(addr)); err != nil {
			log.Printf("Failed to open settings: %v", err)
		}
	})
	t.OnQuit(func() { log.Println("Shutting down") })

	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			if ev := a.LastEvent(); ev != nil {
				t.SetLastEvent(strings.TrimSpace(string(ev.Kind) + " " + string(ev.Handedness)))
			}
			t.SetRecording(a.Recording() != nil)
		}
	}()

	t.Run()
}

func dataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(homeDir, ".mudra")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if absPath, err := filepath.Abs(p); err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
