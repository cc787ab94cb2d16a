package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/wabot/internal/client"
	"github.com/matheus3301/wabot/internal/config"
	"github.com/matheus3301/wabot/internal/paths"
	"github.com/matheus3301/wabot/internal/tui"
)

func main() {
	addrFlag := flag.String("addr", "", "daemon admin address (overrides config)")
	flag.Parse()

	addr := *addrFlag
	if addr == "" {
		if cfg, err := config.Load(paths.ConfigPath()); err == nil {
			addr = cfg.ListenAddr
		}
	}

	c := client.New(addr)

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(c) {
		fmt.Fprintln(os.Stderr, "daemon not running, starting...")
		if err := startDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(c, 10*time.Second) {
			fmt.Fprintln(os.Stderr, "daemon did not become ready")
			os.Exit(1)
		}
	}

	app := tui.NewApp(c)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon checks if a daemon answers on the admin API.
func probeDaemon(c *client.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Status(ctx)
	return err == nil
}

func startDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	wabotd := filepath.Join(filepath.Dir(executable), "wabotd")

	if _, err := os.Stat(wabotd); err != nil {
		wabotd = "wabotd"
	}

	cmd := exec.Command(wabotd)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// waitForDaemon polls with a real status call (not just a TCP connect).
func waitForDaemon(c *client.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(c) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
