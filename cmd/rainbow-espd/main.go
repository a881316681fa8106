// Command rainbow-espd runs the Rainbow ESP firmware emulator: the CPU
// byte-stream protocol engine plus its admin HTTP surface, wired together
// the way cmd/outline-cli-ws wires its VPN manager and metrics server.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rainbow-espd/internal/adminhttp"
	"rainbow-espd/internal/config"
	"rainbow-espd/internal/protocol"
	"rainbow-espd/internal/wslink"
)

func main() {
	var cfgPath string
	var unit bool
	flag.StringVar(&cfgPath, "c", "config.yaml", "config path")
	flag.BoolVar(&unit, "unit", false, "run as a line-oriented unit harness over stdin/stdout instead of serving")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(cfgPath); err == nil {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	engine := protocol.New(wslink.NewGorillaDialer(), cfg.Server.URL)
	defer engine.Shutdown()

	if unit {
		runUnitHarness(engine)
		return
	}

	admin := adminhttp.New(engine, cfg.Admin.Listen)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := admin.Serve(); err != nil {
			log.Printf("admin http server stopped: %v", err)
			cancel()
		}
	}()
	log.Printf("admin http listening on %s", cfg.Admin.Listen)
	log.Printf("server link target %s", cfg.Server.URL)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		log.Printf("shutting down...")
	case <-ctx.Done():
	}
	_ = admin.Shutdown(context.Background())
}

// runUnitHarness drives the engine from stdin/stdout for integration with
// an external emulator process or test harness: each input line holds one
// or more hex-encoded bytes fed to RX in order, and every tx byte produced along the way is
// written back as a hex-encoded line.
func runUnitHarness(engine *protocol.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			log.Printf("rainbow: bad hex line %q: %v", line, err)
			continue
		}
		for _, b := range raw {
			engine.RX(b)
		}
		for engine.GetGPIO15() {
			fmt.Println(hex.EncodeToString([]byte{engine.TX()}))
		}
	}
}
