// Command telnetd-demo is a minimal MUD-style server exercising
// package conn end to end: it accepts connections, drives each one's
// TerminalEvent stream on its own goroutine, and renders a live admin
// console of connection stats. It is a consumer of the core, not part
// of its tested contract.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/drake/telnetd/conn"
)

func main() {
	configPath := flag.String("config", "telnetd-demo.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telnetd-demo: config:", err)
		os.Exit(1)
	}

	reg := newRegistry()
	logger := log.New(os.Stderr, "telnetd-demo: ", log.LstdFlags)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "telnetd-demo: listen:", err)
		os.Exit(1)
	}
	defer ln.Close()

	go acceptLoop(ln, cfg, reg, logger)

	model := newAdminModel(reg, cfg.ListenAddr, cfg.RefreshInterval)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "telnetd-demo:", err)
		os.Exit(1)
	}
}

func acceptLoop(ln net.Listener, cfg Config, reg *registry, logger *log.Logger) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			logger.Printf("accept: %v", err)
			return
		}
		h := conn.New(nc, conn.Config{
			Flush:  flushStrategyFromConfig(cfg),
			Sink:   reg,
			Logger: logger,
		})
		reg.add(h, nc.RemoteAddr().String())
		h.Send(cfg.Welcome, true)
		go echoLoop(h, cfg.IdleTimeout)
	}
}

func flushStrategyFromConfig(cfg Config) conn.FlushStrategy {
	switch cfg.FlushStrategy {
	case "immediate":
		return conn.Immediate()
	case "threshold":
		return conn.OnThreshold(cfg.FlushThreshold)
	case "manual":
		return conn.Manual()
	default:
		return conn.OnNewline()
	}
}
