package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"printcore/host/i2c"
	"printcore/host/serial"
	"printcore/standalone"
	"printcore/standalone/config"
)

var (
	configPath = flag.String("config", "printcore.yaml", "Machine descriptor (JSON or YAML)")
	mmuDevice  = flag.String("mmu", "", "MMU2 serial device, overrides the descriptor")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", *configPath, err)
	}
	if *mmuDevice != "" {
		cfg.MMU.Enabled = true
		cfg.MMU.Device = *mmuDevice
	}

	med, closer, err := standalone.OpenMedium(cfg.Storage, i2c.Opener)
	if err != nil {
		return fmt.Errorf("open settings medium: %w", err)
	}
	defer closer.Close()

	opts := standalone.Options{
		Output: func(line string) { fmt.Println(line) },
	}
	if cfg.MMU.Enabled && cfg.MMU.Device != "" {
		sc := serial.DefaultConfig(cfg.MMU.Device)
		if cfg.MMU.Baud > 0 {
			sc.Baud = cfg.MMU.Baud
		}
		link, err := serial.OpenLink(sc)
		if err != nil {
			return fmt.Errorf("open mmu link: %w", err)
		}
		defer link.Close()
		opts.MMU = link
	}

	mgr, err := standalone.NewManagerWithConfig(cfg, opts)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	mgr.Console().SetDebugEnabled(*verbose)

	if err := mgr.Initialize(med); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := mgr.Start(); err != nil {
		log.Printf("stored settings not loaded: %v", err)
	}

	return serve(mgr, readLines(os.Stdin), os.Stdout)
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// serve feeds input lines to mgr and ticks it until the input ends or the
// printer halts
func serve(mgr *standalone.Manager, lines <-chan string, out io.Writer) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				mgr.WaitDevice(0)
				return nil
			}
			for i := 0; i < len(line); i++ {
				mgr.ProcessByte(line[i])
			}
			mgr.ProcessByte('\n')
			out.Write(mgr.GetOutput())
		case <-ticker.C:
			mgr.Tick()
		}
		if mgr.Halted() {
			return standalone.ErrHalted
		}
	}
}
