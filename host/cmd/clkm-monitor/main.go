// clkm-monitor talks to the console of a device running the clock manager:
// it forwards commands, follows the periodic status lines and summarises
// how the core clock moved.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"

	"freqscale/host/config"
	"freqscale/host/logger"
	"freqscale/host/mcu"
	"freqscale/host/monitor"
)

var (
	configPath = flag.String("config", "", "YAML configuration file (serial section)")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	verbose    = flag.Bool("verbose", false, "Print every status line")
	quiet      = flag.Bool("quiet", false, "Suppress informational output")
	timeout    = flag.Duration("timeout", 2*time.Second, "Reply timeout")
)

// session holds what the background reader has seen
type session struct {
	mu      sync.Mutex
	tracker monitor.Tracker
}

func main() {
	flag.Parse()
	logger.Quiet = *quiet

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			logger.Error("config: %v", err)
			os.Exit(1)
		}
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}

	conn := mcu.NewMCU()
	logger.Info("connecting to %s at %d baud", cfg.Serial.Device, cfg.Serial.Baud)
	if err := conn.ConnectWithConfig(cfg.SerialPort()); err != nil {
		logger.Error("connect: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	s := &session{}
	go s.follow(conn)

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return

		case "help", "?":
			printHelp()

		case "summary":
			s.printSummary()

		case "watch":
			d := 10 * time.Second
			if len(args) > 1 {
				if d, err = time.ParseDuration(args[1]); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					continue
				}
			}
			s.watch(d)

		default:
			reply, err := conn.Command(strings.Join(args, " "), *timeout)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Println(reply)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// follow drains the device streams until the connection closes
func (s *session) follow(conn *mcu.MCU) {
	for {
		select {
		case st := <-conn.Statuses():
			s.mu.Lock()
			before := len(s.tracker.Transitions)
			s.tracker.Add(st)
			changed := len(s.tracker.Transitions) != before
			s.mu.Unlock()
			if *verbose || changed {
				fmt.Printf("\n%s\n", st)
			}
			if !st.Consistent() {
				logger.Error("level %d reported at %d Hz", st.Level, st.Frequency)
			}
		case ev := <-conn.Events():
			fmt.Println(ev.Describe())
		case line := <-conn.Logs():
			logger.Info("%s", line)
		case <-conn.Done():
			if err := conn.Err(); err != nil {
				logger.Error("connection lost: %v", err)
			}
			return
		}
	}
}

// watch prints the summary after collecting status lines for d
func (s *session) watch(d time.Duration) {
	logger.Info("watching for %s", d)
	time.Sleep(d)
	s.printSummary()
}

func (s *session) printSummary() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &s.tracker
	if last, ok := t.Last(); ok {
		fmt.Println(last)
	}
	fmt.Printf("samples=%d transitions=%d avg=%.1fMHz inconsistent=%d restarts=%d\n",
		t.Samples(), len(t.Transitions), float64(t.AverageFrequency())/1e6, t.Inconsistent, t.Restarts)
	for l, ms := range t.Residency {
		if ms > 0 {
			fmt.Printf("  level %d: %d ms\n", l, ms)
		}
	}
}

func printHelp() {
	fmt.Println("\nDevice commands:")
	fmt.Println("  status                 - Current mode, level, frequency and load")
	fmt.Println("  mode manual <level>    - Fixed level")
	fmt.Println("  mode auto <floor>      - Load-driven scaling down to floor")
	fmt.Println("  level <level>          - Switch level (manual mode)")
	fmt.Println("  adjust <step>          - Move by step levels (manual mode)")
	fmt.Println("  events                 - Dump the clock event ring")
	fmt.Println("  stats                  - Switch counters")
	fmt.Println("\nLocal commands:")
	fmt.Println("  summary                - Summarise status lines seen so far")
	fmt.Println("  watch [duration]       - Collect for a while, then summarise")
	fmt.Println("  quit/exit/q            - Exit the program")
	fmt.Println()
}
