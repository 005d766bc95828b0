// clkm-sim replays a load profile against the clock manager running on a
// simulated STM32F1 and reports every level change.
//
// Usage:
//
//	clkm-sim                         random bursts with stock settings
//	clkm-sim -config clkm.yml        profile, tunables and faults from file
//	clkm-sim -trace switches.csv     also write the switch log as CSV
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"freqscale/core"
	"freqscale/host/config"
	"freqscale/host/logger"
	"freqscale/sim"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	seed := flag.Int64("seed", 0, "random profile seed (overrides config)")
	windows := flag.Int("windows", 0, "random profile minutes (overrides config)")
	tracePath := flag.String("trace", "", "write switches as CSV to this file")
	dump := flag.Bool("events", false, "dump the event ring at the end")
	quiet := flag.Bool("quiet", false, "only print the summary")
	flag.Parse()

	logger.Quiet = *quiet

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if r := cfg.Profile.Random; r != nil {
		if *seed != 0 {
			r.Seed = *seed
		}
		if *windows > 0 {
			r.Windows = *windows
		}
	}

	switches, err := run(cfg, *dump)
	if err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}

	if *tracePath != "" {
		if err := writeTrace(*tracePath, switches); err != nil {
			logger.Error("trace: %v", err)
			os.Exit(1)
		}
	}
}

func run(cfg *config.Config, dump bool) ([]sim.Switch, error) {
	sys, err := sim.NewSystem(cfg.CoreConfig(), cfg.BoardOptions()...)
	if err != nil {
		return nil, fmt.Errorf("boot: %w", err)
	}
	m := sys.Manager

	if !m.ProbeExternalOscillator(1000) {
		logger.Info("no HSE, PLL levels unavailable")
	}

	if err := m.SetFixedLevel(core.Level(cfg.Manager.StartLevel)); err != nil {
		logger.Error("start level %d: %v", cfg.Manager.StartLevel, err)
	}
	if cfg.Mode() == core.ModeAutomatic {
		if err := m.SetMode(core.ModeAutomatic, *cfg.Manager.Floor); err != nil {
			return nil, fmt.Errorf("auto mode: %w", err)
		}
	}
	logger.Info("%s", m.StatusLine())

	profile := cfg.BuildProfile()
	logger.Info("replaying %d phases, %d ms", len(profile), profile.Duration())

	var switches []sim.Switch
	var watcher core.FrequencyWatcher
	var retunes int
	watcher.Changed(m.GetCurrentFrequency())

	loop := sim.NewLoop(sys)
	loop.OnSwitch = func(s sim.Switch) {
		switches = append(switches, s)
		logger.Info("t=%dms load=%d%% level %d -> %d (%d MHz)", s.Tick, s.Load, s.From, s.To, s.Freq/1000000)
	}
	loop.OnPass = func(tick uint32) {
		// Stands in for a UART re-deriving its baud divider
		if _, changed := watcher.Changed(m.GetCurrentFrequency()); changed {
			retunes++
		}
	}
	loop.RunProfile(profile)

	if dump {
		core.SetDebugWriter(func(s string) { fmt.Println(s) })
		m.DumpEvents()
	}

	printSummary(sys, switches, retunes)
	return switches, nil
}

func printSummary(sys *sim.System, switches []sim.Switch, retunes int) {
	m := sys.Manager
	s := m.Stats()

	var ups, downs int
	for _, sw := range switches {
		if sw.Delta < 0 {
			ups++
		} else {
			downs++
		}
	}

	fmt.Println(m.StatusLine())
	fmt.Printf("switches=%d up=%d down=%d failed=%d rollbacks=%d rollback_failures=%d retunes=%d\n",
		s.Switches, ups, downs, s.FailedSwitches, s.Rollbacks, s.RollbackFailures, retunes)
	if v := sys.Board.RCC.Violations; len(v) > 0 {
		fmt.Printf("hardware rule violations: %d\n", len(v))
		for _, msg := range v {
			fmt.Printf("  %s\n", msg)
		}
	}
}

func writeTrace(path string, switches []sim.Switch) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"tick_ms", "from", "to", "freq_hz", "load"})
	for _, s := range switches {
		w.Write([]string{
			strconv.FormatUint(uint64(s.Tick), 10),
			strconv.Itoa(int(s.From)),
			strconv.Itoa(int(s.To)),
			strconv.FormatUint(uint64(s.Freq), 10),
			strconv.Itoa(int(s.Load)),
		})
	}
	w.Flush()
	return w.Error()
}
