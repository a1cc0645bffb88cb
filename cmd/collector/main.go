package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xivstats/collector/internal/bridge"
	"github.com/xivstats/collector/internal/config"
	"github.com/xivstats/collector/internal/core/event"
	"github.com/xivstats/collector/internal/correlate"
	"github.com/xivstats/collector/internal/data"
	"github.com/xivstats/collector/internal/emit"
	"github.com/xivstats/collector/internal/poller"
	"github.com/xivstats/collector/internal/scripting"
	"github.com/xivstats/collector/internal/stats"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner() {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        xivstats collector  v0.1.0         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m     game session statistics sampler       \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main collector logic ──────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/collector.toml"
	if p := os.Getenv("XIVSTATS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner()

	// 3. Load static game data
	printSection("game data")

	itemTable, err := data.LoadItemTable("data/yaml/item_list.yaml")
	if err != nil {
		return fmt.Errorf("load item table: %w", err)
	}
	printStat("item templates", itemTable.Count())

	worldTable, err := data.LoadWorldTable("data/yaml/world_list.yaml")
	if err != nil {
		return fmt.Errorf("load world table: %w", err)
	}
	printStat("worlds", worldTable.Count())

	jobTable, err := data.LoadJobTable("data/yaml/job_list.yaml")
	if err != nil {
		return fmt.Errorf("load job table: %w", err)
	}
	printStat("class/jobs", jobTable.Count())

	questTable, err := data.LoadQuestTable("data/yaml/quest_list.yaml")
	if err != nil {
		return fmt.Errorf("load quest table: %w", err)
	}
	printStat("main scenario quests", questTable.Count())

	questChain := stats.NewQuestChain()
	questChain.BuildAsync(questTable, log)
	fmt.Println()

	// 4. Event bus and subsystem host
	printSection("subsystems")

	bus := event.NewBus()
	engine, err := scripting.NewEngine(cfg.Bridge.ScriptsDir, bus, log)
	if err != nil {
		return fmt.Errorf("subsystem host: %w", err)
	}
	defer engine.Close()
	printOK("subsystem host ready")

	resolver := bridge.NewResolver(engine)
	clk := clock.New()

	charBridge := bridge.NewCharacterBridge()
	fleetBridge := bridge.NewFleetBridge()
	sessionBridge := bridge.NewSessionBridge()

	connCfg := func(name string) bridge.ConnectorConfig {
		return bridge.ConnectorConfig{
			SubsystemName:  name,
			ProbeBase:      cfg.Bridge.ProbeBase,
			ProbeIncrement: cfg.Bridge.ProbeIncrement,
			MaxAttempts:    cfg.Bridge.MaxAttempts,
		}
	}
	charConn := bridge.NewConnector(connCfg("inventory_tools"), resolver, bus, clk, log,
		charBridge.Connect, charBridge.Disconnect)
	fleetConn := bridge.NewConnector(connCfg("submarine_tracker"), resolver, bus, clk, log,
		fleetBridge.Connect, fleetBridge.Disconnect)
	sessionConn := bridge.NewConnector(connCfg("session"), resolver, bus, clk, log,
		sessionBridge.Connect, sessionBridge.Disconnect)

	charConn.Start()
	fleetConn.Start()
	sessionConn.Start()
	printOK("bridge probing started")
	fmt.Println()

	// 5. Local caches
	printSection("local caches")

	progCache := stats.NewProgressionCache(cfg.Poll.CacheDir, sessionBridge, questChain, bus, log)
	progCache.Start()
	printStat("cached characters", len(progCache.All()))

	creditCache := stats.NewCreditCache(cfg.Poll.CacheDir, sessionBridge, clk, log)
	printStat("cached organizations", len(creditCache.All()))
	fmt.Println()

	// The credit balance loads lazily on the foreign side; kick the retry
	// loop whenever a session starts.
	unsubCredits := event.Subscribe(bus, func(event.SessionLoggedIn) {
		go creditCache.Refresh()
	})
	defer unsubCredits()

	// 6. Correlation and emission
	rules := correlate.RulesFromConfig(cfg.Characters)
	correlator := correlate.NewEngine(log)
	generator := emit.NewGenerator(itemTable, worldTable, jobTable)

	client := emit.NewClient(cfg.Server, log)
	defer client.Close()

	printSection("statistics store")
	if client.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := client.TestConnection(ctx); err != nil {
			log.Warn("store connection test failed", zap.Error(err))
		} else {
			printOK(fmt.Sprintf("connected to %s", cfg.Server.URL))
		}
		cancel()
	} else {
		printOK("emission disabled, collecting only")
	}
	fmt.Println()

	filterNames := make([]string, 0, len(cfg.Filters))
	for _, f := range cfg.Filters {
		filterNames = append(filterNames, f.Name)
	}

	characterSource := func() bridge.CharacterSource {
		if charConn.State() == bridge.Connected {
			return charBridge
		}
		return bridge.StandInCharacterSource{}
	}
	fleetSource := func() bridge.FleetSource {
		if fleetConn.State() == bridge.Connected {
			return fleetBridge
		}
		return bridge.StandInFleetSource{}
	}

	poll := func() error {
		chars := characterSource()
		update, conflicts, err := correlator.Build(correlate.Input{
			Characters: chars.Characters(),
			Currencies: func(id uint64) stats.Currencies {
				return bridge.CurrencyTotals(chars.Inventory(id), chars.BagCapacity(id))
			},
			Fleets:      fleetSource().FleetsByOwner(),
			Progression: progCache.All(),
			Credits:     creditCache.All(),
			FilterItems: chars.FilterItems,
			Filters:     filterNames,
			Rules:       rules,
		})
		if err != nil {
			return err
		}
		for _, c := range conflicts {
			log.Warn("organization conflict, fleet withheld", zap.Error(c))
		}
		points := generator.Points(update, time.Now())
		if len(points) == 0 || !client.Enabled() {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.Write(ctx, points); err != nil {
			return err
		}
		log.Debug("batch written", zap.Int("points", len(points)))
		return nil
	}

	p := poller.New(cfg.Poll.Interval, poll, clk, log)
	p.Start()

	// A fresh session makes the previous sample stale immediately.
	unsubPoll := event.Subscribe(bus, func(event.SessionLoggedIn) {
		p.RefreshNow()
	})
	defer unsubPoll()

	printSection("collector ready")
	printReady(fmt.Sprintf("polling every %s", cfg.Poll.Interval))
	printReady(fmt.Sprintf("cache dir %s", cfg.Poll.CacheDir))
	fmt.Println()

	// 7. Wait for shutdown
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-shutdownCh
	log.Info("shutdown signal received", zap.String("signal", sig.String()))

	p.Stop()
	charConn.Stop()
	fleetConn.Stop()
	sessionConn.Stop()
	progCache.Stop()
	log.Info("collector stopped")
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
