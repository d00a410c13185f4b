package main

import (
	"log"
	"time"

	"github.com/rahul/casepilot/internal/agent"
	"github.com/rahul/casepilot/internal/gateway"
	"github.com/rahul/casepilot/internal/observability"
	"github.com/rahul/casepilot/internal/runner"
	"github.com/spf13/cobra"
)

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled test cases and answer chat commands",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	observability.PrintBanner()
	observability.InitializeTerminal()
	defer observability.CleanupTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	r, drv, err := newRunner(cfg, newLogger(cfg, observability.NewTermWriter()))
	if err != nil {
		return err
	}
	defer drv.Close()
	r.Recorder = st

	// One browser serves the scheduler and every chat.
	shared := &runner.Serialized{Runner: r}
	commands := &gateway.Commands{Cases: st, Runner: shared}

	router := gateway.NewRouter()
	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, commands, tgCfg.AllowedChats)
		if err != nil {
			return err
		}
		router.Add("telegram", tg)
	}
	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, commands)
		if err != nil {
			return err
		}
		router.Add("discord", dc)
	}
	if len(router.Gateways) == 0 {
		log.Println("[Serve] No chat gateway enabled; schedules run without notifications")
	}

	var messenger agent.Messenger
	if len(router.Gateways) > 0 {
		messenger = router
	}
	scheduler := agent.NewScheduler(st, shared, messenger)
	if secs := cfg.Runner.ScheduleIntervalSeconds; secs > 0 {
		scheduler.Interval = time.Duration(secs) * time.Second
	}
	go scheduler.Start(ctx)

	// Live status line (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				r.Logger.LogHeartbeat()
			}
		}
	}()

	fatal := make(chan error, len(router.Gateways))
	for name, g := range router.Gateways {
		name, g := name, g
		go func() {
			if err := g.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] %s GATEWAY CRITICAL ERROR: %v\033[0m", name, err)
				fatal <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-fatal:
	}

	for name, g := range router.Gateways {
		if stopErr := g.Stop(); stopErr != nil {
			log.Printf("[Serve] stopping %s: %v", name, stopErr)
		}
	}

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] CASEPILOT STOPPED. GOODBYE.\033[0m")
	return err
}
