package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/janekbaraniewski/usagesync/internal/bus"
	"github.com/janekbaraniewski/usagesync/internal/config"
	"github.com/janekbaraniewski/usagesync/internal/core"
	"github.com/janekbaraniewski/usagesync/internal/history"
	"github.com/janekbaraniewski/usagesync/internal/notify"
	"github.com/janekbaraniewski/usagesync/internal/source"
	"github.com/janekbaraniewski/usagesync/internal/syncer"
	"github.com/janekbaraniewski/usagesync/internal/tui"
)

const historyRetention = 14 * 24 * time.Hour

func runDashboard() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := bus.New()
	defer signals.Close()

	store := config.NewFileStore()
	watcher, err := config.NewWatcher(signals, config.PreferencesPath(), config.ProvidersPath())
	if err != nil {
		log.Printf("config watcher disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	histStore, err := history.OpenStore(history.DefaultPath())
	if err != nil {
		log.Printf("poll history disabled: %v", err)
	} else {
		defer histStore.Close()
		if err := histStore.Prune(ctx, historyRetention); err != nil {
			log.Printf("history prune: %v", err)
		}
	}

	agent := source.NewAgentSource(source.ResolveSocketPath(), source.ResolveAgentBinary())

	model := tui.NewModel(store, signals)

	var program *tea.Program

	machine := notify.NewMachine(&programSink{program: &program})

	orchestrator := syncer.New(
		agent,
		store,
		machine,
		func(snaps []core.UsageSnapshot, prefs config.Preferences) {
			if program != nil {
				program.Send(tui.SnapshotsMsg{Snapshots: snaps, Preferences: prefs})
			}
		},
		func(msg string, sev syncer.StatusSeverity) {
			if program != nil {
				program.Send(tui.StatusMsg{Text: msg, Severity: sev})
			}
		},
		syncer.Options{},
	)
	orchestrator.SetSignals(signals)
	if histStore != nil {
		orchestrator.SetRecorder(histStore)
	}

	model.SetOnRefresh(orchestrator.ForceRefresh)
	model.SetOnCollapse(func(groupKey string, collapsed bool) {
		if err := store.SaveCollapsed(groupKey, collapsed); err != nil {
			log.Printf("persist collapse state: %v", err)
		}
	})
	if histStore != nil {
		model.SetSeriesSource(func(providerID string, limit int) ([]history.Point, error) {
			return histStore.RecentSeries(ctx, providerID, limit)
		})
	}

	program = tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		orchestrator.Run(ctx)
	}()
	go func() {
		for {
			state := orchestrator.State()
			program.Send(tui.StateMsg(state))
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("TUI error: %v", err)
	}
}

// programSink routes quota events into the running TUI as footer messages.
// The program pointer is set after the sink is constructed, so it is
// dereferenced per call.
type programSink struct {
	program **tea.Program
}

func (s *programSink) ShowDepleted(providerName, message string) error {
	return s.send(fmt.Sprintf("⚠ %s", message))
}

func (s *programSink) ShowRefreshed(providerName, message, providerID string) error {
	return s.send(fmt.Sprintf("✓ %s", message))
}

func (s *programSink) send(text string) error {
	if s.program == nil || *s.program == nil {
		return fmt.Errorf("notification sink not attached")
	}
	(*s.program).Send(tui.NotifyMsg{Text: text})
	return nil
}
