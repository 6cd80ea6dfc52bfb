package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/pedalcast/pedalcast/pkg/cast"
	"github.com/pedalcast/pedalcast/pkg/log"
	"github.com/pedalcast/pedalcast/pkg/settings"
	"github.com/pedalcast/pedalcast/pkg/signal"
)

func main() {
	prefs, err := settings.Load()
	if err != nil {
		log.Warnf("settings: %v", err)
	}

	var (
		server  string
		code    string
		timeout int
		debug   bool
	)
	pflag.StringVarP(&server, "server", "s", prefs.ServerURL, "signald base URL")
	pflag.StringVarP(&code, "code", "c", "", "Pairing code to listen on (generated when empty)")
	pflag.IntVarP(&timeout, "timeout", "t", prefs.JoinTimeout, "Seconds to wait for a phone before failing (0 disables)")
	pflag.BoolVarP(&debug, "debug", "d", false, "Verbose logging")
	pflag.Parse()

	log.Setup(debug)

	sub := signal.NewWebsocketSubscriber(signal.WebsocketBaseURL(server))
	store := cast.NewHTTPStore(server)

	m := newModel(sub, store, code, time.Duration(timeout)*time.Second)

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		log.Fatalf("castview: %v", err)
	}

	prefs.ServerURL = server
	if fm, ok := final.(*model); ok && fm.code != "" {
		prefs.LastCode = fm.code
	}
	if err := settings.Save(prefs); err != nil {
		log.Warnf("settings: %v", err)
	}
}
