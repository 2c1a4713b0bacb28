// Command dashboard is the terminal client: it follows the server's signal
// stream, renders the live table and drives push enrollment.
package main

import (
	"context"
	"flag"
	"strings"

	"go.uber.org/zap"

	"signalboard/client/board"
	"signalboard/client/enroll"
	"signalboard/client/stream"
	"signalboard/client/ui"
	"signalboard/pkg/logger"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8000", "signal server base URL")
	relayURL := flag.String("relay", "http://127.0.0.1:8800", "notification relay base URL")
	flag.Parse()

	logger.Init()
	defer logger.GetLogger().Sync()

	base := strings.TrimRight(*serverURL, "/")

	b := board.New()
	flow := enroll.NewFlow(base, *relayURL)
	dash := ui.New(b, flow)

	client := stream.New(stream.Config{
		URL:      base + "/events",
		Handler:  dash.HandleMessage,
		OnStatus: dash.SetStatus,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Stream terminated", zap.Error(err))
		}
	}()

	if err := dash.Run(); err != nil {
		logger.Fatal("Dashboard error", zap.Error(err))
	}
}
