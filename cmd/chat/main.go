// Command chat runs the booking dialogue in the terminal. Logs go to
// stderr so stdout stays clean for the conversation.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/amedis-online/booking-agent/internal/amedis"
	appconfig "github.com/amedis-online/booking-agent/internal/config"
	"github.com/amedis-online/booking-agent/internal/flow"
	"github.com/amedis-online/booking-agent/internal/har"
	"github.com/amedis-online/booking-agent/internal/kb"
	"github.com/amedis-online/booking-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithWriter(cfg.LogLevel, os.Stderr)

	client := amedis.NewClient(logger.WithComponent("amedis"),
		amedis.WithBaseURL(cfg.AmedisBaseURL),
		amedis.WithTimeout(cfg.HTTPTimeout),
	)

	var knowledge *kb.KB
	if cfg.KBEnabled && cfg.KBPath != "" {
		loaded, err := kb.Load(cfg.KBPath)
		if err != nil {
			logger.Warn("knowledge base unavailable", "path", cfg.KBPath, "error", err)
		} else {
			knowledge = loaded
		}
	}

	controller := flow.NewController(client, logger.WithComponent("flow"), flow.WithKB(knowledge))

	state := &flow.State{}
	if cfg.HARPath != "" {
		capture := har.ParseFile(cfg.HARPath)
		if len(capture.PatientIDs) > 0 {
			fmt.Printf("HAR capture: patient ids %s", strings.Join(capture.PatientIDs, ", "))
			if capture.Insurer != "" {
				fmt.Printf(", insurer %q", capture.Insurer)
			}
			fmt.Println()
		}
	}

	fmt.Println("Amedis booking assistant. Type 'exit' to quit.")
	fmt.Println("Send your access token to begin (or just press enter to use the guest token).")

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Println("bye")
			return
		}
		if line == "" && state.Token == "" {
			line = cfg.GuestToken
		}
		fmt.Println(controller.Handle(ctx, state, line))
	}
}
