// Command chat is a terminal client holding a single conversation session.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"academy-assistant/internal/app"
	"academy-assistant/internal/chat"
	"academy-assistant/internal/config"
)

const banner = `Academy assistant. Commands: /clear, /history, /quit`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	// Logs go to stderr so they do not interleave with the conversation.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	session, err := chat.NewSession(a.LLM,
		chat.WithSystemPrompt(cfg.SystemPrompt),
		chat.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to start session", "err", err)
		os.Exit(1)
	}

	if err := run(ctx, session, os.Stdin, os.Stdout); err != nil {
		logger.Error("chat ended", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, session *chat.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, banner)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/clear":
			session.Clear()
			fmt.Fprintln(out, "(conversation cleared)")
			continue
		case "/history":
			for _, m := range session.History() {
				fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
			}
			continue
		}

		reply := session.Send(ctx, line)
		fmt.Fprintln(out, reply.Content)
		if ctx.Err() != nil {
			return nil
		}
	}
}
