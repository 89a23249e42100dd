// Command ask queries a running finance RAG server.
//
//	ask -q "What was the revenue growth?" -doc q3.csv
//	ask -i                 interactive chat
//	ask -watch             tail pipeline events from NATS
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"finance-rag-be/internal/apiclient"
	"finance-rag-be/internal/dto"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/internal/tui"
	"finance-rag-be/pkg/events"
	pktNats "finance-rag-be/pkg/nats"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

var (
	bold    = color.New(color.Bold)
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	fail    = color.New(color.FgRed, color.Bold)
	muted   = color.New(color.FgHiBlack)
)

func main() {
	_ = godotenv.Load()

	server := flag.String("server", envOr("RAG_SERVER_URL", "http://localhost:3000"), "API base URL")
	query := flag.String("q", "", "question to ask")
	doc := flag.String("doc", "", "CSV document to upload with the question")
	session := flag.String("session", "", "session id to continue")
	interactive := flag.Bool("i", false, "interactive chat")
	watch := flag.Bool("watch", false, "print pipeline events from NATS")
	listTools := flag.Bool("tools", false, "list the tools the model can call")
	timeout := flag.Duration("timeout", 10*time.Minute, "request timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(*server, *timeout)

	var err error
	switch {
	case *watch:
		err = watchEvents(ctx, envOr("NATS_URL", "nats://localhost:4222"))
	case *interactive:
		_, err = tea.NewProgram(tui.New(client, *session), tea.WithAltScreen()).Run()
	case *listTools:
		err = printTools(ctx, client)
	case strings.TrimSpace(*query) != "":
		err = ask(ctx, client, *query, *doc, *session)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func ask(ctx context.Context, client *apiclient.Client, query, doc, session string) error {
	var (
		res *dto.ChatResponse
		err error
	)
	if doc != "" {
		muted.Printf("Uploading %s...\n", doc)
		res, err = client.Upload(ctx, doc, query, session)
	} else {
		res, err = client.Ask(ctx, dto.ChatRequest{Query: query, SessionID: session})
	}
	if err != nil {
		return err
	}

	for _, call := range res.ToolCalls {
		muted.Printf("[TOOL] %s %v -> %s\n", call.Name, call.Args, call.Result)
	}
	fmt.Println()
	bold.Println(res.Answer)
	fmt.Println()
	muted.Printf("route=%s stages=%s fragments=%d %dms session=%s\n",
		res.Route, strings.Join(res.Stages, ">"), res.Fragments, res.DurationMs, res.SessionID)
	if res.Generation != nil {
		success.Printf("Index rebuilt from %s (%d chunks)\n", res.Generation.Source, res.Generation.ChunkCount)
	}
	return nil
}

func printTools(ctx context.Context, client *apiclient.Client) error {
	specs, err := client.Tools(ctx)
	if err != nil {
		return err
	}
	for _, s := range specs {
		params := make([]string, len(s.Parameters))
		for i, p := range s.Parameters {
			params[i] = p.Name
		}
		bold.Printf("%s", s.Name)
		fmt.Printf("(%s)\n", strings.Join(params, ", "))
		muted.Printf("    %s\n", s.Description)
	}
	return nil
}

func watchEvents(ctx context.Context, natsURL string) error {
	sub, err := pktNats.NewSubscriber(natsURL, logger.NewNopLogger())
	if err != nil {
		return err
	}
	defer sub.Close()

	stopConsume, err := sub.Subscribe(ctx, pktNats.SubjectPrefix+".>", "", func(_ context.Context, e events.Event) error {
		line := fmt.Sprintf("%s %-18s %v", e.Timestamp().Local().Format(time.TimeOnly), e.EventType(), e.Payload())
		switch e.EventType() {
		case events.TypePipelineFailed:
			fail.Println(line)
		case events.TypeDocumentIngested:
			success.Println(line)
		default:
			fmt.Println(line)
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer stopConsume()

	muted.Printf("Watching %s on %s (Ctrl+C to stop)\n", pktNats.StreamName, natsURL)
	<-ctx.Done()
	return nil
}

func printError(err error) {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		fail.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fail.Fprintf(os.Stderr, "Error %s\n", apiErr.Error())
	for field, msg := range apiErr.Fields {
		warn.Fprintf(os.Stderr, "  %s %s\n", field, msg)
	}
	if apiErr.PartialAnswer != "" {
		warn.Fprintln(os.Stderr, "Partial answer:")
		fmt.Fprintln(os.Stderr, apiErr.PartialAnswer)
	}
	if apiErr.Retryable {
		warn.Fprintln(os.Stderr, "The upstream service failed; retrying may succeed.")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
