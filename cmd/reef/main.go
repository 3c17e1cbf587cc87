package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nevindra/reef"
	"github.com/nevindra/reef/internal/config"
	"github.com/nevindra/reef/observer"
	"github.com/nevindra/reef/provider/anthropic"
	"github.com/nevindra/reef/store/sqlite"
)

// clockTool reports the current time. It exists so the REPL has at least
// one dispatchable tool out of the box.
type clockTool struct{}

func (clockTool) Definitions() []reef.ToolDeclaration {
	return []reef.ToolDeclaration{{
		Name:        "current_time",
		Description: "Returns the current date and time in RFC 3339 format.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
	}}
}

func (clockTool) Execute(ctx context.Context, name string, args json.RawMessage) (reef.ToolResult, error) {
	return reef.ToolResult{Content: time.Now().Format(time.RFC3339)}, nil
}

func main() {
	// 1. Load config
	cfg := config.Load(os.Getenv("REEF_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// 2. Create transport
	var opts []anthropic.Option
	if cfg.Anthropic.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Anthropic.BaseURL))
	}
	base, err := anthropic.New(cfg.Anthropic.APIKey, opts...)
	if err != nil {
		log.Fatal(err)
	}

	var transport reef.Transport = base
	if cfg.Retry.Enabled {
		transport = reef.WithRetry(transport,
			reef.RetryMaxAttempts(cfg.Retry.MaxAttempts),
			reef.RetryBaseDelay(time.Duration(cfg.Retry.BaseDelayMs)*time.Millisecond),
			reef.RetryLogger(logger),
		)
	}

	var tool reef.Tool = clockTool{}

	// 3. Optional observability
	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{InputPerMillion: p.Input, OutputPerMillion: p.Output}
		}
		inst, shutdown, err := observer.Init(context.Background(), pricing)
		if err != nil {
			log.Fatal(err)
		}
		defer shutdown(context.Background())
		transport = observer.WrapTransport(transport, inst)
		tool = observer.WrapTool(tool, inst)
	}

	// 4. Create store
	store := sqlite.New(cfg.Database.Path)
	if err := store.Init(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// 5. Create agent
	tools := &reef.ToolConfig{
		Tool:          reef.NewToolRegistry(tool),
		MaxRecursions: cfg.Agent.ToolMaxRecursions,
	}
	agent, err := reef.New(cfg.Agent.Name, cfg.Agent.Description, transport, tools,
		reef.WithModel(cfg.Anthropic.Model),
		reef.WithStreaming(cfg.Agent.Streaming),
		reef.WithInference(inferenceFromConfig(cfg.Agent)),
		reef.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}

	// 6. REPL
	userID := "local"
	sessionID := uuid.NewString()
	fmt.Printf("reef session %s (ctrl-d to exit)\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if err := turn(context.Background(), agent, store, userID, sessionID, input, cfg.Agent); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func turn(ctx context.Context, agent *reef.Agent, store *sqlite.Storage, userID, sessionID, input string, cfg config.AgentConfig) error {
	history, err := store.History(ctx, userID, sessionID, cfg.HistoryLimit)
	if err != nil {
		return err
	}

	req := reef.Request{
		Input:     input,
		UserID:    userID,
		SessionID: sessionID,
		History:   history,
	}

	var reply reef.ConversationMessage
	if cfg.Streaming {
		ch := make(chan reef.StreamChunk)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for chunk := range ch {
				if chunk.Text != "" {
					fmt.Print(chunk.Text)
				}
			}
			fmt.Println()
		}()
		reply, err = agent.RespondStream(ctx, req, ch)
		<-done
	} else {
		reply, err = agent.Respond(ctx, req)
		if err == nil {
			fmt.Println(reply.FirstText())
		}
	}
	if err != nil {
		return err
	}

	if err := store.SaveMessage(ctx, userID, sessionID, reef.UserMessage(input)); err != nil {
		return err
	}
	return store.SaveMessage(ctx, userID, sessionID, reply)
}

func inferenceFromConfig(cfg config.AgentConfig) reef.InferenceConfig {
	var inf reef.InferenceConfig
	if cfg.MaxTokens > 0 {
		inf.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		inf.Temperature = &cfg.Temperature
	}
	if cfg.TopP > 0 {
		inf.TopP = &cfg.TopP
	}
	inf.StopSequences = cfg.StopSequences
	return inf
}
