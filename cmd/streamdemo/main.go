package main

// Console demo streaming a completion from Venice's OpenAI-compatible API:
//   VENICE_API_KEY=... go run ./cmd/streamdemo "Why is the sky blue?"

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"careercatalyst-backend/internal/llm/openai"
)

const (
	veniceBaseURL = "https://api.venice.ai/api/v1"
	veniceModel   = "llama-3.3-70b"
)

func main() {
	_ = godotenv.Load(".env", "cmd/.env")

	apiKey := strings.TrimSpace(os.Getenv("VENICE_API_KEY"))
	if apiKey == "" {
		log.Fatal("VENICE_API_KEY is required")
	}

	question := "Why is the sky blue?"
	if len(os.Args) > 1 {
		question = strings.Join(os.Args[1:], " ")
	}

	client, err := openai.NewClient(apiKey, veniceModel, 120*time.Second,
		openai.WithBaseURL(veniceBaseURL),
		openai.WithHeader("X-Venice-Api-Key", apiKey),
	)
	if err != nil {
		log.Fatalf("client init: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := client.Stream(ctx, "", question, func(text string) {
		fmt.Print(text)
	})
	if err != nil {
		log.Fatalf("stream: %v", err)
	}

	fmt.Println()
	if result.Usage != nil {
		fmt.Printf("tokens: prompt=%d completion=%d total=%d\n",
			result.Usage.PromptTokens,
			result.Usage.CompletionTokens,
			result.Usage.TotalTokens,
		)
	}
	if result.FinishReason != "" {
		fmt.Printf("finish reason: %s\n", result.FinishReason)
	}
}
