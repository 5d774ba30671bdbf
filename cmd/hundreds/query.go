package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"
)

// Exit codes for the query command.
const (
	ExitSuccess            = 0
	ExitFailure            = 1
	ExitRejected           = 2
	ExitGatewayUnavailable = 3
)

var (
	queryMessage    string
	queryGatewayURL string
	queryAPIKey     string
	queryStream     bool
	queryTimeout    int
	querySessionID  string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Send a one-shot question to a running HTTP gateway",
	Long: `Send a question to the hundreds HTTP gateway and print the reply.
Pass --session-id to continue an existing session; the session ID of every
reply is printed on stderr.

Examples:
  hundreds query -m "How many Test hundreds does Joe Root have?"
  hundreds query -m "Tell me about Sachin Tendulkar" --stream

Exit codes:
  0  success
  1  failure
  2  rejected (bad request, unauthorized or rate limited)
  3  gateway unavailable`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryMessage, "message", "m", "", "question to send (required)")
	queryCmd.Flags().StringVar(&queryGatewayURL, "gateway-url", "http://localhost:8080", "gateway HTTP API URL")
	queryCmd.Flags().StringVar(&queryAPIKey, "api-key", "", "API key for gateway authentication (or HUNDREDS_API_KEY env)")
	queryCmd.Flags().BoolVar(&queryStream, "stream", false, "stream the reply via SSE")
	queryCmd.Flags().IntVar(&queryTimeout, "timeout", 30, "timeout in seconds")
	queryCmd.Flags().StringVar(&querySessionID, "session-id", "", "session to continue")

	_ = queryCmd.MarkFlagRequired("message")
}

func runQuery(_ *cobra.Command, _ []string) error {
	if strings.TrimSpace(queryMessage) == "" {
		return fmt.Errorf("message is required: use -m flag")
	}

	// The gateway may run without authentication, so the key is optional.
	apiKey := goutils.Env("HUNDREDS_API_KEY", queryAPIKey)
	gatewayURL := strings.TrimRight(goutils.Env("HUNDREDS_GATEWAY_URL", queryGatewayURL), "/")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(queryTimeout)*time.Second)
	defer cancel()

	if queryStream {
		os.Exit(runQuerySSE(ctx, gatewayURL, apiKey))
	}
	os.Exit(runQueryHTTP(ctx, gatewayURL, apiKey))
	return nil
}

func newQueryRequest(ctx context.Context, url, apiKey string) (*http.Request, error) {
	body, err := json.Marshal(map[string]string{
		"message":    queryMessage,
		"session_id": querySessionID,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// runQueryHTTP sends a synchronous query, prints the reply and returns the exit code.
func runQueryHTTP(ctx context.Context, gatewayURL, apiKey string) int {
	req, err := newQueryRequest(ctx, gatewayURL+"/v1/query", apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitFailure
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach gateway at %s: %v\n", gatewayURL, err)
		return ExitGatewayUnavailable
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		var result struct {
			Reply         string `json:"reply"`
			Kind          string `json:"kind"`
			SessionID     string `json:"session_id"`
			CorrelationID string `json:"correlation_id"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			fmt.Fprintf(os.Stderr, "Error: decoding reply: %v\n", err)
			return ExitFailure
		}
		fmt.Println(result.Reply)
		fmt.Fprintf(os.Stderr, "\n[kind=%s session_id=%s correlation_id=%s]\n",
			result.Kind, result.SessionID, result.CorrelationID)
		return ExitSuccess

	case http.StatusBadRequest, http.StatusNotFound:
		fmt.Fprintf(os.Stderr, "Error: request rejected: %s\n", strings.TrimSpace(string(respBody)))
		return ExitRejected

	case http.StatusUnauthorized:
		fmt.Fprintln(os.Stderr, "Error: unauthorized (check API key)")
		return ExitRejected

	case http.StatusTooManyRequests:
		fmt.Fprintln(os.Stderr, "Error: rate limited, try again later")
		return ExitRejected

	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		fmt.Fprintf(os.Stderr, "Error: gateway unavailable (%d)\n", resp.StatusCode)
		return ExitGatewayUnavailable

	default:
		fmt.Fprintf(os.Stderr, "Error: gateway returned %d: %s\n", resp.StatusCode, string(respBody))
		return ExitFailure
	}
}

// runQuerySSE sends a streaming query and prints events as they arrive.
func runQuerySSE(ctx context.Context, gatewayURL, apiKey string) int {
	req, err := newQueryRequest(ctx, gatewayURL+"/v1/query/stream", apiKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitFailure
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach gateway at %s: %v\n", gatewayURL, err)
		return ExitGatewayUnavailable
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		fmt.Fprintln(os.Stderr, "Error: unauthorized (check API key)")
		return ExitRejected
	case http.StatusNotFound:
		fmt.Fprintln(os.Stderr, "Error: streaming is not enabled on this gateway")
		return ExitRejected
	default:
		body, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Error: gateway returned %d: %s\n", resp.StatusCode, string(body))
		return ExitFailure
	}

	return readSSE(ctx, resp.Body, os.Stdout, os.Stderr)
}

// readSSE prints the events of a query stream and returns the exit code.
// Reply text goes to out, everything else to errOut.
func readSSE(ctx context.Context, body io.Reader, out, errOut io.Writer) int {
	scanner := bufio.NewScanner(body)
	exitCode := ExitSuccess

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var event struct {
			Type      string `json:"type"`
			Content   string `json:"content"`
			Kind      string `json:"kind"`
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "session":
			fmt.Fprintf(errOut, "[session_id=%s]\n", event.SessionID)
		case "reply":
			fmt.Fprintln(out, event.Content)
		case "error":
			fmt.Fprintf(errOut, "Error: %s\n", event.Content)
			exitCode = ExitFailure
		case "done":
			return exitCode
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(errOut, "Error: stream interrupted: %v\n", err)
		return ExitFailure
	}
	return exitCode
}
