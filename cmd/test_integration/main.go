package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := os.Getenv("TAXGRAPH_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	steps := []struct {
		name, method, endpoint string
		check                  func(map[string]any) error
	}{
		{"Reload data", http.MethodPost, "/api/v1/reload", func(body map[string]any) error {
			if n, _ := body["nodes"].(float64); n == 0 {
				return fmt.Errorf("graph has no nodes, is DATA_DIR populated?")
			}
			return nil
		}},
		{"Reconcile", http.MethodPost, "/api/v1/reconcile", func(body map[string]any) error {
			if _, ok := body["summary"]; !ok {
				return fmt.Errorf("missing summary")
			}
			return nil
		}},
		{"Fraud patterns", http.MethodGet, "/api/v1/fraud/patterns", func(body map[string]any) error {
			if _, ok := body["summary"]; !ok {
				return fmt.Errorf("missing summary")
			}
			return nil
		}},
		{"Risk leaderboard", http.MethodGet, "/api/v1/risk/leaderboard?limit=5", nil},
		{"Alerts", http.MethodGet, "/api/v1/alerts?severity=CRITICAL", nil},
		{"Stats", http.MethodGet, "/api/v1/stats", nil},
	}

	for i, step := range steps {
		fmt.Printf("%d. %s...\n", i+1, step.name)
		body, ok := sendRequest(baseURL, step.method, step.endpoint)
		if ok && step.check != nil {
			if err := step.check(body); err != nil {
				fmt.Printf("Check failed: %v\n", err)
				ok = false
			}
		}
		if !ok {
			fmt.Printf("FAILED: %s\n", step.name)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", step.name)
	}
}

func sendRequest(baseURL, method, endpoint string) (map[string]any, bool) {
	req, err := http.NewRequest(method, baseURL+endpoint, nil)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}

	var body map[string]any
	if err := json.Unmarshal(respBody, &body); err != nil {
		fmt.Printf("Invalid JSON response: %v\n", err)
		return nil, false
	}
	if len(respBody) > 300 {
		respBody = respBody[:300]
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return body, true
}
