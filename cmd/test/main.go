package main

import (
	"fmt"
	"os"
	"time"
)

// -----------------------------------------------------------------------------
// Smoke harness: boots the full gateway on a local port with the sim feed
// and drives it over a real websocket client. Prints a pass/fail report.
// -----------------------------------------------------------------------------

type scenarioResult struct {
	Name   string
	Passed bool
	Detail string
}

// -----------------------------------------------------------------------------

func main() {
	fmt.Println("=== market-gateway smoke harness ===")

	stack, err := bootStack()
	if err != nil {
		fmt.Printf("FATAL: failed to boot stack: %v\n", err)
		os.Exit(1)
	}
	defer stack.shutdown()

	// Give the server and the sim feed a moment to come up
	time.Sleep(2 * time.Second)

	results := []scenarioResult{
		scenarioRejectBadToken(stack),
		scenarioSubscribeOrdered(stack),
		scenarioAnalyzeTechnical(stack),
		scenarioAnalyzePartial(stack),
		scenarioAnalyzeWithNews(stack),
		scenarioUnsubscribe(stack),
	}

	fmt.Println()
	failed := 0
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed++
		}
		fmt.Printf("[%s] %s", status, r.Name)
		if r.Detail != "" {
			fmt.Printf(" - %s", r.Detail)
		}
		fmt.Println()
	}

	fmt.Printf("\n%d/%d scenarios passed\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}
