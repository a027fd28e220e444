package client_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/pratik-mahalle/infrasec/pkg/client"
)

// Example demonstrates basic usage of the InfraSec client
func Example() {
	// Create a new client
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	ctx := context.Background()

	// List active rules
	rules, err := c.Rules().List(ctx, &client.RuleListOptions{Status: "ACTIVE"})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Found %d active rules\n", rules.TotalItems)
}

// ExampleRuleService_Create demonstrates adding a rule and inspecting
// conflicts
func ExampleRuleService_Create() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	resp, err := c.Rules().Create(context.Background(), client.CreateRuleRequest{
		ID:          "s3-201",
		Name:        "S3 bucket public read",
		Description: "S3 bucket grants public read access via its ACL",
		Severity:    "HIGH",
		Pattern:     "config:acl=public-read",
		Remediation: "Set the bucket ACL to private and use bucket policies",
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Stored rule %s as %s\n", resp.Rule.ID, resp.Rule.Status)
	for _, conflict := range resp.Conflicts {
		fmt.Printf("Conflict with %s: %s\n", conflict.ConflictingRuleID, conflict.Description)
	}
}

// ExampleRuleService_Approve demonstrates the rule lifecycle
func ExampleRuleService_Approve() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	ctx := context.Background()

	if err := c.Rules().Approve(ctx, "s3-201"); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.IsInvalidState() {
			fmt.Println("Rule is not a candidate")
			return
		}
		log.Fatal(err)
	}

	fmt.Println("Rule approved")
}

// ExampleScanService_Content demonstrates scanning configuration content
func ExampleScanService_Content() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	content := `
resource "aws_s3_bucket" "logs" {
  bucket = "my-logs"
  acl    = "public-read"
}
`

	result, err := c.Scans().Content(context.Background(), "main.tf", content)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Scanned %d resources with %d rules\n", result.ResourceCount, result.RuleCount)
	for _, f := range result.Findings {
		fmt.Printf("  [%s] %s (%s:%d)\n", f.Severity, f.Description, f.FilePath, f.LineNumber)
	}
}

// ExampleRuleService_Feedback demonstrates recording triage feedback
func ExampleRuleService_Feedback() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	truePositive := true
	err := c.Rules().Feedback(context.Background(), "s3-201", client.FeedbackRequest{
		Triggered:      true,
		IsTruePositive: &truePositive,
	})
	if err != nil {
		log.Fatal(err)
	}

	metrics, err := c.Rules().Metrics(context.Background(), "s3-201")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Effectiveness: %.2f\n", metrics.EffectivenessScore)
}

// ExampleClient_Health demonstrates checking API health
func ExampleClient_Health() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	health, err := c.Health(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("API Status: %s\n", health.Status)
}
