package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EternisAI/silo-license/internal/api/http/dto"
)

func runIssue(args []string) error {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	server := fs.String("server", "http://localhost:8000", "Server URL (e.g., http://server:8000)")
	adminKey := fs.String("admin-key", "", "Admin API key, if the server requires one")
	product := fs.String("product", "", "Product ID")
	customer := fs.String("customer", "", "Customer ID")
	hardware := fs.String("hardware-id", "", "Bind the license to this hardware ID")
	features := fs.String("features", "", "Comma-separated feature list")
	days := fs.Int("days", 365, "License duration in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *product == "" {
		return fmt.Errorf("--product is required")
	}
	if *customer == "" {
		return fmt.Errorf("--customer is required")
	}

	req := dto.CreateLicenseRequest{
		ProductID:    *product,
		CustomerID:   *customer,
		Features:     splitFeatures(*features),
		DurationDays: days,
	}
	if *hardware != "" {
		req.HardwareID = hardware
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequest(http.MethodPost, strings.TrimRight(*server, "/")+"/api/licenses", bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if *adminKey != "" {
		httpReq.Header.Set("X-API-Key", *adminKey)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("license creation failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var created dto.LicenseResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Println("License created!")
	fmt.Printf("  ID:       %s\n", created.ID)
	fmt.Printf("  Key:      %s\n", created.Key)
	fmt.Printf("  Product:  %s\n", created.ProductID)
	fmt.Printf("  Customer: %s\n", created.CustomerID)
	fmt.Printf("  Expires:  %s\n", created.ExpiresAt.Format(time.RFC3339))
	if created.HardwareID != nil {
		fmt.Printf("  Hardware: %s\n", *created.HardwareID)
	}
	fmt.Printf("  Features: %s\n", strings.Join(created.Features, ", "))
	fmt.Println()
	fmt.Println("Add the following to your agent application.yaml:")
	fmt.Println()
	fmt.Printf("license:\n")
	fmt.Printf("  key: \"%s\"\n", created.Key)
	fmt.Printf("  api_url: %s\n", *server)

	return nil
}

// splitFeatures never returns nil so the request always carries a features array.
func splitFeatures(input string) []string {
	result := []string{}
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
