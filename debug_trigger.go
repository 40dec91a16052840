package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
)

func main() {
	base := "http://localhost:8080"

	// Check the daemon is up
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		log.Fatalf("healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Printf("healthz: %s %s\n", resp.Status, body)

	// Trigger a release through the admin API
	payload, _ := json.Marshal(map[string]string{"type": "api", "repository": "testpypi"})
	resp, err = http.Post(base+"/api/release", "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("trigger: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Printf("trigger: %s %s\n", resp.Status, body)

	// Show daemon status and queue depth
	resp, err = http.Get(base + "/api/status?pretty=1")
	if err != nil {
		log.Fatalf("status: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Printf("status:\n%s\n", body)
}
