package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// buildBinary compiles the service into dir
func buildBinary(t *testing.T, dir string) string {
	t.Helper()
	binaryPath := filepath.Join(dir, "tudonav-test")
	buildCmd := exec.Command("go", "build", "-o", binaryPath, ".")
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, output)
	}
	return binaryPath
}

// TestSimulateCommand runs the built binary in --simulate mode
func TestSimulateCommand(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test (set RUN_INTEGRATION_TESTS=1 to run)")
	}

	tmpDir := t.TempDir()
	binaryPath := buildBinary(t, tmpDir)
	output := filepath.Join(tmpDir, "map.png")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "--simulate", "--steps=500", "--output="+output,
		"--config="+filepath.Join(tmpDir, "none.yaml"))
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("simulate failed: %v\n%s", err, out)
	}

	for _, expected := range []string{"tudonav version:", "Simulating", "Finished after", "Map written to"} {
		if !strings.Contains(string(out), expected) {
			t.Errorf("Expected output to contain '%s'.\nFull output:\n%s", expected, out)
		}
	}
	if _, err := os.Stat(output); err != nil {
		t.Errorf("map not written: %v", err)
	}
}

// TestServiceHTTPAndSignalHandling starts the HTTP service, polls /health
// and stops it with SIGINT
func TestServiceHTTPAndSignalHandling(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION_TESTS") != "1" {
		t.Skip("Skipping integration test (set RUN_INTEGRATION_TESTS=1 to run)")
	}

	tmpDir := t.TempDir()
	binaryPath := buildBinary(t, tmpDir)
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("agentId: itest\n"), 0644); err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}

	const port = 18473
	cmd := exec.Command(binaryPath, "--http", fmt.Sprintf("--http-port=%d", port),
		"--config="+configPath, "--cache="+filepath.Join(tmpDir, "cache.json"))
	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start service: %v", err)
	}

	healthy := false
	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	for deadline := time.Now().Add(10 * time.Second); time.Now().Before(deadline); {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				healthy = true
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !healthy {
		t.Error("service never became healthy")
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Logf("Failed to send SIGINT (process may have already exited): %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("service exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Service did not shut down within timeout")
		if err := cmd.Process.Kill(); err != nil {
			t.Logf("Failed to kill process: %v", err)
		}
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "cache.json")); err != nil {
		t.Errorf("expected grid cache on shutdown: %v", err)
	}
}
