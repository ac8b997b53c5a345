package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Queue line markers, mirroring the main pipeline.
const (
	doneMarker   = "x "
	failedMarker = "x [failed] "
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: queuectl <status|reset-failures> <queue-file>")
	}

	command := os.Args[1]
	queueFile := os.Args[2]

	switch command {
	case "status":
		if err := status(queueFile); err != nil {
			log.Fatal(err)
		}
	case "reset-failures":
		if err := resetFailures(queueFile); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

// status prints pending/done/failed counts and lists failed items.
func status(queueFile string) error {
	content, err := os.ReadFile(queueFile)
	if err != nil {
		return fmt.Errorf("reading queue file %s: %w", queueFile, err)
	}

	pending, done, failed := 0, 0, 0
	var failedItems []string

	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
		case strings.HasPrefix(trimmed, failedMarker):
			failed++
			failedItems = append(failedItems, strings.TrimPrefix(trimmed, failedMarker))
		case strings.HasPrefix(trimmed, doneMarker):
			done++
		default:
			pending++
		}
	}

	fmt.Printf("%s: %d pending, %d done, %d failed\n", queueFile, pending, done, failed)
	for _, item := range failedItems {
		fmt.Printf("  FAILED: %s\n", item)
	}
	return nil
}

// resetFailures strips failure markers so the items become pending again,
// asking for confirmation per item.
func resetFailures(queueFile string) error {
	content, err := os.ReadFile(queueFile)
	if err != nil {
		return fmt.Errorf("reading queue file %s: %w", queueFile, err)
	}

	reader := bufio.NewReader(os.Stdin)
	lines := strings.Split(string(content), "\n")
	resetCount := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, failedMarker) {
			continue
		}

		item := strings.TrimPrefix(trimmed, failedMarker)
		if !confirmReset(reader, item) {
			fmt.Printf("  SKIP: %s\n", item)
			continue
		}

		indent := line[:strings.Index(line, trimmed)]
		lines[i] = indent + item
		resetCount++
		fmt.Printf("  RESET: %s\n", item)
	}

	if resetCount == 0 {
		fmt.Println("No failure markers reset")
		return nil
	}

	if err := writeAtomic(queueFile, strings.Join(lines, "\n")); err != nil {
		return err
	}
	fmt.Printf("Reset %d failed items\n", resetCount)
	return nil
}

func confirmReset(reader *bufio.Reader, item string) bool {
	for {
		fmt.Printf("  Reset %q? [y/N]: ", item)
		input, err := reader.ReadString('\n')
		if err != nil {
			log.Printf("Error reading input: %v", err)
			return false
		}
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			fmt.Println("  Please enter y or n.")
		}
	}
}

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".queue-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
