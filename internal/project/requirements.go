package project

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ReadRequirements parses a pip requirements file into its requirement
// lines. Comments, blank lines, and pip options (lines starting with "-")
// are dropped; an absent file yields an empty list.
func ReadRequirements(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, "requirements.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var reqs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		reqs = append(reqs, line)
	}
	return reqs, scanner.Err()
}
