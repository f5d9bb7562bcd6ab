// Package recipients loads the notification address list from a file.
package recipients

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileLoader reads addresses from a .json, .txt, .yaml or .yml file.
type FileLoader struct {
	Path   string
	Logger *zap.Logger
}

// Load returns the addresses in the file. Any failure is logged and yields
// an empty list.
func (l FileLoader) Load() []string {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out, err := l.read()
	if err != nil {
		logger.Warn("recipient list unavailable", zap.String("path", l.Path), zap.Error(err))
		return nil
	}
	return out
}

func (l FileLoader) read() ([]string, error) {
	if l.Path == "" {
		return nil, fmt.Errorf("no recipients file configured")
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read recipients file: %w", err)
	}

	var raw []string
	switch ext := strings.ToLower(filepath.Ext(l.Path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse json recipients: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml recipients: %w", err)
		}
	case ".txt":
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			raw = append(raw, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan text recipients: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported recipients file extension %q", ext)
	}

	out := make([]string, 0, len(raw))
	for _, addr := range raw {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out, nil
}
