// Package loader reads and writes policy, plan and event documents in JSON
// or YAML.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"civility-hq/kernel/pkg/policy"
)

// MaxFileSize bounds the size of a document read from disk.
const MaxFileSize = 10 * 1024 * 1024

// Format is a document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension. Unknown extensions are
// treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadPolicy reads a policy document.
func LoadPolicy(path string) (*policy.Policy, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePolicy(data, FormatFor(path), path)
}

// ParsePolicy decodes a policy document. Source names the document in
// errors.
func ParsePolicy(data []byte, format Format, source string) (*policy.Policy, error) {
	var p policy.Policy
	if err := Decode(data, format, source, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// plansDocument is the object form of a plans file.
type plansDocument struct {
	Plans []policy.Plan `json:"plans" yaml:"plans"`
}

// LoadPlans reads a plan batch. The document is either a list of plans or
// an object with a "plans" list.
func LoadPlans(path string) ([]policy.Plan, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePlans(data, FormatFor(path), path)
}

// ParsePlans decodes a plan batch.
func ParsePlans(data []byte, format Format, source string) ([]policy.Plan, error) {
	trimmed := bytes.TrimSpace(data)
	if format == FormatJSON && len(trimmed) > 0 && trimmed[0] == '{' {
		var doc plansDocument
		if err := Decode(data, format, source, &doc); err != nil {
			return nil, err
		}
		return doc.Plans, nil
	}
	if format == FormatYAML {
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err == nil && len(node.Content) > 0 && node.Content[0].Kind == yaml.MappingNode {
			var doc plansDocument
			if err := Decode(data, format, source, &doc); err != nil {
				return nil, err
			}
			return doc.Plans, nil
		}
	}

	var plans []policy.Plan
	if err := Decode(data, format, source, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// LoadFile reads a document of any shape into out.
func LoadFile(path string, out any) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}
	return Decode(data, FormatFor(path), path, out)
}

// ReadFile reads a document from disk, enforcing MaxFileSize and UTF-8.
func ReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		case os.IsPermission(err):
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		default:
			return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
		}
	}
	if info.IsDir() {
		return nil, &LoadError{FilePath: path, Message: "path is a directory"}
	}
	if info.Size() > MaxFileSize {
		return nil, &LoadError{FilePath: path, Message: fmt.Sprintf("file exceeds %d bytes", MaxFileSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: path, Message: "file is not valid UTF-8"}
	}
	return data, nil
}

// Decode decodes data in the given format into out.
func Decode(data []byte, format Format, source string, out any) error {
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, out)
	default:
		err = json.Unmarshal(data, out)
	}
	if err == nil {
		return nil
	}
	return &DocumentError{Source: source, Line: errorLine(data, err), Message: err.Error(), Cause: err}
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

func errorLine(data []byte, err error) int {
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return 1 + bytes.Count(data[:min(int(syntax.Offset), len(data))], []byte("\n"))
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return 1 + bytes.Count(data[:min(int(typeErr.Offset), len(data))], []byte("\n"))
	}
	if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// Encode renders a value in the given format. JSON is indented with two
// spaces and ends with a newline.
func Encode(v any, format Format) ([]byte, error) {
	if format == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// WritePolicy writes p to path in the format implied by its extension,
// creating parent directories as needed.
func WritePolicy(path string, p *policy.Policy) error {
	data, err := Encode(p, FormatFor(path))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %q: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}
