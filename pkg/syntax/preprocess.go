package syntax

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Headers supplies include files by name. A nil Headers means only the
// filesystem is searched.
type Headers interface {
	Read(name string) ([]byte, error)
}

// Preprocess expands `#include "file"` and object-like `#define NAME VALUE`
// directives. Included files are resolved relative to baseDir, then to the
// working directory. #define lines are replaced by blank lines so that
// line numbers stay stable for diagnostics.
func Preprocess(src string, baseDir string) (string, error) {
	return PreprocessWith(src, baseDir, nil)
}

// PreprocessWith is Preprocess with an in-memory header set that is
// searched before the filesystem. A header's own includes are looked up
// next to it first.
func PreprocessWith(src string, baseDir string, headers Headers) (string, error) {
	pp := &preprocessor{
		headers:   headers,
		processed: make(map[string]bool),
		defines:   make(map[string]string),
	}
	return pp.run(src, includeDir{host: baseDir}, make(map[string]bool))
}

type preprocessor struct {
	headers   Headers
	processed map[string]bool
	defines   map[string]string
}

// includeDir is where relative includes of the current file are resolved:
// a directory in the header set, on the host, or both.
type includeDir struct {
	mem  string
	host string
}

func (pp *preprocessor) run(src string, dir includeDir, visitedStack map[string]bool) (string, error) {
	lines := strings.Split(src, "\n")
	var result strings.Builder

	for i, line := range lines {
		if i > 0 {
			result.WriteString("\n")
		}
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#define") {
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#define"))
			if rest == "" {
				return "", fmt.Errorf("line %d: #define without a name", i+1)
			}
			name, value := rest, ""
			if cut := strings.IndexAny(rest, " \t"); cut >= 0 {
				name, value = rest[:cut], rest[cut+1:]
			}
			if strings.Contains(name, "(") {
				return "", fmt.Errorf("line %d: function-like macro %q is not supported", i+1, name)
			}
			if !isIdentifier(name) {
				return "", fmt.Errorf("line %d: invalid macro name %q", i+1, name)
			}
			pp.defines[name] = applyDefines(strings.TrimSpace(value), pp.defines)
			continue
		}

		if strings.HasPrefix(trimmed, "#include") {
			parts := strings.SplitN(trimmed, "\"", 3)
			if len(parts) < 3 {
				return "", fmt.Errorf("line %d: invalid include directive: %s", i+1, line)
			}
			filename := parts[1]

			key, content, next, err := pp.resolve(filename, dir)
			if err != nil {
				return "", err
			}
			if visitedStack[key] {
				return "", fmt.Errorf("circular include detected: %s", filename)
			}
			if pp.processed[key] {
				continue
			}
			pp.processed[key] = true

			newStack := make(map[string]bool, len(visitedStack)+1)
			for k, v := range visitedStack {
				newStack[k] = v
			}
			newStack[key] = true

			processed, err := pp.run(string(content), next, newStack)
			if err != nil {
				return "", err
			}
			result.WriteString(processed)
			continue
		}

		result.WriteString(applyDefines(line, pp.defines))
	}
	return result.String(), nil
}

// resolve finds an included file and returns a key identifying it, its
// content and the directory its own includes resolve against.
func (pp *preprocessor) resolve(filename string, dir includeDir) (string, []byte, includeDir, error) {
	if pp.headers != nil {
		for _, name := range []string{path.Join(dir.mem, filename), path.Clean(filename)} {
			if content, err := pp.headers.Read(name); err == nil {
				return "mem:" + name, content, includeDir{mem: path.Dir(name), host: dir.host}, nil
			}
		}
	}

	fullPath := filepath.Join(dir.host, filename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		if cwdPath, absErr := filepath.Abs(filename); absErr == nil {
			if _, err := os.Stat(cwdPath); err == nil {
				fullPath = cwdPath
			}
		}
	}

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", nil, includeDir{}, err
	}
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", nil, includeDir{}, fmt.Errorf("failed to read included file %s: %w", filename, err)
	}
	return absPath, content, includeDir{mem: dir.mem, host: filepath.Dir(fullPath)}, nil
}

// applyDefines replaces whole-word occurrences of defined names, skipping
// character literals and comments.
func applyDefines(input string, defines map[string]string) string {
	if len(defines) == 0 {
		return input
	}

	var sb strings.Builder
	n := len(input)
	i := 0
	for i < n {
		switch {
		case input[i] == '/' && i+1 < n && input[i+1] == '/':
			sb.WriteString(input[i:])
			return sb.String()
		case input[i] == '\'':
			sb.WriteByte(input[i])
			i++
			for i < n {
				c := input[i]
				sb.WriteByte(c)
				i++
				if c == '\\' && i < n {
					sb.WriteByte(input[i])
					i++
				} else if c == '\'' {
					break
				}
			}
		case isIdentStart(rune(input[i])):
			start := i
			for i < n && isIdentPart(rune(input[i])) {
				i++
			}
			word := input[start:i]
			if body, ok := defines[word]; ok {
				sb.WriteString(body)
			} else {
				sb.WriteString(word)
			}
		default:
			sb.WriteByte(input[i])
			i++
		}
	}
	return sb.String()
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isIdentifier(s string) bool {
	if s == "" || !isIdentStart(rune(s[0])) {
		return false
	}
	for _, r := range s[1:] {
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}
