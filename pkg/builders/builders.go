// Package builders defines the per-project builder configuration variants
// and renders each variant's dockerfile.
package builders

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed dockerfiles/pyinstaller.Dockerfile
var pyinstallerTemplate string

//go:embed dockerfiles/rust.Dockerfile
var rustTemplate string

// Type discriminates builder configuration variants.
type Type string

const (
	PyInstaller Type = "pyinstaller"
	Rust        Type = "rust"
	Custom      Type = "custom"
)

// Config is the tagged builder_config table of a project manifest.  Only the
// fields of the active variant are populated.
type Config struct {
	Type Type

	// pyinstaller
	EntryFile string

	// rust
	BinName string
	Targets []string

	// custom
	DockerfilePath string
	Values         map[string]string
}

// UnmarshalTOML decodes the builder_config table, dispatching on its
// builder_type field.
func (c *Config) UnmarshalTOML(v any) error {
	table, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("builder_config is not a table")
	}

	typ, ok := table["builder_type"].(string)
	if !ok {
		return fmt.Errorf("builder_config is missing builder_type")
	}

	switch Type(typ) {
	case PyInstaller:
		entry, ok := table["entry_file"].(string)
		if !ok {
			return fmt.Errorf("pyinstaller builder_config is missing entry_file")
		}
		c.Type = PyInstaller
		c.EntryFile = entry
	case Rust:
		bin, ok := table["bin_name"].(string)
		if !ok {
			return fmt.Errorf("rust builder_config is missing bin_name")
		}
		targets, err := stringSlice(table["targets"])
		if err != nil || len(targets) == 0 {
			return fmt.Errorf("rust builder_config is missing targets")
		}
		c.Type = Rust
		c.BinName = bin
		c.Targets = targets
	case Custom:
		dockerfile, ok := table["dockerfile"].(string)
		if !ok {
			return fmt.Errorf("custom builder_config is missing dockerfile")
		}
		values := map[string]string{}
		if raw, present := table["values"]; present {
			rawTable, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("custom builder_config values is not a table")
			}
			for k, rv := range rawTable {
				s, ok := rv.(string)
				if !ok {
					return fmt.Errorf("custom builder_config value %q is not a string", k)
				}
				values[k] = s
			}
		}
		c.Type = Custom
		c.DockerfilePath = dockerfile
		c.Values = values
	default:
		return fmt.Errorf("unknown builder_type %q", typ)
	}
	return nil
}

func stringSlice(v any) ([]string, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("not an array")
	}
	out := make([]string, 0, len(raw))
	for _, rv := range raw {
		s, ok := rv.(string)
		if !ok {
			return nil, fmt.Errorf("not a string array")
		}
		out = append(out, s)
	}
	return out, nil
}

// Dockerfile renders the variant's dockerfile.  For the custom variant the
// template is read from DockerfilePath relative to projectRoot; the built-in
// variants use embedded templates.
func (c Config) Dockerfile(projectRoot string) (string, error) {
	switch c.Type {
	case PyInstaller:
		return render(pyinstallerTemplate, map[string]string{
			"entry_file": c.EntryFile,
		})
	case Rust:
		return render(rustTemplate, map[string]string{
			"bin_name": c.BinName,
			"targets":  strings.Join(c.Targets, " "),
		})
	case Custom:
		path := filepath.Join(projectRoot, filepath.FromSlash(c.DockerfilePath))
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading dockerfile template %q: %w", path, err)
		}
		return render(string(raw), c.Values)
	default:
		return "", fmt.Errorf("unknown builder type %q", c.Type)
	}
}

// render substitutes {field} placeholders from vars.  "{{" and "}}" emit
// literal braces.  A placeholder with no matching field is an error.
func render(template string, vars map[string]string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(template); {
		switch template[i] {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				out.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			name := template[i+1 : i+end]
			value, ok := vars[name]
			if !ok {
				return "", fmt.Errorf("unknown placeholder %q", name)
			}
			out.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				out.WriteByte('}')
				i += 2
				continue
			}
			out.WriteByte('}')
			i++
		default:
			out.WriteByte(template[i])
			i++
		}
	}
	return out.String(), nil
}
