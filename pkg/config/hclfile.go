package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// File is a provider backed by an HCL defaults file. The file holds flat
// top-level attributes:
//
//	BUNDLE_IDENTIFIER = "com.acme.app"
//	SKIP_UPLOAD       = false
//	BUILD_NUMBER      = 42
//
// All values are carried as strings; typed parsing happens in Resolve under
// the schema, so a defaults file and an environment variable behave the
// same way.
type File struct {
	path   string
	values map[string]string
}

// LoadFile parses the defaults file at path into a provider.
func LoadFile(path string) (*File, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	attrs, diags := hclFile.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	values := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate %s in %s: %w", name, path, diags)
		}
		str, err := convert.Convert(val, cty.String)
		if err != nil {
			return nil, fmt.Errorf("unsupported value for %s in %s: %w", name, path, err)
		}
		if str.IsNull() {
			continue
		}
		values[name] = str.AsString()
	}

	return &File{path: path, values: values}, nil
}

func (f *File) Name() string { return "file:" + f.path }

func (f *File) Lookup(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}
