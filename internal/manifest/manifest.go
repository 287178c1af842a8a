package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/quantmind-br/qpm/internal/core"
	"github.com/quantmind-br/qpm/internal/security"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/afero"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/manifest.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// Issue is a single schema violation
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("manifest.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

// Decode parses manifest JSON without validating required fields
func Decode(data []byte) (*core.Manifest, error) {
	var m core.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, core.Errorf(core.KindInvalidManifest, "", "parse manifest: %w", err)
	}
	return &m, nil
}

// Parse decodes and fully validates manifest JSON
func Parse(data []byte) (*core.Manifest, error) {
	issues, err := Validate(data)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			msgs = append(msgs, issue.String())
		}
		return nil, core.Errorf(core.KindInvalidManifest, "", "manifest does not match schema: %s", strings.Join(msgs, "; "))
	}

	m, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if err := checkFields(m); err != nil {
		return nil, core.NewError(core.KindInvalidManifest, m.Name, err)
	}
	return m, nil
}

// Validate checks manifest JSON against the embedded schema.
// The error return is reserved for unparsable JSON and schema compilation failures.
func Validate(data []byte) ([]Issue, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, core.Errorf(core.KindInvalidManifest, "", "parse manifest: %w", err)
	}

	err = schema.Validate(inst)
	if err == nil {
		return nil, nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("unexpected validation error: %w", err)
	}

	var issues []Issue
	collectIssues(ve, &issues)
	if len(issues) == 0 {
		issues = append(issues, Issue{Message: ve.Error()})
	}
	return issues, nil
}

func collectIssues(ve *jsonschema.ValidationError, issues *[]Issue) {
	if len(ve.Causes) == 0 {
		path := ""
		if len(ve.InstanceLocation) > 0 {
			path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		msg := ve.Error()
		if ve.ErrorKind != nil {
			msg = ve.ErrorKind.LocalizedString(printer)
		}
		*issues = append(*issues, Issue{Path: path, Message: msg})
		return
	}
	for _, cause := range ve.Causes {
		collectIssues(cause, issues)
	}
}

// checkFields rejects values that are unsafe as store path components
func checkFields(m *core.Manifest) error {
	if err := security.ValidatePackageName(m.Name); err != nil {
		return err
	}
	if err := security.ValidateVersion(m.Version); err != nil {
		return err
	}
	for _, dep := range m.Dependencies {
		if err := security.ValidatePackageName(dep); err != nil {
			return fmt.Errorf("dependency %q: %w", dep, err)
		}
	}
	if m.InstallScript != "" {
		if err := security.ValidateExtractPath("/", m.InstallScript); err != nil {
			return fmt.Errorf("install_script: %w", err)
		}
	}
	return nil
}

// Load reads and validates the manifest file inside dir
func Load(fs afero.Fs, dir, fileName string) (*core.Manifest, error) {
	path := filepath.Join(dir, fileName)
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.Errorf(core.KindManifestNotFound, "", "%s not found in %s", fileName, dir)
		}
		return nil, core.Errorf(core.KindFileSystem, "", "read manifest: %w", err)
	}
	return Parse(data)
}
