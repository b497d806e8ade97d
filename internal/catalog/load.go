package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querycanvas/internal/compiler"
	"github.com/roach88/querycanvas/internal/ir"
)

// Load error codes (E001-E009), shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No catalog files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeEmpty       = "E008" // No relations declared
	ErrCodeParseFailed = "E009" // YAML parse failed
)

// LoadError represents an error that occurred while loading a catalog.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load loads a catalog from a path: a directory of CUE files, or a
// single .yaml/.yml file.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog: %v", err)}
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".cue":
		return LoadDir(filepath.Dir(path))
	default:
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("unsupported catalog file: %s", path)}
	}
}

// LoadDir loads every `relation` declared by the CUE package in dir.
func LoadDir(dir string) (*Catalog, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	rels, err := compiler.CompileRelations(value)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			return nil, &LoadError{Code: ErrCodeBuildFailed, Message: ce.Field + ": " + ce.Message, Pos: ce.Pos}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	if len(rels) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: fmt.Sprintf("no relations declared in %s", dir)}
	}

	return New(rels)
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// yamlCatalog is the on-disk YAML layout:
//
//	relations:
//	  - id: users
//	    columns:
//	      - {name: id, type: integer, primary_key: true}
type yamlCatalog struct {
	Relations []yamlRelation `yaml:"relations"`
}

type yamlRelation struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Columns     []yamlColumn `yaml:"columns"`
}

type yamlColumn struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	PrimaryKey bool   `yaml:"primary_key"`
}

// LoadYAML loads a catalog from a YAML file.
// Unknown fields are rejected to catch typos.
func LoadYAML(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("open catalog: %v", err)}
	}
	defer f.Close()

	var doc yamlCatalog
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Code: ErrCodeParseFailed, Message: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if len(doc.Relations) == 0 {
		return nil, &LoadError{Code: ErrCodeEmpty, Message: fmt.Sprintf("no relations declared in %s", path)}
	}

	rels := make([]*ir.RelationDefinition, len(doc.Relations))
	for i, yr := range doc.Relations {
		rel := &ir.RelationDefinition{
			ID:          yr.ID,
			Name:        yr.Name,
			Description: yr.Description,
		}
		if rel.Name == "" {
			rel.Name = rel.ID
		}
		for _, yc := range yr.Columns {
			rel.Columns = append(rel.Columns, ir.ColumnDefinition{
				ID:           rel.ID + "." + yc.Name,
				Name:         yc.Name,
				Type:         yc.Type,
				IsPrimaryKey: yc.PrimaryKey,
			})
		}
		rels[i] = rel
	}

	return New(rels)
}
