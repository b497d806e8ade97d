package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/catalog"
	"github.com/roach88/querycanvas/internal/ir"
)

// Error code constants, unified across all CLI commands.
// E001-E009 are catalog load codes shared with package catalog.
const (
	ErrCodeGeneric     = catalog.ErrCodeGeneric  // Generic/unknown error
	ErrCodeNotFound    = catalog.ErrCodeNotFound // Path not found
	ErrCodeWriteFailed = "E007"                  // File write error
	ErrCodeStoreFailed = "E010"                  // Store open/read/write failed
	ErrCodeNoStore     = "E011"                  // Command needs --db
	ErrCodeNoDesign    = "E012"                  // Design name not in store
	ErrCodeDiverged    = "E013"                  // Journal replay diverged
	ErrCodeCatalog     = "E200"                  // Catalog failed validation (E201-E206 in details)
	ErrCodeDesignParse = "E301"                  // Design file unreadable or malformed YAML
	ErrCodeDesignShape = "E302"                  // Design file fails field validation
	ErrCodeDesignState = "E303"                  // Design rejected by the canvas (see canvas error code)
	ErrCodeTestFailed  = "E_TEST_FAILED"         // One or more scenarios failed
)

// LoadCatalog loads a relation catalog and converts failures to
// command errors.
func LoadCatalog(path string) (*catalog.Catalog, *CLIError) {
	cat, err := catalog.Load(path)
	if err == nil {
		return cat, nil
	}

	var loadErr *catalog.LoadError
	if errors.As(err, &loadErr) {
		cliErr := &CLIError{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			cliErr.Details = map[string]any{
				"file":   loadErr.Pos.Filename(),
				"line":   loadErr.Pos.Line(),
				"column": loadErr.Pos.Column(),
			}
		}
		return nil, cliErr
	}

	var invalid *catalog.InvalidCatalogError
	if errors.As(err, &invalid) {
		return nil, &CLIError{Code: ErrCodeCatalog, Message: err.Error(), Details: invalid.Errors}
	}

	return nil, &CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// designFile is the on-disk YAML layout of a design:
//
//	name: users_orders
//	instances:
//	  - {id: i1, relation: users}
//	  - {id: i2, relation: orders, x: 240}
//	connections:
//	  - {id: c1, from: i1.id, to: i2.user_id, kind: LEFT}
//
// relation accepts a relation id or display name. kind defaults to INNER.
type designFile struct {
	Name        string           `yaml:"name" validate:"omitempty,max=128"`
	Instances   []designInstance `yaml:"instances" validate:"dive"`
	Connections []designLink     `yaml:"connections" validate:"dive"`
}

type designInstance struct {
	ID       string `yaml:"id" validate:"required"`
	Relation string `yaml:"relation" validate:"required"`
	X        int64  `yaml:"x"`
	Y        int64  `yaml:"y"`
}

type designLink struct {
	ID   string `yaml:"id" validate:"required"`
	From string `yaml:"from" validate:"required,endpoint"`
	To   string `yaml:"to" validate:"required,endpoint,nefield=From"`
	Kind string `yaml:"kind" validate:"omitempty,joinkind"`
}

var designValidator = newDesignValidator()

func newDesignValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("endpoint", func(fl validator.FieldLevel) bool {
		_, _, err := splitEndpoint(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("joinkind", func(fl validator.FieldLevel) bool {
		_, err := ir.ParseJoinKind(fl.Field().String())
		return err == nil
	})
	return v
}

// splitEndpoint parses "<instance>.<column>".
func splitEndpoint(s string) (instanceID, column string, err error) {
	instanceID, column, ok := strings.Cut(s, ".")
	if !ok || instanceID == "" || column == "" {
		return "", "", fmt.Errorf("endpoint %q must be <instance>.<column>", s)
	}
	return instanceID, column, nil
}

// formatFieldError formats a single field validation error.
func formatFieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "designFile.")

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "endpoint":
		return fmt.Sprintf("%s must be <instance>.<column>, got %q", field, e.Value())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", field, strings.ToLower(e.Param()))
	case "joinkind":
		return fmt.Sprintf("%s must be one of INNER, LEFT, RIGHT, FULL, got %q", field, e.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// LoadDesignFile reads a design file and checks its shape. Relation
// names are resolved against cat. Canvas invariants (known instances,
// known columns, unique ids) are checked later by canvas.Restore.
func LoadDesignFile(path string, cat *catalog.Catalog) (ir.Design, *CLIError) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ir.Design{}, &CLIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("design file not found: %s", path)}
		}
		return ir.Design{}, &CLIError{Code: ErrCodeDesignParse, Message: fmt.Sprintf("read design: %v", err)}
	}

	var df designFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&df); err != nil {
		return ir.Design{}, &CLIError{Code: ErrCodeDesignParse, Message: fmt.Sprintf("parse %s: %v", path, err)}
	}

	if err := designValidator.Struct(df); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = formatFieldError(fe)
			}
			return ir.Design{}, &CLIError{Code: ErrCodeDesignShape, Message: strings.Join(msgs, "; "), Details: msgs}
		}
		return ir.Design{}, &CLIError{Code: ErrCodeDesignShape, Message: err.Error()}
	}

	return df.toDesign(cat), nil
}

func (df designFile) toDesign(cat *catalog.Catalog) ir.Design {
	d := ir.Design{
		Name:        df.Name,
		Instances:   make([]ir.PlacedInstance, len(df.Instances)),
		Connections: make([]ir.Connection, len(df.Connections)),
	}
	for i, inst := range df.Instances {
		relationID := inst.Relation
		if rel, ok := cat.Resolve(inst.Relation); ok {
			relationID = rel.ID
		}
		d.Instances[i] = ir.PlacedInstance{
			InstanceID: inst.ID,
			RelationID: relationID,
			Position:   ir.Position{X: inst.X, Y: inst.Y},
		}
	}
	for i, link := range df.Connections {
		srcInst, srcCol, _ := splitEndpoint(link.From)
		tgtInst, tgtCol, _ := splitEndpoint(link.To)
		kind := ir.JoinInner
		if link.Kind != "" {
			kind, _ = ir.ParseJoinKind(link.Kind)
		}
		d.Connections[i] = ir.Connection{
			ID:               link.ID,
			SourceInstanceID: srcInst,
			SourceColumn:     srcCol,
			TargetInstanceID: tgtInst,
			TargetColumn:     tgtCol,
			JoinKind:         kind,
		}
	}
	return d
}

// designFileFrom converts a design back to its file layout.
func designFileFrom(d ir.Design) designFile {
	df := designFile{
		Name:        d.Name,
		Instances:   make([]designInstance, len(d.Instances)),
		Connections: make([]designLink, len(d.Connections)),
	}
	for i, inst := range d.Instances {
		df.Instances[i] = designInstance{
			ID:       inst.InstanceID,
			Relation: inst.RelationID,
			X:        inst.Position.X,
			Y:        inst.Position.Y,
		}
	}
	for i, c := range d.Connections {
		df.Connections[i] = designLink{
			ID:   c.ID,
			From: c.SourceInstanceID + "." + c.SourceColumn,
			To:   c.TargetInstanceID + "." + c.TargetColumn,
			Kind: string(c.JoinKind),
		}
	}
	return df
}

// WriteDesignFile writes d in the design file layout.
func WriteDesignFile(path string, d ir.Design) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(designFileFrom(d)); err != nil {
		return fmt.Errorf("encode design: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode design: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write design: %w", err)
	}
	return nil
}

// restoreError converts a canvas.Restore failure to a CLI error.
func restoreError(err error) *CLIError {
	cliErr := &CLIError{Code: ErrCodeDesignState, Message: err.Error()}
	if code := canvas.CodeOf(err); code != "" {
		cliErr.Details = map[string]string{"canvas_code": string(code)}
	}
	return cliErr
}
