package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/queryir"
)

// schema closes every overlay struct, so a misspelled field is an error
// rather than a silently ignored overlay.
const schema = `
#Kind: "TEXT" | "INTEGER" | "REAL" | "DATE" | "UNKNOWN"

#Column: {
	label?:    string
	sortable?: bool
	kind?:     #Kind
	hidden?:   bool
}

#Table: {
	label?: string
	columns?: [string]: #Column
}

table?: [string]: #Table
`

// ColumnOverlay refines one introspected column. Nil fields keep the
// introspected value.
type ColumnOverlay struct {
	Label    *string
	Sortable *bool
	Kind     *queryir.ColumnKind
	Hidden   bool
}

// TableOverlay refines the columns of one table.
type TableOverlay struct {
	Name    string
	Label   string
	Columns map[string]ColumnOverlay
}

// Catalog holds the overlays of every table, keyed by table name.
// The zero value and nil are empty catalogs.
type Catalog struct {
	tables map[string]TableOverlay
}

// LoadError is a catalog file problem, with the CUE position when known.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads every .cue file of the package in dir.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{Field: "catalog", Message: fmt.Sprintf("catalog directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Field: "catalog", Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Field: "catalog", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	ctx := cuecontext.New()
	return compile(ctx, ctx.BuildInstance(inst))
}

// Parse compiles catalog source text. Used for inline catalogs and tests.
func Parse(src string) (*Catalog, error) {
	ctx := cuecontext.New()
	return compile(ctx, ctx.CompileString(src, cue.Filename("catalog.cue")))
}

func compile(ctx *cue.Context, v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = ctx.CompileString(schema).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{tables: map[string]TableOverlay{}}
	tablesVal := v.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return c, nil
	}

	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		t, err := compileTable(fieldName(iter), iter.Value())
		if err != nil {
			return nil, err
		}
		c.tables[t.Name] = t
	}
	return c, nil
}

func compileTable(name string, v cue.Value) (TableOverlay, error) {
	t := TableOverlay{Name: name, Columns: map[string]ColumnOverlay{}}

	if lv := v.LookupPath(cue.ParsePath("label")); lv.Exists() {
		label, err := lv.String()
		if err != nil {
			return t, formatCUEError(err)
		}
		t.Label = label
	}

	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return t, nil
	}
	iter, err := colsVal.Fields()
	if err != nil {
		return t, formatCUEError(err)
	}
	for iter.Next() {
		col, err := compileColumn(iter.Value())
		if err != nil {
			return t, err
		}
		t.Columns[fieldName(iter)] = col
	}
	return t, nil
}

func compileColumn(v cue.Value) (ColumnOverlay, error) {
	var col ColumnOverlay

	if lv := v.LookupPath(cue.ParsePath("label")); lv.Exists() {
		label, err := lv.String()
		if err != nil {
			return col, formatCUEError(err)
		}
		col.Label = &label
	}
	if sv := v.LookupPath(cue.ParsePath("sortable")); sv.Exists() {
		sortable, err := sv.Bool()
		if err != nil {
			return col, formatCUEError(err)
		}
		col.Sortable = &sortable
	}
	if kv := v.LookupPath(cue.ParsePath("kind")); kv.Exists() {
		name, err := kv.String()
		if err != nil {
			return col, formatCUEError(err)
		}
		kind, ok := queryir.LookupColumnKind(name)
		if !ok {
			return col, &LoadError{Field: "kind", Message: fmt.Sprintf("unknown column kind %q", name), Pos: kv.Pos()}
		}
		col.Kind = &kind
	}
	if hv := v.LookupPath(cue.ParsePath("hidden")); hv.Exists() {
		hidden, err := hv.Bool()
		if err != nil {
			return col, formatCUEError(err)
		}
		col.Hidden = hidden
	}
	return col, nil
}

// Tables lists the tables that have overlays, sorted.
func (c *Catalog) Tables() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.tables))
	for name := range c.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the overlay for table.
func (c *Catalog) Table(table string) (TableOverlay, bool) {
	if c == nil {
		return TableOverlay{}, false
	}
	t, ok := c.tables[table]
	return t, ok
}

// Apply returns columns with the table's overlay merged in. Hidden columns
// are dropped; overlays naming columns the table lacks are ignored.
// The input slice is not modified.
func (c *Catalog) Apply(table string, columns []queryir.ColumnDescriptor) []queryir.ColumnDescriptor {
	t, ok := c.Table(table)
	out := make([]queryir.ColumnDescriptor, 0, len(columns))
	for _, col := range columns {
		if ok {
			overlay, found := t.Columns[col.Key]
			if found && overlay.Hidden {
				continue
			}
			if found {
				col = overlay.apply(col)
			}
		}
		out = append(out, col)
	}
	return out
}

func (o ColumnOverlay) apply(col queryir.ColumnDescriptor) queryir.ColumnDescriptor {
	if o.Label != nil {
		col.Label = *o.Label
	}
	if o.Sortable != nil {
		col.Sortable = *o.Sortable
	}
	if o.Kind != nil {
		col.Kind = *o.Kind
	}
	return col
}

// Source supplies introspected schema information.
type Source interface {
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]queryir.ColumnDescriptor, error)
}

// Describer serves column descriptors from a Source refined by a Catalog.
type Describer struct {
	src Source
	cat *Catalog
}

// NewDescriber wraps src. A nil catalog passes descriptors through.
func NewDescriber(src Source, cat *Catalog) *Describer {
	return &Describer{src: src, cat: cat}
}

// Tables lists the source's tables.
func (d *Describer) Tables(ctx context.Context) ([]string, error) {
	return d.src.Tables(ctx)
}

// Columns returns the table's descriptors with the overlay applied.
func (d *Describer) Columns(ctx context.Context, table string) ([]queryir.ColumnDescriptor, error) {
	cols, err := d.src.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	return d.cat.Apply(table, cols), nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}

// fieldName returns the unquoted label, so `"order items": {...}` names
// the table "order items".
func fieldName(iter *cue.Iterator) string {
	if sel := iter.Selector(); sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return iter.Label()
}
