package graphql

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed all:ops
var embeddedOps embed.FS

// DefaultNamespace is the namespace every bot class reads by default.
const DefaultNamespace = "bot"

// Catalog maps namespaced operation names to parsed operations. It is built
// once at load time and read-only afterwards.
type Catalog struct {
	namespaces map[string]*Namespace
}

// Namespace is one bot-class slice of a catalog.
type Namespace struct {
	name string
	ops  map[string]*Operation
}

// LoadCatalog reads <root>/<namespace>/<name>.graphql from fsys.
func LoadCatalog(fsys fs.FS, root string) (*Catalog, error) {
	c := &Catalog{namespaces: map[string]*Namespace{}}
	dirs, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("graphql: read catalog %s: %w", root, err)
	}
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		ns := &Namespace{name: d.Name(), ops: map[string]*Operation{}}
		files, err := fs.ReadDir(fsys, path.Join(root, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("graphql: read namespace %s: %w", d.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".graphql") {
				continue
			}
			raw, err := fs.ReadFile(fsys, path.Join(root, d.Name(), f.Name()))
			if err != nil {
				return nil, fmt.Errorf("graphql: read %s: %w", f.Name(), err)
			}
			name := strings.TrimSuffix(f.Name(), ".graphql")
			op, err := ParseOperation(name, string(raw))
			if err != nil {
				return nil, err
			}
			ns.ops[name] = op
		}
		c.namespaces[ns.name] = ns
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = LoadCatalog(embeddedOps, "ops")
	})
	return defaultCatalog, defaultErr
}

// Namespace returns the named namespace. A missing namespace behaves as an
// empty one so lookups fail with ErrUnknownOperation.
func (c *Catalog) Namespace(name string) *Namespace {
	if ns, ok := c.namespaces[name]; ok {
		return ns
	}
	return &Namespace{name: name, ops: map[string]*Operation{}}
}

// Lookup returns the named operation or ErrUnknownOperation.
func (n *Namespace) Lookup(name string) (*Operation, error) {
	op, ok := n.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownOperation, n.name, name)
	}
	return op, nil
}

// Names lists the operations in the namespace in sorted order.
func (n *Namespace) Names() []string {
	out := make([]string, 0, len(n.ops))
	for k := range n.ops {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
