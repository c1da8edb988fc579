package heapdb

// Catalog maps table names to their backing DBFiles and answers schema
// lookups by table id. Tables can be registered programmatically or read
// from a catalog file with one table per line:
//
//	name (field type, field type, ...)
//
// where type is "int" or "string".

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Catalog struct {
	bufPool     *BufferPool
	rootPath    string
	catalogFile string

	mu       sync.Mutex
	tableMap map[string]DBFile
}

func NewCatalog(catalogFile string, bp *BufferPool, rootPath string) *Catalog {
	return &Catalog{
		bufPool:     bp,
		rootPath:    rootPath,
		catalogFile: catalogFile,
		tableMap:    make(map[string]DBFile),
	}
}

// tableNameToFile returns the backing file path for a table name.
func (c *Catalog) tableNameToFile(tableName string) string {
	return filepath.Join(c.rootPath, tableName+".dat")
}

// addTable registers a table under name. Duplicate names, and files whose
// table id collides with an already registered one, are refused.
func (c *Catalog) addTable(name string, file DBFile) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.tableMap[name]; exists {
		return DbError{DuplicateTableError, fmt.Sprintf("table %s already exists", name)}
	}
	if hf, ok := file.(*HeapFile); ok {
		for other, f := range c.tableMap {
			if ohf, ok := f.(*HeapFile); ok && ohf.TableID() == hf.TableID() {
				return DbError{DuplicateTableError, fmt.Sprintf("table id of %s collides with table %s", name, other)}
			}
		}
	}
	c.tableMap[name] = file
	return nil
}

// AddTable creates a heap file for name with the supplied schema, backed by
// a file under the catalog root, and registers it.
func (c *Catalog) AddTable(name string, td TupleDesc) (DBFile, error) {
	hf, err := NewHeapFile(c.tableNameToFile(name), &td, c.bufPool)
	if err != nil {
		return nil, err
	}
	if err := c.addTable(name, hf); err != nil {
		return nil, err
	}
	return hf, nil
}

// GetTable returns the DBFile registered under name.
func (c *Catalog) GetTable(name string) (DBFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	file, exists := c.tableMap[name]
	if !exists {
		return nil, DbError{NoSuchTableError, fmt.Sprintf("no table named %s", name)}
	}
	return file, nil
}

// GetTupleDesc returns the schema of the table with the given id. Used by
// page construction paths that only know the id.
func (c *Catalog) GetTupleDesc(tableID int) (*TupleDesc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, file := range c.tableMap {
		if hf, ok := file.(*HeapFile); ok && hf.TableID() == tableID {
			return hf.Descriptor(), nil
		}
	}
	return nil, DbError{NoSuchTableError, fmt.Sprintf("no table with id %d", tableID)}
}

// parseCatalogFile loads table definitions from the catalog file, creating
// a heap file for each.
func (c *Catalog) parseCatalogFile() error {
	f, err := os.Open(c.catalogFile)
	if err != nil {
		return DbError{IOError, fmt.Sprintf("cannot open catalog %s: %v", c.catalogFile, err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		name, td, err := parseTableDef(line)
		if err != nil {
			return DbError{ParseError, fmt.Sprintf("catalog %s line %d: %v", c.catalogFile, lineNo, err)}
		}
		if _, err := c.AddTable(name, *td); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func parseTableDef(line string) (string, *TupleDesc, error) {
	lparen := strings.Index(line, "(")
	rparen := strings.LastIndex(line, ")")
	if lparen < 0 || rparen < lparen {
		return "", nil, fmt.Errorf("expected name (field type, ...), got %q", line)
	}
	name := strings.TrimSpace(line[:lparen])
	if name == "" {
		return "", nil, fmt.Errorf("missing table name in %q", line)
	}
	var fields []FieldType
	for _, col := range strings.Split(line[lparen+1:rparen], ",") {
		parts := strings.Fields(strings.TrimSpace(col))
		if len(parts) != 2 {
			return "", nil, fmt.Errorf("expected field type, got %q", col)
		}
		var ftype DBType
		switch strings.ToLower(parts[1]) {
		case "int":
			ftype = IntType
		case "string":
			ftype = StringType
		default:
			return "", nil, fmt.Errorf("unknown type %q", parts[1])
		}
		fields = append(fields, FieldType{Fname: parts[0], Ftype: ftype})
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("table %s has no fields", name)
	}
	return name, &TupleDesc{Fields: fields}, nil
}

// CatalogString renders the catalog in its file format.
func (c *Catalog) CatalogString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sb strings.Builder
	for name, file := range c.tableMap {
		var cols []string
		for _, f := range file.Descriptor().Fields {
			cols = append(cols, fmt.Sprintf("%s %s", f.Fname, f.Ftype))
		}
		fmt.Fprintf(&sb, "%s (%s)\n", name, strings.Join(cols, ", "))
	}
	return sb.String()
}
