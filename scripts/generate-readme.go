// Command generate-readme renders the package documentation of toolloop as
// README.md. Run it from the module root through go generate.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/doc"
	"go/parser"
	"go/token"
	"io/fs"
	"log"
	"os"
	"strings"
)

const header = `# toolloop

![Go Version](https://img.shields.io/badge/Go-1.25+-00ADD8.svg)

Bounded tool-call resolution loops for generative model providers.

`

func main() {
	dir := flag.String("dir", ".", "directory of the package to document")
	pkgName := flag.String("pkg", "toolloop", "name of the package to document")
	out := flag.String("out", "README.md", "file to write")
	flag.Parse()

	readme, err := render(*dir, *pkgName)
	if err != nil {
		log.Fatal(err)
	}
	if err := os.WriteFile(*out, readme, 0o644); err != nil {
		log.Fatalf("failed to write %s: %v", *out, err)
	}
	fmt.Printf("%s generated from the %s package documentation\n", *out, *pkgName)
}

// render returns the README for the package pkgName in dir.
func render(dir, pkgName string) ([]byte, error) {
	fset := token.NewFileSet()
	notTest := func(fi fs.FileInfo) bool { return !strings.HasSuffix(fi.Name(), "_test.go") }
	pkgs, err := parser.ParseDir(fset, dir, notTest, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", dir, err)
	}
	pkg, ok := pkgs[pkgName]
	if !ok {
		return nil, fmt.Errorf("package %s not found in %s", pkgName, dir)
	}

	files := make([]*ast.File, 0, len(pkg.Files))
	for _, f := range pkg.Files {
		files = append(files, f)
	}
	docPkg, err := doc.NewFromFiles(fset, files, "github.com/spachava753/toolloop")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(docPkg.Doc) == "" {
		return nil, fmt.Errorf("package %s has no documentation", pkgName)
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	p := docPkg.Printer()
	// the README title is the only level 1 heading
	p.HeadingLevel = 2
	buf.Write(p.Markdown(docPkg.Parser().Parse(docPkg.Doc)))
	return buf.Bytes(), nil
}
