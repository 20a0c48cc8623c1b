package dispatch

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

// packageDecls returns the package clause and package-level identifiers of
// src. ok is false when src does not parse.
func packageDecls(filename string, src []byte) (pkg string, names []string, ok bool) {
	file, err := parser.ParseFile(token.NewFileSet(), filename, src, parser.SkipObjectResolution)
	if err != nil {
		return "", nil, false
	}
	return file.Name.Name, topLevelNames(file), true
}

func topLevelNames(file *ast.File) []string {
	var names []string
	add := func(id *ast.Ident) {
		if id.Name != "_" && id.Name != "init" {
			names = append(names, id.Name)
		}
	}
	for _, decl := range file.Decls {
		switch decl := decl.(type) {
		case *ast.FuncDecl:
			if decl.Recv == nil {
				add(decl.Name)
			}
		case *ast.GenDecl:
			for _, spec := range decl.Specs {
				switch spec := spec.(type) {
				case *ast.TypeSpec:
					add(spec.Name)
				case *ast.ValueSpec:
					for _, id := range spec.Names {
						add(id)
					}
				}
			}
		}
	}
	return names
}

// findDeclared looks for any of names among the package-level identifiers of
// the pkg files beside path. It returns the clashing name and the file that
// declares it. Files that do not parse are skipped.
func findDeclared(path, pkg string, names []string) (name, declaredIn string, err error) {
	if len(names) == 0 {
		return "", "", nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".go") {
			continue
		}
		other := filepath.Join(dir, e.Name())
		if other == path {
			continue
		}
		src, err := os.ReadFile(other)
		if err != nil {
			return "", "", err
		}
		otherPkg, declared, ok := packageDecls(other, src)
		if !ok || otherPkg != pkg {
			continue
		}
		for _, n := range declared {
			if want[n] {
				return n, other, nil
			}
		}
	}
	return "", "", nil
}
