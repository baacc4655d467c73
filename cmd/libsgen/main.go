package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"golang.org/x/tools/go/packages"
)

const (
	celPackageName = "github.com/google/cel-go/cel"
	extPackageName = "github.com/google/cel-go/ext"
	envOptionType  = celPackageName + ".EnvOption"
)

// skipLibraries lists ext constructors that only make sense with arguments
var skipLibraries = map[string]bool{
	"NativeTypes": true,
}

type LibraryInfo struct {
	Name        string
	Func        string
	Description string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--help" {
		fmt.Println("Usage: libsgen [output_dir]")
		fmt.Println("Generates the registry of cel-go extension libraries usable by name")
		fmt.Println("Default output directory: internal/eval")
		os.Exit(0)
	}

	outputDir := "internal/eval"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	libs, err := discoverLibraries()
	if err != nil {
		log.Fatalln("failed to discover libraries:", err)
	}

	if err := generateCode(libs, outputDir); err != nil {
		log.Fatalln("failed to generate code:", err)
	}

	fmt.Printf("Generated %d library definitions in %s\n", len(libs), outputDir)
}

func discoverLibraries() ([]LibraryInfo, error) {
	cfg := &packages.Config{
		Mode: packages.NeedTypes | packages.NeedSyntax | packages.NeedImports | packages.NeedName | packages.NeedFiles,
		Fset: token.NewFileSet(),
	}

	pkgs, err := packages.Load(cfg, extPackageName)
	if err != nil {
		return nil, fmt.Errorf("failed to load ext package: %w", err)
	}
	if len(pkgs) == 0 || pkgs[0].Types == nil {
		return nil, fmt.Errorf("package %s not found", extPackageName)
	}

	pkg := pkgs[0]
	scope := pkg.Types.Scope()

	var libs []LibraryInfo
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() || skipLibraries[name] {
			continue
		}

		funcObj, ok := obj.(*types.Func)
		if !ok {
			continue
		}

		sig := funcObj.Type().(*types.Signature)

		results := sig.Results()
		if results.Len() != 1 || results.At(0).Type().String() != envOptionType {
			continue
		}

		// Only libraries that can be enabled without arguments are exposed:
		// no parameters, or a single variadic option list.
		params := sig.Params()
		if params.Len() > 1 || (params.Len() == 1 && !sig.Variadic()) {
			fmt.Printf("Skipping library with required parameters: %s\n", name)
			continue
		}

		libs = append(libs, LibraryInfo{
			Name:        snakeCase(name),
			Func:        name,
			Description: firstSentence(extractDocumentation(pkg, funcObj)),
		})
	}

	return libs, nil
}

func extractDocumentation(pkg *packages.Package, funcObj *types.Func) string {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			if funcDecl, ok := decl.(*ast.FuncDecl); ok && funcDecl.Recv == nil {
				if funcDecl.Name.Name == funcObj.Name() && funcDecl.Doc != nil {
					return strings.TrimSpace(funcDecl.Doc.Text())
				}
			}
		}
	}
	return ""
}

func firstSentence(doc string) string {
	doc = strings.Join(strings.Fields(doc), " ")
	if i := strings.Index(doc, ". "); i >= 0 {
		return doc[:i+1]
	}
	return doc
}

// snakeCase turns TwoVarComprehensions into two_var_comprehensions
func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func generateCode(libs []LibraryInfo, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f := jen.NewFile("eval")
	f.HeaderComment("Code generated by libsgen. DO NOT EDIT.")
	f.ImportName(celPackageName, "cel")
	f.ImportName(extPackageName, "ext")

	dict := jen.Dict{}
	for _, lib := range libs {
		dict[jen.Lit(lib.Name)] = jen.Values(jen.Dict{
			jen.Id("Description"): jen.Lit(lib.Description),
			jen.Id("Option"): jen.Func().Params().Qual(celPackageName, "EnvOption").Block(
				jen.Return(jen.Qual(extPackageName, lib.Func).Call()),
			),
		})
	}

	f.Comment("extLibraries maps library names to cel-go extension libraries")
	f.Var().Id("extLibraries").Op("=").Map(jen.String()).Id("Library").Values(dict)

	return f.Save(filepath.Join(outputDir, "libraries_gen.go"))
}
