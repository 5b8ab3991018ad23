package verify

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/kingrea/calcforge/internal/validate"
)

// smokeRun interprets the package in dir and calls Calculate with empty
// inputs. Returning an error is fine; panicking or not returning within
// timeout is not.
func smokeRun(dir string, timeout time.Duration) error {
	src, err := mergePackage(dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return fmt.Errorf("load stdlib symbols: %w", err)
	}
	if _, err := i.EvalWithContext(ctx, src); err != nil {
		return fmt.Errorf("interpret %s: %w", filepath.Base(dir), err)
	}
	fnValue, err := i.EvalWithContext(ctx, validate.CalculateFunc)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", validate.CalculateFunc, err)
	}
	if !fnValue.IsValid() || fnValue.Kind() != reflect.Func {
		return fmt.Errorf("%s is not a function", validate.CalculateFunc)
	}

	done := make(chan error, 1)
	go func() {
		done <- invokeCalculate(fnValue)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s did not return within %s", validate.CalculateFunc, timeout)
	}
}

func invokeCalculate(fn reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked on empty inputs: %v", validate.CalculateFunc, r)
		}
	}()
	if fn.Type().NumIn() != 1 {
		return fmt.Errorf("%s must take one argument", validate.CalculateFunc)
	}
	results := fn.Call([]reflect.Value{reflect.ValueOf(map[string]float64{})})
	if len(results) != 2 {
		return fmt.Errorf("%s must return (outputs, error)", validate.CalculateFunc)
	}
	return nil
}

// mergePackage joins the non-test files of dir into one package main
// source: imports are deduplicated and every file's declarations follow.
func mergePackage(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	seen := map[string]bool{}
	var imports []string
	var bodies []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, name, src, parser.ImportsOnly)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", name, err)
		}
		end := file.Name.End()
		for _, spec := range file.Imports {
			line := spec.Path.Value
			if spec.Name != nil {
				line = spec.Name.Name + " " + line
			}
			if !seen[line] {
				seen[line] = true
				imports = append(imports, line)
			}
		}
		if n := len(file.Decls); n > 0 {
			end = file.Decls[n-1].End()
		}
		bodies = append(bodies, string(src[fset.Position(end).Offset:]))
	}
	if len(bodies) == 0 {
		return "", fmt.Errorf("no Go files in %s", dir)
	}

	var b strings.Builder
	b.WriteString("package main\n\n")
	if len(imports) > 0 {
		b.WriteString("import (\n")
		for _, line := range imports {
			b.WriteString("\t" + line + "\n")
		}
		b.WriteString(")\n")
	}
	for i, body := range bodies {
		b.WriteString("\n// file " + strconv.Itoa(i+1) + "\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String(), nil
}
