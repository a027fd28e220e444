package terraform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

// Parser extracts resources from Terraform HCL configuration. Only resource
// blocks feed the rule engine; variable, output, provider, and data blocks
// are ignored.
type Parser struct {
	logger *logger.Logger
}

// NewParser creates a Terraform parser
func NewParser(log *logger.Logger) *Parser {
	return &Parser{logger: log.WithComponent("terraform")}
}

// ParseFile parses a single Terraform file
func (p *Parser) ParseFile(path string) ([]*resource.Resource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return p.ParseContent(path, content)
}

// ParseContent parses in-memory HCL; filename feeds the source positions on
// the returned resources.
func (p *Parser) ParseContent(filename string, src []byte) ([]*resource.Resource, error) {
	// hclparse caches parsed files by name, so each parse gets a fresh
	// parser instance.
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parsing failed: %s", diags.Error())
	}
	if file == nil || file.Body == nil {
		return nil, fmt.Errorf("empty HCL file")
	}

	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("unexpected HCL body type %T", file.Body)
	}

	var resources []*resource.Resource
	for _, block := range body.Blocks {
		if block.Type != "resource" {
			continue
		}
		if len(block.Labels) < 2 {
			p.logger.WithFields(map[string]interface{}{
				"file": filename,
				"line": block.DefRange().Start.Line,
			}).Warn("Skipping resource block without type and name labels")
			continue
		}

		resources = append(resources, &resource.Resource{
			Type:       block.Labels[0],
			Name:       block.Labels[1],
			Config:     p.blockConfig(block.Body, src),
			FilePath:   filename,
			LineNumber: block.DefRange().Start.Line,
		})
	}
	return resources, nil
}

// ParseDirectory parses all .tf files under dir, recursively. Files that fail
// to parse are skipped with a warning so one bad file does not hide findings
// from the rest.
func (p *Parser) ParseDirectory(dir string) ([]*resource.Resource, error) {
	var resources []*resource.Resource

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".tf") {
			return nil
		}

		parsed, err := p.ParseFile(path)
		if err != nil {
			p.logger.WithFields(map[string]interface{}{
				"file":  path,
				"error": err.Error(),
			}).Warn("Skipping unparseable file")
			return nil
		}
		resources = append(resources, parsed...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dir, err)
	}

	return resources, nil
}

// blockConfig flattens a block body into a configuration tree: attributes
// evaluate to Go values, nested blocks become maps, and repeated nested
// blocks of the same type become lists.
func (p *Parser) blockConfig(body *hclsyntax.Body, src []byte) map[string]interface{} {
	config := make(map[string]interface{})

	for name, attr := range body.Attributes {
		config[name] = p.evalExpression(attr.Expr, src)
	}

	for _, block := range body.Blocks {
		nested := p.blockConfig(block.Body, src)

		if existing, ok := config[block.Type]; ok {
			if list, ok := existing.([]interface{}); ok {
				config[block.Type] = append(list, nested)
			} else {
				config[block.Type] = []interface{}{existing, nested}
			}
		} else {
			config[block.Type] = nested
		}
	}

	return config
}

// evalExpression resolves an HCL expression to a Go value. Expressions that
// cannot be statically evaluated (references, function calls, templates with
// interpolation) keep their source text so regex rules can still match them.
func (p *Parser) evalExpression(expr hclsyntax.Expression, src []byte) interface{} {
	switch e := expr.(type) {
	case *hclsyntax.LiteralValueExpr:
		return ctyToGo(e.Val)

	case *hclsyntax.TemplateExpr:
		if len(e.Parts) == 1 {
			if lit, ok := e.Parts[0].(*hclsyntax.LiteralValueExpr); ok {
				return ctyToGo(lit.Val)
			}
		}
		return strings.Trim(rawSource(e, src), `"`)

	case *hclsyntax.TupleConsExpr:
		items := make([]interface{}, 0, len(e.Exprs))
		for _, item := range e.Exprs {
			items = append(items, p.evalExpression(item, src))
		}
		return items

	case *hclsyntax.ObjectConsExpr:
		obj := make(map[string]interface{})
		for _, item := range e.Items {
			key, ok := objectKey(item.KeyExpr)
			if !ok {
				continue
			}
			obj[key] = p.evalExpression(item.ValueExpr, src)
		}
		return obj

	default:
		return "${" + rawSource(expr, src) + "}"
	}
}

func rawSource(expr hclsyntax.Expression, src []byte) string {
	return string(expr.Range().SliceBytes(src))
}

// objectKey resolves an object key: quoted strings and bare identifiers
func objectKey(expr hclsyntax.Expression) (string, bool) {
	wrapped, ok := expr.(*hclsyntax.ObjectConsKeyExpr)
	if !ok {
		return "", false
	}

	switch key := wrapped.Wrapped.(type) {
	case *hclsyntax.LiteralValueExpr:
		if key.Val.Type() == cty.String {
			return key.Val.AsString(), true
		}
	case *hclsyntax.TemplateExpr:
		if len(key.Parts) == 1 {
			if lit, ok := key.Parts[0].(*hclsyntax.LiteralValueExpr); ok && lit.Val.Type() == cty.String {
				return lit.Val.AsString(), true
			}
		}
	case *hclsyntax.ScopeTraversalExpr:
		if len(key.Traversal) == 1 {
			if root, ok := key.Traversal[0].(hcl.TraverseRoot); ok {
				return root.Name, true
			}
		}
	}
	return "", false
}

// ctyToGo converts a cty value to plain Go types: strings, float64 numbers,
// bools, []interface{}, and map[string]interface{}.
func ctyToGo(val cty.Value) interface{} {
	if val.IsNull() || !val.IsKnown() {
		return nil
	}

	switch val.Type() {
	case cty.String:
		return val.AsString()
	case cty.Number:
		num, _ := val.AsBigFloat().Float64()
		return num
	case cty.Bool:
		return val.True()
	default:
		if val.Type().IsListType() || val.Type().IsTupleType() || val.Type().IsSetType() {
			result := make([]interface{}, 0, val.LengthInt())
			iter := val.ElementIterator()
			for iter.Next() {
				_, v := iter.Element()
				result = append(result, ctyToGo(v))
			}
			return result
		}

		if val.Type().IsMapType() || val.Type().IsObjectType() {
			result := make(map[string]interface{})
			iter := val.ElementIterator()
			for iter.Next() {
				k, v := iter.Element()
				result[k.AsString()] = ctyToGo(v)
			}
			return result
		}

		return nil
	}
}
