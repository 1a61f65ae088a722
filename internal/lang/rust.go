package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/phobologic/bindcheck/internal/model"
)

func init() {
	Languages["rust"] = &Language{
		Name:       "rust",
		Extensions: []string{".rs"},
		lang:       rust.GetLanguage(),
		ItemKinds: map[string]model.Kind{
			"function_item":           model.Function,
			"function_signature_item": model.Function,
			"mod_item":                model.Module,
			"impl_item":               model.Impl,
			"trait_item":              model.Type,
			"struct_item":             model.Type,
			"enum_item":               model.Type,
			"type_item":               model.Type,
			"union_item":              model.Union,
			"const_item":              model.Constant,
			"static_item":             model.Constant,
			"macro_definition":        model.Macro,
			"field_declaration":       model.Field,
			"enum_variant":            model.Field,
		},
		Containers: map[string]string{
			"mod_item":         "body",
			"impl_item":        "body",
			"trait_item":       "body",
			"struct_item":      "body",
			"enum_item":        "body",
			"union_item":       "body",
			"foreign_mod_item": "body",
		},
		Bodies: map[string]string{
			"function_item": "body",
		},
		ExtractParams: rustExtractParams,
		IsUnsafe:      rustIsUnsafe,
		ExtractName:   rustExtractName,
	}
}

// rustExtractParams walks a function's parameter list. The `self` receiver is
// skipped; attributes and comments inside the list are ignored.
func rustExtractParams(node *sitter.Node, source []byte) ([]model.Param, bool) {
	list := node.ChildByFieldName("parameters")
	if list == nil {
		return nil, false
	}

	var params []model.Param
	for i := 0; i < int(list.NamedChildCount()); i++ {
		child := list.NamedChild(i)
		switch child.Type() {
		case "self_parameter", "attribute_item", "line_comment", "block_comment", "variadic_parameter":
			continue
		case "parameter":
			pattern := child.ChildByFieldName("pattern")
			if pattern == nil {
				return params, false
			}
			params = append(params, model.Param{
				Name: CollapseWhitespace(NodeText(pattern, source)),
				Line: Line(child),
			})
		default:
			// Anonymous parameters (`fn f(u32)`) and anything newer than
			// this grammar.
			return params, false
		}
	}
	return params, true
}

// rustIsUnsafe looks for an `unsafe` keyword directly on the item (impl,
// trait) or among its function modifiers.
func rustIsUnsafe(node *sitter.Node) bool {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "unsafe":
			return true
		case "function_modifiers":
			for j := 0; j < int(child.ChildCount()); j++ {
				if child.Child(j).Type() == "unsafe" {
					return true
				}
			}
		case "block", "declaration_list", "parameters":
			return false
		}
	}
	return false
}

// rustExtractName returns the item's name. impl blocks have no name, so they
// are named after their self type, qualified by the trait when present.
func rustExtractName(node *sitter.Node, source []byte) string {
	if node.Type() == "impl_item" {
		ty := node.ChildByFieldName("type")
		if ty == nil {
			return ""
		}
		name := CollapseWhitespace(NodeText(ty, source))
		if trait := node.ChildByFieldName("trait"); trait != nil {
			name = CollapseWhitespace(NodeText(trait, source)) + " for " + name
		}
		return name
	}
	if name := node.ChildByFieldName("name"); name != nil {
		return NodeText(name, source)
	}
	return ""
}
