package doccheck

import "github.com/phobologic/bindcheck/internal/model"

// Signature compares documented arguments against the real parameter list in
// lock-step, position by position. Each mismatched position yields exactly
// one error: a wrong name, a documented argument past the end of the
// signature, or a real parameter left undocumented.
func Signature(path string, docs []ArgDoc, params []model.Param) []model.Diagnostic {
	var diags []model.Diagnostic
	n := max(len(docs), len(params))
	for i := range n {
		pos := i + 1
		switch {
		case i < len(docs) && i < len(params):
			if docs[i].Name != params[i].Name {
				diags = append(diags, model.Errorf(path, docs[i].Line,
					"argument %d was documented as `%s` but is actually `%s`", pos, docs[i].Name, params[i].Name))
			}
		case i < len(docs):
			diags = append(diags, model.Errorf(path, docs[i].Line,
				"argument %d does not exist (documented as `%s`)", pos, docs[i].Name))
		default:
			diags = append(diags, model.Errorf(path, params[i].Line,
				"argument %d is undocumented (`%s`)", pos, params[i].Name))
		}
	}
	return diags
}
