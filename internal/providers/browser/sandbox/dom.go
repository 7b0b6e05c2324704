package sandbox

import (
	"github.com/dop251/goja"
)

// injectDocument exposes a read-only document to the VM
func (r *Runtime) injectDocument(doc Document) {
	document := r.vm.NewObject()
	_ = document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return r.vm.NewArray()
		}
		elems := doc.QuerySelectorAll(call.Arguments[0].String())
		items := make([]interface{}, len(elems))
		for i := range elems {
			items[i] = r.elementProxy(elems[i])
		}
		return r.vm.NewArray(items...)
	})
	_ = document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		elems := doc.QuerySelectorAll(call.Arguments[0].String())
		if len(elems) == 0 {
			return goja.Null()
		}
		return r.vm.ToValue(r.elementProxy(elems[0]))
	})
	_ = r.vm.Set("document", document)
}

// elementProxy creates a frozen snapshot of one element
func (r *Runtime) elementProxy(elem Element) map[string]interface{} {
	return map[string]interface{}{
		"tagName":     elem.TagName,
		"id":          elem.ID,
		"className":   elem.ClassName,
		"textContent": elem.TextContent,
		"getAttribute": func(name string) interface{} {
			if v, ok := elem.Attributes[name]; ok {
				return v
			}
			return nil
		},
		"getBoundingClientRect": func() map[string]interface{} {
			b := elem.Bounds
			return map[string]interface{}{
				"top": b.Top, "left": b.Left, "width": b.Width, "height": b.Height,
				"bottom": b.Bottom(), "right": b.Right(),
			}
		},
	}
}
