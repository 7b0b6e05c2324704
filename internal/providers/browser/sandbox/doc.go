/*
Package sandbox runs page scripts against static documents.

# Overview

Scripts run in an isolated goja VM with:

  - a bounded call stack
  - an execution timeout and context cancellation via VM interrupts
  - Node.js globals removed and timers disabled
  - a read-only document exposing querySelector and querySelectorAll

Element proxies are snapshots: textContent, className, getAttribute and
getBoundingClientRect are available, nothing can be mutated.

# Usage Example

	pool, _ := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	defer pool.Close()

	result, err := pool.Execute(ctx, "document.querySelectorAll(args.sel).length", doc,
		map[string]interface{}{"sel": ".card"})
*/
package sandbox
