// Package middleware provides the two ambient wrappers every handler
// in this repo is registered with: panic recovery and request logging.
// There is no general middleware chain — wiring more than these two is
// out of scope.
package middleware

import (
	"log"
	"runtime/debug"

	"github.com/watt-toolkit/arc/pkg/arc"
)

// Recovery wraps next so a panic inside the handler is caught, logged
// with its stack trace, and turned into a 500 response instead of
// crashing the connection worker.
func Recovery(next arc.HandlerFunc) arc.HandlerFunc {
	return func(req *arc.Request, res *arc.Response) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("arc: panic handling %s %s: %v\n%s", req.Method, req.Pathname, r, debug.Stack())
				res.HTML(500, "500 Internal Server Error")
				res.Send()
			}
		}()
		next(req, res)
	}
}
