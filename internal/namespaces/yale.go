// Package namespaces registers the concrete Namespace descriptors this
// binary knows how to ingest for, each built and registered at init()
// time per SPEC_FULL.md §4.B.
package namespaces

import "github.com/hathitrust/feed/internal/namespace"

func init() {
	namespace.Register(Yale())
}

// Yale is the namespace backing spec.md's end-to-end Yale scenario.
func Yale() *namespace.Descriptor {
	return &namespace.Descriptor{
		Identifier:  "yale",
		Description: "Yale University Library",
		Config: map[string]any{
			"artist": "Yale University Library",
		},
	}
}
