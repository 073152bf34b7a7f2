package graph

import (
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/opencontainers/go-digest"

	"github.com/agentic-research/jsongraph/internal/jsonvalue"
)

var canonicalJSON = &ojg.Options{Sort: true}

// ContentDigest hashes the canonical JSON form of v: object keys sorted,
// no insignificant whitespace, numbers in exact canonical form.
func ContentDigest(v jsonvalue.Value) string {
	return digest.FromString(oj.JSON(v.Canonical(), canonicalJSON)).String()
}
