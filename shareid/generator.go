// Package shareid issues the public identifiers used in share links.
package shareid

import (
	"context"
	"fmt"

	"github.com/lithammer/shortuuid/v4"
)

// Length of every generated share id (base57-encoded UUIDv4).
const Length = 22

// ExistsFunc reports whether a share id is already taken.
type ExistsFunc func(ctx context.Context, shareID string) (bool, error)

type Generator struct {
	exists ExistsFunc
	newID  func() string
}

func NewGenerator(exists ExistsFunc) *Generator {
	return &Generator{exists: exists, newID: shortuuid.New}
}

// Generate returns a share id that is not in use at the time of the check.
// The store's unique index remains the authority under concurrent inserts.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id := g.newID()
		if g.exists == nil {
			return id, nil
		}
		taken, err := g.exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("checking share id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
}
