package render

import "context"

// Renderer turns a resume document into file bytes for one export format.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, error)
}
