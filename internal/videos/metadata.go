package videos

import "context"

// Metadata captures the subset of media details recorded for uploaded videos.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
}

// Prober extracts metadata from a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}
