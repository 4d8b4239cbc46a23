package drawer

import (
	"time"
)

// Drawer is an interface that defines the methods for drawing a sequence graph.
type Drawer interface {
	// AddStep adds the step at some position of a sequence. Adding it twice is a no-op.
	AddStep(sequence, step string) error
	// AddLink adds a link between two vertices identified by VertexID.
	AddLink(from, to string, attributes map[string]string) error
	// AddMeans annotates every step with its mean time and colours it relative to the slowest step.
	AddMeans(means map[string]time.Duration) error
	// Draw renders the graph.
	Draw() error
}

// VertexID returns the identifier of step within sequence.
func VertexID(sequence, step string) string {
	return sequence + "/" + step
}
