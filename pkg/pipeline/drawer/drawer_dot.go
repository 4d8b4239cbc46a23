package drawer

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/go-autoprof/internal/store"
	"github.com/askiada/go-autoprof/pkg/pipeline/measure"
)

// vertex attributes used to build the HTML label, never rendered as such.
const (
	attrStep     = "step"
	attrSequence = "sequence"
	attrMean     = "xlabel"
)

// DOTDrawer renders the sequence graph in the graphviz DOT language.
type DOTDrawer struct {
	mu       sync.Mutex
	store    store.AttributeStore[string, string]
	graph    graph.Graph[string, string]
	fileName string
	out      io.Writer
	options  []DOTOption
}

// DOTOption customises the DOT description.
type DOTOption func(*description)

func newDOTDrawer(options []DOTOption) *DOTDrawer {
	st := store.NewMemoryStore[string, string]()

	return &DOTDrawer{
		store:   st,
		graph:   graph.NewWithStore(graph.StringHash, st, graph.Directed()),
		options: options,
	}
}

// NewDOTDrawer creates a drawer writing to fileName on every Draw.
func NewDOTDrawer(fileName string, options ...DOTOption) *DOTDrawer {
	d := newDOTDrawer(options)
	d.fileName = fileName

	return d
}

// NewDOTWriterDrawer creates a drawer writing to out on every Draw.
func NewDOTWriterDrawer(out io.Writer, options ...DOTOption) *DOTDrawer {
	d := newDOTDrawer(options)
	d.out = out

	return d
}

// AddStep adds a step to the graph.
func (d *DOTDrawer) AddStep(sequence, step string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.graph.AddVertex(VertexID(sequence, step),
		graph.VertexAttribute(attrStep, step),
		graph.VertexAttribute(attrSequence, sequence),
	)
	if err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
		return errors.Wrapf(err, "unable to add vertex %s", VertexID(sequence, step))
	}

	return nil
}

// AddLink adds a link between two steps.
func (d *DOTDrawer) AddLink(from, to string, attributes map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opts := make([]func(*graph.EdgeProperties), 0, len(attributes))
	for key, value := range attributes {
		opts = append(opts, graph.EdgeAttribute(key, value))
	}

	err := d.graph.AddEdge(from, to, opts...)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to add edge from %s to %s", from, to)
	}

	return nil
}

// Draw writes the DOT description of the graph.
func (d *DOTDrawer) Draw() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.out != nil {
		return dot(d.graph, d.out, d.options...)
	}

	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	err = dot(d.graph, file, d.options...)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", d.fileName)
	}

	return nil
}

const maxRGB = 240

// AddMeans annotates every vertex of a timed step with its mean duration.
// Colours go from blue for the fastest step to red for the slowest one.
func (d *DOTDrawer) AddMeans(means map[string]time.Duration) error {
	if len(means) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	minValue, maxValue := time.Duration(-1), time.Duration(0)
	for _, mean := range means {
		if minValue < 0 || mean < minValue {
			minValue = mean
		}
		maxValue = max(maxValue, mean)
	}

	adjacencyMap, err := d.graph.AdjacencyMap()
	if err != nil {
		return errors.Wrap(err, "unable to get adjacency map")
	}

	for vertex := range adjacencyMap {
		_, properties, err := d.graph.VertexWithProperties(vertex)
		if err != nil {
			return errors.Wrap(err, "unable to get vertex properties")
		}

		mean, ok := means[properties.Attributes[attrStep]]
		if !ok {
			continue
		}

		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(mean-minValue) / float64(maxValue-minValue)
		}

		colour, err := colors.RGB(uint8(maxRGB*fraction), 0, uint8(maxRGB-maxRGB*fraction)) //nolint
		if err != nil {
			return errors.Wrap(err, "unable to get colour")
		}

		err = d.store.SetVertexAttributes(vertex, map[string]string{
			attrMean: measure.Round(mean).String(),
			"color":  colour.ToHEX().String(),
		})
		if err != nil {
			return errors.Wrap(err, "unable to annotate vertex")
		}
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}="{{$v}}";
	{{end}}
	{{range $s := .Statements}}
		"{{.Source}}" {{if .Target}}{{$.EdgeOperator}} "{{.Target}}" [ {{range $k, $v := .EdgeAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .HTMLAttributes}}{{$k}}={{$v}}, {{end}} {{range $k, $v := .SourceAttributes}}{{$k}}="{{$v}}", {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           string
	Target           string
	SourceAttributes map[string]string
	HTMLAttributes   map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

func dot(g graph.Graph[string, string], wrt io.Writer, options ...DOTOption) error {
	desc, err := generateDOT(g, options...)
	if err != nil {
		return fmt.Errorf("failed to generate DOT description: %w", err)
	}

	return renderDOT(wrt, desc)
}

// GraphAttribute sets a graph attribute of the DOT description. rankdir defaults to LR.
func GraphAttribute(key, value string) DOTOption {
	return func(d *description) {
		d.Attributes[key] = value
	}
}

// generateDOT describes the graph with vertices and edges sorted by name.
func generateDOT(gra graph.Graph[string, string], options ...DOTOption) (description, error) {
	desc := description{
		GraphType:    "graph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "--",
		Statements:   make([]statement, 0),
	}

	for _, option := range options {
		option(&desc)
	}

	if gra.Traits().IsDirected {
		desc.GraphType = "digraph"
		desc.EdgeOperator = "->"
	}

	adjacencyMap, err := gra.AdjacencyMap()
	if err != nil {
		return desc, errors.Wrap(err, "unable to get adjacency map")
	}

	for _, vertex := range slices.Sorted(maps.Keys(adjacencyMap)) {
		_, sourceProperties, err := gra.VertexWithProperties(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		attributes := maps.Clone(sourceProperties.Attributes)
		step, sequence, mean := attributes[attrStep], attributes[attrSequence], attributes[attrMean]
		delete(attributes, attrStep)
		delete(attributes, attrSequence)
		delete(attributes, attrMean)

		label := fmt.Sprintf(`<%s <BR /> <FONT POINT-SIZE="10">%s</FONT>`, step, sequence)
		if mean != "" {
			label += fmt.Sprintf(` <BR /> <FONT POINT-SIZE="12">%s</FONT>`, mean)
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     sourceProperties.Weight,
			SourceAttributes: attributes,
			HTMLAttributes:   map[string]string{"label": label + ">"},
		})

		adjacencies := adjacencyMap[vertex]
		for _, adjacency := range slices.Sorted(maps.Keys(adjacencies)) {
			edge := adjacencies[adjacency]
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         adjacency,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)
