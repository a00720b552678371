package stratum

import (
	"strings"

	"github.com/emicklei/dot"
	. "github.com/stevegt/goadapt"
)

// Summary returns a human-readable listing of each layer's input
// shape and output size.
func (n *Network) Summary() (out string) {
	var buf strings.Builder
	buf.WriteString("===============================\n")
	buf.WriteString("      Network Summary:\n\n")
	buf.WriteString(" (input size) -> (output size)\n\n")
	for i, l := range n.layers {
		buf.WriteString(Spf("Layer %d: %s -> (%d)\n", i+1, l.InputShape(), l.NumOutputs()))
	}
	buf.WriteString("===============================\n")
	out = buf.String()
	return
}

// PrintSummary writes the summary to stdout.
func (n *Network) PrintSummary() {
	Pf("%s", n.Summary())
}

// Graph returns the layer topology as a directed graphviz graph, one
// node per layer, edges in forward order.
func (n *Network) Graph() (g *dot.Graph) {
	g = dot.NewGraph(dot.Directed)
	if n.Name != "" {
		g.Attr("label", n.Name)
	}
	in := g.Node("inputs").Label(Spf("inputs %s", n.inputShape))
	prev := in
	for i, l := range n.layers {
		node := g.Node(Spf("layer%d", i+1)).
			Label(Spf("layer %d: %s -> (%d)", i+1, l.InputShape(), l.NumOutputs()))
		g.Edge(prev, node)
		prev = node
	}
	out := g.Node("outputs").Label(Spf("outputs (%d)", n.numOutputs))
	g.Edge(prev, out)
	return
}
