package analytics

import (
	"cmp"
	"slices"

	"rankrent/internal/sessions"
)

// FlowEdge is a directed transition between two distinct pages.
type FlowEdge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Count int    `json:"count"`
}

// FlowNode lists a page's strongest outgoing transitions.
type FlowNode struct {
	Page     string     `json:"page"`
	Total    int        `json:"total"`
	Outgoing []FlowEdge `json:"outgoing"`
}

// BuildFlowGraph counts consecutive page transitions and keeps the topN
// outgoing edges per page. Reloads of the same page are not transitions.
func BuildFlowGraph(list []sessions.Session, topN int) []FlowNode {
	p := NewPartial(nil)
	for _, s := range list {
		p.AddSession(s)
	}
	return p.flowGraph(topN)
}

func (p *Partial) flowGraph(topN int) []FlowNode {
	byPage := make(map[string]*FlowNode)
	for e, n := range p.edges {
		node, ok := byPage[e.from]
		if !ok {
			node = &FlowNode{Page: e.from}
			byPage[e.from] = node
		}
		node.Total += n
		node.Outgoing = append(node.Outgoing, FlowEdge{From: e.from, To: e.to, Count: n})
	}

	out := make([]FlowNode, 0, len(byPage))
	for _, node := range byPage {
		slices.SortFunc(node.Outgoing, func(a, b FlowEdge) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(a.To, b.To)
		})
		if topN > 0 && len(node.Outgoing) > topN {
			node.Outgoing = node.Outgoing[:topN]
		}
		out = append(out, *node)
	}
	slices.SortFunc(out, func(a, b FlowNode) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.Page, b.Page)
	})
	return out
}
