package community

import "sort"

// Link ties two entities that appear together in a finding. Direction is
// ignored.
type Link struct {
	A string
	B string
}

// Cluster is a connected group of flagged entities.
type Cluster struct {
	ID      int      `json:"cluster_id"`
	Members []string `json:"members"`
	Links   int      `json:"links"`
}

type Detector interface {
	Detect(nodes []string, links []Link) []Cluster
}

// SimpleDetector finds connected components with a depth-first walk.
type SimpleDetector struct{}

func NewSimpleDetector() Detector {
	return &SimpleDetector{}
}

// Detect returns components of two or more members, largest first. Nodes
// that only appear in links are included.
func (d *SimpleDetector) Detect(nodes []string, links []Link) []Cluster {
	known := make(map[string]bool, len(nodes))
	order := make([]string, 0, len(nodes))
	add := func(id string) {
		if id != "" && !known[id] {
			known[id] = true
			order = append(order, id)
		}
	}
	for _, n := range nodes {
		add(n)
	}

	adj := make(map[string][]string)
	seen := make(map[Link]bool, len(links))
	for _, l := range links {
		if l.A == "" || l.B == "" || l.A == l.B {
			continue
		}
		if l.A > l.B {
			l.A, l.B = l.B, l.A
		}
		if seen[l] {
			continue
		}
		seen[l] = true
		add(l.A)
		add(l.B)
		adj[l.A] = append(adj[l.A], l.B)
		adj[l.B] = append(adj[l.B], l.A)
	}

	visited := make(map[string]bool)
	var clusters []Cluster
	for _, id := range order {
		if visited[id] {
			continue
		}
		var members []string
		d.dfs(id, adj, visited, &members)
		if len(members) < 2 {
			continue
		}
		degree := 0
		for _, m := range members {
			degree += len(adj[m])
		}
		sort.Strings(members)
		clusters = append(clusters, Cluster{Members: members, Links: degree / 2})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return len(clusters[i].Members) > len(clusters[j].Members)
	})
	for i := range clusters {
		clusters[i].ID = i + 1
	}
	return clusters
}

func (d *SimpleDetector) dfs(u string, adj map[string][]string, visited map[string]bool, component *[]string) {
	visited[u] = true
	*component = append(*component, u)
	for _, v := range adj[u] {
		if !visited[v] {
			d.dfs(v, adj, visited, component)
		}
	}
}
