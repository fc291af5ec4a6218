package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"nodemonitor/internal/entity"
)

// NodeFile is the on-disk node list.
type NodeFile struct {
	Nodes []NodeEntry `yaml:"nodes"`
}

// NodeEntry describes one monitored endpoint in the node list file.
type NodeEntry struct {
	Service   string `yaml:"service"`
	Address   string `yaml:"address"`
	Transport string `yaml:"transport"`
	Network   string `yaml:"network"`
}

// LoadNodes reads and validates the node list file.
func LoadNodes(path string) ([]*entity.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node list %s: %w", path, err)
	}

	var file NodeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse node list %s: %w", path, err)
	}

	if len(file.Nodes) == 0 {
		return nil, fmt.Errorf("node list %s contains no nodes", path)
	}

	nodes := make([]*entity.Node, 0, len(file.Nodes))
	for i, e := range file.Nodes {
		node, err := entity.NewNode(
			entity.Service(e.Service),
			e.Address,
			entity.TransportKind(e.Transport),
			entity.NetworkID(e.Network),
		)
		if err != nil {
			return nil, fmt.Errorf("node list %s entry %d: %w", path, i, err)
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}
