package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gocaliper/caliper/node"
	"github.com/gocaliper/caliper/service"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Run a demo sequence and print the node trie",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := runDemo(cmd)
		if err != nil {
			return err
		}
		f.ForeachNode(func(info node.NodeInfo) {
			fmt.Printf("%d parent=%d %s\n", info.ID, info.ParentID, service.NodeLabel(f.Attributes(), info))
		})
		return nil
	},
}
