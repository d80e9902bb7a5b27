package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gocaliper/caliper/attribute"
	"github.com/gocaliper/caliper/node"
	"github.com/gocaliper/caliper/service"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Run a demo sequence and print both the attribute registry and the node trie",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := runDemo(cmd)
		if err != nil {
			return err
		}

		fmt.Println("attributes:")
		f.ForeachAttribute(func(a *attribute.Attribute) {
			fmt.Printf("  %d %s\n", a.ID, a.Name)
		})

		fmt.Println("nodes:")
		f.ForeachNode(func(info node.NodeInfo) {
			fmt.Printf("  %s\n", service.NodeLabel(f.Attributes(), info))
		})

		return nil
	},
}
