package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gocaliper/caliper/attribute"
)

var attrsCmd = &cobra.Command{
	Use:   "attrs",
	Short: "Run a demo sequence and print the attribute registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := runDemo(cmd)
		if err != nil {
			return err
		}
		f.ForeachAttribute(func(a *attribute.Attribute) {
			fmt.Printf("%d\t%s\t%v\n", a.ID, a.Name, a.Properties)
		})
		return nil
	},
}
