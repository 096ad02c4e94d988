package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/droplet-sim/droplet-sim/sim"
)

// fluidsCmd lists the recognized fluid pairs
var fluidsCmd = &cobra.Command{
	Use:   "fluids",
	Short: "List the supported fluid pairs and their properties",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printFluidPairs(cmd.OutOrStdout())
	},
}

func printFluidPairs(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAIR\tRHO1\tRHO2\tMU1\tMU2\tSIGMA")
	for _, fp := range sim.FluidPairs() {
		p, err := fp.Properties()
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%g\t%g\t%g\t%g\t%g\n", fp, p.Rho1, p.Rho2, p.Mu1, p.Mu2, p.Sigma)
	}
	return tw.Flush()
}
