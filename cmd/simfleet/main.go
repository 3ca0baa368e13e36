package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "simfleet",
		Short:         "Inventario unificado de SIMs y flota (Flespi, Things Mobile, Phenix, Truphone, SIV)",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(serveCmd(), simsCmd(), detectCmd(), vehicleCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
