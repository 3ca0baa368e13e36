package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"simfleet-svr/internal/aggregate"
	"simfleet-svr/internal/operator"
	"simfleet-svr/internal/sim"
)

func simsCmd() *cobra.Command {
	var (
		q        sim.Query
		provider string
		status   string
		sortKey  string
		page     int
		size     int
		refresh  bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "sims",
		Short: "Lista y busca SIMs de todos los proveedores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if provider != "" {
				p, ok := sim.ParseProvider(provider)
				if !ok {
					return fmt.Errorf("unknown provider %q", provider)
				}
				q.Provider = p
			}
			if status != "" {
				q.Status = sim.Status(status)
				if !q.Status.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
			}
			q.Sort = sim.ParseSortKey(sortKey)

			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			if a.store != nil {
				defer a.store.Close()
			}
			res, err := a.service(aggregate.Deps{}).Search(cmd.Context(), q, page, size, refresh)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ICCID\tPROVIDER\tSTATUS\tMSISDN\tOPERATOR\tLABEL")
			for _, s := range res.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ICCID, s.Provider, s.Status, s.MSISDN, s.Operator.Name, s.Label)
			}
			fmt.Fprintf(tw, "\npage %d/%d, %d total\n", res.Page.Page, res.TotalPages, res.Total)
			for p, e := range res.Errors {
				fmt.Fprintf(os.Stderr, "warning: %s: %s\n", p, e)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.Text, "query", "q", "", "texto a buscar (ICCID, MSISDN, IMEI, etiqueta...)")
	f.StringVar(&provider, "provider", "", "thingsmobile|phenix|truphone")
	f.StringVar(&status, "status", "", "active|suspended|deactivated|inventory|test|unknown")
	f.StringVar(&sortKey, "sort", "", "iccid|msisdn|label|lastSeen|provider")
	f.BoolVar(&q.Desc, "desc", false, "orden descendente")
	f.IntVar(&page, "page", 1, "página (1-based)")
	f.IntVar(&size, "page-size", sim.DefaultPageSize, "tamaño de página")
	f.BoolVar(&refresh, "refresh", false, "ignora la cache de inventario")
	f.BoolVar(&asJSON, "json", false, "salida JSON")
	return cmd
}

func detectCmd() *cobra.Command {
	var in sim.SIM
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detecta el operador de una SIM sin llamar a ningún proveedor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.ICCID != "" {
				iccid, err := sim.NormalizeICCID(in.ICCID)
				if err != nil {
					return err
				}
				in.ICCID = iccid
				if !operator.ValidICCID(iccid) && len(iccid) > 18 {
					want := operator.LuhnDigit(iccid[:len(iccid)-1])
					fmt.Fprintf(os.Stderr, "warning: ICCID check digit does not match, expected %c\n", want)
				}
			}
			if in.ICCID == "" && in.IMSI == "" && in.MSISDN == "" {
				return fmt.Errorf("one of --iccid, --imsi or --msisdn is required")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(operator.Detect(in))
		},
	}
	cmd.Flags().StringVar(&in.ICCID, "iccid", "", "ICCID")
	cmd.Flags().StringVar(&in.IMSI, "imsi", "", "IMSI")
	cmd.Flags().StringVar(&in.MSISDN, "msisdn", "", "MSISDN")
	return cmd
}

func vehicleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vehicle <plate>",
		Short: "Consulta una matrícula francesa en el SIV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			if a.store != nil {
				defer a.store.Close()
			}
			v := a.vehicles()
			if v == nil {
				return fmt.Errorf("SIV is not configured (SIV_API_KEY)")
			}
			veh, err := v.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(veh)
		},
	}
}
