package main

import (
	"context"
	"fmt"
	"io"

	"github.com/alejandrodnm/fairline/internal/adapters/oddsapi"
	"github.com/olekukonko/tablewriter"
)

// listSports imprime los deportes activos. /sports no consume cuota.
func listSports(ctx context.Context, client *oddsapi.Client, w io.Writer) error {
	sports, err := client.FetchSports(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Key", "Group", "Title", "Outrights")
	active := 0
	for _, s := range sports {
		if !s.Active {
			continue
		}
		active++
		outrights := ""
		if s.HasOutrights {
			outrights = "yes"
		}
		table.Append(s.Key, s.Group, s.Title, outrights)
	}
	table.Render()
	fmt.Fprintf(w, "%d active sports\n", active)
	return nil
}
