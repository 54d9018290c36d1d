package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"gossipchain/core"
)

// NewInspectQuarantineCmd returns the command that lists quarantined chain
// pairs of every node that used the data directory. Stores of running nodes are
// locked and skipped.
func NewInspectQuarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inspect-quarantine",
		Short:   "List irreconcilable chain pairs stored by nodes on this data directory",
		PreRunE: loadConfig,
		RunE:    inspectQuarantine,
	}

	AddConfigFlags(cmd)

	return cmd
}

func inspectQuarantine(cmd *cobra.Command, args []string) error {
	if conf.DataDir == "" {
		return errors.New("datadir is required")
	}
	owners, err := core.QuarantineOwners(conf.DataDir)
	if err != nil {
		return err
	}

	data := pterm.TableData{{"Node", "Key", "At", "Local", "Remote", "Cause"}}
	for _, owner := range owners {
		conflicts, err := ownerConflicts(owner)
		if err != nil {
			pterm.Warning.Printfln("Skipping %s: %v", owner, err)
			continue
		}
		for _, c := range conflicts {
			data = append(data, []string{
				owner,
				c.Key,
				c.At.UTC().Format(time.RFC3339),
				strconv.Itoa(len(c.Local)),
				strconv.Itoa(len(c.Remote)),
				c.Cause,
			})
		}
	}
	if len(data) == 1 {
		pterm.Info.Println("No quarantined chains")
		return nil
	}

	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), s)
	return nil
}

// ownerConflicts reads the store of one node. It fails while that node runs.
func ownerConflicts(owner string) ([]core.Conflict, error) {
	store, err := core.OpenQuarantineStore(conf.DataDir, owner)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Conflicts()
}
