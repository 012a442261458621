package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/adapters/samplefile"
	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/ports"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Manage samples",
	Long:  "Registers and lists samples. Uses the daemon when it is running, the store directly otherwise.",
}

var sampleAddCmd = &cobra.Command{
	Use:   "add <sample_id> <description-json>",
	Short: "Register or replace a sample",
	Args:  cobra.ExactArgs(2),
	RunE:  runSampleAdd,
}

var sampleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered samples",
	Args:  cobra.NoArgs,
	RunE:  runSampleList,
}

var sampleImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Register every sample in a json, yaml or toml file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSampleImport,
}

var sampleListJSON bool

func init() {
	sampleListCmd.Flags().BoolVar(&sampleListJSON, "json", false, "Print samples as JSON")
	sampleCmd.AddCommand(sampleAddCmd)
	sampleCmd.AddCommand(sampleListCmd)
	sampleCmd.AddCommand(sampleImportCmd)
}

func runSampleAdd(cmd *cobra.Command, args []string) error {
	var desc map[string]any
	if err := socket.DecodeJSON([]byte(args[1]), &desc); err != nil || desc == nil {
		return fmt.Errorf("description must be a JSON object")
	}

	replaced, err := addSamples([]ports.SampleRecord{{ID: args[0], Description: desc}})
	if err != nil {
		return err
	}
	if replaced > 0 {
		fmt.Printf("⚡ sample %s replaced\n", args[0])
	} else {
		fmt.Printf("⚡ sample %s added\n", args[0])
	}
	return nil
}

func runSampleImport(cmd *cobra.Command, args []string) error {
	recs, err := samplefile.ReadSamples(args[0])
	if err != nil {
		return err
	}
	replaced, err := addSamples(recs)
	if err != nil {
		return err
	}
	fmt.Printf("⚡ imported %d samples (%d replaced)\n", len(recs), replaced)
	return nil
}

// addSamples registers recs through the daemon if it is running, else
// against the store. Returns how many replaced an existing sample.
func addSamples(recs []ports.SampleRecord) (int, error) {
	root := projectRoot()
	client := socket.NewClient(socket.SocketPath(root))

	replaced := 0
	if client.Ping() {
		for _, rec := range recs {
			res, err := client.AddSample(rec.ID, rec.Description)
			if err != nil {
				return replaced, fmt.Errorf("sample %s: %w", rec.ID, err)
			}
			if res.Replaced {
				replaced++
			}
		}
		return replaced, nil
	}

	a, err := openOffline(root, settings)
	if err != nil {
		return 0, err
	}
	defer a.Stop()
	for _, rec := range recs {
		r, err := a.AddSample(rec.ID, rec.Description)
		if err != nil {
			return replaced, fmt.Errorf("sample %s: %w", rec.ID, err)
		}
		if r {
			replaced++
		}
	}
	return replaced, nil
}

func runSampleList(cmd *cobra.Command, args []string) error {
	root := projectRoot()
	client := socket.NewClient(socket.SocketPath(root))

	var samples []ports.SampleRecord
	if client.Ping() {
		res, err := client.Samples()
		if err != nil {
			return err
		}
		samples = res.Samples
	} else {
		a, err := openOffline(root, settings)
		if err != nil {
			return err
		}
		samples = a.SampleList()
		a.Stop()
	}

	if sampleListJSON {
		return writeJSON(cmd.OutOrStdout(), samples)
	}
	fmt.Fprint(cmd.OutOrStdout(), formatSamples(samples))
	return nil
}
