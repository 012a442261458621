package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corey/doclink/internal/adapters/samplefile"
	"github.com/corey/doclink/internal/adapters/web"
	"github.com/corey/doclink/internal/config"
	"github.com/corey/doclink/internal/ports"
)

var (
	runSamples   string
	runDocuments string
	runEphemeral bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a samples file and a documents file in one shot",
	Long: "Registers every sample, sends each document through the batch handler as\n" +
		"a one-record batch and prints each response, then prints the resulting\n" +
		"match groups. No daemon is involved.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runSamples, "samples", "", "Samples file (json, yaml or toml)")
	runCmd.Flags().StringVar(&runDocuments, "documents", "", "Documents file (json object, json array or jsonl)")
	runCmd.Flags().BoolVar(&runEphemeral, "ephemeral", false, "Use an in-memory store")
	runCmd.MarkFlagRequired("samples")
	runCmd.MarkFlagRequired("documents")
}

func runRun(cmd *cobra.Command, args []string) error {
	samples, err := samplefile.ReadSamples(runSamples)
	if err != nil {
		return err
	}
	docs, err := samplefile.ReadDocuments(runDocuments)
	if err != nil {
		return err
	}

	cfg := *settings
	if runEphemeral {
		cfg.Storage.Driver = config.DriverMemory
	}
	a, err := openOffline(projectRoot(), &cfg)
	if err != nil {
		return err
	}
	defer a.Stop()

	for _, s := range samples {
		if _, err := a.AddSample(s.ID, s.Description); err != nil {
			return fmt.Errorf("sample %s: %w", s.ID, err)
		}
	}

	out := cmd.OutOrStdout()
	failed, err := runDocumentsThrough(out, a.Ingest, docs)
	if err != nil {
		return err
	}

	groups, err := a.GroupList("")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Matches:")
	if err := writeJSON(out, groups); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(docs))
	}
	return nil
}

// runDocumentsThrough sends each document as a one-record batch and prints
// each batch response. Returns the number of failed records.
func runDocumentsThrough(out io.Writer, ingest func([]ports.BatchRecord) ports.BatchResult, docs []ports.Document) (int, error) {
	failed := 0
	for i, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return failed, fmt.Errorf("document %d: %w", i, err)
		}
		res := ingest([]ports.BatchRecord{{ID: uuid.NewString(), Body: string(body)}})
		failed += res.Failed
		if err := writeJSON(out, web.NewBatchResponse(res)); err != nil {
			return failed, err
		}
	}
	return failed, nil
}
