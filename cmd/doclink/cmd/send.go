package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/corey/doclink/internal/adapters/samplefile"
	"github.com/corey/doclink/internal/adapters/socket"
	"github.com/corey/doclink/internal/app"
	"github.com/corey/doclink/internal/ports"
)

var (
	sendRate      float64
	sendBatchSize int
	sendSpool     bool
)

var sendCmd = &cobra.Command{
	Use:   "send <documents-file>",
	Short: "Send documents to the daemon",
	Long: "Reads documents (a JSON object of documents, a JSON array, or JSONL) and\n" +
		"sends them to the daemon in batches. With --spool the documents are\n" +
		"written as one JSONL file into the spool directory instead.",
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().Float64Var(&sendRate, "rate", 0, "Records per second, 0 = unlimited (default send.rate)")
	sendCmd.Flags().IntVar(&sendBatchSize, "batch-size", 0, "Records per batch (default send.batch_size)")
	sendCmd.Flags().BoolVar(&sendSpool, "spool", false, "Write a spool file instead of using the socket")
}

func runSend(cmd *cobra.Command, args []string) error {
	docs, err := samplefile.ReadDocuments(args[0])
	if err != nil {
		return err
	}
	root := projectRoot()

	if sendSpool {
		paths := app.NewPaths(root)
		paths.UseSpoolDir(root, settings.Spool.Dir)
		path, err := writeSpoolFile(paths.SpoolDir, docs)
		if err != nil {
			return err
		}
		fmt.Printf("⚡ spooled %d documents to %s\n", len(docs), path)
		return nil
	}

	client := socket.NewClient(socket.SocketPath(root))
	if !client.Ping() {
		return errDaemonNotRunning
	}

	r := settings.Send.Rate
	if cmd.Flags().Changed("rate") {
		r = sendRate
	}
	size := settings.Send.BatchSize
	if cmd.Flags().Changed("batch-size") {
		size = sendBatchSize
	}
	if r < 0 || size <= 0 {
		return fmt.Errorf("--rate must be >= 0 and --batch-size > 0")
	}

	records, err := buildRecords(docs)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if r > 0 {
		limiter = rate.NewLimiter(rate.Limit(r), size)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	failed := 0
	for _, batch := range chunk(records, size) {
		if limiter != nil {
			if err := limiter.WaitN(ctx, len(batch)); err != nil {
				return err
			}
		}
		res, err := client.Ingest(batch)
		if err != nil {
			return fmt.Errorf("send batch: %w", err)
		}
		failed += res.Failed
		fmt.Print(formatBatch(res))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d records failed", failed, len(records))
	}
	fmt.Printf("⚡ sent %d documents\n", len(records))
	return nil
}

// buildRecords wraps documents as batch records with generated ids.
func buildRecords(docs []ports.Document) ([]ports.BatchRecord, error) {
	records := make([]ports.BatchRecord, len(docs))
	for i, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		records[i] = ports.BatchRecord{ID: uuid.NewString(), Body: string(body)}
	}
	return records, nil
}

// chunk splits records into batches of at most size.
func chunk(records []ports.BatchRecord, size int) [][]ports.BatchRecord {
	var out [][]ports.BatchRecord
	for len(records) > size {
		out = append(out, records[:size:size])
		records = records[size:]
	}
	if len(records) > 0 {
		out = append(out, records)
	}
	return out
}

// writeSpoolFile writes docs as JSONL into dir. The file is written under a
// hidden temp name and renamed so the spool watcher only sees it complete.
func writeSpoolFile(dir string, docs []ports.Document) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := "send-" + uuid.NewString() + ".jsonl"
	tmp := filepath.Join(dir, "."+name+".tmp")
	final := filepath.Join(dir, name)

	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			f.Close()
			os.Remove(tmp)
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return final, nil
}
