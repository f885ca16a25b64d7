package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/joseph-ayodele/parivyaya/internal/server"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "JobsService address")
	file := flag.String("file", "", "PDF document to submit")
	jobID := flag.String("job", "", "existing job id to inspect instead of submitting")
	wait := flag.Bool("wait", false, "poll until the job is COMPLETED or FAILED")
	interval := flag.Duration("interval", 2*time.Second, "poll interval for -wait")
	records := flag.Bool("records", false, "print the job's records")
	exportPath := flag.String("export", "", "write the job's records as XLSX to this path")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *file == "" && *jobID == "" {
		fmt.Fprintln(os.Stderr, "usage: submit -file document.pdf [-wait] [-records] [-export out.xlsx]")
		fmt.Fprintln(os.Stderr, "       submit -job <id> [-wait] [-records] [-export out.xlsx]")
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*addr, append(server.DialOptions(),
		grpc.WithTransportCredentials(insecure.NewCredentials()))...)
	if err != nil {
		logger.Error("failed to create client", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	client := server.NewJobsClient(conn)

	ctx := context.Background()

	id := *jobID
	if *file != "" {
		content, err := os.ReadFile(*file)
		if err != nil {
			logger.Error("failed to read document", "path", *file, "error", err)
			os.Exit(1)
		}
		resp, err := client.Submit(ctx, &server.SubmitRequest{Filename: filepath.Base(*file), Content: content})
		if err != nil {
			logger.Error("submit failed", "path", *file, "error", err)
			os.Exit(1)
		}
		id = resp.JobID
		fmt.Println(id)
	}

	job, err := client.GetJob(ctx, &server.GetJobRequest{JobID: id})
	if err != nil {
		logger.Error("get job failed", "job_id", id, "error", err)
		os.Exit(1)
	}
	for *wait && !job.Job.Status.Terminal() {
		time.Sleep(*interval)
		if job, err = client.GetJob(ctx, &server.GetJobRequest{JobID: id}); err != nil {
			logger.Error("get job failed", "job_id", id, "error", err)
			os.Exit(1)
		}
	}
	printJob(job)

	if *records {
		resp, err := client.ListRecords(ctx, &server.ListRecordsRequest{JobID: id, Limit: 1000})
		if err != nil {
			logger.Error("list records failed", "job_id", id, "error", err)
			os.Exit(1)
		}
		for _, r := range resp.Records {
			fmt.Printf("%s\t%-40s\t%10.2f %s\t%s / %s (%s)\n",
				r.OccurredAt.Format("2006-01-02"), r.Label, r.Value, r.Unit,
				r.ClassificationPrimary, r.ClassificationDetailed, r.ConfidenceLevel)
		}
	}

	if *exportPath != "" {
		resp, err := client.ExportRecords(ctx, &server.ExportRecordsRequest{JobID: id})
		if err != nil {
			logger.Error("export failed", "job_id", id, "error", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, resp.Xlsx, 0o644); err != nil {
			logger.Error("failed to write export", "path", *exportPath, "error", err)
			os.Exit(1)
		}
		logger.Info("export written", "path", *exportPath, "bytes", len(resp.Xlsx))
	}
}

func printJob(resp *server.GetJobResponse) {
	j := resp.Job
	fmt.Printf("job %s (%s): %s\n", j.ID, j.SourceName, j.Status)
	if j.RecordCount != nil {
		fmt.Printf("  records: %d\n", *j.RecordCount)
	}
	if j.ErrorMessage != nil {
		fmt.Printf("  error: %s\n", *j.ErrorMessage)
	}
}
