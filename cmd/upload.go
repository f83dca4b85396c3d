package cmd

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/s0up4200/reqflow/field"
	"github.com/s0up4200/reqflow/upload"
)

var (
	uploadAPI       string
	uploadField     string
	uploadResult    string
	uploadKind      string
	uploadForm      []string
	concurrency     int
	cancelOnFailure bool
	quiet           bool
)

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload files concurrently and print their result fields",
	Long: `Upload local files to the configured upload endpoint, one multipart call
per file, and print the extracted result field of each, in argument order.

Aggregate progress is reported on stderr. The batch fails on the first
failed file; --cancel-on-failure also stops the files still in flight.`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: initializeClient,
	RunE:    runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadAPI, "api", "", "upload endpoint (default from config)")
	uploadCmd.Flags().StringVar(&uploadField, "field", "", "multipart file field name (default from config)")
	uploadCmd.Flags().StringVar(&uploadResult, "result", "", "result field as a dotted path (default from config)")
	uploadCmd.Flags().StringVar(&uploadKind, "kind", string(upload.KindImage), "media kind (image, video)")
	uploadCmd.Flags().StringArrayVarP(&uploadForm, "form", "F", nil, "extra form value as name=value")
	uploadCmd.Flags().IntVar(&concurrency, "concurrency", -1, "parallel transfers; 0 is unlimited (default from config)")
	uploadCmd.Flags().BoolVar(&cancelOnFailure, "cancel-on-failure", false, "cancel in-flight files when one fails")
	uploadCmd.Flags().DurationVar(&timeout, "timeout", 0, "per-file transport timeout (default from config)")
	uploadCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "don't report progress")
}

// uploadOptions builds batch options from flags and config
func uploadOptions() (upload.Options, error) {
	kind := upload.Kind(strings.ToLower(uploadKind))
	if kind != upload.KindImage && kind != upload.KindVideo {
		return upload.Options{}, fmt.Errorf("invalid kind: %s (must be 'image' or 'video')", uploadKind)
	}

	opts := upload.Options{
		Kind:            kind,
		API:             uploadAPI,
		RequestField:    uploadField,
		Concurrency:     cfg.Upload.Concurrency,
		CancelOnFailure: cancelOnFailure,
		Timeout:         timeout,
	}
	if concurrency >= 0 {
		opts.Concurrency = concurrency
	}

	if uploadResult != "" {
		d := field.Path(strings.Split(uploadResult, ".")...)
		opts.ResultField = &d
	}

	if len(uploadForm) > 0 {
		opts.FormData = make(map[string]string, len(uploadForm))
		for _, pair := range uploadForm {
			name, value, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				return upload.Options{}, fmt.Errorf("invalid form value %q, want name=value", pair)
			}
			opts.FormData[name] = value
		}
	}
	return opts, nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	opts, err := uploadOptions()
	if err != nil {
		return err
	}

	orch := upload.New(client, upload.FileSelector{Paths: args}, upload.WithLogger(logger))
	task := orch.Upload(cmd.Context(), opts)

	stderr := cmd.ErrOrStderr()
	var mu sync.Mutex
	if !quiet {
		task.OnStart(func() {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(stderr, "Uploading %d file(s)...\n", len(args))
		}).OnProgress(func(p float64) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(stderr, "  %3.0f%%\n", p*100)
		})
	}

	results, err := task.Wait(cmd.Context())
	if err != nil {
		task.Abort()
		return err
	}

	out := cmd.OutOrStdout()
	for i, result := range results {
		if s, ok := result.(string); ok {
			fmt.Fprintf(out, "%s\t%s\n", args[i], s)
			continue
		}
		fmt.Fprintf(out, "%s\t", args[i])
		if err := writeJSON(out, field.Normalize(result)); err != nil {
			return err
		}
	}
	return nil
}
