package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/s0up4200/reqflow/field"
	"github.com/s0up4200/reqflow/filter"
	"github.com/s0up4200/reqflow/request"
)

var (
	method      string
	dataArgs    []string
	headerArgs  []string
	jqExpr      string
	where       string
	timeout     time.Duration
	repeatTime  time.Duration
	toast       bool
	mark        string
	throttleGap time.Duration
)

// requestCmd sends a single call
var requestCmd = &cobra.Command{
	Use:   "request <endpoint>",
	Short: "Send a call and print its decoded data",
	Long: `Send a call through the pipeline and print the decoded data as JSON.

Data is given as key.path=value pairs; values that parse as JSON are sent as
such, anything else as a string:

  reqflow request users -X POST -d name=ann -d profile.age=31 -d 'tags=["admin"]'`,
	Args:    cobra.ExactArgs(1),
	PreRunE: initializeClient,
	RunE:    runRequest,
}

// throttleCmd sends a burst of throttled calls
var throttleCmd = &cobra.Command{
	Use:   "throttle <endpoint>...",
	Short: "Send throttled calls; only the last of a burst goes out",
	Long: `Send one throttled call per endpoint argument, in order, sharing the
same mark. Calls superseded by a later one report "request overridden".`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: initializeClient,
	RunE:    runThrottle,
}

func init() {
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(throttleCmd)

	for _, c := range []*cobra.Command{requestCmd, throttleCmd} {
		c.Flags().StringVarP(&method, "method", "X", "GET", "HTTP method")
		c.Flags().StringArrayVarP(&dataArgs, "data", "d", nil, "request data as key.path=value")
		c.Flags().StringArrayVarP(&headerArgs, "header", "H", nil, "request header as name:value")
		c.Flags().StringVar(&jqExpr, "jq", "", "jq filter applied to the decoded data")
		c.Flags().StringVar(&where, "where", "", "keep list items matching this expression, e.g. 'age > 30'")
		c.Flags().DurationVar(&timeout, "timeout", 0, "transport timeout (default from config)")
	}
	requestCmd.Flags().DurationVar(&repeatTime, "repeat", -1, "repeat-suppression window; 0 disables (default from config)")
	requestCmd.Flags().BoolVar(&toast, "toast", false, "log the failure message as a toast")
	throttleCmd.Flags().StringVar(&mark, "mark", "", "throttle discriminator")
	throttleCmd.Flags().DurationVar(&throttleGap, "gap", 0, "pause between calls")
}

// callOptions builds request options from the shared flags
func callOptions(endpoint string) (request.Options, error) {
	data, err := parseData(dataArgs)
	if err != nil {
		return request.Options{}, err
	}
	header, err := parseHeaders(headerArgs)
	if err != nil {
		return request.Options{}, err
	}

	return request.Options{
		URL:     endpoint,
		Method:  strings.ToUpper(method),
		Data:    data,
		Header:  header,
		Timeout: timeout,
	}, nil
}

func runRequest(cmd *cobra.Command, args []string) error {
	opts, err := callOptions(args[0])
	if err != nil {
		return err
	}
	opts.Toast = toast
	if repeatTime >= 0 {
		opts.RepeatTime = request.Repeat(repeatTime)
	}

	ctx := cmd.Context()
	task := client.Do(ctx, opts)
	stop := context.AfterFunc(ctx, task.Abort)
	defer stop()

	value, err := task.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	if value, err = applyWhere(value, where); err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), value, jqExpr)
}

func runThrottle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tasks := make([]*request.Task, 0, len(args))
	for i, endpoint := range args {
		opts, err := callOptions(endpoint)
		if err != nil {
			return err
		}
		tasks = append(tasks, client.Throttle(ctx, opts, mark))
		if throttleGap > 0 && i < len(args)-1 {
			time.Sleep(throttleGap)
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)
	out := cmd.OutOrStdout()
	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := task.Wait(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				fmt.Fprintf(out, "[%d] %s: %v\n", i, args[i], err)
				return
			}
			fmt.Fprintf(out, "[%d] %s:\n", i, args[i])
			value, perr := applyWhere(value, where)
			if perr == nil {
				perr = printResult(out, value, jqExpr)
			}
			if perr != nil {
				failures++
				fmt.Fprintf(out, "[%d] %v\n", i, perr)
			}
		}()
	}
	wg.Wait()

	if failures == len(tasks) {
		return fmt.Errorf("all %d calls failed", failures)
	}
	return nil
}

// parseData builds a data map from key.path=value pairs with sjson
func parseData(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	doc := "{}"
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid data %q, want key.path=value", pair)
		}

		var err error
		if gjson.Valid(value) {
			doc, err = sjson.SetRaw(doc, key, value)
		} else {
			doc, err = sjson.Set(doc, key, value)
		}
		if err != nil {
			return nil, fmt.Errorf("invalid data %q: %w", pair, err)
		}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return data, nil
}

func parseHeaders(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	header := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, want name:value", pair)
		}
		header[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return header, nil
}

// applyWhere keeps the items of a list value that match expression
func applyWhere(value any, expression string) (any, error) {
	if expression == "" {
		return value, nil
	}
	items, ok := field.Normalize(value).([]any)
	if !ok {
		return nil, fmt.Errorf("--where needs a list result, got %T", value)
	}
	f, err := filter.Compile(expression)
	if err != nil {
		return nil, err
	}
	return f.Apply(items)
}

// printResult writes value as indented JSON, through a jq filter if given
func printResult(w io.Writer, value any, expr string) error {
	value = field.Normalize(value)

	if expr == "" {
		return writeJSON(w, value)
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("invalid jq expression: %w", err)
	}

	iter := code.Run(value)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if err := writeJSON(w, v); err != nil {
			return err
		}
	}
}

func writeJSON(w io.Writer, v any) error {
	if s, ok := v.(string); ok {
		_, err := fmt.Fprintln(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
