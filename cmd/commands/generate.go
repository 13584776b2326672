package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ncobase/genqueue/client"
	"github.com/spf13/cobra"
)

// NewGenerateCommand creates the generate command. It submits a request
// body to a capability and, unless --no-wait is given, polls for the result.
func NewGenerateCommand() *cobra.Command {
	var (
		data   string
		file   string
		noWait bool
	)

	cmd := &cobra.Command{
		Use:   "generate <capability>",
		Short: "Submit a generation job and wait for its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd.InOrStdin(), data, file)
			if err != nil {
				return err
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}

			jobID, err := c.Submit(cmd.Context(), args[0], body)
			if err != nil {
				return err
			}
			if noWait {
				fmt.Fprintln(cmd.OutOrStdout(), jobID)
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "queued %s\n", jobID)

			res, err := c.AwaitResult(cmd.Context(), args[0], jobID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), client.Text(res))
			return nil
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "request body as JSON, - reads stdin")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the request body from a file")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "print the job id without polling")
	return cmd
}

// NewAwaitCommand creates the await command, which polls an existing job.
func NewAwaitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "await <capability> <jobId>",
		Short: "Poll a job until it completes or fails",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			res, err := c.AwaitResult(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), client.Text(res))
			return nil
		},
	}
}

// newClient reads GENQUEUE_* settings and reports progress on stderr.
func newClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := client.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}
	poller := client.Poller{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollAttempts,
		OnPoll: func(st *client.JobStatus) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %d%%\n", st.Status, st.Progress)
		},
	}
	return client.New(cfg, client.WithPoller(poller)), nil
}

func readBody(stdin io.Reader, data, file string) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	switch {
	case data != "" && file != "":
		return nil, errors.New("use either --data or --file")
	case data == "-":
		raw, err = io.ReadAll(stdin)
	case data != "":
		raw = []byte(data)
	case file != "":
		raw, err = os.ReadFile(file)
	default:
		raw = []byte("{}")
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(raw) {
		return nil, errors.New("request body is not valid JSON")
	}
	return raw, nil
}
