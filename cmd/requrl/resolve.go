package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/namikmesic/requrl/internal/client"
	"github.com/namikmesic/requrl/internal/stream"
	"github.com/namikmesic/requrl/internal/urlopts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type resolveFlags struct {
	opts     urlopts.Options
	params   []string
	auth     string
	file     string
	remote   string
	timeout  time.Duration
	logLevel string
}

func newResolveCmd() *cobra.Command {
	f := &resolveFlags{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve request URL options into a URL",
		Long: `Resolve request URL options into a URL.

Options come from flags, from a YAML or JSON file holding one options object
or a list of them, or both. Flags override the fields of every file entry.
Each resolved href is printed on its own line; rejected options are reported
on stderr and make the command fail.`,
		Example: `  requrl resolve --protocol https --hostname example.com --path '/a?b=c'
  requrl resolve --origin https://example.com --param q=go --param page=2
  requrl resolve --file batch.yaml --remote http://localhost:8090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogger(f.logLevel)

			if cmd.Flags().Changed("auth") {
				f.opts.Auth = &f.auth
			}
			batch, err := f.batch()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var rejected int
			if f.remote != "" {
				rejected, err = resolveRemote(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), f.remote, f.timeout, batch)
			} else {
				rejected = resolveLocal(cmd.OutOrStdout(), cmd.ErrOrStderr(), batch)
			}
			if err != nil {
				return err
			}
			if rejected > 0 {
				return fmt.Errorf("%d of %d options rejected", rejected, len(batch))
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.opts.Href, "href", "", "full URL to start from")
	fl.StringVar(&f.opts.Origin, "origin", "", "origin to start from, e.g. https://example.com")
	fl.StringVar(&f.opts.Path, "path", "", "pathname and search in one, e.g. /a?b=c")
	fl.StringVar(&f.opts.Protocol, "protocol", "", "URL scheme, with or without the trailing colon")
	fl.StringVar(&f.opts.Host, "host", "", "host with optional port")
	fl.StringVar(&f.opts.Hostname, "hostname", "", "host without port")
	fl.IntVar(&f.opts.Port, "port", 0, "port")
	fl.StringVar(&f.opts.Pathname, "pathname", "", "path component")
	fl.StringVar(&f.opts.Search, "search", "", "query string, with or without the leading ?")
	fl.StringArrayVar(&f.params, "param", nil, "query parameter as name=value, repeatable")
	fl.StringVar(&f.opts.Hash, "hash", "", "fragment, with or without the leading #")
	fl.StringVar(&f.opts.Username, "username", "", "username")
	fl.StringVar(&f.opts.Password, "password", "", "password")
	fl.StringVar(&f.auth, "auth", "", "legacy user:pass credentials (always rejected)")
	fl.StringVarP(&f.file, "file", "f", "", "YAML or JSON file with options, - for stdin")
	fl.StringVar(&f.remote, "remote", "", "resolve through a running requrl server at this URL")
	fl.DurationVar(&f.timeout, "timeout", 30*time.Second, "request timeout for --remote")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level")

	return cmd
}

// batch combines the file entries with the flag options. Without a file the
// flags form a single entry.
func (f *resolveFlags) batch() ([]urlopts.Options, error) {
	flagOpts := f.opts
	if len(f.params) > 0 {
		flagOpts.SearchParams = make(urlopts.SearchParams, 0, len(f.params))
		for _, p := range f.params {
			flagOpts.SearchParams = append(flagOpts.SearchParams, urlopts.ParseParam(p))
		}
	}

	if f.file == "" {
		return []urlopts.Options{flagOpts}, nil
	}

	var (
		data []byte
		err  error
	)
	if f.file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(f.file)
	}
	if err != nil {
		return nil, fmt.Errorf("read options file: %w", err)
	}

	entries, err := decodeOptions(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.file, err)
	}
	for i := range entries {
		entries[i] = urlopts.Merge(entries[i], flagOpts)
	}
	return entries, nil
}

// decodeOptions accepts a single options object or a list of them, in YAML
// or JSON.
func decodeOptions(data []byte) ([]urlopts.Options, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, errors.New("empty options document")
	}

	node := &doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	switch node.Kind {
	case yaml.SequenceNode:
		var batch []urlopts.Options
		if err := node.Decode(&batch); err != nil {
			return nil, err
		}
		return batch, nil
	case yaml.MappingNode:
		var opts urlopts.Options
		if err := node.Decode(&opts); err != nil {
			return nil, err
		}
		return []urlopts.Options{opts}, nil
	default:
		return nil, fmt.Errorf("options must be a mapping or a list, got %s", node.Tag)
	}
}

func resolveLocal(out, errOut io.Writer, batch []urlopts.Options) int {
	rejected := 0
	for i, opts := range batch {
		u, err := urlopts.ToURL(opts)
		if err != nil {
			rejected++
			reportRejection(errOut, i, len(batch), err.Error())
			continue
		}
		fmt.Fprintln(out, u.Href(false))
	}
	return rejected
}

// resolveRemote posts the batch to a running server and prints the streamed
// results as they arrive.
func resolveRemote(ctx context.Context, out, errOut io.Writer, remote string, timeout time.Duration, batch []urlopts.Options) (int, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("encode batch: %w", err)
	}

	c := client.New(
		client.WithBase(urlopts.Options{Origin: remote}),
		client.WithTimeout(timeout),
		client.WithUserAgent("requrl-cli"),
		client.WithHeader("Accept", "text/event-stream"),
		client.WithLogger(log.Logger),
	)
	req, err := c.NewRequest(ctx, http.MethodPost, urlopts.Options{Pathname: "/v1/resolve/batch"}, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("invalid --remote: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Send(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("server returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	parser := stream.NewParser()
	buf := make([]byte, 32*1024)
	rejected := 0
	finished := false

	for !finished {
		n, readErr := resp.Body.Read(buf)
		for _, ev := range parser.ParseChunk(buf[:n]) {
			switch ev.Type {
			case "resolved":
				var res struct {
					Href string `json:"href"`
				}
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					return rejected, fmt.Errorf("decode resolved event: %w", err)
				}
				fmt.Fprintln(out, res.Href)
			case "rejected":
				var rej struct {
					Index *int `json:"index"`
					Error struct {
						Message string `json:"message"`
					} `json:"error"`
				}
				if err := json.Unmarshal([]byte(ev.Data), &rej); err != nil {
					return rejected, fmt.Errorf("decode rejected event: %w", err)
				}
				rejected++
				index := -1
				if rej.Index != nil {
					index = *rej.Index
				}
				reportRejection(errOut, index, len(batch), rej.Error.Message)
			case "done":
				finished = true
			default:
				log.Debug().Str("type", ev.Type).Msg("ignoring stream event")
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return rejected, fmt.Errorf("read stream: %w", readErr)
		}
	}

	if !finished {
		return rejected, errors.New("stream ended before the batch finished")
	}
	return rejected, nil
}

func reportRejection(w io.Writer, index, total int, message string) {
	if total > 1 && index >= 0 {
		fmt.Fprintf(w, "[%d] %s\n", index, message)
		return
	}
	fmt.Fprintln(w, message)
}
