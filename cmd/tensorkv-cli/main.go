// Command tensorkv-cli is an operator tool for a running tensorkv
// instance, speaking its HTTP API.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/tensorkv/tensorkv/internal/dtype"
	"github.com/tensorkv/tensorkv/pkg/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string
	root := &cobra.Command{
		Use:           "tensorkv-cli",
		Short:         "Operate a running tensorkv instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://127.0.0.1:8080",
		"base URL of the tensorkv instance")

	newClient := func() *client.Client { return client.New(addr) }
	root.AddCommand(
		newCreateStoreCmd(newClient),
		newPutCmd(newClient),
		newGetCmd(newClient),
		newDeleteCmd(newClient),
		newListCmd(newClient),
		newStoresCmd(newClient),
		newHealthCmd(newClient),
	)
	return root
}

func newCreateStoreCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "create-store NAME POSITION RANGE",
		Short: "Create a store owning one partition of the key space",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "position %q", args[1])
			}
			rng, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "range %q", args[2])
			}
			if err := newClient().CreateStore(cmd.Context(), args[0], position, rng); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created store %q (position %d of %d)\n",
				args[0], position, rng)
			return nil
		},
	}
}

func newPutCmd(newClient func() *client.Client) *cobra.Command {
	var (
		shapeSpec string
		dtypeName string
		file      string
	)
	cmd := &cobra.Command{
		Use:   "put STORE KEY",
		Short: "Store a tensor payload under a key",
		Long: "Store a tensor payload under a key. The payload is read from --file\n" +
			"(or stdin when --file is \"-\") and must match the declared shape and dtype.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[1])
			if err != nil {
				return err
			}
			shape, err := parseShape(shapeSpec)
			if err != nil {
				return err
			}
			dt, err := dtype.FromName(dtypeName)
			if err != nil {
				return err
			}
			var payload []byte
			if file == "-" {
				payload, err = io.ReadAll(cmd.InOrStdin())
			} else {
				payload, err = os.ReadFile(file)
			}
			if err != nil {
				return errors.Wrap(err, "read payload")
			}
			if err := newClient().PutPayload(cmd.Context(), args[0], key, shape, dt, payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored key %d (%s, shape %v, %s)\n",
				key, dt, shape, humanize.IBytes(uint64(len(payload))))
			return nil
		},
	}
	cmd.Flags().StringVar(&shapeSpec, "shape", "", "tensor shape as comma-separated dimensions, e.g. 2,3")
	cmd.Flags().StringVar(&dtypeName, "dtype", "", "element type, e.g. FP32 or INT8")
	cmd.Flags().StringVar(&file, "file", "-", "payload file, or - for stdin")
	_ = cmd.MarkFlagRequired("shape")
	_ = cmd.MarkFlagRequired("dtype")
	return cmd
}

func newGetCmd(newClient func() *client.Client) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "get STORE KEY",
		Short: "Fetch the tensor stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[1])
			if err != nil {
				return err
			}
			v, err := newClient().Get(cmd.Context(), args[0], key)
			if err != nil {
				return err
			}
			shape := make([]string, len(v.Shape))
			for i, d := range v.Shape {
				shape[i] = strconv.FormatUint(d, 10)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key %d: %s[%s], %s in %d chunks\n",
				key, v.DType, strings.Join(shape, "x"),
				humanize.IBytes(v.NumBytes()), len(v.Data))
			if out != "" {
				if err := os.WriteFile(out, v.Payload(), 0o644); err != nil {
					return errors.Wrap(err, "write payload")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "payload written to %s\n", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the payload to this file")
	return cmd
}

func newDeleteCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete STORE KEY",
		Short: "Delete the value stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[1])
			if err != nil {
				return err
			}
			if err := newClient().Delete(cmd.Context(), args[0], key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted key %d\n", key)
			return nil
		},
	}
}

func newListCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list STORE",
		Short: "List the keys in a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := newClient().List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Key"})
			for _, key := range keys {
				table.Append([]string{strconv.FormatUint(key, 10)})
			}
			table.SetFooter([]string{fmt.Sprintf("%d keys", len(keys))})
			table.Render()
			return nil
		},
	}
}

func newStoresCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "Describe every store on the instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := newClient().Stores(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Name", "Position", "Range", "Keys", "Bytes"})
			for _, info := range infos {
				table.Append([]string{
					info.Name,
					strconv.FormatUint(info.Position, 10),
					strconv.FormatUint(info.Range, 10),
					strconv.Itoa(info.Keys),
					humanize.IBytes(info.Bytes),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newHealthCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the instance's health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, service, err := newClient().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", service, status)
			return nil
		},
	}
}

// parseKey parses a decimal unsigned key.
func parseKey(s string) (uint64, error) {
	key, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "key %q", s)
	}
	return key, nil
}

// parseShape parses "2,3,4" into a shape.
func parseShape(spec string) ([]uint64, error) {
	parts := strings.Split(spec, ",")
	shape := make([]uint64, 0, len(parts))
	for _, p := range parts {
		dim, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "shape dimension %q", p)
		}
		shape = append(shape, dim)
	}
	return shape, nil
}
