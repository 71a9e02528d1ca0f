package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/backend"
	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/jsval"
	"github.com/warrenhq/warren/internal/storage"
	"github.com/warrenhq/warren/internal/warrenerr"
)

// objectFlags identify one object's store on the command line.
type objectFlags struct {
	Driver    string
	DSN       string
	Namespace string
	Name      string
	ID        string
}

func (o *objectFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.Driver, "driver", string(backend.DriverSQLite), "backend driver (sqlite3|pgx)")
	cmd.PersistentFlags().StringVar(&o.DSN, "dsn", "", "backend DSN (sqlite path or postgres URL)")
	cmd.PersistentFlags().StringVar(&o.Namespace, "namespace", "", "namespace name")
	cmd.PersistentFlags().StringVar(&o.Name, "name", "", "object name (derives the identity)")
	cmd.PersistentFlags().StringVar(&o.ID, "id", "", "object identity (64-hex string)")
}

// open resolves the flags into a storage engine bound to the object.
func (o *objectFlags) open() (*storage.Engine, func() error, error) {
	if o.DSN == "" {
		return nil, nil, NewExitError(ExitCommandError, "--dsn is required")
	}
	if o.Namespace == "" {
		return nil, nil, NewExitError(ExitCommandError, "--namespace is required")
	}

	var id identity.Identity
	switch {
	case o.Name != "" && o.ID != "":
		return nil, nil, NewExitError(ExitCommandError, "--name and --id are mutually exclusive")
	case o.Name != "":
		id = identity.DeriveFromName(o.Namespace, o.Name)
	case o.ID != "":
		parsed, err := identity.Parse(o.Namespace, o.ID)
		if err != nil {
			return nil, nil, WrapExitError(ExitFailure, "invalid --id", err)
		}
		id = parsed
	default:
		return nil, nil, NewExitError(ExitCommandError, "one of --name or --id is required")
	}

	db, err := backend.Open(backend.Driver(o.Driver), o.DSN)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "opening backend", err)
	}
	return storage.New(db, id), db.Close, nil
}

// kvEntry is the output payload for kv commands.
type kvEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// NewKVCommand creates the kv command group for operator access to one
// object's store.
func NewKVCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &objectFlags{}
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read and write one object's key-value store",
	}
	flags.register(cmd)
	cmd.AddCommand(newKVGetCommand(rootOpts, flags))
	cmd.AddCommand(newKVPutCommand(rootOpts, flags))
	cmd.AddCommand(newKVDeleteCommand(rootOpts, flags))
	cmd.AddCommand(newKVListCommand(rootOpts, flags))
	return cmd
}

func newKVGetCommand(rootOpts *RootOptions, flags *objectFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "get <key>",
		Short:         "Read one key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			engine, closeDB, err := flags.open()
			if err != nil {
				return err
			}
			defer closeDB()

			v, ok, err := engine.Get(cmd.Context(), args[0])
			if err != nil {
				return f.Failure(ExitFailure, err)
			}
			if !ok {
				return f.Failure(ExitFailure,
					warrenerr.Newf(warrenerr.CodeValidation, "key %q not found", args[0]))
			}
			if rootOpts.Format == "json" {
				return f.Success(kvEntry{Key: args[0], Value: v})
			}
			rendered, err := jsval.Marshal(v)
			if err != nil {
				return f.Failure(ExitFailure, err)
			}
			return f.Success(string(rendered))
		},
	}
}

func newKVPutCommand(rootOpts *RootOptions, flags *objectFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "put <key> <json-value>",
		Short:         "Write one key",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			var value any
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return WrapExitError(ExitCommandError, "value must be valid JSON", err)
			}

			engine, closeDB, err := flags.open()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := engine.Put(cmd.Context(), args[0], value); err != nil {
				return f.Failure(ExitFailure, err)
			}
			return f.Success(fmt.Sprintf("put %q", args[0]))
		},
	}
}

func newKVDeleteCommand(rootOpts *RootOptions, flags *objectFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <key>",
		Short:         "Delete one key",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			engine, closeDB, err := flags.open()
			if err != nil {
				return err
			}
			defer closeDB()

			existed, err := engine.Delete(cmd.Context(), args[0])
			if err != nil {
				return f.Failure(ExitFailure, err)
			}
			if rootOpts.Format == "json" {
				return f.Success(map[string]any{"key": args[0], "existed": existed})
			}
			if existed {
				return f.Success(fmt.Sprintf("deleted %q", args[0]))
			}
			return f.Success(fmt.Sprintf("%q was not present", args[0]))
		},
	}
}

func newKVListCommand(rootOpts *RootOptions, flags *objectFlags) *cobra.Command {
	var opts struct {
		Prefix  string
		Start   string
		End     string
		Limit   int
		Reverse bool
	}
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List the object's entries in key order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			engine, closeDB, err := flags.open()
			if err != nil {
				return err
			}
			defer closeDB()

			entries, err := engine.List(cmd.Context(), storage.ListOptions{
				Prefix:  opts.Prefix,
				Start:   opts.Start,
				End:     opts.End,
				Limit:   opts.Limit,
				Reverse: opts.Reverse,
			})
			if err != nil {
				return f.Failure(ExitFailure, err)
			}
			if rootOpts.Format == "json" {
				out := make([]kvEntry, len(entries))
				for i, e := range entries {
					out[i] = kvEntry{Key: e.Key, Value: e.Value}
				}
				return f.Success(out)
			}
			for _, e := range entries {
				rendered, err := jsval.Marshal(e.Value)
				if err != nil {
					return f.Failure(ExitFailure, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", e.Key, rendered)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "restrict to keys with this prefix")
	cmd.Flags().StringVar(&opts.Start, "start", "", "inclusive lower bound")
	cmd.Flags().StringVar(&opts.End, "end", "", "exclusive upper bound")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries (0 means the cap)")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "descending key order")
	return cmd
}
