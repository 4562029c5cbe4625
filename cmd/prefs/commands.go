package prefs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/ValentinKolb/dPrefs/cmd/util"
	"github.com/ValentinKolb/dPrefs/lib/codec"
	"github.com/ValentinKolb/dPrefs/lib/db"
	"github.com/ValentinKolb/dPrefs/lib/serializer"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Prints the value of a key, or the default if the key is not set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFlag(cmd)
			if err != nil {
				return err
			}

			def := codec.Zero(kind)
			if cmd.Flags().Changed("default") {
				text, _ := cmd.Flags().GetString("default")
				if def, err = valueCodec().ParseValue(kind, text); err != nil {
					return fmt.Errorf("invalid default: %w", err)
				}
			}

			v, err := settings.GetValueOrDefault(args[0], def, conf.Scope)
			fmt.Println(codec.FormatValue(v))
			return err
		},
	}
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFlag(cmd)
			if err != nil {
				return err
			}
			v, err := valueCodec().ParseValue(kind, args[1])
			if err != nil {
				return err
			}

			changed, err := settings.AddOrUpdateValue(args[0], v, conf.Scope)
			if err != nil {
				return err
			}
			if changed {
				fmt.Println("set successfully")
			} else {
				fmt.Println("unchanged")
			}
			return nil
		},
	}
	rmCmd = &cobra.Command{
		Use:   "rm [key]",
		Short: "Removes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.Remove(args[0], conf.Scope); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Prints whether a key is set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := settings.Contains(args[0], conf.Scope)
			if err != nil {
				return err
			}
			fmt.Println(ok)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes every key of the scope",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.Clear(conf.Scope); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists the keys of the scope with their stored type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := settings.Export()
			if err != nil {
				return err
			}
			for _, r := range snapshot.Records {
				if r.Scope == conf.Scope {
					fmt.Printf("%-30s %s\n", r.Key, r.Value.Type)
				}
			}
			return nil
		},
	}
	exportCmd = &cobra.Command{
		Use:   "export [file]",
		Short: "Writes all settings of all scopes to a file (- for stdout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := formatFlag(cmd)
			if err != nil {
				return err
			}
			snapshot, err := settings.Export()
			if err != nil {
				return err
			}
			data, err := s.Serialize(snapshot)
			if err != nil {
				return err
			}

			if args[0] == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(args[0], data, 0o600); err != nil {
				return err
			}
			fmt.Printf("exported %d settings\n", len(snapshot.Records))
			return nil
		},
	}
	importCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Writes all settings of an exported file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := formatFlag(cmd)
			if err != nil {
				return err
			}

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			var snapshot serializer.Snapshot
			if err := s.Deserialize(data, &snapshot); err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			n, err := settings.Import(snapshot)
			if err != nil {
				return fmt.Errorf("imported %d of %d settings: %w", n, len(snapshot.Records), err)
			}
			fmt.Printf("imported %d settings\n", n)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints information about the storage engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := settings.GetDBInfo()
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("%-22s: %s\n", "Engine", info.DbType)
			fmt.Printf("%-22s: %d bytes\n", "Size", info.SizeBytes)
			fmt.Printf("%-22s: %s\n", "Features", db.FeatureNames(info.SupportedFeatures, ", "))
			switch metadata := info.Metadata.(type) {
			case nil:
			case map[string]string:
				keys := make([]string, 0, len(metadata))
				for k := range metadata {
					keys = append(keys, k)
				}
				slices.Sort(keys)
				for _, k := range keys {
					fmt.Printf("%-22s: %s\n", k, metadata[k])
				}
			default:
				out, err := json.MarshalIndent(metadata, "", "  ")
				if err != nil {
					return err
				}
				fmt.Printf("%-22s: %s\n", "Metadata", out)
			}
			return nil
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{getCmd, setCmd} {
		c.Flags().String("kind", codec.KindString.String(), util.WrapString("Kind of the value (bool, int32, int64, float32, float64, decimal, string, time, uuid)"))
	}
	getCmd.Flags().String("default", "", util.WrapString("Value printed if the key is not set (default: zero value of the kind)"))

	for _, c := range []*cobra.Command{exportCmd, importCmd} {
		c.Flags().String("format", "json", util.WrapString("File format (json, gob, binary)"))
	}

	infoCmd.Flags().Bool("json", false, util.WrapString("Print the information as JSON"))
}

func kindFlag(cmd *cobra.Command) (codec.Kind, error) {
	name, _ := cmd.Flags().GetString("kind")
	return codec.ParseKind(name)
}

// valueCodec parses command line values the way the opened store decodes them
func valueCodec() *codec.Codec {
	return codec.NewCodec(util.CodecOptions(conf))
}

func formatFlag(cmd *cobra.Command) (serializer.ISnapshotSerializer, error) {
	name, _ := cmd.Flags().GetString("format")
	return serializer.ByName(name)
}
