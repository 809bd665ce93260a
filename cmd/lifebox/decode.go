package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/srg/lifebox/internal/frame"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// decodeCmd represents the decode command
var decodeCmd = &cobra.Command{
	Use:   "decode <hex-frame>...",
	Short: "Decode captured notification frames",
	Long: `Decodes 4-byte LifeinaBox notification frames without connecting to the box.
Frames are hex strings; spaces, colons, dashes and 0x prefixes are ignored.

Examples:
  lifebox decode aa8f1955
  lifebox decode "AA:8E:32:55" 0xaa8e8055 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecode,
}

var decodeJSON bool

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Output JSON lines")
}

// parseFrameHex strips common separators and decodes a hex frame.
func parseFrameHex(s string) ([]byte, error) {
	cleaned := strings.ToLower(s)
	cleaned = strings.ReplaceAll(cleaned, "0x", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	out := cmd.OutOrStdout()

	var failed int
	for _, arg := range args {
		if err := decodeOne(out, arg, decodeJSON); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d frames could not be decoded", failed, len(args))
	}
	return nil
}

// decodeOne prints the decoded frame, or the reason it was rejected.
func decodeOne(out io.Writer, arg string, asJSON bool) error {
	data, err := parseFrameHex(arg)
	var m frame.Measurement
	if err == nil {
		m, err = frame.Decode(data)
	}

	label := arg
	if data != nil {
		label = hex.EncodeToString(data)
	}

	if asJSON {
		var rec *orderedmap.OrderedMap[string, any]
		if err != nil {
			rec = orderedmap.New[string, any]()
			rec.Set("frame", label)
			var decodeErr *frame.DecodeError
			if errors.As(err, &decodeErr) {
				rec.Set("reason", string(decodeErr.Reason))
			}
			rec.Set("error", err.Error())
		} else {
			rec = orderedmap.New[string, any]()
			rec.Set("frame", label)
			for pair := measurementRecord(time.Time{}, m).Oldest(); pair != nil; pair = pair.Next() {
				rec.Set(pair.Key, pair.Value)
			}
		}
		(&jsonPrinter{w: out}).write(rec)
		return err
	}

	if err != nil {
		fmt.Fprintf(out, "%-10s  %-11s  %v\n", label, "error", err)
		return err
	}
	fmt.Fprintf(out, "%-10s  %-11s  %s\n", label, m.Kind(), m)
	return nil
}
