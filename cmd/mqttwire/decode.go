package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bromq-dev/mqttwire/pkg/packet"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// packetView is the JSON form of a decoded packet.
type packetView struct {
	Type    string        `json:"type"`
	Size    int           `json:"size"`
	Summary string        `json:"summary"`
	Packet  packet.Packet `json:"packet"`
}

func (a *app) decodeCmd() *cobra.Command {
	var (
		file    string
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "decode [hex...]",
		Short: "Decode packets given as hex or read from a file",
		Long: `Decode a stream of packets and print one line per packet.

Hex arguments are concatenated and may contain spaces. With --file the
stream is read from a binary file, or from stdin when the file is "-".
Packets after a CONNECT are decoded at the protocol level it carries.

Examples:
  mqttwire decode 101900044d5154540400003c000d6375746965...
  mqttwire decode "c0 00" "d0 00"
  mqttwire decode --file session.bin --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader
			switch {
			case file == "-":
				r = cmd.InOrStdin()
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			case len(args) > 0:
				b, err := parseHex(args)
				if err != nil {
					return err
				}
				r = bytes.NewReader(b)
			default:
				return errors.New("nothing to decode: pass hex arguments or --file")
			}
			return a.decodeStream(r, asJSON, verbose)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "binary file to decode (- for stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print packets as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the fixed header and raw bytes too")

	return cmd
}

func parseHex(args []string) ([]byte, error) {
	s := strings.Join(strings.Fields(strings.Join(args, " ")), "")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "parsing hex")
	}
	return b, nil
}

func (a *app) decodeStream(r io.Reader, asJSON, verbose bool) error {
	reader := packet.NewReader(r, 0)
	reader.SetVersion(a.cfg.ProtocolVersion())
	if a.cfg.MaxPacketSize > 0 {
		reader.SetMaxPacketSize(a.cfg.MaxPacketSize)
	}

	offset := 0
	for {
		raw, err := reader.ReadRaw()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "at offset %d", offset)
		}
		p, err := reader.DecodeRaw(raw)
		if err != nil {
			return errors.Wrapf(err, "at offset %d", offset)
		}
		if err := a.printPacket(p, raw, asJSON, verbose); err != nil {
			return err
		}
		offset += len(raw)
	}
}

func (a *app) printPacket(p packet.Packet, raw []byte, asJSON, verbose bool) error {
	if asJSON {
		b, err := json.Marshal(packetView{
			Type:    p.Type().String(),
			Size:    len(raw),
			Summary: fmt.Sprint(p),
			Packet:  p,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.out, "%s\n", b)
		return err
	}
	if verbose {
		h, _, err := packet.DecodeFixedHeader(raw)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.out, "%s %s\n  % x\n", h, p, raw)
		return err
	}
	_, err := fmt.Fprintln(a.out, p)
	return err
}
