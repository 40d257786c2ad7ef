package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bromq-dev/mqttwire/pkg/capture"
	"github.com/bromq-dev/mqttwire/pkg/packet"
	"github.com/bromq-dev/mqttwire/pkg/topic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) replayCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Decode and print a traffic capture",
		Long: `Read a capture written by probe or listen and print every frame with its
time and direction. With --filter only PUBLISH packets whose topic matches
the filter are shown.

Examples:
  mqttwire replay --capture probe.cap
  mqttwire replay --capture listen.cap --filter 'sensors/+/temp'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Capture == "" {
				return errors.New("--capture is required")
			}
			if filter != "" {
				if err := topic.ValidateFilter(filter); err != nil {
					return errors.Wrapf(err, "filter %q", filter)
				}
			}
			return a.replay(a.cfg.Capture, filter)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only show PUBLISH packets matching this topic filter")

	return cmd
}

func (a *app) replay(path, filter string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := capture.NewReader(f)
	for i := 0; ; i++ {
		frame, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		p, err := frame.Decode()
		if err != nil {
			fmt.Fprintf(a.out, "%s %-3s frame %d: %v\n", frame.Time.Format(timeFormat), frame.Direction, i, err)
			continue
		}
		if filter != "" {
			pub, ok := p.(*packet.Publish)
			if !ok || !topic.Match(filter, pub.TopicName.String()) {
				continue
			}
		}
		fmt.Fprintf(a.out, "%s %-3s %s\n", frame.Time.Format(timeFormat), frame.Direction, p)
	}
}

const timeFormat = "15:04:05.000000"
