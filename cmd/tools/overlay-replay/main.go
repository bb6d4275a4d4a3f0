// Command overlay-replay feeds a recorded or synthetic detection log through
// the overlay tracker and reports how much the smoothing reduced jitter.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/photobooth/internal/config"
	"github.com/banshee-data/photobooth/internal/overlay"
	"github.com/banshee-data/photobooth/internal/replay"
	"github.com/banshee-data/photobooth/internal/security"
)

type options struct {
	in         string
	out        string
	plot       string
	tuning     string
	jsonOutput bool
	seed       uint64
	synth      replay.SynthOptions
}

func parseFlags(args []string) (options, error) {
	def := replay.DefaultSynthOptions()
	o := options{synth: def}

	fs := flag.NewFlagSet("overlay-replay", flag.ContinueOnError)
	fs.StringVar(&o.in, "in", "", "JSONL detection log (default: synthesize one)")
	fs.StringVar(&o.out, "out", "", "Write the frames that were replayed to this JSONL file")
	fs.StringVar(&o.plot, "plot", "", "Write a trajectory plot PNG")
	fs.StringVar(&o.tuning, "tuning", "", "Overlay tuning JSON file")
	fs.BoolVar(&o.jsonOutput, "json", false, "Print the summary as JSON")
	fs.Uint64Var(&o.seed, "variant-seed", 1, "Seed for decoration variant selection")
	fs.IntVar(&o.synth.Frames, "frames", def.Frames, "Synthetic frame count")
	fs.Uint64Var(&o.synth.Seed, "seed", def.Seed, "Synthetic noise seed")
	fs.Float64Var(&o.synth.JitterPx, "jitter", def.JitterPx, "Synthetic keypoint noise (source px)")
	fs.IntVar(&o.synth.DropoutEvery, "dropout-every", def.DropoutEvery, "Drop the face every N frames (0 disables)")
	fs.IntVar(&o.synth.FalsePositiveAt, "false-positive-at", def.FalsePositiveAt, "Frame with a spurious face (-1 disables)")
	fs.Float64Var(&o.synth.RollDeg, "roll", def.RollDeg, "Head roll amplitude in degrees")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.synth.Frames <= 0 {
		return options{}, fmt.Errorf("-frames must be positive, got %d", o.synth.Frames)
	}
	for _, p := range []string{o.out, o.plot} {
		if p == "" {
			continue
		}
		if err := security.OutputPath(p); err != nil {
			return options{}, err
		}
	}
	return o, nil
}

func run(o options, stdout io.Writer) error {
	var frames []replay.Frame
	if o.in != "" {
		var err error
		if frames, err = replay.LoadFile(o.in); err != nil {
			return err
		}
		log.Printf("Loaded %d frames from %s", len(frames), o.in)
	} else {
		frames = replay.Synthesize(o.synth)
	}

	tuning := config.DefaultTuningConfig()
	if o.tuning != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(o.tuning); err != nil {
			return err
		}
	}
	tracker := overlay.NewTracker(overlay.ConfigFromTuning(tuning),
		overlay.WithVariantChooser(overlay.SeededVariant(o.seed)))

	result := replay.Run(tracker, frames)
	summary := replay.Summarize(result)

	if o.out != "" {
		if err := replay.SaveFile(o.out, frames); err != nil {
			return err
		}
		log.Printf("Wrote %s", o.out)
	}
	if o.plot != "" {
		if err := replay.PlotTrajectory(result, o.plot); err != nil {
			return err
		}
		log.Printf("Wrote %s", o.plot)
	}

	if o.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	fmt.Fprintf(stdout, "frames:            %d\n", summary.Frames)
	fmt.Fprintf(stdout, "tracks created:    %d\n", summary.TracksCreated)
	fmt.Fprintf(stdout, "tracks removed:    %d\n", summary.TracksRemoved)
	fmt.Fprintf(stdout, "primary track:     %s\n", summary.PrimaryTrack)
	fmt.Fprintf(stdout, "visible frames:    %d\n", summary.VisibleFrames)
	fmt.Fprintf(stdout, "max concurrent:    %d\n", summary.MaxConcurrent)
	fmt.Fprintf(stdout, "raw step:          %.2f ± %.2f px\n", summary.RawStepMean, summary.RawStepStd)
	fmt.Fprintf(stdout, "smoothed step:     %.2f ± %.2f px\n", summary.SmoothStepMean, summary.SmoothStepStd)
	fmt.Fprintf(stdout, "jitter reduction:  %.0f%%\n", summary.JitterReduction*100)
	return nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if err := run(o, os.Stdout); err != nil {
		log.Fatalf("overlay-replay: %v", err)
	}
}
